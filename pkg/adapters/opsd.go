package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/models"
)

// DefaultOPSDURL is the hourly single-index time series package of Open
// Power System Data.
const DefaultOPSDURL = "https://data.open-power-system-data.org/time_series/2020-10-06/time_series_60min_singleindex.csv"

// OPSDAdapter downloads the OPSD time series CSV and returns the actual load
// of the selected countries as a long frame, one series per country.
type OPSDAdapter struct {
	// URL of the CSV (optionally gzip compressed, by ".gz" suffix).
	// Defaults to DefaultOPSDURL.
	URL string

	// Countries to keep, as ISO codes used in the OPSD column names.
	Countries []string

	// Suffix selects the column family. Defaults to dataio.OPSDLoadSuffix.
	Suffix string

	// Output column name. Defaults to "y".
	Output string

	HTTPClient *http.Client
}

func (o *OPSDAdapter) Name() string { return "opsd" }

// Collect implements Adapter.
func (o *OPSDAdapter) Collect(ctx context.Context, w Window) (models.Frame, error) {
	if err := w.Validate(); err != nil {
		return models.Frame{}, fmt.Errorf("opsd adapter: %w", err)
	}

	url := o.URL
	if url == "" {
		url = DefaultOPSDURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Frame{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := httpClient(o.HTTPClient).Do(req)
	if err != nil {
		return models.Frame{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.Frame{}, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(url, ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return models.Frame{}, fmt.Errorf("open gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	frame, err := dataio.ReadOPSD(body, dataio.OPSDOptions{
		Countries: o.Countries,
		Suffix:    o.Suffix,
		Output:    o.Output,
	})
	if err != nil {
		return models.Frame{}, fmt.Errorf("parse opsd csv: %w", err)
	}
	return w.Clip(frame), nil
}
