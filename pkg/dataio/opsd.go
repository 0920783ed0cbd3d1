package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/HatiCode/loadcast/pkg/models"
)

// OPSDLoadSuffix selects the ENTSO-E actual load columns of the OPSD export.
const OPSDLoadSuffix = "load_actual_entsoe_transparency"

// OPSDOptions selects columns from a wide OPSD time series file.
type OPSDOptions struct {
	// TimeColumn holds the UTC timestamp. Default "utc_timestamp".
	TimeColumn string

	// Suffix selects columns named "<COUNTRY>_<Suffix>". Default OPSDLoadSuffix.
	Suffix string

	// Countries restricts the output. Empty keeps every country with a
	// matching column.
	Countries []string

	// Output is the value column name of the long frame. Default "y".
	Output string
}

func (o OPSDOptions) withDefaults() OPSDOptions {
	if o.TimeColumn == "" {
		o.TimeColumn = "utc_timestamp"
	}
	if o.Suffix == "" {
		o.Suffix = OPSDLoadSuffix
	}
	if o.Output == "" {
		o.Output = "y"
	}
	return o
}

// ReadOPSD converts a wide OPSD CSV into a long frame with one row per
// (country, timestamp). Rows are grouped by country, in the order countries
// were requested (or appear in the header), then by file order.
func ReadOPSD(r io.Reader, opts OPSDOptions) (models.Frame, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return models.Frame{}, fmt.Errorf("read header: %w", err)
	}

	timeIdx := slices.Index(header, opts.TimeColumn)
	if timeIdx < 0 {
		return models.Frame{}, fmt.Errorf("time column %q not found", opts.TimeColumn)
	}

	found := map[string]int{}
	var order []string
	suffix := "_" + opts.Suffix
	for i, name := range header {
		country, ok := strings.CutSuffix(name, suffix)
		if !ok || country == "" {
			continue
		}
		found[country] = i
		order = append(order, country)
	}

	if len(opts.Countries) > 0 {
		order = order[:0]
		for _, c := range opts.Countries {
			if _, ok := found[c]; !ok {
				return models.Frame{}, fmt.Errorf("no %s column for country %q", opts.Suffix, c)
			}
			order = append(order, c)
		}
	}
	if len(order) == 0 {
		return models.Frame{}, fmt.Errorf("no columns end in %q", suffix)
	}

	perCountry := make([][]models.Row, len(order))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Frame{}, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := ParseTime(rec[timeIdx], "")
		if err != nil {
			return models.Frame{}, fmt.Errorf("line %d: %w", line, err)
		}
		ts = ts.UTC()

		for j, c := range order {
			v, err := ParseValue(rec[found[c]])
			if err != nil {
				return models.Frame{}, fmt.Errorf("line %d column %q: %w", line, header[found[c]], err)
			}
			perCountry[j] = append(perCountry[j], models.Row{
				Series: c,
				Time:   ts,
				Values: map[string]models.Value{opts.Output: v},
			})
		}
	}

	var out models.Frame
	for _, rows := range perCountry {
		out.Rows = append(out.Rows, rows...)
	}
	return out, nil
}

// ReadOPSDFile reads an OPSD export from path (see Open).
func ReadOPSDFile(path string, opts OPSDOptions) (models.Frame, error) {
	r, err := Open(path)
	if err != nil {
		return models.Frame{}, err
	}
	defer r.Close()

	data, err := ReadOPSD(r, opts)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
