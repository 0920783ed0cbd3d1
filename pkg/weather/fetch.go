package weather

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/loadcast/pkg/adapters"
	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/models"
)

// Fetcher retrieves raw UTC observations of one station.
type Fetcher interface {
	Fetch(ctx context.Context, s Station) (models.Frame, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, s Station) (models.Frame, error)

func (f FetcherFunc) Fetch(ctx context.Context, s Station) (models.Frame, error) {
	return f(ctx, s)
}

// AdapterFetcher fetches stations through a templated HTTP adapter. Each
// call copies the template and sets Series to the station name and the
// template variables StationID, Lat, Lon and Timezone.
type AdapterFetcher struct {
	Template *adapters.HTTPAdapter
}

// Fetch implements Fetcher.
func (a AdapterFetcher) Fetch(ctx context.Context, s Station) (models.Frame, error) {
	h := *a.Template
	h.Series = s.Name
	h.TemplateVars = maps.Clone(a.Template.TemplateVars)
	if h.TemplateVars == nil {
		h.TemplateVars = make(map[string]string, 4)
	}
	h.TemplateVars["StationID"] = s.ID
	h.TemplateVars["Lat"] = strconv.FormatFloat(s.Lat, 'f', -1, 64)
	h.TemplateVars["Lon"] = strconv.FormatFloat(s.Lon, 'f', -1, 64)
	h.TemplateVars["Timezone"] = s.Timezone

	return h.Collect(ctx, adapters.Window{Start: s.Start, End: s.End})
}

// Options configures FetchAll.
type Options struct {
	// Dir receives one gzip CSV per station. Empty disables writing.
	Dir string

	// Workers bounds concurrent fetches. Defaults to runtime.NumCPU().
	Workers int

	// TimeColumn names the time column of written files. Default "ds".
	TimeColumn string

	Logger *slog.Logger
}

// Result is the outcome of one station.
type Result struct {
	Station Station
	Frame   models.Frame
	Path    string
	Err     error
}

// FetchAll fetches, normalizes and writes every station on a bounded worker
// pool. Results are returned in station order. Each station frame gets a
// year column; written files also carry the LabelColumns.
//
// A failing station is logged and recorded on its Result without stopping
// the others. Only cancellation of ctx aborts the pool, in which case the
// context error is returned together with the partial results.
func FetchAll(ctx context.Context, stations []Station, fetcher Fetcher, opts Options) ([]Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	layout := dataio.Layout{
		TimeColumn:   opts.TimeColumn,
		SeriesColumn: "station",
		TimeFormat:   time.DateTime,
		Labels:       LabelColumns,
	}

	results := make([]Result, len(stations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, s := range stations {
		results[i].Station = s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			res, err := fetchOne(gctx, s, fetcher, opts.Dir, layout)
			results[i] = res
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i].Err = err
				logger.Error("station fetch failed", "station", s.Name, "index", i+1, "total", len(stations), "error", err)
				return nil
			}

			logger.Info("station fetched",
				"station", s.Name,
				"index", i+1,
				"total", len(stations),
				"rows", res.Frame.Len(),
				"path", res.Path,
				"duration", time.Since(start),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func fetchOne(ctx context.Context, s Station, fetcher Fetcher, dir string, layout dataio.Layout) (Result, error) {
	res := Result{Station: s}

	loc, err := s.Location()
	if err != nil {
		return res, err
	}

	raw, err := fetcher.Fetch(ctx, s)
	if err != nil {
		return res, fmt.Errorf("fetch %q: %w", s.Name, err)
	}

	res.Frame = Normalize(raw, loc)
	for i := range res.Frame.Rows {
		row := &res.Frame.Rows[i]
		row.Series = s.Name
		row.Values[YearColumn] = models.Float(float64(row.Time.Year()))
	}

	if dir == "" {
		return res, nil
	}
	layout.LabelValues = StationLabels(s)
	path := filepath.Join(dir, s.FileName())
	if err := dataio.WriteCSVFile(path, res.Frame, layout); err != nil {
		return res, fmt.Errorf("write %q: %w", path, err)
	}
	res.Path = path
	return res, nil
}

// Combine concatenates the frames of successful results in station order.
func Combine(results []Result) models.Frame {
	frames := make([]models.Frame, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			frames = append(frames, r.Frame)
		}
	}
	return models.Concat(frames...)
}

func fileName(name string) string {
	name = strings.ReplaceAll(name, " / ", "_")
	return strings.ReplaceAll(name, " ", "_")
}
