// Package adapters provides loadcast data source connectors that retrieve
// load or weather observations from external systems and normalize them
// into a models.Frame.
//
// Each adapter implements the Adapter interface. Available adapters:
//   - HTTPAdapter - generic adapter for any REST API with JSON responses
//     (weather services such as Open-Meteo or Meteostat)
//   - OPSDAdapter - downloads the Open Power System Data time series CSV
//   - FileAdapter - reads a local long-format or OPSD CSV, gzip by suffix
//
// Adapters only pull raw data and shape it into frames. Resampling, feature
// building and forecasting live in the upper layers.
package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Window is the inclusive time range an adapter collects.
// A zero Start or End leaves that side open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate reports an error when both ends are set and Start is after End.
func (w Window) Validate() error {
	if !w.Start.IsZero() && !w.End.IsZero() && w.Start.After(w.End) {
		return errors.New("window start is after end")
	}
	return nil
}

// Clip returns the rows of f inside the window.
func (w Window) Clip(f models.Frame) models.Frame {
	return f.Filter(func(r models.Row) bool {
		if !w.Start.IsZero() && r.Time.Before(w.Start) {
			return false
		}
		if !w.End.IsZero() && r.Time.After(w.End) {
			return false
		}
		return true
	})
}

// LastWindow returns the window of length d ending now, truncated to the second.
func LastWindow(d time.Duration) Window {
	end := time.Now().UTC().Truncate(time.Second)
	return Window{Start: end.Add(-d), End: end}
}

// Adapter is the interface that all loadcast adapters implement.
//
// Collect is synchronous and should respect context cancellation and
// deadlines.
type Adapter interface {
	// Collect fetches observations inside w and returns them as a frame
	// sorted by time. It must never panic.
	Collect(ctx context.Context, w Window) (models.Frame, error)

	// Name returns a short, unique identifier for the adapter.
	// Example: "http", "opsd".
	Name() string
}

// AlignTimestamp truncates ts to a multiple of step.
func AlignTimestamp(ts time.Time, step time.Duration) time.Time {
	return ts.Truncate(step)
}
