package models

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// CutoffWindow is an inclusive historical date range.
type CutoffWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether t lies within the window, bounds included.
func (w CutoffWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// MultiNaiveConfig configures a MultiNaiveRegressor.
type MultiNaiveConfig struct {
	// Cutoffs are the historical windows averaged into each forecast.
	// Every window must cover as many distinct timestamps as the period
	// that will later be passed to Predict.
	Cutoffs []CutoffWindow

	// IndexName names the timestamp column in tabular output. Default "ds".
	IndexName string

	// SeriesColumn names the series identifier column. Default "country".
	SeriesColumn string

	// Target is the value column read during Fit. Default "y".
	Target string

	// Output is the value column written by Predict. Default "yhat".
	Output string
}

func (c *MultiNaiveConfig) applyDefaults() {
	if c.IndexName == "" {
		c.IndexName = "ds"
	}
	if c.SeriesColumn == "" {
		c.SeriesColumn = "country"
	}
	if c.Target == "" {
		c.Target = "y"
	}
	if c.Output == "" {
		c.Output = "yhat"
	}
}

// Validate checks the configuration.
func (c MultiNaiveConfig) Validate() error {
	if len(c.Cutoffs) == 0 {
		return validationErrorf("at least one cutoff window is required")
	}
	for i, w := range c.Cutoffs {
		if w.Start.IsZero() || w.End.IsZero() {
			return validationErrorf("cutoff[%d]: start and end are required", i)
		}
		if w.End.Before(w.Start) {
			return validationErrorf("cutoff[%d]: end %s before start %s", i, w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
		}
	}
	return nil
}

type trainingPoint struct {
	series string
	time   time.Time
	value  Value
}

// MultiNaiveRegressor forecasts many named series at once by averaging what
// happened in a set of historical cutoff windows.
//
// Fit keeps, for every cutoff window in order, the observations falling
// inside it. Predict pairs the k-th observation of each window with the k-th
// distinct target timestamp and averages per (series, target timestamp),
// ignoring missing values. Alignment is by position, not by calendar.
//
// Usage:
//
//	reg, _ := NewMultiNaiveRegressor(MultiNaiveConfig{Cutoffs: []CutoffWindow{
//	    {Start: mustTime("2018-07-05T00:00:00Z"), End: mustTime("2018-10-03T23:00:00Z")},
//	    {Start: mustTime("2019-07-04T00:00:00Z"), End: mustTime("2019-10-02T23:00:00Z")},
//	}})
//	_ = reg.Fit(ctx, history)          // rows: series, time, "y"
//	pred, _ := reg.Predict(ctx, future) // rows: series, time
type MultiNaiveRegressor struct {
	cfg      MultiNaiveConfig
	training []trainingPoint
	fitted   bool
}

// NewMultiNaiveRegressor creates a multi-series naive regressor.
func NewMultiNaiveRegressor(cfg MultiNaiveConfig) (*MultiNaiveRegressor, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Cutoffs = append([]CutoffWindow(nil), cfg.Cutoffs...)
	return &MultiNaiveRegressor{cfg: cfg}, nil
}

// Name returns the model identifier.
func (m *MultiNaiveRegressor) Name() string {
	return "multi_naive"
}

// Config returns a copy of the current configuration.
func (m *MultiNaiveRegressor) Config() MultiNaiveConfig {
	cfg := m.cfg
	cfg.Cutoffs = append([]CutoffWindow(nil), m.cfg.Cutoffs...)
	return cfg
}

// Fitted reports whether Fit has completed successfully.
func (m *MultiNaiveRegressor) Fitted() bool {
	return m.fitted
}

// TrainingLen returns the number of stored historical observations.
func (m *MultiNaiveRegressor) TrainingLen() int {
	return len(m.training)
}

// Fit collects the observations inside each cutoff window.
//
// Every row needs a series identifier, a timestamp and the target column;
// the target value itself may be missing.
func (m *MultiNaiveRegressor) Fit(ctx context.Context, data Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, r := range data.Rows {
		if r.Series == "" {
			return validationErrorf("row %d: empty %s", i, m.cfg.SeriesColumn)
		}
		if r.Time.IsZero() {
			return validationErrorf("row %d: empty %s", i, m.cfg.IndexName)
		}
		if _, ok := r.Values[m.cfg.Target]; !ok {
			return validationErrorf("row %d: missing target column %q", i, m.cfg.Target)
		}
	}

	training := make([]trainingPoint, 0)
	for _, w := range m.cfg.Cutoffs {
		for _, r := range data.Rows {
			if !w.Contains(r.Time) {
				continue
			}
			training = append(training, trainingPoint{
				series: r.Series,
				time:   r.Time,
				value:  r.Values[m.cfg.Target],
			})
		}
	}

	m.training = training
	m.fitted = true
	return nil
}

type groupKey struct {
	series string
	time   time.Time
}

type groupAcc struct {
	target time.Time
	sum    float64
	count  int
}

// Predict averages the fitted history onto the distinct timestamps of data.
//
// The distinct timestamp count times (#series × #cutoffs) must equal the
// number of stored observations; otherwise ErrShapeMismatch is returned.
// Output rows are ordered by series, then timestamp.
func (m *MultiNaiveRegressor) Predict(ctx context.Context, data Frame) (Frame, error) {
	if !m.fitted {
		return Frame{}, ErrNotFitted
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	for i, r := range data.Rows {
		if r.Series == "" {
			return Frame{}, validationErrorf("row %d: empty %s", i, m.cfg.SeriesColumn)
		}
		if r.Time.IsZero() {
			return Frame{}, validationErrorf("row %d: empty %s", i, m.cfg.IndexName)
		}
	}

	targets := data.Times()
	n := len(data.SeriesIDs()) * len(m.cfg.Cutoffs)

	if len(targets)*n != len(m.training) {
		return Frame{}, fmt.Errorf("%w: %d target timestamps × %d series-cutoffs = %d, fitted history has %d rows",
			ErrShapeMismatch, len(targets), n, len(targets)*n, len(m.training))
	}

	groups := make(map[groupKey]*groupAcc)
	for i, p := range m.training {
		target := targets[i%len(targets)]
		key := groupKey{series: p.series, time: target.UTC()}
		acc, ok := groups[key]
		if !ok {
			acc = &groupAcc{target: target}
			groups[key] = acc
		}
		if p.value.Valid {
			acc.sum += p.value.Float
			acc.count++
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].series != keys[j].series {
			return keys[i].series < keys[j].series
		}
		return keys[i].time.Before(keys[j].time)
	})

	rows := make([]Row, len(keys))
	for i, k := range keys {
		acc := groups[k]
		v := Missing()
		if acc.count > 0 {
			v = Float(acc.sum / float64(acc.count))
		}
		rows[i] = Row{
			Series: k.series,
			Time:   acc.target,
			Values: map[string]Value{m.cfg.Output: v},
		}
	}

	return Frame{Rows: rows}, nil
}

// Params returns the hyperparameters under their conventional names.
func (m *MultiNaiveRegressor) Params() Params {
	return Params{
		"naive_cutoffs": append([]CutoffWindow(nil), m.cfg.Cutoffs...),
		"index_name":    m.cfg.IndexName,
		"ts_name_col":   m.cfg.SeriesColumn,
		"target":        m.cfg.Target,
		"output":        m.cfg.Output,
	}
}

// SetParams applies p on top of the current configuration. Changing the
// cutoffs does not touch previously fitted history; call Fit again.
func (m *MultiNaiveRegressor) SetParams(p Params) error {
	if err := checkKnown(p, "naive_cutoffs", "index_name", "ts_name_col", "target", "output"); err != nil {
		return err
	}

	cfg := m.Config()
	if raw, ok := p["naive_cutoffs"]; ok {
		cutoffs, isCutoffs := raw.([]CutoffWindow)
		if !isCutoffs {
			return validationErrorf("param %q: unexpected type %T", "naive_cutoffs", raw)
		}
		cfg.Cutoffs = append([]CutoffWindow(nil), cutoffs...)
	}
	for key, dst := range map[string]*string{
		"index_name":  &cfg.IndexName,
		"ts_name_col": &cfg.SeriesColumn,
		"target":      &cfg.Target,
		"output":      &cfg.Output,
	} {
		v, ok, err := paramString(p, key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}
