package models

import (
	"context"
	"fmt"
	"time"
)

// StrategySlice repeats a slice of recent history as the forecast.
const StrategySlice = "slice"

// NaiveConfig configures a NaiveRegressor.
type NaiveConfig struct {
	// Strategy selects how the forecast is derived. Only "slice" is supported.
	Strategy string

	// Lookback is how many of the most recent observations are considered.
	Lookback int

	// Horizon is the number of steps after the first forecast point;
	// Predict returns Horizon+1 rows.
	Horizon int

	// Targets are the value columns carried into the forecast.
	Targets []string

	// Freq is the spacing between forecast timestamps.
	Freq time.Duration
}

// DefaultNaiveConfig returns one year of hourly lookback and a 91 day hourly
// horizon over the temperature column.
func DefaultNaiveConfig() NaiveConfig {
	return NaiveConfig{
		Strategy: StrategySlice,
		Lookback: 366 * 24,
		Horizon:  91 * 24,
		Targets:  []string{"temperature"},
		Freq:     time.Hour,
	}
}

// Validate checks the configuration.
func (c NaiveConfig) Validate() error {
	if c.Strategy != StrategySlice {
		return validationErrorf("unsupported naive strategy %q (must be %s)", c.Strategy, StrategySlice)
	}
	if c.Horizon < 0 {
		return validationErrorf("horizon must be >= 0, got %d", c.Horizon)
	}
	if c.Lookback < c.Horizon+1 {
		return validationErrorf("lookback (%d) must be >= horizon+1 (%d)", c.Lookback, c.Horizon+1)
	}
	if c.Freq <= 0 {
		return validationErrorf("freq must be > 0, got %v", c.Freq)
	}
	if len(c.Targets) == 0 {
		return validationErrorf("at least one forecast column is required")
	}
	return nil
}

// NaiveRegressor forecasts a single series by shifting a slice of its recent
// history forward in time.
//
// Given N ordered observations, Predict takes the last Lookback of them and
// emits the first Horizon+1 of that window, re-stamped to start one Freq
// after the latest input timestamp. With Lookback = 366 days of hourly data
// this replays last year's values for the same period.
//
// Fit is a no-op; it exists so the regressor composes in a Pipeline.
type NaiveRegressor struct {
	cfg NaiveConfig
}

// NewNaiveRegressor creates a single-series naive regressor.
func NewNaiveRegressor(cfg NaiveConfig) (*NaiveRegressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Targets = append([]string(nil), cfg.Targets...)
	return &NaiveRegressor{cfg: cfg}, nil
}

// Name returns the model identifier.
func (m *NaiveRegressor) Name() string {
	return "naive"
}

// Config returns a copy of the current configuration.
func (m *NaiveRegressor) Config() NaiveConfig {
	cfg := m.cfg
	cfg.Targets = append([]string(nil), m.cfg.Targets...)
	return cfg
}

// Fit does nothing.
func (m *NaiveRegressor) Fit(ctx context.Context, data Frame) error {
	return nil
}

// Predict returns Horizon+1 rows holding only the target columns.
func (m *NaiveRegressor) Predict(ctx context.Context, data Frame) (Frame, error) {
	n := data.Len()
	if m.cfg.Lookback > n {
		return Frame{}, fmt.Errorf("%w: lookback %d exceeds %d observations", ErrInsufficientHistory, m.cfg.Lookback, n)
	}

	window := data.Rows[n-m.cfg.Lookback:]
	head := window[:m.cfg.Horizon+1]

	start := data.MaxTime().Add(m.cfg.Freq)

	rows := make([]Row, len(head))
	for i, src := range head {
		values := make(map[string]Value, len(m.cfg.Targets))
		for _, col := range m.cfg.Targets {
			v, ok := src.Values[col]
			if !ok {
				return Frame{}, validationErrorf("row %d: missing forecast column %q", n-m.cfg.Lookback+i, col)
			}
			values[col] = v
		}
		rows[i] = Row{
			Series: src.Series,
			Time:   start.Add(time.Duration(i) * m.cfg.Freq),
			Values: values,
		}
	}

	return Frame{Rows: rows}, nil
}

// Params returns the hyperparameters under their conventional names.
func (m *NaiveRegressor) Params() Params {
	return Params{
		"naive_strategy": m.cfg.Strategy,
		"lookback":       m.cfg.Lookback,
		"horizon":        m.cfg.Horizon,
		"fcast_attrs":    append([]string(nil), m.cfg.Targets...),
		"freq":           m.cfg.Freq,
	}
}

// SetParams applies p on top of the current configuration.
func (m *NaiveRegressor) SetParams(p Params) error {
	if err := checkKnown(p, "naive_strategy", "lookback", "horizon", "fcast_attrs", "freq"); err != nil {
		return err
	}

	cfg := m.Config()
	if v, ok, err := paramString(p, "naive_strategy"); err != nil {
		return err
	} else if ok {
		cfg.Strategy = v
	}
	if v, ok, err := paramInt(p, "lookback"); err != nil {
		return err
	} else if ok {
		cfg.Lookback = v
	}
	if v, ok, err := paramInt(p, "horizon"); err != nil {
		return err
	} else if ok {
		cfg.Horizon = v
	}
	if v, ok, err := paramStrings(p, "fcast_attrs"); err != nil {
		return err
	} else if ok {
		cfg.Targets = v
	}
	if v, ok, err := paramDuration(p, "freq"); err != nil {
		return err
	} else if ok {
		cfg.Freq = v
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}
