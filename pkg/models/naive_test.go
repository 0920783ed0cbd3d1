package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)

// hourlyFrame builds one series of hourly rows with the given column values.
func hourlyFrame(series, col string, values ...float64) Frame {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = Row{
			Series: series,
			Time:   t0.Add(time.Duration(i) * time.Hour),
			Values: map[string]Value{col: Float(v), "other": Float(-1)},
		}
	}
	return Frame{Rows: rows}
}

func TestNaiveConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *NaiveConfig)
		wantErr bool
	}{
		{"defaults", func(c *NaiveConfig) {}, false},
		{"unknown strategy", func(c *NaiveConfig) { c.Strategy = "mean" }, true},
		{"negative horizon", func(c *NaiveConfig) { c.Horizon = -1 }, true},
		{"lookback shorter than horizon+1", func(c *NaiveConfig) { c.Lookback = 5; c.Horizon = 5 }, true},
		{"lookback equal to horizon+1", func(c *NaiveConfig) { c.Lookback = 6; c.Horizon = 5 }, false},
		{"zero freq", func(c *NaiveConfig) { c.Freq = 0 }, true},
		{"no targets", func(c *NaiveConfig) { c.Targets = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultNaiveConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNaiveRegressor_Predict_SlicesRecentWindow(t *testing.T) {
	tests := []struct {
		name     string
		lookback int
		horizon  int
		values   []float64
		want     []float64
	}{
		{"window equals horizon+1", 3, 2, []float64{1, 2, 3, 4, 5, 6}, []float64{4, 5, 6}},
		{"window longer than horizon", 5, 1, []float64{1, 2, 3, 4, 5, 6}, []float64{2, 3}},
		{"whole history", 6, 0, []float64{1, 2, 3, 4, 5, 6}, []float64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewNaiveRegressor(NaiveConfig{
				Strategy: StrategySlice,
				Lookback: tt.lookback,
				Horizon:  tt.horizon,
				Targets:  []string{"temp"},
				Freq:     time.Hour,
			})
			require.NoError(t, err)

			in := hourlyFrame("DE", "temp", tt.values...)
			out, err := FitPredict(context.Background(), m, in)
			require.NoError(t, err)
			require.Equal(t, tt.horizon+1, out.Len())

			start := in.MaxTime().Add(time.Hour)
			for i, r := range out.Rows {
				assert.Equal(t, tt.want[i], r.Values["temp"].Float, "value[%d]", i)
				assert.True(t, r.Time.Equal(start.Add(time.Duration(i)*time.Hour)), "time[%d] = %s", i, r.Time)
				assert.Equal(t, "DE", r.Series)
				assert.NotContains(t, r.Values, "other")
			}
		})
	}
}

func TestNaiveRegressor_Predict_StartsAfterMaxTime(t *testing.T) {
	m, err := NewNaiveRegressor(NaiveConfig{
		Strategy: StrategySlice, Lookback: 2, Horizon: 1, Targets: []string{"temp"}, Freq: 24 * time.Hour,
	})
	require.NoError(t, err)

	in := hourlyFrame("DE", "temp", 1, 2, 3)
	// out-of-order latest timestamp
	in.Rows[0].Time = t0.Add(100 * time.Hour)

	out, err := m.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Rows[0].Time.Equal(t0.Add(124*time.Hour)))
	assert.True(t, out.Rows[1].Time.Equal(t0.Add(148*time.Hour)))
}

func TestNaiveRegressor_Predict_InsufficientHistory(t *testing.T) {
	m, err := NewNaiveRegressor(NaiveConfig{
		Strategy: StrategySlice, Lookback: 10, Horizon: 2, Targets: []string{"temp"}, Freq: time.Hour,
	})
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), hourlyFrame("DE", "temp", 1, 2, 3))
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestNaiveRegressor_Predict_MissingColumn(t *testing.T) {
	m, err := NewNaiveRegressor(NaiveConfig{
		Strategy: StrategySlice, Lookback: 2, Horizon: 1, Targets: []string{"dwpt"}, Freq: time.Hour,
	})
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), hourlyFrame("DE", "temp", 1, 2, 3))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNaiveRegressor_Predict_KeepsMissingValues(t *testing.T) {
	m, err := NewNaiveRegressor(NaiveConfig{
		Strategy: StrategySlice, Lookback: 2, Horizon: 1, Targets: []string{"temp"}, Freq: time.Hour,
	})
	require.NoError(t, err)

	in := hourlyFrame("DE", "temp", 1, 2, 3)
	in.Rows[1].Values["temp"] = Missing()

	out, err := m.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Rows[0].Values["temp"].Valid)
	assert.Equal(t, Float(3), out.Rows[1].Values["temp"])
}

func TestNaiveRegressor_Params(t *testing.T) {
	m, err := NewNaiveRegressor(DefaultNaiveConfig())
	require.NoError(t, err)

	p := m.Params()
	assert.Equal(t, "slice", p["naive_strategy"])
	assert.Equal(t, 366*24, p["lookback"])
	assert.Equal(t, 91*24, p["horizon"])
	assert.Equal(t, []string{"temperature"}, p["fcast_attrs"])

	require.NoError(t, m.SetParams(Params{"horizon": 48, "fcast_attrs": []any{"temp", "rhum"}, "freq": "30m"}))
	cfg := m.Config()
	assert.Equal(t, 48, cfg.Horizon)
	assert.Equal(t, []string{"temp", "rhum"}, cfg.Targets)
	assert.Equal(t, 30*time.Minute, cfg.Freq)

	// invalid combination leaves the config untouched
	err = m.SetParams(Params{"horizon": 10, "lookback": 3})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 48, m.Config().Horizon)

	assert.ErrorIs(t, m.SetParams(Params{"window": 3}), ErrValidation)
	assert.ErrorIs(t, m.SetParams(Params{"horizon": "3"}), ErrValidation)
}
