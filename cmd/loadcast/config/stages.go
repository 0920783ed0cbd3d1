package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/features"
	"github.com/HatiCode/loadcast/pkg/models"
	"github.com/HatiCode/loadcast/pkg/prep"
	"github.com/HatiCode/loadcast/pkg/weather"
)

// Timestamp is a UTC time read from YAML as "2006-01-02 15:04:05",
// "2006-01-02" or RFC3339.
type Timestamp struct {
	time.Time
}

// At builds a UTC Timestamp.
func At(year int, month time.Month, day, hour int) Timestamp {
	return Timestamp{time.Date(year, month, day, hour, 0, 0, 0, time.UTC)}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timestamp must be a scalar", value.Line)
	}
	parsed, err := dataio.ParseTime(value.Value, "")
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	t.Time = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Timestamp) MarshalYAML() (any, error) {
	return t.Format(time.DateTime), nil
}

// Stages holds the parameters of each run mode.
type Stages struct {
	Naive      NaiveStage     `yaml:"naive"`
	Regressors RegressorStage `yaml:"regressors"`
	Weather    WeatherStage   `yaml:"weather"`
}

// NaiveStage parameterizes the multi-series naive benchmark.
type NaiveStage struct {
	IndexName     string            `yaml:"index_name"`
	SeriesColumn  string            `yaml:"ts_name_col"`
	TrainValStart Timestamp         `yaml:"train_val_start"`
	TrainValEnd   Timestamp         `yaml:"train_val_end"`
	TestStart     Timestamp         `yaml:"test_start"`
	TestEnd       Timestamp         `yaml:"test_end"`
	Cutoffs       [][]Timestamp     `yaml:"naive_cutoffs"`
	Renamer       map[string]string `yaml:"renamer"`

	// OutlierWindow enables rolling-median outlier masking when > 0.
	OutlierWindow int     `yaml:"outlier_window"`
	OutlierStd    float64 `yaml:"outlier_std"`
}

// Target and output columns of the naive benchmark after renaming.
const (
	TargetColumn   = "y"
	ForecastColumn = "yhat"
)

// RegressorStage parameterizes the future regressor projection of one country.
type RegressorStage struct {
	Country       string    `yaml:"country"`
	HorizonDays   int       `yaml:"horizon"`
	LookbackDays  int       `yaml:"lookback"`
	Freq          string    `yaml:"freq"`
	Attributes    []string  `yaml:"weather_attrs_to_forecast"`
	PrimaryMetric string    `yaml:"primary_metric"`
	TrainStart    Timestamp `yaml:"train_start"`
	TrainEnd      Timestamp `yaml:"train_end"`
	ValStart      Timestamp `yaml:"val_start"`
	ValEnd        Timestamp `yaml:"val_end"`
	TestStart     Timestamp `yaml:"test_start"`
	TestEnd       Timestamp `yaml:"test_end"`

	// WeatherFile is a long CSV with a "station" series column, as written
	// by the weather mode. Station selects one series when it holds several.
	WeatherFile string `yaml:"weather_file"`
	Station     string `yaml:"station"`

	ComfortThreshold float64  `yaml:"comfort_threshold"`
	Latitude         float64  `yaml:"latitude"`
	CoronaFlags      []string `yaml:"corona_flags"`
}

// WeatherStage lists the stations to download and the HTTP adapter template
// used for each of them.
type WeatherStage struct {
	Dir         string                       `yaml:"dir"`
	Workers     int                          `yaml:"workers"`
	Stations    []StationSpec                `yaml:"stations"`
	References  map[string]weather.Reference `yaml:"references"`
	ActiveSince Timestamp                    `yaml:"active_since"`
	Adapter     map[string]any               `yaml:"adapter"`
}

// StationSpec is the YAML form of weather.Station.
type StationSpec struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Country  string    `yaml:"country"`
	Lat      float64   `yaml:"lat"`
	Lon      float64   `yaml:"lon"`
	Timezone string    `yaml:"timezone"`
	Start    Timestamp `yaml:"start"`
	End      Timestamp `yaml:"end"`
}

// DefaultStages returns the parameters of the 2020 summer study.
func DefaultStages() Stages {
	return Stages{
		Naive: NaiveStage{
			IndexName:     "utc_timestamp",
			SeriesColumn:  "country",
			TrainValStart: At(2015, time.January, 1, 0),
			TrainValEnd:   At(2020, time.July, 1, 23),
			TestStart:     At(2020, time.July, 2, 0),
			TestEnd:       At(2020, time.September, 30, 23),
			Cutoffs: [][]Timestamp{
				{At(2016, time.June, 30, 0), At(2016, time.September, 28, 23)},
				{At(2017, time.June, 29, 0), At(2017, time.September, 27, 23)},
				{At(2018, time.July, 5, 0), At(2018, time.October, 3, 23)},
				{At(2019, time.July, 4, 0), At(2019, time.October, 2, 23)},
			},
			Renamer: map[string]string{"utc_timestamp": "ds", "load": TargetColumn},
		},
		Regressors: RegressorStage{
			Country:          "FR",
			HorizonDays:      91,
			LookbackDays:     365,
			Freq:             "H",
			Attributes:       []string{"temp"},
			PrimaryMetric:    "rmse",
			TrainStart:       At(2017, time.January, 1, 0),
			TrainEnd:         At(2019, time.July, 1, 23),
			ValStart:         At(2019, time.July, 2, 0),
			ValEnd:           At(2019, time.September, 30, 23),
			TestStart:        At(2020, time.July, 2, 0),
			TestEnd:          At(2020, time.September, 30, 23),
			ComfortThreshold: features.DefaultComfortThreshold,
			Latitude:         features.HamburgLatitude,
			CoronaFlags:      []string{prep.DuringCorona, prep.NoCorona},
		},
		Weather: WeatherStage{
			Dir:         "data/weather",
			ActiveSince: At(2020, time.January, 1, 0),
		},
	}
}

// LoadStages reads path on top of DefaultStages. An empty path returns the
// defaults.
func LoadStages(path string) (Stages, error) {
	stages := DefaultStages()
	if path == "" {
		return stages, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Stages{}, fmt.Errorf("read stage file: %w", err)
	}

	// yaml.v3 merges into existing maps. A renamer in the file replaces
	// the default one.
	var overrides struct {
		Naive struct {
			Renamer map[string]string `yaml:"renamer"`
		} `yaml:"naive"`
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Stages{}, fmt.Errorf("parse stage file %s: %w", path, err)
	}
	if overrides.Naive.Renamer != nil {
		stages.Naive.Renamer = nil
	}

	if err := yaml.Unmarshal(data, &stages); err != nil {
		return Stages{}, fmt.Errorf("parse stage file %s: %w", path, err)
	}
	return stages, nil
}

// Validate checks the naive stage.
func (s NaiveStage) Validate() error {
	if err := s.TrainRange().Validate(); err != nil {
		return fmt.Errorf("naive stage train range: %w", err)
	}
	if err := s.TestRange().Validate(); err != nil {
		return fmt.Errorf("naive stage test range: %w", err)
	}
	if !s.TrainValEnd.Before(s.TestStart.Time) {
		return errors.New("naive stage: train range must end before the test range starts")
	}
	if len(s.Cutoffs) == 0 {
		return errors.New("naive stage: at least one cutoff window is required")
	}
	for i, c := range s.Cutoffs {
		if len(c) != 2 {
			return fmt.Errorf("naive stage cutoff[%d]: want [start, end], got %d values", i, len(c))
		}
		if c[1].Before(c[0].Time) {
			return fmt.Errorf("naive stage cutoff[%d]: end before start", i)
		}
	}
	seen := make(map[string]string, len(s.Renamer))
	for _, from := range slices.Sorted(maps.Keys(s.Renamer)) {
		to := s.Renamer[from]
		if prev, ok := seen[to]; ok {
			return fmt.Errorf("naive stage: renamer maps both %q and %q to %q", prev, from, to)
		}
		seen[to] = from
	}
	if s.OutlierWindow < 0 {
		return fmt.Errorf("naive stage: outlier window must be >= 0, got %d", s.OutlierWindow)
	}
	if s.OutlierWindow > 0 && s.OutlierStd <= 0 {
		return errors.New("naive stage: outlier_std must be > 0 when outlier_window is set")
	}
	return nil
}

// TrainRange is the training and validation period.
func (s NaiveStage) TrainRange() prep.Range {
	return prep.Range{Start: s.TrainValStart.Time, End: s.TrainValEnd.Time}
}

// TestRange is the forecast period.
func (s NaiveStage) TestRange() prep.Range {
	return prep.Range{Start: s.TestStart.Time, End: s.TestEnd.Time}
}

// CutoffWindows converts the cutoff pairs. Call Validate first.
func (s NaiveStage) CutoffWindows() []models.CutoffWindow {
	out := make([]models.CutoffWindow, len(s.Cutoffs))
	for i, c := range s.Cutoffs {
		out[i] = models.CutoffWindow{Start: c[0].Time, End: c[1].Time}
	}
	return out
}

// Renamed returns the name col takes after renaming.
func (s NaiveStage) Renamed(col string) string {
	if to, ok := s.Renamer[col]; ok {
		return to
	}
	return col
}

// SourceColumn returns the column renamed to col, or col itself. When
// several columns are renamed to col, the first in sorted order wins;
// Validate rejects such renamers.
func (s NaiveStage) SourceColumn(col string) string {
	for _, from := range slices.Sorted(maps.Keys(s.Renamer)) {
		if s.Renamer[from] == col {
			return from
		}
	}
	return col
}

// Validate checks the regressor stage.
func (r RegressorStage) Validate() error {
	if r.Country == "" {
		return errors.New("regressor stage: country is required")
	}
	if r.WeatherFile == "" {
		return errors.New("regressor stage: weather_file is required")
	}
	if len(r.Attributes) == 0 {
		return errors.New("regressor stage: at least one weather attribute is required")
	}
	if err := r.TestRange().Validate(); err != nil {
		return fmt.Errorf("regressor stage test range: %w", err)
	}
	if _, err := r.NaiveConfig(); err != nil {
		return fmt.Errorf("regressor stage: %w", err)
	}
	if len(r.CoronaFlags) > 0 {
		if _, err := prep.ParseCoronaStrategy(r.CoronaFlags); err != nil {
			return fmt.Errorf("regressor stage: %w", err)
		}
	}
	return nil
}

// TestRange is the period the regressors are projected over.
func (r RegressorStage) TestRange() prep.Range {
	return prep.Range{Start: r.TestStart.Time, End: r.TestEnd.Time}
}

// NaiveConfig converts the day-based lookback and horizon into steps of
// Freq. The horizon covers HorizonDays whole days, so the projection holds
// HorizonDays*stepsPerDay rows.
func (r RegressorStage) NaiveConfig() (models.NaiveConfig, error) {
	freq, err := ParseFreq(r.Freq)
	if err != nil {
		return models.NaiveConfig{}, err
	}
	if (24*time.Hour)%freq != 0 {
		return models.NaiveConfig{}, fmt.Errorf("freq %v does not divide a day", freq)
	}
	if r.HorizonDays < 1 {
		return models.NaiveConfig{}, fmt.Errorf("horizon must be >= 1 day, got %d", r.HorizonDays)
	}
	perDay := int((24 * time.Hour) / freq)

	cfg := models.NaiveConfig{
		Strategy: models.StrategySlice,
		Lookback: r.LookbackDays * perDay,
		Horizon:  r.HorizonDays*perDay - 1,
		Targets:  append([]string(nil), r.Attributes...),
		Freq:     freq,
	}
	if err := cfg.Validate(); err != nil {
		return models.NaiveConfig{}, err
	}
	return cfg, nil
}

// ParseFreq accepts the pandas aliases "H", "D", "T"/"min" and Go durations.
func ParseFreq(s string) (time.Duration, error) {
	switch strings.TrimSpace(s) {
	case "H", "h", "1H":
		return time.Hour, nil
	case "D", "1D":
		return 24 * time.Hour, nil
	case "T", "min", "1min":
		return time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid freq %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("freq must be > 0, got %v", d)
	}
	return d, nil
}

// Validate checks the weather stage.
func (w WeatherStage) Validate() error {
	if w.Dir == "" {
		return errors.New("weather stage: dir is required")
	}
	if len(w.Stations) == 0 {
		return errors.New("weather stage: at least one station is required")
	}
	if len(w.Adapter) == 0 {
		return errors.New("weather stage: adapter is required")
	}
	for i, s := range w.Stations {
		if s.Name == "" {
			return fmt.Errorf("weather stage station[%d]: name is required", i)
		}
	}
	return nil
}

// StationList converts the stations. When References is set, only the
// matching stations are kept, closest first per country.
func (w WeatherStage) StationList() []weather.Station {
	out := make([]weather.Station, len(w.Stations))
	for i, s := range w.Stations {
		out[i] = weather.Station{
			ID:       s.ID,
			Name:     s.Name,
			Country:  s.Country,
			Lat:      s.Lat,
			Lon:      s.Lon,
			Timezone: s.Timezone,
			Start:    s.Start.Time,
			End:      s.End.Time,
		}
	}
	if len(w.References) > 0 {
		out = weather.SelectStations(out, w.References, w.ActiveSince.Time)
	}
	return out
}
