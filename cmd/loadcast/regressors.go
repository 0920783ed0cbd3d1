package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/features"
	"github.com/HatiCode/loadcast/pkg/models"
	"github.com/HatiCode/loadcast/pkg/prep"
	"github.com/HatiCode/loadcast/pkg/scoring"
	"github.com/HatiCode/loadcast/pkg/weather"
)

// projectionSuffix marks projected attribute columns when they are scored
// against the observed ones.
const projectionSuffix = "_naive"

// RegressorReport is the outcome of one regressor projection.
type RegressorReport struct {
	// Frame holds the projected attributes, calendar and discomfort
	// features and corona flags of the test period, keyed by country.
	Frame models.Frame

	// Scores holds one entry per attribute observed during the test period.
	Scores map[string]scoring.Scores

	Path string
}

// Regressors projects the weather attributes of one station over the test
// period and derives the future regressors of the load model from them.
type Regressors struct {
	stage     config.RegressorStage
	projector models.Estimator
	outputDir string
	logger    *slog.Logger
}

// NewRegressors creates a new Regressors. An empty outputDir disables file
// output.
func NewRegressors(stage config.RegressorStage, projector models.Estimator, outputDir string, logger *slog.Logger) *Regressors {
	if logger == nil {
		logger = slog.Default()
	}
	return &Regressors{stage: stage, projector: projector, outputDir: outputDir, logger: logger}
}

// Run reads the weather file, projects it and writes the regressors.
func (r *Regressors) Run(ctx context.Context) (*RegressorReport, error) {
	start := time.Now()

	observed, err := r.load()
	if err != nil {
		return nil, err
	}

	history := observed.Filter(func(row models.Row) bool {
		return row.Time.Before(r.stage.TestStart.Time)
	})
	history.SortBySeriesTime()
	if history.Len() == 0 {
		return nil, fmt.Errorf("no weather observations before %s", r.stage.TestStart.Format(time.DateTime))
	}

	projected, err := models.FitPredict(ctx, r.projector, history)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	projected = projected.Between(r.stage.TestStart.Time, r.stage.TestEnd.Time)
	if projected.Len() == 0 {
		return nil, fmt.Errorf("projection from history ending %s does not reach the test period",
			history.MaxTime().Format(time.DateTime))
	}

	report := &RegressorReport{}
	report.Scores, err = r.score(observed, projected)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}

	report.Frame, err = r.regressors(projected)
	if err != nil {
		return nil, err
	}

	if r.outputDir != "" {
		report.Path = filepath.Join(r.outputDir, fmt.Sprintf("regressors_%s.csv", r.stage.Country))
		layout := dataio.Layout{TimeColumn: "ds", SeriesColumn: "country", TimeFormat: time.DateTime}
		if err := dataio.WriteCSVFile(report.Path, report.Frame, layout); err != nil {
			return nil, fmt.Errorf("write regressors: %w", err)
		}
	}

	r.logger.Info("regressors projected",
		"country", r.stage.Country,
		"history_rows", history.Len(),
		"rows", report.Frame.Len(),
		"scored_attributes", len(report.Scores),
		"path", report.Path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// load reads the weather file and keeps the configured station.
func (r *Regressors) load() (models.Frame, error) {
	data, err := dataio.ReadCSVFile(r.stage.WeatherFile, dataio.Layout{
		SeriesColumn: "station",
		Labels:       weather.LabelColumns,
	})
	if err != nil {
		return models.Frame{}, fmt.Errorf("read weather file: %w", err)
	}

	stations := data.SeriesIDs()
	station := r.stage.Station
	switch {
	case station != "":
		if !slices.Contains(stations, station) {
			return models.Frame{}, fmt.Errorf("station %q not in %s", station, r.stage.WeatherFile)
		}
	case len(stations) == 1:
		station = stations[0]
	default:
		return models.Frame{}, fmt.Errorf("%s holds %d stations (%s), set station",
			r.stage.WeatherFile, len(stations), strings.Join(stations, ", "))
	}

	r.logger.Debug("loaded weather observations", "station", station, "file", r.stage.WeatherFile)
	return data.ForSeries(station), nil
}

// score compares each projected attribute with the observations of the
// test period. Attributes without observations are skipped.
func (r *Regressors) score(observed, projected models.Frame) (map[string]scoring.Scores, error) {
	renames := make(map[string]string, len(r.stage.Attributes))
	for _, attr := range r.stage.Attributes {
		renames[attr] = attr + projectionSuffix
	}
	renamed, err := models.NewColumnRenamer(renames).Transform(projected)
	if err != nil {
		return nil, err
	}

	out := make(map[string]scoring.Scores, len(r.stage.Attributes))
	for _, attr := range r.stage.Attributes {
		joined := scoring.Join(observed, renamed, attr, attr+projectionSuffix)
		byStation, err := scoring.BySeries(joined, attr, attr+projectionSuffix, r.projector.Name(), true)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr, err)
		}
		for _, s := range byStation {
			out[attr] = s
			r.logger.Info("projection scored", "attribute", attr, "rmse", s.RMSE, "mae", s.MAE, "smape", s.SMAPE)
		}
	}
	return out, nil
}

// regressors adds calendar, discomfort and corona features to the projection
// and relabels it with the stage's country.
func (r *Regressors) regressors(projected models.Frame) (models.Frame, error) {
	tempColumn := r.stage.Attributes[0]
	if slices.Contains(r.stage.Attributes, "temp") {
		tempColumn = "temp"
	}

	builder := &features.Builder{
		Latitude:         r.stage.Latitude,
		ComfortThreshold: r.stage.ComfortThreshold,
		TempColumn:       tempColumn,
	}
	out, err := builder.BuildFeatures(projected)
	if err != nil {
		return models.Frame{}, fmt.Errorf("build features: %w", err)
	}

	for i := range out.Rows {
		out.Rows[i].Series = r.stage.Country
	}

	if len(r.stage.CoronaFlags) == 0 {
		return out, nil
	}
	strategy, err := prep.ParseCoronaStrategy(r.stage.CoronaFlags)
	if err != nil {
		return models.Frame{}, err
	}
	out, err = prep.AddCoronaFlags(out, strategy, prep.DefaultCoronaPeriods())
	if err != nil {
		return models.Frame{}, fmt.Errorf("corona flags: %w", err)
	}
	return out, nil
}
