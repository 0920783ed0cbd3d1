// Package main implements the naive benchmark loop.
//
// This file contains the Benchmark type which orchestrates one benchmark run:
//
//	load → split → fit → predict → score → write → store
//
// In serve mode Run executes Tick at regular intervals so the stored
// snapshots and the exported scores follow the source data.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/cmd/loadcast/metrics"
	"github.com/HatiCode/loadcast/pkg/adapters"
	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/models"
	"github.com/HatiCode/loadcast/pkg/prep"
	"github.com/HatiCode/loadcast/pkg/scoring"
	"github.com/HatiCode/loadcast/pkg/storage"
)

// Output files of a benchmark run.
const (
	ForecastFile = "naive_forecast.csv"
	ScoresFile   = "naive_scores.csv"
)

// Benchmark fits the multi-series naive model on the cutoff windows of the
// training period and scores its forecast of the test period.
type Benchmark struct {
	adapter   adapters.Adapter
	estimator models.Estimator
	stage     config.NaiveStage
	store     storage.Store
	outputDir string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	lastRun   time.Time
}

// Report is the outcome of one benchmark run.
type Report struct {
	RunID        string
	Forecast     models.Frame
	Scores       map[string]scoring.Scores
	ForecastPath string
	ScoresPath   string
}

// NewBenchmark creates a new Benchmark. An empty outputDir disables file
// output and a nil store disables snapshots.
func NewBenchmark(
	adapter adapters.Adapter,
	estimator models.Estimator,
	stage config.NaiveStage,
	store storage.Store,
	outputDir string,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Benchmark {
	if logger == nil {
		logger = slog.Default()
	}

	return &Benchmark{
		adapter:   adapter,
		estimator: estimator,
		stage:     stage,
		store:     store,
		outputDir: outputDir,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes the benchmark at regular intervals.
// Blocks until context is canceled.
func (b *Benchmark) Run(ctx context.Context, interval time.Duration) error {
	b.logger.Info("starting benchmark loop", "interval", interval, "adapter", b.adapter.Name())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := b.Tick(ctx); err != nil {
		b.logger.Error("initial benchmark run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("benchmark loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if b.metrics != nil && !b.lastRun.IsZero() {
				b.metrics.SetForecastAge(time.Since(b.lastRun).Seconds())
			}
			if _, err := b.Tick(ctx); err != nil {
				b.logger.Error("benchmark run failed", "error", err)
			}
		}
	}
}

// Tick performs one benchmark run.
func (b *Benchmark) Tick(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	target := b.stage.SourceColumn(config.TargetColumn)

	data, loadDuration, err := b.load(ctx)
	if err != nil {
		b.recordError("adapter", "load_failed")
		return nil, fmt.Errorf("load: %w", err)
	}

	train, test, err := prep.Split(data, b.stage.TrainRange(), b.stage.TestRange())
	if err != nil {
		b.recordError("prep", "split_failed")
		return nil, fmt.Errorf("split: %w", err)
	}
	if test.Len() == 0 {
		b.recordError("prep", "empty_test")
		return nil, fmt.Errorf("no observations in test period %s to %s",
			b.stage.TestStart.Format(time.DateTime), b.stage.TestEnd.Format(time.DateTime))
	}

	if b.stage.OutlierWindow > 0 {
		train, _, err = prep.MedianFilterOutliers(train, models.Frame{}, target, b.stage.OutlierWindow, b.stage.OutlierStd)
		if err != nil {
			b.recordError("prep", "outliers_failed")
			return nil, fmt.Errorf("outliers: %w", err)
		}
	}

	forecast, fitPredictDuration, err := b.fitPredict(ctx, train, test)
	if err != nil {
		return nil, err
	}
	report.Forecast = forecast

	scoreStart := time.Now()
	joined := scoring.Join(test, forecast, target, config.ForecastColumn)
	scored := scoring.DropZeroPairs(joined, target, config.ForecastColumn)
	report.Scores, err = scoring.BySeries(scored, target, config.ForecastColumn, b.estimator.Name(), false)
	if err != nil {
		b.recordError("scoring", "score_failed")
		return nil, fmt.Errorf("score: %w", err)
	}
	if b.metrics != nil {
		b.metrics.RecordScore(time.Since(scoreStart).Seconds())
	}

	if b.outputDir != "" {
		if err := b.writeOutputs(report, joined, target); err != nil {
			b.recordError("output", "write_failed")
			return nil, fmt.Errorf("write outputs: %w", err)
		}
	}

	if err := b.storeSnapshots(ctx, report); err != nil {
		b.recordError("store", "put_failed")
		return nil, fmt.Errorf("store: %w", err)
	}

	b.lastRun = time.Now()
	if b.metrics != nil {
		b.metrics.SetForecastAge(0)
		b.metrics.SetForecastRows(forecast.Len())
		b.metrics.SetScores(report.Scores)
	}

	for _, series := range slices.Sorted(maps.Keys(report.Scores)) {
		s := report.Scores[series]
		b.logger.Debug("series scored", "series", series, "rmse", s.RMSE, "mae", s.MAE, "smape", s.SMAPE)
	}

	b.logger.Info("benchmark run complete",
		"run_id", report.RunID,
		"series", len(report.Scores),
		"forecast_rows", forecast.Len(),
		"load_ms", loadDuration.Milliseconds(),
		"fit_predict_ms", fitPredictDuration.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

// load collects the training and test periods and orders them by series
// and time, which the positional cutoff alignment relies on.
func (b *Benchmark) load(ctx context.Context) (models.Frame, time.Duration, error) {
	start := time.Now()

	data, err := b.adapter.Collect(ctx, adapters.Window{
		Start: b.stage.TrainValStart.Time,
		End:   b.stage.TestEnd.Time,
	})
	if err != nil {
		return models.Frame{}, 0, err
	}
	data.SortBySeriesTime()

	duration := time.Since(start)
	if b.metrics != nil {
		b.metrics.RecordLoad(duration.Seconds())
	}

	b.logger.Info("loaded observations",
		"adapter", b.adapter.Name(),
		"rows", data.Len(),
		"series", len(data.SeriesIDs()),
		"duration_ms", duration.Milliseconds(),
	)

	return data, duration, nil
}

func (b *Benchmark) fitPredict(ctx context.Context, train, test models.Frame) (models.Frame, time.Duration, error) {
	start := time.Now()

	if err := b.estimator.Fit(ctx, train); err != nil {
		b.recordError("model", "fit_failed")
		return models.Frame{}, 0, fmt.Errorf("fit: %w", err)
	}
	fitDuration := time.Since(start)

	forecast, err := b.estimator.Predict(ctx, test)
	if err != nil {
		b.recordError("model", "predict_failed")
		return models.Frame{}, 0, fmt.Errorf("predict: %w", err)
	}

	if b.metrics != nil {
		b.metrics.RecordFit(fitDuration.Seconds())
		b.metrics.RecordPredict((time.Since(start) - fitDuration).Seconds())
	}

	b.logger.Debug("predicted test period",
		"model", b.estimator.Name(),
		"train_rows", train.Len(),
		"test_rows", test.Len(),
		"forecast_rows", forecast.Len(),
	)

	return forecast, time.Since(start), nil
}

func (b *Benchmark) writeOutputs(report *Report, joined models.Frame, target string) error {
	layout := dataio.Layout{
		TimeColumn:   b.stage.Renamed(b.stage.IndexName),
		SeriesColumn: b.stage.SeriesColumn,
		TimeFormat:   time.DateTime,
	}

	report.ForecastPath = filepath.Join(b.outputDir, ForecastFile)
	if err := dataio.WriteCSVFile(report.ForecastPath, joined, layout, target, config.ForecastColumn); err != nil {
		return err
	}

	report.ScoresPath = filepath.Join(b.outputDir, ScoresFile)
	return writeScores(report.ScoresPath, b.stage.SeriesColumn, report.Scores)
}

func (b *Benchmark) storeSnapshots(ctx context.Context, report *Report) error {
	if b.store == nil {
		return nil
	}

	generatedAt := time.Now()
	for _, series := range report.Forecast.SeriesIDs() {
		part := report.Forecast.ForSeries(series)
		snapshot := storage.Snapshot{
			Series:      series,
			Model:       b.estimator.Name(),
			RunID:       report.RunID,
			GeneratedAt: generatedAt,
			StepSeconds: stepSeconds(part),
			Times:       part.Times(),
			Values:      part.Column(config.ForecastColumn),
		}
		if s, ok := report.Scores[series]; ok {
			snapshot.Scores = s.Map()
		}
		if err := b.store.Put(ctx, snapshot); err != nil {
			return fmt.Errorf("series %q: %w", series, err)
		}
	}

	b.logger.Debug("stored snapshots", "run_id", report.RunID, "series", len(report.Forecast.SeriesIDs()))
	return nil
}

func (b *Benchmark) recordError(component, reason string) {
	if b.metrics != nil {
		b.metrics.RecordError(component, reason)
	}
}

// stepSeconds is the spacing of the first two rows, or 0.
func stepSeconds(f models.Frame) int {
	if f.Len() < 2 {
		return 0
	}
	return int(f.Rows[1].Time.Sub(f.Rows[0].Time).Seconds())
}

var scoreColumns = []string{"rmse", "mae", "smape(%)", "mse", "rmspe(%)"}

// writeScores writes one row per series, sorted by series. Metrics a
// series does not have are left empty.
func writeScores(path, seriesColumn string, scores map[string]scoring.Scores) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{seriesColumn, "type"}, scoreColumns...)); err != nil {
		return err
	}

	series := slices.Sorted(maps.Keys(scores))
	rec := make([]string, 2+len(scoreColumns))
	for _, s := range series {
		m := scores[s].Map()
		rec[0], rec[1] = s, scores[s].Type
		for i, col := range scoreColumns {
			rec[2+i] = ""
			if v, ok := m[col]; ok {
				rec[2+i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
