// Package models builds the estimators of each loadcast run mode.
package models

import (
	"fmt"
	"log/slog"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/pkg/models"
)

// NewBenchmark creates the multi-series naive estimator of the naive stage,
// preceded by the stage's column renamer. Fit and Predict take raw source
// columns; predictions carry config.ForecastColumn.
func NewBenchmark(stage config.NaiveStage, logger *slog.Logger) (models.Estimator, error) {
	reg, err := models.NewMultiNaiveRegressor(models.MultiNaiveConfig{
		Cutoffs:      stage.CutoffWindows(),
		IndexName:    stage.Renamed(stage.IndexName),
		SeriesColumn: stage.SeriesColumn,
		Target:       config.TargetColumn,
		Output:       config.ForecastColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("multi naive regressor: %w", err)
	}

	logger.Info("initializing multi-series naive model",
		"cutoffs", len(stage.Cutoffs),
		"target", stage.SourceColumn(config.TargetColumn),
	)
	return models.NewPipeline(reg, models.NewColumnRenamer(stage.Renamer)), nil
}

// NewProjection creates the single-series naive regressor projecting the
// weather attributes of the regressor stage.
func NewProjection(stage config.RegressorStage, logger *slog.Logger) (*models.NaiveRegressor, error) {
	cfg, err := stage.NaiveConfig()
	if err != nil {
		return nil, err
	}

	reg, err := models.NewNaiveRegressor(cfg)
	if err != nil {
		return nil, fmt.Errorf("naive regressor: %w", err)
	}

	logger.Info("initializing naive weather projection",
		"lookback", cfg.Lookback,
		"horizon", cfg.Horizon,
		"freq", cfg.Freq,
		"attributes", cfg.Targets,
	)
	return reg, nil
}
