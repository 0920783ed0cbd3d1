package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/pkg/adapters"
	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/weather"
)

// CombinedWeatherFile holds every fetched station, in station order.
const CombinedWeatherFile = "all_stations.csv.gz"

// WeatherReport is the outcome of one weather download.
type WeatherReport struct {
	Results      []weather.Result
	Failed       int
	CombinedPath string
}

// fetchWeather downloads every station of the stage through its HTTP
// adapter template and writes one file per station plus a combined file.
// It fails only when no station could be fetched or ctx is canceled.
func fetchWeather(ctx context.Context, stage config.WeatherStage, client *http.Client, workers int, logger *slog.Logger) (*WeatherReport, error) {
	template, err := adapters.ParseHTTPAdapterConfig(stage.Adapter)
	if err != nil {
		return nil, fmt.Errorf("weather adapter: %w", err)
	}
	if err := template.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("weather adapter: %w", err)
	}
	template.HTTPClient = client

	if stage.Workers > 0 {
		workers = stage.Workers
	}

	stations := stage.StationList()
	if len(stations) == 0 {
		return nil, errors.New("no stations match the references")
	}
	logger.Info("fetching weather", "stations", len(stations), "workers", workers, "dir", stage.Dir)

	start := time.Now()
	results, err := weather.FetchAll(ctx, stations, weather.AdapterFetcher{Template: template}, weather.Options{
		Dir:     stage.Dir,
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}

	report := &WeatherReport{Results: results}
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
		}
	}
	if report.Failed == len(results) {
		return nil, fmt.Errorf("all %d stations failed, first error: %w", len(results), results[0].Err)
	}

	report.CombinedPath = filepath.Join(stage.Dir, CombinedWeatherFile)
	layout := dataio.Layout{
		SeriesColumn: "station",
		TimeFormat:   time.DateTime,
		Labels:       weather.LabelColumns,
		LabelValues:  weather.StationLabels(stations...),
	}
	if err := dataio.WriteCSVFile(report.CombinedPath, weather.Combine(results), layout); err != nil {
		return nil, fmt.Errorf("write combined weather: %w", err)
	}

	logger.Info("weather fetched",
		"stations", len(results),
		"failed", report.Failed,
		"path", report.CombinedPath,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}
