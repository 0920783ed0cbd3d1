package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/weather"
)

func newWeatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("station") == "down" {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"hourly":{"time":["2020-07-01T00:00","2020-07-01T01:00","2020-07-01T02:00"],"temperature_2m":[18.5,null,17.5]}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testWeatherStage(t *testing.T, url string, ids ...string) config.WeatherStage {
	t.Helper()
	stage := config.WeatherStage{
		Dir: t.TempDir(),
		Adapter: map[string]any{
			"url":             url + "/archive?station={{.StationID}}&start={{.StartDate}}&end={{.EndDate}}",
			"timestampPath":   "hourly.time",
			"timestampFormat": "iso_minute",
			"valuePaths":      map[string]any{"temp": "hourly.temperature_2m"},
		},
	}
	for _, id := range ids {
		stage.Stations = append(stage.Stations, config.StationSpec{
			ID:       id,
			Name:     "Station " + id,
			Country:  "DE",
			Timezone: "UTC",
			Start:    config.At(2020, time.July, 1, 0),
			End:      config.At(2020, time.July, 1, 2),
		})
	}
	return stage
}

func TestFetchWeather(t *testing.T) {
	srv := newWeatherServer(t)
	stage := testWeatherStage(t, srv.URL, "10147", "down", "10400")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	report, err := fetchWeather(context.Background(), stage, srv.Client(), 2, logger)
	if err != nil {
		t.Fatalf("fetchWeather() error = %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(report.Results))
	}
	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	if report.Results[1].Err == nil {
		t.Error("expected the unavailable station to fail")
	}

	for _, name := range []string{"Station_10147.csv.gz", "Station_10400.csv.gz", CombinedWeatherFile} {
		if _, err := os.Stat(filepath.Join(stage.Dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	f, err := dataio.Open(report.CombinedPath)
	if err != nil {
		t.Fatalf("open combined: %v", err)
	}
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		t.Fatalf("read combined records: %v", err)
	}
	if got := strings.Join(records[0], ","); got != "station,ds,country,timezone,temp,year" {
		t.Errorf("combined header = %s", got)
	}
	if records[1][2] != "DE" || records[1][3] != "UTC" || records[1][5] != "2020" {
		t.Errorf("first combined record = %v", records[1])
	}

	combined, err := dataio.ReadCSVFile(report.CombinedPath, dataio.Layout{SeriesColumn: "station", Labels: weather.LabelColumns})
	if err != nil {
		t.Fatalf("read combined: %v", err)
	}
	if combined.Len() != 6 {
		t.Fatalf("combined rows = %d, want 6", combined.Len())
	}
	if got := combined.Rows[1].Values["temp"]; !got.Valid || got.Float != 18 {
		t.Errorf("interpolated temp = %v, want 18", got)
	}
	if ids := combined.SeriesIDs(); len(ids) != 2 || ids[0] != "Station 10147" {
		t.Errorf("combined stations = %v", ids)
	}
}

func TestFetchWeather_Errors(t *testing.T) {
	srv := newWeatherServer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	allDown := testWeatherStage(t, srv.URL, "down")

	badAdapter := testWeatherStage(t, srv.URL, "10147")
	delete(badAdapter.Adapter, "timestampPath")

	badTemplate := testWeatherStage(t, srv.URL, "10147")
	badTemplate.Adapter["valuePaths"] = "hourly.temperature_2m"

	tests := []struct {
		name  string
		stage config.WeatherStage
	}{
		{"all stations failing", allDown},
		{"incomplete adapter", badAdapter},
		{"value paths not a mapping", badTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fetchWeather(context.Background(), tt.stage, srv.Client(), 1, logger); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
