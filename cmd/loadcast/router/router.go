// Package router configures HTTP routes for the loadcast serve mode.
//
// Routes configured:
//   - GET /forecast/current?series=<name> - Latest forecast snapshot of a series
//   - GET /scores - Test-period scores of the latest run, one entry per series
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Snapshots older than the stale threshold include an X-Loadcast-Stale header.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/loadcast/pkg/httpx"
	"github.com/HatiCode/loadcast/pkg/storage"
)

var seriesNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SeriesScores is one entry of the /scores response.
type SeriesScores struct {
	Series      string             `json:"series"`
	Model       string             `json:"model"`
	RunID       string             `json:"runId"`
	GeneratedAt string             `json:"generatedAt"`
	Scores      map[string]float64 `json:"scores"`
}

// SetupRoutes configures HTTP endpoints for serve mode.
func SetupRoutes(store storage.Store, staleAfter time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.HandleFunc("GET /forecast/current", handleGetSnapshot(store, staleAfter, logger))
	mux.HandleFunc("GET /scores", handleListScores(store, logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// handleGetSnapshot returns a handler for GET /forecast/current?series=<name>.
func handleGetSnapshot(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series := r.URL.Query().Get("series")
		if series == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "series parameter required")
			return
		}

		if !seriesNameRegex.MatchString(series) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid series name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, series)
		if err != nil {
			logger.Error("failed to get snapshot", "series", series, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("snapshot not found for series %q", series))
			return
		}

		if time.Since(snapshot.GeneratedAt) > staleAfter {
			w.Header().Set("X-Loadcast-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, snapshot); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleListScores returns a handler for GET /scores.
func handleListScores(store storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		snapshots, err := store.List(ctx)
		if err != nil {
			logger.Error("failed to list snapshots", "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		resp := make([]SeriesScores, 0, len(snapshots))
		for _, s := range snapshots {
			resp = append(resp, SeriesScores{
				Series:      s.Series,
				Model:       s.Model,
				RunID:       s.RunID,
				GeneratedAt: s.GeneratedAt.Format(time.RFC3339),
				Scores:      s.Scores,
			})
		}

		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
