package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Snapshot is the latest forecast of one series produced by a benchmark run.
type Snapshot struct {
	Series      string         `json:"series"`
	Model       string         `json:"model"`
	RunID       string         `json:"runId"`
	GeneratedAt time.Time      `json:"generatedAt"`
	StepSeconds int            `json:"stepSeconds"`
	Times       []time.Time    `json:"times"`
	Values      []models.Value `json:"values"`

	// Scores holds the test-period metrics of the run keyed by metric name
	// (e.g. "rmse", "smape(%)"). Nil when the run had no actuals to score.
	Scores map[string]float64 `json:"scores,omitempty"`
}

// Validate checks that the snapshot names a series with a valid key and
// that Times and Values line up.
func (s Snapshot) Validate() error {
	if s.Series == "" {
		return errors.New("snapshot series cannot be empty")
	}
	for _, c := range s.Series {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid series name %q: only alphanumeric, hyphens, and underscores allowed", s.Series)
		}
	}
	if len(s.Times) != len(s.Values) {
		return fmt.Errorf("snapshot %q: %d times but %d values", s.Series, len(s.Times), len(s.Values))
	}
	return nil
}

type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, series string) (Snapshot, bool, error)
	// List returns the latest snapshot of every series, sorted by series.
	List(ctx context.Context) ([]Snapshot, error)
}
