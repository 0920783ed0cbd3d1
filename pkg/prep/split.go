package prep

import (
	"fmt"
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Range is an inclusive date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// Validate checks that both bounds are set and ordered.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("range start and end are required")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("range end %s before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// Split returns the rows of data inside train and inside test.
// Overlapping ranges are rejected so no observation leaks into both.
func Split(data models.Frame, train, test Range) (models.Frame, models.Frame, error) {
	if err := train.Validate(); err != nil {
		return models.Frame{}, models.Frame{}, fmt.Errorf("train: %w", err)
	}
	if err := test.Validate(); err != nil {
		return models.Frame{}, models.Frame{}, fmt.Errorf("test: %w", err)
	}
	if !train.End.Before(test.Start) && !test.End.Before(train.Start) {
		return models.Frame{}, models.Frame{}, fmt.Errorf("train and test ranges overlap")
	}
	return data.Between(train.Start, train.End), data.Between(test.Start, test.End), nil
}
