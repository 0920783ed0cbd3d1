package scoring

import (
	"fmt"
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
)

type pointKey struct {
	series string
	time   time.Time
}

// Join pairs trueCol from actual with predCol from predicted on (series, time).
// Predicted rows with no matching actual row are dropped. The returned frame
// has both columns and follows predicted's row order.
func Join(actual, predicted models.Frame, trueCol, predCol string) models.Frame {
	index := make(map[pointKey]models.Value, actual.Len())
	for _, r := range actual.Rows {
		index[pointKey{r.Series, r.Time.UTC()}] = r.Values[trueCol]
	}

	rows := make([]models.Row, 0, predicted.Len())
	for _, r := range predicted.Rows {
		t, ok := index[pointKey{r.Series, r.Time.UTC()}]
		if !ok {
			continue
		}
		rows = append(rows, models.Row{
			Series: r.Series,
			Time:   r.Time,
			Values: map[string]models.Value{trueCol: t, predCol: r.Values[predCol]},
		})
	}
	return models.Frame{Rows: rows}
}

// BySeries scores each series of joined (see Join) separately, skipping
// pairs with a missing side. Series with no complete pair are omitted.
func BySeries(joined models.Frame, trueCol, predCol, label string, withR2 bool) (map[string]Scores, error) {
	out := make(map[string]Scores)
	for _, series := range joined.SeriesIDs() {
		part := joined.ForSeries(series)
		t, p, err := CompleteCases(part.Column(trueCol), part.Column(predCol))
		if err != nil {
			return nil, err
		}
		if len(t) == 0 {
			continue
		}
		s, err := Score(t, p, label, withR2)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", series, err)
		}
		out[series] = s
	}
	return out, nil
}

// DropZeroPairs returns joined without the rows where both trueCol and
// predCol are exactly zero. SMAPE is undefined on such pairs.
func DropZeroPairs(joined models.Frame, trueCol, predCol string) models.Frame {
	rows := make([]models.Row, 0, joined.Len())
	for _, r := range joined.Rows {
		t, p := r.Values[trueCol], r.Values[predCol]
		if t.Valid && p.Valid && t.Float == 0 && p.Float == 0 {
			continue
		}
		rows = append(rows, r)
	}
	return models.Frame{Rows: rows}
}
