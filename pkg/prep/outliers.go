package prep

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/loadcast/pkg/models"
)

// rollingStats holds centered rolling median and sample standard deviation;
// NaN where the window is incomplete or contains a missing value.
type rollingStats struct {
	median []float64
	std    []float64
}

// centeredRolling computes statistics over windows [i-w+1+off, i+off] with
// off = (w-1)/2, requiring w valid observations per window.
func centeredRolling(values []models.Value, window int) rollingStats {
	n := len(values)
	rs := rollingStats{median: make([]float64, n), std: make([]float64, n)}
	offset := (window - 1) / 2
	buf := make([]float64, 0, window)

	for i := 0; i < n; i++ {
		rs.median[i] = math.NaN()
		rs.std[i] = math.NaN()

		end := i + offset
		start := end - window + 1
		if start < 0 || end >= n {
			continue
		}

		buf = buf[:0]
		for _, v := range values[start : end+1] {
			if !v.Valid {
				break
			}
			buf = append(buf, v.Float)
		}
		if len(buf) < window {
			continue
		}

		if window > 1 {
			rs.std[i] = stat.StdDev(buf, nil)
		}
		slices.Sort(buf)
		rs.median[i] = median(buf)
	}
	return rs
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func outside(v models.Value, med, sd, k float64) bool {
	if !v.Valid || math.IsNaN(med) || math.IsNaN(sd) {
		return false
	}
	return v.Float >= med+k*sd || v.Float <= med-k*sd
}

// MedianFilterOutliers masks values of col lying at least k rolling standard
// deviations away from the centered rolling median.
//
// Statistics are computed per series over train only. Validation rows of a
// series are compared against the trailing len(validation) statistics of
// the same series in train, matched by position. Both frames are returned
// as modified copies; masked values become missing.
func MedianFilterOutliers(train, val models.Frame, col string, window int, k float64) (models.Frame, models.Frame, error) {
	if window < 1 {
		return models.Frame{}, models.Frame{}, fmt.Errorf("window must be >= 1, got %d", window)
	}
	if k <= 0 {
		return models.Frame{}, models.Frame{}, fmt.Errorf("std multiplier must be > 0, got %v", k)
	}

	trainOut := train.Clone()
	valOut := val.Clone()

	for _, series := range trainOut.SeriesIDs() {
		trainIdx := indexOf(trainOut, series)
		values := make([]models.Value, len(trainIdx))
		for j, idx := range trainIdx {
			values[j] = trainOut.Rows[idx].Values[col]
		}
		rs := centeredRolling(values, window)

		for j, idx := range trainIdx {
			if outside(values[j], rs.median[j], rs.std[j], k) {
				trainOut.Rows[idx].Values[col] = models.Missing()
			}
		}

		valIdx := indexOf(valOut, series)
		if len(valIdx) > len(trainIdx) {
			return models.Frame{}, models.Frame{}, fmt.Errorf("series %q: %d validation rows exceed %d training rows", series, len(valIdx), len(trainIdx))
		}
		base := len(trainIdx) - len(valIdx)
		for j, idx := range valIdx {
			v := valOut.Rows[idx].Values[col]
			if outside(v, rs.median[base+j], rs.std[base+j], k) {
				valOut.Rows[idx].Values[col] = models.Missing()
			}
		}
	}

	return trainOut, valOut, nil
}

func indexOf(f models.Frame, series string) []int {
	idx := []int{}
	for i, r := range f.Rows {
		if r.Series == series {
			idx = append(idx, i)
		}
	}
	return idx
}
