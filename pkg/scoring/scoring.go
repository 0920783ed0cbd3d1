// Package scoring computes forecast error metrics over paired true/predicted
// values.
//
// Metrics:
//   - rmse:     sqrt(mean((true-pred)^2))
//   - mae:      mean(|true-pred|)
//   - mse:      mean((true-pred)^2)
//   - smape(%): 200 * mean(|pred-true| / (|pred|+|true|))
//   - rmspe(%): 100 * sqrt(mean(((true-pred)/true)^2)), only when every true value is > 0
//   - r2:       coefficient of determination, on request
//
// SMAPE is NaN when a pair has true == pred == 0; drop such pairs first.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Scores holds the metrics for one set of predictions.
type Scores struct {
	Type  string  `json:"type"`
	RMSE  float64 `json:"rmse"`
	MAE   float64 `json:"mae"`
	SMAPE float64 `json:"smape(%)"`
	MSE   float64 `json:"mse"`

	// R2 is set only when requested.
	R2 *float64 `json:"r2,omitempty"`

	// RMSPE is set only when all true values are strictly positive.
	RMSPE *float64 `json:"rmspe(%),omitempty"`
}

// Map returns the metrics keyed by their report names. Non-finite values
// are left out.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, 6)
	put := func(name string, v float64) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			m[name] = v
		}
	}
	put("rmse", s.RMSE)
	put("mae", s.MAE)
	put("smape(%)", s.SMAPE)
	put("mse", s.MSE)
	if s.R2 != nil {
		put("r2", *s.R2)
	}
	if s.RMSPE != nil {
		put("rmspe(%)", *s.RMSPE)
	}
	return m
}

func checkPair(yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.New("scoring: no observations")
	}
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("scoring: length mismatch: %d true vs %d predicted", len(yTrue), len(yPred))
	}
	return nil
}

// Score computes all metrics for yTrue and yPred. label identifies the kind
// of prediction (e.g. "naive", "test").
func Score(yTrue, yPred []float64, label string, withR2 bool) (Scores, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return Scores{}, err
	}

	mse := MSE(yTrue, yPred)
	s := Scores{
		Type:  label,
		RMSE:  math.Sqrt(mse),
		MAE:   MAE(yTrue, yPred),
		SMAPE: SMAPE(yTrue, yPred),
		MSE:   mse,
	}

	if withR2 {
		r2 := R2(yTrue, yPred)
		s.R2 = &r2
	}
	if floats.Min(yTrue) > 0 {
		rmspe := RMSPE(yTrue, yPred)
		s.RMSPE = &rmspe
	}

	return s, nil
}

// MSE returns the mean squared error. Inputs must have equal, non-zero length.
func MSE(yTrue, yPred []float64) float64 {
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue))
}

// RMSE returns the root mean squared error.
func RMSE(yTrue, yPred []float64) float64 {
	return math.Sqrt(MSE(yTrue, yPred))
}

// MAE returns the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue))
}

// SMAPE returns the symmetric mean absolute percentage error in percent.
func SMAPE(yTrue, yPred []float64) float64 {
	ratios := make([]float64, len(yTrue))
	for i := range yTrue {
		ratios[i] = math.Abs(yPred[i]-yTrue[i]) / (math.Abs(yPred[i]) + math.Abs(yTrue[i]))
	}
	return 200 * stat.Mean(ratios, nil)
}

// RMSPE returns the root mean squared percentage error in percent.
// Callers must ensure no true value is zero.
func RMSPE(yTrue, yPred []float64) float64 {
	sq := make([]float64, len(yTrue))
	for i := range yTrue {
		r := (yTrue[i] - yPred[i]) / yTrue[i]
		sq[i] = r * r
	}
	return math.Sqrt(stat.Mean(sq, nil)) * 100
}

// R2 returns the coefficient of determination of yPred against yTrue.
func R2(yTrue, yPred []float64) float64 {
	return stat.RSquaredFrom(yPred, yTrue, nil)
}

// CompleteCases returns the pairs where both sides are present.
func CompleteCases(yTrue, yPred []models.Value) ([]float64, []float64, error) {
	if len(yTrue) != len(yPred) {
		return nil, nil, fmt.Errorf("scoring: length mismatch: %d true vs %d predicted", len(yTrue), len(yPred))
	}
	t := make([]float64, 0, len(yTrue))
	p := make([]float64, 0, len(yPred))
	for i := range yTrue {
		if !yTrue[i].Valid || !yPred[i].Valid {
			continue
		}
		t = append(t, yTrue[i].Float)
		p = append(p, yPred[i].Float)
	}
	return t, p, nil
}
