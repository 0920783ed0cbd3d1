// Package models provides the estimators used by loadcast: lag-based naive
// baselines for one or many named series, a column renaming transformer and
// a pipeline that chains transformers in front of an estimator.
package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientHistory is returned when the input is shorter than the lookback.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrShapeMismatch is returned when the requested target timestamps do not
	// line up with the fitted cutoff windows.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrValidation is returned when input or parameters cannot be coerced to
	// the shape an estimator expects.
	ErrValidation = errors.New("validation failed")

	// ErrNotFitted is returned by Predict on an estimator that requires Fit first.
	ErrNotFitted = errors.New("estimator not fitted")
)

// Params holds estimator hyperparameters keyed by name.
type Params map[string]any

// Estimator is the fit/predict contract shared by all models.
type Estimator interface {
	// Name returns the model identifier.
	Name() string

	// Fit learns state from data. Calling Fit again replaces that state.
	Fit(ctx context.Context, data Frame) error

	// Predict returns forecast rows for data.
	Predict(ctx context.Context, data Frame) (Frame, error)

	// Params returns the current hyperparameters.
	Params() Params

	// SetParams updates hyperparameters. Either every key applies or none does.
	SetParams(p Params) error
}

// Transformer rewrites a frame before it reaches an estimator.
type Transformer interface {
	Transform(data Frame) (Frame, error)
}

// FitPredict fits e on data and predicts on the same data.
func FitPredict(ctx context.Context, e Estimator, data Frame) (Frame, error) {
	if err := e.Fit(ctx, data); err != nil {
		return Frame{}, err
	}
	return e.Predict(ctx, data)
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func paramInt(p Params, key string) (int, bool, error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, true, validationErrorf("param %q: %v is not an integer", key, v)
		}
		return int(v), true, nil
	default:
		return 0, true, validationErrorf("param %q: unexpected type %T", key, raw)
	}
}

func paramString(p Params, key string) (string, bool, error) {
	raw, ok := p[key]
	if !ok {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, validationErrorf("param %q: unexpected type %T", key, raw)
	}
	return s, true, nil
}

func paramStrings(p Params, key string) ([]string, bool, error) {
	raw, ok := p[key]
	if !ok {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, isString := item.(string)
			if !isString {
				return nil, true, validationErrorf("param %q[%d]: unexpected type %T", key, i, item)
			}
			out[i] = s
		}
		return out, true, nil
	default:
		return nil, true, validationErrorf("param %q: unexpected type %T", key, raw)
	}
}

func paramDuration(p Params, key string) (time.Duration, bool, error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case time.Duration:
		return v, true, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, true, validationErrorf("param %q: %v", key, err)
		}
		return d, true, nil
	default:
		return 0, true, validationErrorf("param %q: unexpected type %T", key, raw)
	}
}

func checkKnown(p Params, known ...string) error {
	for k := range p {
		found := false
		for _, name := range known {
			if k == name {
				found = true
				break
			}
		}
		if !found {
			return validationErrorf("unknown param %q", k)
		}
	}
	return nil
}
