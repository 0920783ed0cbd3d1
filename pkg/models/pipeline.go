package models

import (
	"context"
	"fmt"
)

// ColumnRenamer renames value columns. Names absent from the mapping are kept.
// A rename onto a column that is already present fails with ErrValidation
// instead of dropping one of the two columns.
type ColumnRenamer struct {
	mapping  map[string]string
	features []string
}

// NewColumnRenamer creates a renamer from old → new column names.
func NewColumnRenamer(mapping map[string]string) *ColumnRenamer {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &ColumnRenamer{mapping: m}
}

// Transform returns a renamed copy of data.
func (c *ColumnRenamer) Transform(data Frame) (Frame, error) {
	rows := make([]Row, len(data.Rows))
	for i, r := range data.Rows {
		values := make(map[string]Value, len(r.Values))
		for k, v := range r.Values {
			name := k
			if renamed, ok := c.mapping[k]; ok {
				name = renamed
			}
			if _, dup := values[name]; dup {
				return Frame{}, validationErrorf("row %d: renaming produces duplicate column %q", i, name)
			}
			values[name] = v
		}
		rows[i] = Row{Series: r.Series, Time: r.Time, Values: values}
	}

	out := Frame{Rows: rows}
	c.features = out.Columns()
	return out, nil
}

// FeatureNames returns the columns produced by the last Transform.
func (c *ColumnRenamer) FeatureNames() []string {
	return append([]string(nil), c.features...)
}

// Pipeline runs its transformers in order and hands the result to a final
// estimator. A Pipeline is itself an Estimator.
type Pipeline struct {
	steps     []Transformer
	estimator Estimator
}

// NewPipeline chains steps in front of estimator.
func NewPipeline(estimator Estimator, steps ...Transformer) *Pipeline {
	return &Pipeline{steps: steps, estimator: estimator}
}

// Name returns the final estimator's name.
func (p *Pipeline) Name() string {
	return p.estimator.Name()
}

// Estimator returns the final estimator.
func (p *Pipeline) Estimator() Estimator {
	return p.estimator
}

func (p *Pipeline) transform(data Frame) (Frame, error) {
	for i, step := range p.steps {
		var err error
		data, err = step.Transform(data)
		if err != nil {
			return Frame{}, fmt.Errorf("pipeline step %d: %w", i, err)
		}
	}
	return data, nil
}

// Fit transforms data and fits the final estimator.
func (p *Pipeline) Fit(ctx context.Context, data Frame) error {
	transformed, err := p.transform(data)
	if err != nil {
		return err
	}
	return p.estimator.Fit(ctx, transformed)
}

// Predict transforms data and predicts with the final estimator.
func (p *Pipeline) Predict(ctx context.Context, data Frame) (Frame, error) {
	transformed, err := p.transform(data)
	if err != nil {
		return Frame{}, err
	}
	return p.estimator.Predict(ctx, transformed)
}

// Params returns the final estimator's hyperparameters.
func (p *Pipeline) Params() Params {
	return p.estimator.Params()
}

// SetParams forwards to the final estimator.
func (p *Pipeline) SetParams(params Params) error {
	return p.estimator.SetParams(params)
}
