package scoring

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/loadcast/pkg/models"
)

func TestScore_IdenticalArrays(t *testing.T) {
	y := []float64{1, 2, 3}
	s, err := Score(y, y, "pred", false)
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.RMSE)
	assert.Equal(t, 0.0, s.MAE)
	assert.Equal(t, 0.0, s.MSE)
	assert.Equal(t, 0.0, s.SMAPE)
	assert.Equal(t, "pred", s.Type)
	assert.Nil(t, s.R2)
	require.NotNil(t, s.RMSPE)
	assert.Equal(t, 0.0, *s.RMSPE)
}

func TestScore_ConstantOffset(t *testing.T) {
	s, err := Score([]float64{0, 0, 0}, []float64{1, 1, 1}, "naive", false)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, s.RMSE, 1e-12)
	assert.InDelta(t, 1.0, s.MAE, 1e-12)
	assert.InDelta(t, 1.0, s.MSE, 1e-12)
	assert.InDelta(t, 200.0, s.SMAPE, 1e-12)
	assert.Nil(t, s.RMSPE, "rmspe omitted when a true value is not positive")

	m := s.Map()
	assert.Contains(t, m, "rmse")
	assert.Contains(t, m, "mae")
	assert.Contains(t, m, "smape(%)")
	assert.Contains(t, m, "mse")
	assert.NotContains(t, m, "rmspe(%)")
	assert.NotContains(t, m, "r2")
}

func TestScore_KnownValues(t *testing.T) {
	yTrue := []float64{100, 200, 400}
	yPred := []float64{110, 180, 400}

	s, err := Score(yTrue, yPred, "test", true)
	require.NoError(t, err)

	assert.InDelta(t, math.Sqrt(500.0/3), s.RMSE, 1e-9)
	assert.InDelta(t, 10.0, s.MAE, 1e-9)
	assert.InDelta(t, 200*(10.0/210+20.0/380)/3, s.SMAPE, 1e-9)
	require.NotNil(t, s.RMSPE)
	assert.InDelta(t, 100*math.Sqrt((0.01+0.01)/3), *s.RMSPE, 1e-9)

	// ss_tot about mean 233.33: 17777.78+1111.11+27777.78
	require.NotNil(t, s.R2)
	ssTot := math.Pow(100-700.0/3, 2) + math.Pow(200-700.0/3, 2) + math.Pow(400-700.0/3, 2)
	assert.InDelta(t, 1-500/ssTot, *s.R2, 1e-9)
	assert.Contains(t, s.Map(), "r2")
	assert.Contains(t, s.Map(), "rmspe(%)")
}

func TestSMAPE_ZeroPairIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(SMAPE([]float64{0, 1}, []float64{0, 1})))
	assert.Equal(t, 0.0, SMAPE([]float64{5, 1}, []float64{5, 1}))
}

func TestScore_InvalidInput(t *testing.T) {
	_, err := Score(nil, nil, "x", false)
	assert.Error(t, err)

	_, err = Score([]float64{1, 2}, []float64{1}, "x", false)
	assert.Error(t, err)
}

func TestCompleteCases(t *testing.T) {
	yt := []models.Value{models.Float(1), models.Missing(), models.Float(3)}
	yp := []models.Value{models.Float(1), models.Float(2), models.Missing()}

	tv, pv, err := CompleteCases(yt, yp)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, tv)
	assert.Equal(t, []float64{1}, pv)

	_, _, err = CompleteCases(yt, yp[:1])
	assert.Error(t, err)
}

func TestBySeries(t *testing.T) {
	ts := func(h int) time.Time { return time.Date(2020, 7, 2, h, 0, 0, 0, time.UTC) }
	row := func(series string, h int, col string, v models.Value) models.Row {
		return models.Row{Series: series, Time: ts(h), Values: map[string]models.Value{col: v}}
	}

	actual := models.Frame{Rows: []models.Row{
		row("BE", 0, "y", models.Float(10)),
		row("BE", 1, "y", models.Float(20)),
		row("CZ", 0, "y", models.Float(5)),
		row("PL", 0, "y", models.Missing()),
	}}
	predicted := models.Frame{Rows: []models.Row{
		row("BE", 0, "yhat", models.Float(12)),
		row("BE", 1, "yhat", models.Float(18)),
		row("BE", 2, "yhat", models.Float(99)),
		row("CZ", 0, "yhat", models.Float(5)),
		row("PL", 0, "yhat", models.Float(1)),
	}}

	joined := Join(actual, predicted, "y", "yhat")
	assert.Equal(t, 4, joined.Len())

	scores, err := BySeries(joined, "y", "yhat", "naive", false)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 2.0, scores["BE"].RMSE, 1e-9)
	assert.InDelta(t, 2.0, scores["BE"].MAE, 1e-9)
	assert.Equal(t, 0.0, scores["CZ"].RMSE)
	assert.NotContains(t, scores, "PL")
}

func TestScores_MapSkipsNonFinite(t *testing.T) {
	s, err := Score([]float64{0, 10}, []float64{0, 12}, "naive", false)
	require.NoError(t, err)
	require.True(t, math.IsNaN(s.SMAPE))

	m := s.Map()
	assert.NotContains(t, m, "smape(%)")
	assert.InDelta(t, math.Sqrt(2), m["rmse"], 1e-9)

	_, err = json.Marshal(m)
	assert.NoError(t, err)
}

func TestScores_JSONNamesMatchMap(t *testing.T) {
	r2, rmspe := 0.5, 3.0
	s := Scores{Type: "naive", RMSE: 1, MAE: 1, SMAPE: 2, MSE: 1, R2: &r2, RMSPE: &rmspe}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	delete(decoded, "type")

	assert.Equal(t, slices.Sorted(maps.Keys(s.Map())), slices.Sorted(maps.Keys(decoded)))
}

func TestDropZeroPairs(t *testing.T) {
	ts := func(h int) time.Time { return time.Date(2020, 7, 2, h, 0, 0, 0, time.UTC) }
	row := func(h int, y, yhat models.Value) models.Row {
		return models.Row{Series: "LU", Time: ts(h), Values: map[string]models.Value{"y": y, "yhat": yhat}}
	}

	joined := models.Frame{Rows: []models.Row{
		row(0, models.Float(0), models.Float(0)),
		row(1, models.Float(0), models.Float(4)),
		row(2, models.Missing(), models.Float(0)),
		row(3, models.Float(8), models.Float(6)),
	}}

	kept := DropZeroPairs(joined, "y", "yhat")
	require.Equal(t, 3, kept.Len())
	assert.Equal(t, ts(1), kept.Rows[0].Time)

	scores, err := BySeries(kept, "y", "yhat", "naive", false)
	require.NoError(t, err)
	assert.InDelta(t, 100.0+200.0*2/14/2, scores["LU"].SMAPE, 1e-9)
}
