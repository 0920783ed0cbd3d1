package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal([]Value{Float(1.5), Missing()})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(data))

	var back []Value
	require.NoError(t, json.Unmarshal([]byte(`[2, null]`), &back))
	assert.Equal(t, []Value{Float(2), Missing()}, back)
}

func TestFloat_NaNIsMissing(t *testing.T) {
	assert.False(t, Float(math.NaN()).Valid)
	assert.True(t, math.IsNaN(Missing().OrNaN()))
	assert.Equal(t, "", Missing().String())
	assert.Equal(t, "3.25", Float(3.25).String())
}

func TestFrame_DistinctOrder(t *testing.T) {
	a := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	b := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Frame{Rows: []Row{
		{Series: "CZ", Time: a},
		{Series: "BE", Time: b},
		{Series: "CZ", Time: b},
		{Series: "BE", Time: a.In(time.FixedZone("CET", 3600))},
	}}

	assert.Equal(t, []string{"CZ", "BE"}, f.SeriesIDs())
	times := f.Times()
	require.Len(t, times, 2)
	assert.True(t, times[0].Equal(a))
	assert.True(t, times[1].Equal(b))
	assert.True(t, f.MaxTime().Equal(a))
}

func TestFrame_BetweenInclusive(t *testing.T) {
	f := Frame{Rows: dailyRows("BE", day(2020, 1, 1), floats(1, 2, 3, 4)...)}
	got := f.Between(day(2020, 1, 2), day(2020, 1, 3))
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []Value{Float(2), Float(3)}, got.Column("y"))
}

func TestFrame_SelectAndSort(t *testing.T) {
	f := Frame{Rows: []Row{
		{Series: "CZ", Time: day(2020, 1, 1), Values: map[string]Value{"y": Float(1), "x": Float(2)}},
		{Series: "BE", Time: day(2020, 1, 2), Values: map[string]Value{"y": Float(3)}},
		{Series: "BE", Time: day(2020, 1, 1), Values: map[string]Value{"y": Float(4)}},
	}}
	assert.Equal(t, []string{"x", "y"}, f.Columns())

	s := f.Select("y")
	s.SortBySeriesTime()
	assert.Equal(t, []string{"y"}, s.Columns())
	assert.Equal(t, []Value{Float(4), Float(3), Float(1)}, s.Column("y"))
	// original untouched
	assert.Equal(t, "CZ", f.Rows[0].Series)
}
