package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnRenamer_Transform(t *testing.T) {
	data := Frame{Rows: []Row{
		{Series: "NL", Time: day(2018, 1, 1), Values: map[string]Value{"load": Float(100), "temp": Float(4)}},
	}}

	out, err := NewColumnRenamer(map[string]string{"load": "y"}).Transform(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]Value{"y": Float(100), "temp": Float(4)}, out.Rows[0].Values)
	assert.Contains(t, data.Rows[0].Values, "load", "input must not be modified")
}

func TestColumnRenamer_Swap(t *testing.T) {
	data := Frame{Rows: []Row{
		{Series: "NL", Time: day(2018, 1, 1), Values: map[string]Value{"load": Float(100), "y": Float(7)}},
	}}

	out, err := NewColumnRenamer(map[string]string{"load": "y", "y": "load"}).Transform(data)
	require.NoError(t, err)
	assert.Equal(t, Float(100), out.Rows[0].Values["y"])
	assert.Equal(t, Float(7), out.Rows[0].Values["load"])
}

func TestColumnRenamer_Collision(t *testing.T) {
	data := Frame{Rows: []Row{
		{Series: "NL", Time: day(2018, 1, 1), Values: map[string]Value{"load": Float(100), "y": Float(7)}},
	}}

	_, err := NewColumnRenamer(map[string]string{"load": "y"}).Transform(data)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewColumnRenamer(map[string]string{"load": "y", "load_mw": "y"}).Transform(Frame{Rows: []Row{
		{Series: "NL", Time: day(2018, 1, 1), Values: map[string]Value{"load": Float(1), "load_mw": Float(2)}},
	}})
	assert.ErrorIs(t, err, ErrValidation)
}
