package dataio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/loadcast/pkg/models"
)

const longCSV = `country,ds,y,temp
BE,2019-01-01 00:00:00,9500.5,3.1
BE,2019-01-01 01:00:00,,2.9
DE,2019-01-01T00:00:00Z,51000,nan
`

func TestReadCSV(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(longCSV), Layout{})
	require.NoError(t, err)
	require.Equal(t, 3, f.Len())

	assert.Equal(t, "BE", f.Rows[0].Series)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), f.Rows[0].Time)
	assert.Equal(t, models.Float(9500.5), f.Rows[0].Values["y"])
	assert.False(t, f.Rows[1].Values["y"].Valid, "empty cell is missing")
	assert.False(t, f.Rows[2].Values["temp"].Valid, "nan is missing")
	assert.Equal(t, []string{"temp", "y"}, f.Columns())
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no time column", "country,y\nBE,1\n"},
		{"bad timestamp", "country,ds,y\nBE,yesterday,1\n"},
		{"bad number", "country,ds,y\nBE,2019-01-01,abc\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), Layout{})
			assert.Error(t, err)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	ts := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	f := models.Frame{Rows: []models.Row{
		{Series: "BE", Time: ts, Values: map[string]models.Value{"yhat": models.Float(1.5), "y": models.Missing()}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f, Layout{TimeFormat: "2006-01-02 15:04:05"}, "y", "yhat"))
	assert.Equal(t, "country,ds,y,yhat\nBE,2019-01-01 00:00:00,,1.5\n", buf.String())
}

func TestWriteCSV_Labels(t *testing.T) {
	ts := time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)
	data := models.Frame{Rows: []models.Row{
		{Series: "Berlin", Time: ts, Values: map[string]models.Value{"temp": models.Float(18.5), "year": models.Float(2020)}},
		{Series: "Paris", Time: ts, Values: map[string]models.Value{"temp": models.Float(21)}},
		{Series: "Nowhere", Time: ts, Values: map[string]models.Value{"temp": models.Missing()}},
	}}
	labels := map[string][]string{"Berlin": {"DE", "Europe/Berlin"}, "Paris": {"FR"}}
	layout := Layout{
		SeriesColumn: "station",
		TimeFormat:   time.DateTime,
		Labels:       []string{"country", "timezone"},
		LabelValues:  func(series string) []string { return labels[series] },
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, data, layout))
	assert.Equal(t, `station,ds,country,timezone,temp,year
Berlin,2020-07-01 00:00:00,DE,Europe/Berlin,18.5,2020
Paris,2020-07-01 00:00:00,FR,,21,
Nowhere,2020-07-01 00:00:00,,,,
`, buf.String())

	back, err := ReadCSV(&buf, layout)
	require.NoError(t, err)
	require.Equal(t, 3, back.Len())
	assert.Equal(t, []string{"temp", "year"}, back.Columns())
	assert.Equal(t, models.Float(2020), back.Rows[0].Values["year"])
}

func TestCSVFile_GzipRoundTrip(t *testing.T) {
	in, err := ReadCSV(strings.NewReader(longCSV), Layout{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "load.csv.gz")
	require.NoError(t, WriteCSVFile(path, in, Layout{}))

	out, err := ReadCSVFile(path, Layout{})
	require.NoError(t, err)
	require.Equal(t, in.Len(), out.Len())
	for i := range in.Rows {
		assert.Equal(t, in.Rows[i].Series, out.Rows[i].Series)
		assert.True(t, in.Rows[i].Time.Equal(out.Rows[i].Time))
		assert.Equal(t, in.Rows[i].Values, out.Rows[i].Values)
	}
}

func TestReadCSVFile_Missing(t *testing.T) {
	_, err := ReadCSVFile(filepath.Join(t.TempDir(), "absent.csv"), Layout{})
	assert.Error(t, err)
}

const opsdCSV = `utc_timestamp,cet_cest_timestamp,BE_load_actual_entsoe_transparency,BE_load_forecast_entsoe_transparency,DE_load_actual_entsoe_transparency
2015-01-01T00:00:00Z,2015-01-01T01:00:00+0100,9484,9000,41151
2015-01-01T01:00:00Z,2015-01-01T02:00:00+0100,,8800,40135
`

func TestReadOPSD(t *testing.T) {
	f, err := ReadOPSD(strings.NewReader(opsdCSV), OPSDOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, f.Len())

	assert.Equal(t, []string{"BE", "DE"}, f.SeriesIDs())
	assert.Equal(t, "BE", f.Rows[1].Series)
	assert.False(t, f.Rows[1].Values["y"].Valid)
	assert.Equal(t, models.Float(41151), f.Rows[2].Values["y"])
	assert.Equal(t, []string{"y"}, f.Columns())
}

func TestReadOPSD_Countries(t *testing.T) {
	f, err := ReadOPSD(strings.NewReader(opsdCSV), OPSDOptions{Countries: []string{"DE"}, Output: "load"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DE"}, f.SeriesIDs())
	assert.Equal(t, models.Float(40135), f.Rows[1].Values["load"])

	_, err = ReadOPSD(strings.NewReader(opsdCSV), OPSDOptions{Countries: []string{"FR"}})
	assert.Error(t, err)
}
