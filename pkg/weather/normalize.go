// Package weather fetches hourly station observations, aligns them to the
// station's local wall clock and writes one intermediate file per station.
package weather

import (
	"fmt"
	"slices"
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Station is a weather station with its observation period.
type Station struct {
	ID       string
	Name     string
	Country  string
	Lat      float64
	Lon      float64
	Timezone string
	Start    time.Time
	End      time.Time
}

// Location loads the station's IANA time zone.
func (s Station) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("station %q: %w", s.Name, err)
	}
	return loc, nil
}

// LabelColumns are the station attributes written as string columns of
// station files, in the order of Station.Labels.
var LabelColumns = []string{"country", "timezone"}

// YearColumn holds the local calendar year of each observation.
const YearColumn = "year"

// Labels returns the cells of LabelColumns for the station.
func (s Station) Labels() []string {
	return []string{s.Country, s.Timezone}
}

// StationLabels returns a dataio.Layout LabelValues function that looks
// stations up by name.
func StationLabels(stations ...Station) func(name string) []string {
	byName := make(map[string][]string, len(stations))
	for _, s := range stations {
		byName[s.Name] = s.Labels()
	}
	return func(name string) []string { return byName[name] }
}

// FileName is the intermediate file name of the station.
func (s Station) FileName() string {
	return fileName(s.Name) + ".csv.gz"
}

// wallClock returns the local wall clock time of t in loc, labelled UTC.
func wallClock(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

// Normalize converts UTC observations of a single station to hourly rows on
// the local wall clock of loc.
//
// The repeated hour when clocks go back keeps its first observation. Rows
// are resampled to whole hours by averaging, and gaps (including the hour
// skipped when clocks go forward) are interpolated linearly in time. Gaps
// before the first observation of a column stay missing; gaps after the
// last one repeat it. Returned times carry the wall clock in the UTC
// location.
func Normalize(data models.Frame, loc *time.Location) models.Frame {
	if data.Len() == 0 {
		return models.Frame{}
	}
	if loc == nil {
		loc = time.UTC
	}

	series := data.Rows[0].Series
	seen := make(map[time.Time]bool, data.Len())
	local := make([]models.Row, 0, data.Len())
	for _, r := range data.Rows {
		wc := wallClock(r.Time, loc)
		if seen[wc] {
			continue
		}
		seen[wc] = true
		local = append(local, models.Row{Series: r.Series, Time: wc, Values: r.Values})
	}

	slices.SortStableFunc(local, func(a, b models.Row) int { return a.Time.Compare(b.Time) })

	cols := models.Frame{Rows: local}.Columns()
	first := local[0].Time.Truncate(time.Hour)
	last := local[len(local)-1].Time.Truncate(time.Hour)
	n := int(last.Sub(first)/time.Hour) + 1

	sums := make([][]float64, len(cols))
	counts := make([][]int, len(cols))
	for c := range cols {
		sums[c] = make([]float64, n)
		counts[c] = make([]int, n)
	}
	for _, r := range local {
		b := int(r.Time.Truncate(time.Hour).Sub(first) / time.Hour)
		for c, col := range cols {
			if v := r.Values[col]; v.Valid {
				sums[c][b] += v.Float
				counts[c][b]++
			}
		}
	}

	out := models.Frame{Rows: make([]models.Row, n)}
	for b := range n {
		out.Rows[b] = models.Row{
			Series: series,
			Time:   first.Add(time.Duration(b) * time.Hour),
			Values: make(map[string]models.Value, len(cols)),
		}
	}

	for c, col := range cols {
		column := make([]models.Value, n)
		for b := range n {
			if counts[c][b] > 0 {
				column[b] = models.Float(sums[c][b] / float64(counts[c][b]))
			}
		}
		interpolate(column)
		for b := range n {
			out.Rows[b].Values[col] = column[b]
		}
	}
	return out
}

// interpolate fills missing values of an evenly spaced column in place:
// linearly between observations and with the last observation after it.
func interpolate(column []models.Value) {
	prev := -1
	for i, v := range column {
		if !v.Valid {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			a, b := column[prev].Float, v.Float
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				column[j] = models.Float(a + (b-a)*float64(j-prev)/span)
			}
		}
		prev = i
	}
	if prev < 0 {
		return
	}
	for j := prev + 1; j < len(column); j++ {
		column[j] = column[prev]
	}
}
