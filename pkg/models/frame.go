package models

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"time"
)

// Value is a float64 that may be missing.
// The zero Value is missing.
type Value struct {
	Float float64
	Valid bool
}

// Float returns a present Value. NaN is treated as missing.
func Float(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{Float: v, Valid: true}
}

// Missing returns a missing Value.
func Missing() Value {
	return Value{}
}

// OrNaN returns the value, or NaN when missing.
func (v Value) OrNaN() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float
}

func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// MarshalJSON encodes a missing value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

// Row is one observation of a named series at a point in time.
// Example: {Series: "BE", Time: 2020-07-02T00:00:00Z, Values: {"y": 9512.0}}
type Row struct {
	Series string
	Time   time.Time
	Values map[string]Value
}

// Get returns the value of a column and whether the column exists.
func (r Row) Get(col string) (Value, bool) {
	v, ok := r.Values[col]
	return v, ok
}

func (r Row) clone() Row {
	values := make(map[string]Value, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{Series: r.Series, Time: r.Time, Values: values}
}

// Frame is an ordered collection of rows, possibly spanning several series.
type Frame struct {
	Rows []Row
}

// Len returns the number of rows.
func (f Frame) Len() int {
	return len(f.Rows)
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	rows := make([]Row, len(f.Rows))
	for i, r := range f.Rows {
		rows[i] = r.clone()
	}
	return Frame{Rows: rows}
}

// SeriesIDs returns the distinct series identifiers in order of first appearance.
func (f Frame) SeriesIDs() []string {
	seen := make(map[string]struct{})
	ids := []string{}
	for _, r := range f.Rows {
		if _, ok := seen[r.Series]; ok {
			continue
		}
		seen[r.Series] = struct{}{}
		ids = append(ids, r.Series)
	}
	return ids
}

// Times returns the distinct timestamps in order of first appearance.
func (f Frame) Times() []time.Time {
	seen := make(map[time.Time]struct{})
	times := []time.Time{}
	for _, r := range f.Rows {
		key := r.Time.UTC()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		times = append(times, r.Time)
	}
	return times
}

// MaxTime returns the latest timestamp, or the zero time for an empty frame.
func (f Frame) MaxTime() time.Time {
	var max time.Time
	for i, r := range f.Rows {
		if i == 0 || r.Time.After(max) {
			max = r.Time
		}
	}
	return max
}

// Filter returns the rows for which keep returns true. Rows are shared, not copied.
func (f Frame) Filter(keep func(Row) bool) Frame {
	rows := make([]Row, 0, len(f.Rows))
	for _, r := range f.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return Frame{Rows: rows}
}

// Between returns rows with start <= Time <= end.
func (f Frame) Between(start, end time.Time) Frame {
	return f.Filter(func(r Row) bool {
		return !r.Time.Before(start) && !r.Time.After(end)
	})
}

// ForSeries returns the rows belonging to one series.
func (f Frame) ForSeries(series string) Frame {
	return f.Filter(func(r Row) bool { return r.Series == series })
}

// Columns returns the sorted union of value column names.
func (f Frame) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range f.Rows {
		for k := range r.Values {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	return cols
}

// Column returns the values of one column in row order. Rows without the
// column contribute a missing value.
func (f Frame) Column(col string) []Value {
	out := make([]Value, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Values[col]
	}
	return out
}

// Select returns a copy of the frame keeping only the named value columns.
func (f Frame) Select(cols ...string) Frame {
	rows := make([]Row, len(f.Rows))
	for i, r := range f.Rows {
		values := make(map[string]Value, len(cols))
		for _, c := range cols {
			if v, ok := r.Values[c]; ok {
				values[c] = v
			}
		}
		rows[i] = Row{Series: r.Series, Time: r.Time, Values: values}
	}
	return Frame{Rows: rows}
}

// Concat appends the rows of all frames in order.
func Concat(frames ...Frame) Frame {
	n := 0
	for _, f := range frames {
		n += len(f.Rows)
	}
	rows := make([]Row, 0, n)
	for _, f := range frames {
		rows = append(rows, f.Rows...)
	}
	return Frame{Rows: rows}
}

// SortBySeriesTime sorts rows in place by series, then time.
func (f Frame) SortBySeriesTime() {
	slices.SortStableFunc(f.Rows, func(a, b Row) int {
		if a.Series != b.Series {
			if a.Series < b.Series {
				return -1
			}
			return 1
		}
		return a.Time.Compare(b.Time)
	})
}
