// Package dataio reads and writes frames as CSV files, optionally gzip
// compressed, and converts the Open Power System Data time series export
// into long per-country rows.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/HatiCode/loadcast/pkg/models"
)

// Layout names the identifier columns of a long CSV file. Every other
// column except Labels is parsed as a nullable float.
type Layout struct {
	// TimeColumn holds the timestamp. Default "ds".
	TimeColumn string

	// SeriesColumn holds the series identifier. Default "country".
	SeriesColumn string

	// TimeFormat is a Go reference layout. Empty accepts RFC3339,
	// "2006-01-02 15:04:05" and "2006-01-02" (all UTC).
	TimeFormat string

	// Labels are string columns written right after the time column.
	// ReadCSV skips them.
	Labels []string

	// LabelValues returns the label cells of a series in Labels order.
	// Nil leaves the label cells empty.
	LabelValues func(series string) []string
}

func (l Layout) withDefaults() Layout {
	if l.TimeColumn == "" {
		l.TimeColumn = "ds"
	}
	if l.SeriesColumn == "" {
		l.SeriesColumn = "country"
	}
	return l
}

var fallbackTimeFormats = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// ParseTime parses s with layout, or with the fallback formats when layout is empty.
func ParseTime(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if layout != "" {
		return time.ParseInLocation(layout, s, time.UTC)
	}
	for _, f := range fallbackTimeFormats {
		if t, err := time.ParseInLocation(f, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseValue parses a numeric cell. Empty cells and "nan" are missing.
func ParseValue(s string) (models.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return models.Missing(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.Value{}, err
	}
	return models.Float(f), nil
}

// ReadCSV reads a long CSV with a header row.
func ReadCSV(r io.Reader, layout Layout) (models.Frame, error) {
	layout = layout.withDefaults()

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return models.Frame{}, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)

	timeIdx, seriesIdx := -1, -1
	skip := make([]bool, len(header))
	for i, name := range header {
		switch {
		case name == layout.TimeColumn:
			timeIdx = i
		case name == layout.SeriesColumn:
			seriesIdx = i
		case slices.Contains(layout.Labels, name):
			skip[i] = true
		}
	}
	if timeIdx < 0 {
		return models.Frame{}, fmt.Errorf("time column %q not found", layout.TimeColumn)
	}

	var rows []models.Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Frame{}, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := ParseTime(rec[timeIdx], layout.TimeFormat)
		if err != nil {
			return models.Frame{}, fmt.Errorf("line %d: %w", line, err)
		}

		row := models.Row{Time: ts, Values: make(map[string]models.Value, len(header))}
		if seriesIdx >= 0 {
			row.Series = rec[seriesIdx]
		}
		for i, name := range header {
			if i == timeIdx || i == seriesIdx || skip[i] {
				continue
			}
			v, err := ParseValue(rec[i])
			if err != nil {
				return models.Frame{}, fmt.Errorf("line %d column %q: %w", line, name, err)
			}
			row.Values[name] = v
		}
		rows = append(rows, row)
	}

	return models.Frame{Rows: rows}, nil
}

// WriteCSV writes data as a long CSV with the series and time columns first,
// then the label columns, followed by cols (all columns, sorted, when cols
// is empty).
func WriteCSV(w io.Writer, data models.Frame, layout Layout, cols ...string) error {
	layout = layout.withDefaults()
	if len(cols) == 0 {
		cols = data.Columns()
	}

	timeFormat := layout.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	header := make([]string, 0, 2+len(layout.Labels)+len(cols))
	header = append(header, layout.SeriesColumn, layout.TimeColumn)
	header = append(header, layout.Labels...)
	header = append(header, cols...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	nl := len(layout.Labels)
	rec := make([]string, len(header))
	labels := make(map[string][]string)
	for _, r := range data.Rows {
		rec[0] = r.Series
		rec[1] = r.Time.Format(timeFormat)
		if nl > 0 {
			cells, ok := labels[r.Series]
			if !ok {
				cells = make([]string, nl)
				if layout.LabelValues != nil {
					copy(cells, layout.LabelValues(r.Series))
				}
				labels[r.Series] = cells
			}
			copy(rec[2:2+nl], cells)
		}
		for i, c := range cols {
			rec[2+nl+i] = r.Values[c].String()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Open opens path for reading, transparently decompressing a ".gz" file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}

// ReadCSVFile reads a long CSV from path (see Open).
func ReadCSVFile(path string, layout Layout) (models.Frame, error) {
	r, err := Open(path)
	if err != nil {
		return models.Frame{}, err
	}
	defer r.Close()

	data, err := ReadCSV(r, layout)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// WriteCSVFile writes data to path, gzip compressing when path ends in ".gz".
// Parent directories are created. The file is written to a temporary name
// and renamed into place.
func WriteCSVFile(path string, data models.Frame, layout Layout, cols ...string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(tmp)
		if err = WriteCSV(gz, data, layout, cols...); err != nil {
			return err
		}
		if err = gz.Close(); err != nil {
			return err
		}
	} else if err = WriteCSV(tmp, data, layout, cols...); err != nil {
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
