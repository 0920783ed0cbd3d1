package adapters

import (
	"context"
	"fmt"

	"github.com/HatiCode/loadcast/pkg/dataio"
	"github.com/HatiCode/loadcast/pkg/models"
)

// File formats understood by FileAdapter.
const (
	FormatLong = "long"
	FormatOPSD = "opsd"
)

// FileAdapter reads observations from a local CSV file, gzip compressed
// when the path ends in ".gz".
type FileAdapter struct {
	Path string

	// Format is FormatLong (series, time and value columns) or FormatOPSD
	// (the wide OPSD export). Default FormatLong.
	Format string

	// Layout of a long file.
	Layout dataio.Layout

	// Countries and Output apply to OPSD files, see dataio.OPSDOptions.
	Countries []string
	Output    string
}

func (f *FileAdapter) Name() string { return "file" }

// Collect implements Adapter. The file is re-read on every call.
func (f *FileAdapter) Collect(ctx context.Context, w Window) (models.Frame, error) {
	if err := w.Validate(); err != nil {
		return models.Frame{}, fmt.Errorf("file adapter: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	var (
		frame models.Frame
		err   error
	)
	switch f.Format {
	case "", FormatLong:
		frame, err = dataio.ReadCSVFile(f.Path, f.Layout)
	case FormatOPSD:
		frame, err = dataio.ReadOPSDFile(f.Path, dataio.OPSDOptions{
			Countries: f.Countries,
			Output:    f.Output,
		})
	default:
		return models.Frame{}, fmt.Errorf("unknown file format %q (must be %s or %s)", f.Format, FormatLong, FormatOPSD)
	}
	if err != nil {
		return models.Frame{}, err
	}

	if len(f.Countries) > 0 && f.Format != FormatOPSD {
		keep := make(map[string]bool, len(f.Countries))
		for _, c := range f.Countries {
			keep[c] = true
		}
		frame = frame.Filter(func(r models.Row) bool { return keep[r.Series] })
	}
	return w.Clip(frame), nil
}
