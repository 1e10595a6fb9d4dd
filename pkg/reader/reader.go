// Package reader opens sample files and turns them into core samples.
package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/msalign/pkg/core"
	"github.com/ChrisMcGann/msalign/pkg/reader/csv"
	"github.com/ChrisMcGann/msalign/pkg/reader/mzml"
)

// RowReader streams scan rows. Next advances, Row returns the current row,
// and Err reports the error that stopped iteration, if any.
type RowReader interface {
	Next() bool
	Row() core.Row
	Err() error
}

// Format identifies an input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatMzML Format = "mzml"
)

// DetectFormat infers the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".mzml":
		return FormatMzML, nil
	}
	return "", fmt.Errorf("unknown input format for %s (expected .csv or .mzML)", path)
}

// ReadAll drains r.
func ReadAll(r RowReader) ([]core.Row, error) {
	var rows []core.Row
	for r.Next() {
		rows = append(rows, r.Row())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadRows reads every scan row of a CSV or mzML file.
func ReadRows(path string) ([]core.Row, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	var r RowReader
	switch format {
	case FormatCSV:
		r = csv.NewReader(f)
	case FormatMzML:
		r = mzml.NewReader(f)
	}
	rows, err := ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return rows, nil
}

// ReadSample reads a file into a sample named after the file.
func ReadSample(path string) (*core.Sample, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	return core.NewSample(filepath.Base(path), rows)
}
