// Package csv provides a streaming reader for scan tables stored as CSV, one
// scan per line with its m/z and intensity arrays written as bracketed lists.
//
// The header must name a retention time column (RT) and the two array columns
// (mzarray and intarray, or mz_array and intensity_array). Other columns, such
// as a leading index column, are ignored. Arrays may be written in numpy
// style ("[1.5 2.5]") or as Python lists ("[1.5, 2.5]"); elided "..."
// elements are skipped.
package csv

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

// Column names accepted for each field.
var (
	rtColumns        = []string{"RT", "rt", "retention_time"}
	mzColumns        = []string{"mzarray", "mz_array"}
	intensityColumns = []string{"intarray", "intensity_array"}
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("csv: missing column")

// Reader provides streaming access to scan rows.
type Reader struct {
	csv     *stdcsv.Reader
	rt      int
	mz      int
	intens  int
	started bool
	row     core.Row
	err     error
}

// NewReader creates a new CSV scan reader.
func NewReader(r io.Reader) *Reader {
	c := stdcsv.NewReader(r)
	c.ReuseRecord = true
	return &Reader{csv: c}
}

// Next advances to the next scan row. Returns false when there are no more
// rows or on error.
func (r *Reader) Next() bool {
	r.row = core.Row{}
	if r.err != nil {
		return false
	}
	if !r.started {
		r.started = true
		if err := r.readHeader(); err != nil {
			r.err = err
			return false
		}
	}

	record, err := r.csv.Read()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	row, err := r.parseRecord(record)
	if err != nil {
		line, _ := r.csv.FieldPos(0)
		r.err = fmt.Errorf("line %d: %w", line, err)
		return false
	}
	r.row = row
	return true
}

// Row returns the current scan row.
func (r *Reader) Row() core.Row {
	return r.row
}

// Err returns any error encountered during reading.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return err
	}

	find := func(names []string) (int, error) {
		for i, h := range header {
			h = strings.TrimSpace(h)
			for _, name := range names {
				if h == name {
					return i, nil
				}
			}
		}
		return 0, fmt.Errorf("%w %s", ErrMissingColumn, names[0])
	}
	if r.rt, err = find(rtColumns); err != nil {
		return err
	}
	if r.mz, err = find(mzColumns); err != nil {
		return err
	}
	if r.intens, err = find(intensityColumns); err != nil {
		return err
	}
	return nil
}

func (r *Reader) parseRecord(record []string) (core.Row, error) {
	rt, err := strconv.ParseFloat(strings.TrimSpace(record[r.rt]), 64)
	if err != nil {
		return core.Row{}, fmt.Errorf("invalid retention time: %w", err)
	}
	mz, err := ParseArray(record[r.mz])
	if err != nil {
		return core.Row{}, fmt.Errorf("invalid m/z array: %w", err)
	}
	intensity, err := ParseArray(record[r.intens])
	if err != nil {
		return core.Row{}, fmt.Errorf("invalid intensity array: %w", err)
	}
	return core.Row{RetentionTime: rt, MZ: mz, Intensity: intensity}, nil
}

// ParseArray parses a bracketed list of numbers separated by whitespace or
// commas. "..." elements are skipped.
func ParseArray(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	fields := strings.FieldsFunc(s, func(c rune) bool {
		return c == ',' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
	})

	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		if f == "..." {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
