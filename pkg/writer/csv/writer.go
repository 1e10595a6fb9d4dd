// Package csv writes feature tables, peak dumps and scan tables as CSV.
package csv

import (
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msalign/pkg/align"
	"github.com/ChrisMcGann/msalign/pkg/core"
)

var (
	featureHeader = []string{"RT", "intensity", "m/z"}
	peakHeader    = []string{"Peak Index", "Retention Time", "Intensity", "m/z"}
	rowHeader     = []string{"RT", "intarray", "mzarray"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatArray writes values as a bracketed, space separated list.
func FormatArray(values []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatFloat(v))
	}
	b.WriteByte(']')
	return b.String()
}

// WriteFeatures writes the feature table with an RT,intensity,m/z header.
func WriteFeatures(w io.Writer, features []core.Feature) error {
	cw := stdcsv.NewWriter(w)
	if err := cw.Write(featureHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, f := range features {
		if err := cw.Write([]string{formatFloat(f.RetentionTime), formatFloat(f.Intensity), formatFloat(f.MZ)}); err != nil {
			return fmt.Errorf("failed to write feature: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatches writes each match as two peak rows, the reference side first.
func WriteMatches(w io.Writer, matches []align.Match) error {
	peaks := make([]core.Peak, 0, 2*len(matches))
	for _, m := range matches {
		peaks = append(peaks, m.Reference, m.Candidate)
	}
	return writePeaks(w, peaks)
}

// WritePeaks writes peaks sorted by m/z, then retention time.
func WritePeaks(w io.Writer, peaks []core.Peak) error {
	sorted := append([]core.Peak(nil), peaks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MZ != sorted[j].MZ {
			return sorted[i].MZ < sorted[j].MZ
		}
		return sorted[i].RetentionTime < sorted[j].RetentionTime
	})
	return writePeaks(w, sorted)
}

func writePeaks(w io.Writer, peaks []core.Peak) error {
	cw := stdcsv.NewWriter(w)
	if err := cw.Write(peakHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range peaks {
		record := []string{
			strconv.Itoa(p.Index),
			formatFloat(p.RetentionTime),
			formatFloat(p.Intensity),
			formatFloat(p.MZ),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write peak: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RowWriter writes scan rows in the layout read by the csv reader.
type RowWriter struct {
	csv     *stdcsv.Writer
	started bool
	count   int
}

// NewRowWriter creates a scan row writer.
func NewRowWriter(w io.Writer) *RowWriter {
	return &RowWriter{csv: stdcsv.NewWriter(w)}
}

// Write writes one scan row, preceded by the header on first use.
func (w *RowWriter) Write(row core.Row) error {
	if !w.started {
		w.started = true
		if err := w.csv.Write(rowHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	record := []string{formatFloat(row.RetentionTime), FormatArray(row.Intensity), FormatArray(row.MZ)}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of rows written.
func (w *RowWriter) Count() int {
	return w.count
}

// Close writes the header if nothing was written and flushes the output.
func (w *RowWriter) Close() error {
	if !w.started {
		w.started = true
		if err := w.csv.Write(rowHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	w.csv.Flush()
	return w.csv.Error()
}
