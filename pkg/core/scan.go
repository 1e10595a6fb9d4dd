// Package core provides the data model of the alignment pipeline: scans,
// samples, detected peaks and the final feature rows.
package core

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/msalign/pkg/signal"
)

// Row is one parsed input line: a retention time with index-aligned m/z and
// intensity arrays.
type Row struct {
	RetentionTime float64
	MZ            []float64
	Intensity     []float64
}

// Validate checks that the row can become a scan.
func (r Row) Validate() error {
	var errs []string

	if math.IsNaN(r.RetentionTime) || math.IsInf(r.RetentionTime, 0) {
		errs = append(errs, "retention time must be finite")
	}
	if len(r.MZ) != len(r.Intensity) {
		errs = append(errs, fmt.Sprintf("m/z array has %d values, intensity array has %d", len(r.MZ), len(r.Intensity)))
	}
	for i, v := range r.MZ {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("m/z %d is not a finite number", i))
			break
		}
	}
	for i, v := range r.Intensity {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("intensity %d is not a finite number", i))
			break
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Row",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// Scan is one acquisition timepoint. The m/z and intensity arrays always have
// the same length; conditioning rewrites intensities in place.
type Scan struct {
	ID            string
	RetentionTime float64

	mz        []float64
	intensity []float64
	warnings  []Warning
}

// NewScan validates row and builds a scan with a fresh identifier. The arrays
// are copied.
func NewScan(row Row) (*Scan, error) {
	if err := row.Validate(); err != nil {
		return nil, err
	}
	return &Scan{
		ID:            uuid.NewString(),
		RetentionTime: row.RetentionTime,
		mz:            append([]float64(nil), row.MZ...),
		intensity:     append([]float64(nil), row.Intensity...),
	}, nil
}

// Len returns the number of points in the scan.
func (s *Scan) Len() int {
	return len(s.mz)
}

// MZ returns a copy of the m/z array.
func (s *Scan) MZ() []float64 {
	return append([]float64(nil), s.mz...)
}

// Intensity returns a copy of the current intensity array.
func (s *Scan) Intensity() []float64 {
	return append([]float64(nil), s.intensity...)
}

// Warnings returns the numerical warnings recorded for the scan.
func (s *Scan) Warnings() []Warning {
	return append([]Warning(nil), s.warnings...)
}

func (s *Scan) warn(stage string, err error) {
	s.warnings = append(s.warnings, Warning{ScanID: s.ID, Stage: stage, Err: err})
}

// AlignBaseline fits a polynomial baseline of the given degree and subtracts
// it from the intensities. Negative results are kept. An ill-conditioned fit
// is applied anyway and recorded as a warning.
func (s *Scan) AlignBaseline(degree int) error {
	if degree < 0 {
		return &ParameterError{Param: "degree", Value: degree, Reason: "must be >= 0"}
	}
	if len(s.intensity) < degree+1 {
		return &ParameterError{
			Param:  "degree",
			Value:  degree,
			Reason: fmt.Sprintf("scan %s has %d points, needs at least %d", s.ID, len(s.intensity), degree+1),
		}
	}

	base, err := signal.Baseline(s.intensity, degree)
	if err != nil {
		if !errors.Is(err, signal.ErrIllConditioned) {
			return fmt.Errorf("baseline of scan %s: %w", s.ID, err)
		}
		s.warn("baseline", err)
	}
	for i := range s.intensity {
		s.intensity[i] -= base[i]
	}
	return nil
}

// FilterNoise smooths the intensities with a Gaussian kernel of standard
// deviation sigma. Sparse scans need a smaller sigma to keep real peaks.
func (s *Scan) FilterNoise(sigma float64) error {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma < 0 {
		return &ParameterError{Param: "sigma", Value: sigma, Reason: "must be a finite value >= 0"}
	}
	smoothed, err := signal.GaussianFilter(s.intensity, sigma)
	if err != nil {
		return fmt.Errorf("noise filter of scan %s: %w", s.ID, err)
	}
	s.intensity = smoothed
	return nil
}

// DetectPeaks returns one Peak per local maximum above threshold, at least
// minDistance points apart. The scan is not modified.
func (s *Scan) DetectPeaks(threshold float64, minDistance int) ([]Peak, error) {
	if math.IsNaN(threshold) {
		return nil, &ParameterError{Param: "threshold", Value: threshold, Reason: "must be a number"}
	}
	if minDistance < 0 {
		return nil, &ParameterError{Param: "min_distance", Value: minDistance, Reason: "must be >= 0"}
	}

	indexes, err := signal.PeakIndexes(s.intensity, threshold, minDistance)
	if err != nil {
		return nil, fmt.Errorf("peak detection of scan %s: %w", s.ID, err)
	}
	peaks := make([]Peak, 0, len(indexes))
	for _, idx := range indexes {
		peaks = append(peaks, Peak{
			ScanID:        s.ID,
			Index:         idx,
			RetentionTime: s.RetentionTime,
			Intensity:     s.intensity[idx],
			MZ:            s.mz[idx],
		})
	}
	return peaks, nil
}

func (s *Scan) String() string {
	return fmt.Sprintf("Scan(rt=%g, points=%d, id=%s)", s.RetentionTime, len(s.mz), s.ID)
}
