package core

import (
	"fmt"
	"math"
)

// Sample is one experimental run: its scans in acquisition order and the
// peaks detected across them.
type Sample struct {
	Name string

	scans []*Scan
	peaks []Peak
}

// NewSample builds a sample with one scan per row. Any malformed row fails
// the whole sample.
func NewSample(name string, rows []Row) (*Sample, error) {
	s := &Sample{
		Name:  name,
		scans: make([]*Scan, 0, len(rows)),
	}
	for i, row := range rows {
		scan, err := NewScan(row)
		if err != nil {
			return nil, fmt.Errorf("sample %s row %d: %w", name, i, err)
		}
		s.scans = append(s.scans, scan)
	}
	return s, nil
}

// Scans returns the sample's scans in acquisition order.
func (s *Sample) Scans() []*Scan {
	return append([]*Scan(nil), s.scans...)
}

// Peaks returns a copy of the detected peaks.
func (s *Sample) Peaks() []Peak {
	return append([]Peak(nil), s.peaks...)
}

// PeakCount returns the number of detected peaks.
func (s *Sample) PeakCount() int {
	return len(s.peaks)
}

// AlignBaselines subtracts a polynomial baseline from every scan. A scan too
// short for the degree is left untouched and gets a warning.
func (s *Sample) AlignBaselines(degree int) error {
	if degree < 0 {
		return &ParameterError{Param: "degree", Value: degree, Reason: "must be >= 0"}
	}
	for _, scan := range s.scans {
		if err := scan.AlignBaseline(degree); err != nil {
			scan.warn("baseline", err)
		}
	}
	return nil
}

// FilterNoise applies Gaussian smoothing to every scan.
func (s *Sample) FilterNoise(sigma float64) error {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma < 0 {
		return &ParameterError{Param: "sigma", Value: sigma, Reason: "must be a finite value >= 0"}
	}
	for _, scan := range s.scans {
		if err := scan.FilterNoise(sigma); err != nil {
			scan.warn("noise", err)
		}
	}
	return nil
}

// DetectPeaks replaces the sample's peak collection with the peaks of every
// scan, concatenated in scan order.
func (s *Sample) DetectPeaks(threshold float64, minDistance int) error {
	if math.IsNaN(threshold) {
		return &ParameterError{Param: "threshold", Value: threshold, Reason: "must be a number"}
	}
	if minDistance < 0 {
		return &ParameterError{Param: "min_distance", Value: minDistance, Reason: "must be >= 0"}
	}

	s.peaks = nil
	for _, scan := range s.scans {
		peaks, err := scan.DetectPeaks(threshold, minDistance)
		if err != nil {
			scan.warn("peaks", err)
			continue
		}
		s.peaks = append(s.peaks, peaks...)
	}
	return nil
}

// Warnings returns the warnings of all scans in scan order.
func (s *Sample) Warnings() []Warning {
	var warnings []Warning
	for _, scan := range s.scans {
		warnings = append(warnings, scan.warnings...)
	}
	return warnings
}

func (s *Sample) String() string {
	return fmt.Sprintf("Sample(name=%s, scans=%d, peaks=%d)", s.Name, len(s.scans), len(s.peaks))
}
