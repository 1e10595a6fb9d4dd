package core

import (
	"errors"
	"math"
	"testing"
)

func peakRow(rt float64, n int, centers ...int) Row {
	row := Row{
		RetentionTime: rt,
		MZ:            make([]float64, n),
		Intensity:     make([]float64, n),
	}
	for i := 0; i < n; i++ {
		row.MZ[i] = 100 + 0.01*float64(i)
		for _, c := range centers {
			d := float64(i-c) / 3
			row.Intensity[i] += 1000 * math.Exp(-0.5*d*d)
		}
	}
	return row
}

func TestRowValidation(t *testing.T) {
	tests := []struct {
		name    string
		row     Row
		wantErr bool
	}{
		{
			name:    "valid row",
			row:     Row{RetentionTime: 1.5, MZ: []float64{100, 101}, Intensity: []float64{10, 20}},
			wantErr: false,
		},
		{
			name:    "empty row",
			row:     Row{RetentionTime: 1.5},
			wantErr: false,
		},
		{
			name:    "length mismatch",
			row:     Row{RetentionTime: 1.5, MZ: []float64{100, 101}, Intensity: []float64{10}},
			wantErr: true,
		},
		{
			name:    "NaN intensity",
			row:     Row{RetentionTime: 1.5, MZ: []float64{100}, Intensity: []float64{math.NaN()}},
			wantErr: true,
		},
		{
			name:    "infinite m/z",
			row:     Row{RetentionTime: 1.5, MZ: []float64{math.Inf(1)}, Intensity: []float64{1}},
			wantErr: true,
		},
		{
			name:    "NaN retention time",
			row:     Row{RetentionTime: math.NaN(), MZ: []float64{100}, Intensity: []float64{1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.row.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var vErr *ValidationError
			if err != nil && !errors.As(err, &vErr) {
				t.Errorf("Validate() error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestNewScanCopiesArrays(t *testing.T) {
	row := Row{RetentionTime: 3, MZ: []float64{100, 101}, Intensity: []float64{5, 6}}
	scan, err := NewScan(row)
	if err != nil {
		t.Fatalf("NewScan() error = %v", err)
	}
	row.Intensity[0] = 99
	if scan.Intensity()[0] != 5 {
		t.Error("scan shares the caller's intensity array")
	}
	if scan.ID == "" {
		t.Error("scan has no identifier")
	}
	other, _ := NewScan(row)
	if other.ID == scan.ID {
		t.Error("scan identifiers are not unique")
	}
}

func TestScanAlignBaselineKeepsLength(t *testing.T) {
	scan, err := NewScan(peakRow(10, 120, 60))
	if err != nil {
		t.Fatalf("NewScan() error = %v", err)
	}
	if err := scan.AlignBaseline(4); err != nil {
		t.Fatalf("AlignBaseline() error = %v", err)
	}
	if scan.Len() != 120 || len(scan.Intensity()) != 120 || len(scan.MZ()) != 120 {
		t.Errorf("array lengths changed: mz=%d intensity=%d", len(scan.MZ()), len(scan.Intensity()))
	}
}

func TestScanAlignBaselineZero(t *testing.T) {
	scan, _ := NewScan(Row{RetentionTime: 1, MZ: make([]float64, 20), Intensity: make([]float64, 20)})
	if err := scan.AlignBaseline(3); err != nil {
		t.Fatalf("AlignBaseline() error = %v", err)
	}
	for i, v := range scan.Intensity() {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("intensity[%d] = %g, want 0", i, v)
		}
	}
}

func TestScanParameterErrors(t *testing.T) {
	scan, _ := NewScan(Row{RetentionTime: 1, MZ: []float64{1, 2, 3}, Intensity: []float64{1, 2, 1}})

	tests := []struct {
		name  string
		run   func() error
		param string
	}{
		{"negative degree", func() error { return scan.AlignBaseline(-1) }, "degree"},
		{"degree too high", func() error { return scan.AlignBaseline(3) }, "degree"},
		{"negative sigma", func() error { return scan.FilterNoise(-0.5) }, "sigma"},
		{"NaN sigma", func() error { return scan.FilterNoise(math.NaN()) }, "sigma"},
		{"negative distance", func() error { _, err := scan.DetectPeaks(0, -2); return err }, "min_distance"},
		{"NaN threshold", func() error { _, err := scan.DetectPeaks(math.NaN(), 1); return err }, "threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pErr *ParameterError
			err := tt.run()
			if !errors.As(err, &pErr) {
				t.Fatalf("error = %v, want *ParameterError", err)
			}
			if pErr.Param != tt.param {
				t.Errorf("Param = %s, want %s", pErr.Param, tt.param)
			}
		})
	}
}

func TestScanFilterNoiseConstant(t *testing.T) {
	row := Row{RetentionTime: 1, MZ: make([]float64, 15), Intensity: make([]float64, 15)}
	for i := range row.Intensity {
		row.Intensity[i] = 7
	}
	scan, _ := NewScan(row)
	if err := scan.FilterNoise(2); err != nil {
		t.Fatalf("FilterNoise() error = %v", err)
	}
	got := scan.Intensity()
	if len(got) != 15 {
		t.Fatalf("len = %d, want 15", len(got))
	}
	for i, v := range got {
		if math.Abs(v-7) > 1e-9 {
			t.Errorf("intensity[%d] = %g, want 7", i, v)
		}
	}
}

func TestScanDetectPeaks(t *testing.T) {
	scan, _ := NewScan(peakRow(42, 100, 20, 70))
	before := scan.Intensity()

	peaks, err := scan.DetectPeaks(500, 10)
	if err != nil {
		t.Fatalf("DetectPeaks() error = %v", err)
	}
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2", len(peaks))
	}
	for i, p := range peaks {
		if p.ScanID != scan.ID {
			t.Errorf("peak %d scan id = %s, want %s", i, p.ScanID, scan.ID)
		}
		if p.RetentionTime != 42 {
			t.Errorf("peak %d rt = %g, want 42", i, p.RetentionTime)
		}
		if p.MZ != scan.MZ()[p.Index] || p.Intensity != before[p.Index] {
			t.Errorf("peak %d values not read from index %d", i, p.Index)
		}
	}
	if peaks[0].Index != 20 || peaks[1].Index != 70 {
		t.Errorf("indexes = %d, %d, want 20, 70", peaks[0].Index, peaks[1].Index)
	}

	after := scan.Intensity()
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("DetectPeaks modified the scan")
		}
	}
}

func TestScanDetectPeaksBelowThreshold(t *testing.T) {
	scan, _ := NewScan(peakRow(1, 50, 25))
	peaks, err := scan.DetectPeaks(5000, 1)
	if err != nil {
		t.Fatalf("DetectPeaks() error = %v", err)
	}
	if len(peaks) != 0 {
		t.Errorf("got %d peaks, want 0", len(peaks))
	}
}
