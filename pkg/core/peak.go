package core

import (
	"fmt"
	"sort"
)

// Peak is a detected local intensity maximum. It is a value record: the m/z
// and intensity are copied out of the scan at detection time and Index is
// informational only, since later conditioning may rewrite the scan arrays.
type Peak struct {
	ScanID        string
	Index         int
	RetentionTime float64
	Intensity     float64
	MZ            float64
}

func (p Peak) String() string {
	return fmt.Sprintf("Peak(scan=%s, rt=%g, intensity=%g, mz=%g)", p.ScanID, p.RetentionTime, p.Intensity, p.MZ)
}

// Feature is one row of the final feature table.
type Feature struct {
	RetentionTime float64
	Intensity     float64
	MZ            float64
}

// SortPeaksByRetentionTime sorts peaks by ascending retention time, keeping
// the input order of equal retention times.
func SortPeaksByRetentionTime(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].RetentionTime < peaks[j].RetentionTime
	})
}
