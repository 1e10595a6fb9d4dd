package signal

import (
	"fmt"
	"math"
	"sort"
)

// PeakIndexes returns the indices of the local maxima of y whose value is
// strictly greater than threshold, in ascending order.
//
// Maxima are located on the sign change of the first difference. Flat tops
// are resolved by splitting the plateau at its median: the left half takes
// the slope entering the plateau and the right half the slope leaving it, so
// a plateau yields a single maximum at its centre. Plateaus touching either
// end of the curve take the slope of their only neighbour.
//
// When minDist > 1, maxima are visited by decreasing value (earlier index
// first on equal values) and every lower maximum within minDist samples of a
// kept one is dropped, so no two returned indices are closer than minDist.
func PeakIndexes(y []float64, threshold float64, minDist int) ([]int, error) {
	if math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: threshold is NaN", ErrInvalidParameter)
	}
	if minDist < 0 {
		return nil, fmt.Errorf("%w: minimum distance must be >= 0: %d", ErrInvalidParameter, minDist)
	}
	n := len(y)
	if n < 3 {
		return nil, nil
	}

	dy := make([]float64, n-1)
	var zeros []int
	for i := range dy {
		dy[i] = y[i+1] - y[i]
		if dy[i] == 0 {
			zeros = append(zeros, i)
		}
	}
	if len(zeros) == len(dy) {
		return nil, nil
	}
	if len(zeros) > 0 {
		resolvePlateaus(dy, zeros)
	}

	var peaks []int
	for i := 1; i < n-1; i++ {
		if dy[i] < 0 && dy[i-1] > 0 && y[i] > threshold {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) <= 1 || minDist <= 1 {
		return peaks, nil
	}

	highest := append([]int(nil), peaks...)
	sort.SliceStable(highest, func(a, b int) bool {
		return y[highest[a]] > y[highest[b]]
	})
	removed := make([]bool, n)
	for i := range removed {
		removed[i] = true
	}
	for _, p := range peaks {
		removed[p] = false
	}
	for _, p := range highest {
		if removed[p] {
			continue
		}
		lo := max(0, p-minDist)
		hi := min(n, p+minDist+1)
		for k := lo; k < hi; k++ {
			removed[k] = true
		}
		removed[p] = false
	}

	kept := peaks[:0]
	for i, r := range removed {
		if !r {
			kept = append(kept, i)
		}
	}
	return kept, nil
}

// resolvePlateaus rewrites the zero entries of dy, grouped into runs of
// consecutive indices.
func resolvePlateaus(dy []float64, zeros []int) {
	var runs [][]int
	start := 0
	for i := 1; i <= len(zeros); i++ {
		if i == len(zeros) || zeros[i] != zeros[i-1]+1 {
			runs = append(runs, zeros[start:i])
			start = i
		}
	}

	if first := runs[0]; first[0] == 0 {
		fill := dy[first[len(first)-1]+1]
		for _, z := range first {
			dy[z] = fill
		}
		runs = runs[1:]
	}
	if len(runs) > 0 {
		if last := runs[len(runs)-1]; last[len(last)-1] == len(dy)-1 {
			fill := dy[last[0]-1]
			for _, z := range last {
				dy[z] = fill
			}
			runs = runs[:len(runs)-1]
		}
	}

	for _, run := range runs {
		left := dy[run[0]-1]
		right := dy[run[len(run)-1]+1]
		median := float64(run[0]+run[len(run)-1]) / 2
		for _, z := range run {
			if float64(z) < median {
				dy[z] = left
			} else {
				dy[z] = right
			}
		}
	}
}
