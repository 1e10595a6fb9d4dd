// Package normalize maps peak intensities onto a common scale.
package normalize

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

// MaxQuantiles caps the number of reference quantiles.
const MaxQuantiles = 1000

// boundsThreshold is the tolerance for values at the ends of the empirical
// distribution; such values map exactly to 0 or 1.
const boundsThreshold = 1e-7

// Quantile maps values onto their empirical cumulative distribution in [0, 1]
// using min(MaxQuantiles, n) evenly spaced linear percentiles. Tied values map
// to the middle of their rank range. The minimum maps to 0 and the maximum to
// 1; a single value maps to 0.
func Quantile(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	nq := min(MaxQuantiles, n)
	references := make([]float64, nq)
	if nq > 1 {
		floats.Span(references, 0, 1)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	quantiles := make([]float64, nq)
	for i, p := range references {
		quantiles[i] = percentile(sorted, p)
		if i > 0 && quantiles[i] < quantiles[i-1] {
			quantiles[i] = quantiles[i-1]
		}
	}

	// Interpolating forwards picks the last of a run of equal quantiles,
	// backwards the first; their mean is the middle of the run.
	negQuantiles := make([]float64, nq)
	negReferences := make([]float64, nq)
	for i := range quantiles {
		negQuantiles[i] = -quantiles[nq-1-i]
		negReferences[i] = -references[nq-1-i]
	}

	lower, upper := quantiles[0], quantiles[nq-1]
	for i, v := range values {
		switch {
		case v-boundsThreshold < lower:
			out[i] = 0
		case v+boundsThreshold > upper:
			out[i] = 1
		default:
			out[i] = 0.5 * (interp(v, quantiles, references) - interp(-v, negQuantiles, negReferences))
		}
	}
	return out
}

// Peaks returns new peaks whose intensities are replaced by their quantile
// normalised values. Every other field is copied. A single peak is returned
// unchanged.
func Peaks(peaks []core.Peak) []core.Peak {
	out := append([]core.Peak(nil), peaks...)
	if len(out) < 2 {
		return out
	}
	intensities := make([]float64, len(peaks))
	for i, p := range peaks {
		intensities[i] = p.Intensity
	}
	for i, v := range Quantile(intensities) {
		out[i].Intensity = v
	}
	return out
}

// percentile returns the p-th quantile (p in [0, 1]) of sorted values with
// linear interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// interp is piecewise linear interpolation of (xp, fp) at x. xp must be non
// decreasing; for repeated xp the last matching point is used.
func interp(x float64, xp, fp []float64) float64 {
	last := len(xp) - 1
	switch {
	case x < xp[0]:
		return fp[0]
	case x >= xp[last]:
		return fp[last]
	}
	j := sort.Search(len(xp), func(i int) bool { return xp[i] > x }) - 1
	return fp[j] + (fp[j+1]-fp[j])*(x-xp[j])/(xp[j+1]-xp[j])
}
