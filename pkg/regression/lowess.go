// Package regression provides local regression smoothing behind a narrow
// Smoother interface so the numerical engine can be swapped without touching
// the alignment code.
package regression

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Smoother fits y as a smooth function of x and returns the fitted values in
// the input order. frac is the share of points used for each local fit.
type Smoother interface {
	Smooth(x, y []float64, frac float64) ([]float64, error)
}

// Lowess is locally weighted linear regression with tricube distance weights
// and bisquare robustifying iterations (Cleveland 1979).
type Lowess struct {
	// Iterations is the number of robustifying passes after the initial fit.
	Iterations int
}

// NewLowess returns a Lowess smoother with three robustifying iterations.
func NewLowess() *Lowess {
	return &Lowess{Iterations: 3}
}

// Smooth implements Smoother. Each point is fitted from its k nearest
// neighbours in x, k = frac*n clamped to [2, n]. Fewer than two points are
// returned unchanged.
func (l *Lowess) Smooth(x, y []float64, frac float64) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("lowess: x has %d values, y has %d", len(x), len(y))
	}
	if math.IsNaN(frac) || frac <= 0 || frac > 1 {
		return nil, fmt.Errorf("lowess: fraction must be in (0, 1]: %f", frac)
	}
	n := len(x)
	if n < 2 {
		return append([]float64(nil), y...), nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, idx := range order {
		xs[i] = x[idx]
		ys[i] = y[idx]
	}

	k := int(frac*float64(n) + 1e-10)
	k = min(max(k, 2), n)

	robust := make([]float64, n)
	for i := range robust {
		robust[i] = 1
	}
	fitted := make([]float64, n)
	for it := 0; it <= l.Iterations; it++ {
		fitPass(xs, ys, robust, k, fitted)
		if it == l.Iterations || !updateRobustWeights(ys, fitted, robust) {
			break
		}
	}

	out := make([]float64, n)
	for i, idx := range order {
		out[idx] = fitted[i]
	}
	return out, nil
}

// fitPass computes one locally weighted fit for every point of the sorted xs.
func fitPass(xs, ys, robust []float64, k int, fitted []float64) {
	n := len(xs)
	weights := make([]float64, k)
	left, right := 0, k // window is [left, right)
	for i, xi := range xs {
		for right < n && xi-xs[left] > xs[right]-xi {
			left++
			right++
		}

		radius := math.Max(xi-xs[left], xs[right-1]-xi)
		nonZero := 0
		for j := left; j < right; j++ {
			w := 1.0
			if radius > 0 {
				d := math.Abs(xs[j]-xi) / radius
				switch {
				case d > 0.999:
					w = 0
				case d > 0.001:
					c := 1 - d*d*d
					w = c * c * c
				}
			}
			weights[j-left] = w * robust[j]
			if weights[j-left] > 0 {
				nonZero++
			}
		}

		if nonZero < 2 {
			fitted[i] = ys[i]
			continue
		}
		fitted[i] = localFit(xs[left:right], ys[left:right], weights, xi)
	}
}

// localFit evaluates the weighted least squares line at xi. A window with no
// spread in x falls back to the weighted mean.
func localFit(x, y, w []float64, xi float64) float64 {
	// Rescale so the largest weight is one: gonum's weighted moments divide
	// by sum(w)-1, which must not vanish.
	wmax := floats.Max(w)
	scaled := make([]float64, len(w))
	floats.ScaleTo(scaled, 1/wmax, w)

	first := math.NaN()
	spread := false
	for j, v := range x {
		if scaled[j] == 0 {
			continue
		}
		if math.IsNaN(first) {
			first = v
		} else if v != first {
			spread = true
			break
		}
	}
	if !spread {
		return stat.Mean(y, scaled)
	}
	alpha, beta := stat.LinearRegression(x, y, scaled, false)
	return alpha + beta*xi
}

// updateRobustWeights sets bisquare weights from the residuals, scaled by six
// times their median absolute value. It reports false when the residuals are
// all zero and further iterations would not change the fit.
func updateRobustWeights(y, fitted, robust []float64) bool {
	abs := make([]float64, len(y))
	for i := range y {
		abs[i] = math.Abs(y[i] - fitted[i])
	}
	m := median(abs)
	if m <= 0 {
		return false
	}
	scale := 6 * m
	for i, r := range abs {
		u := r / scale
		if u >= 1 {
			robust[i] = 0
			continue
		}
		c := 1 - u*u
		robust[i] = c * c
	}
	return true
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
