// Package signal provides the per-scan signal conditioning routines: iterative
// polynomial baseline estimation, Gaussian smoothing and local maximum
// detection. All functions work on plain intensity slices and never modify
// their input.
package signal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	baselineMaxIter = 100
	baselineTol     = 1e-3
)

// Baseline estimates the baseline of y with an iteratively clipped polynomial
// fit of the given degree. Points above the current fit are clipped to it and
// the polynomial is refitted until the relative change of the coefficients
// drops below 1e-3 or 100 iterations have run.
//
// The abscissa is scaled to [0, max|y|^(1/(degree+1))] to keep the
// Vandermonde matrix well conditioned. If the fit is still near singular the
// best-effort baseline is returned together with an error wrapping
// ErrIllConditioned.
func Baseline(y []float64, degree int) ([]float64, error) {
	if degree < 0 {
		return nil, fmt.Errorf("%w: degree must be >= 0: %d", ErrInvalidParameter, degree)
	}
	n := len(y)
	order := degree + 1
	if n < order {
		return nil, fmt.Errorf("%w: degree %d needs at least %d points, got %d",
			ErrInvalidParameter, degree, order, n)
	}

	maxAbs := 0.0
	for _, v := range y {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	if maxAbs == 0 {
		return make([]float64, n), nil
	}

	x := make([]float64, n)
	if n > 1 {
		floats.Span(x, 0, math.Pow(maxAbs, 1/float64(order)))
	}
	vander := mat.NewDense(n, order, nil)
	for i, xi := range x {
		p := 1.0
		for j := 0; j < order; j++ {
			vander.Set(i, j, p)
			p *= xi
		}
	}

	var qr mat.QR
	qr.Factorize(vander)

	work := append([]float64(nil), y...)
	base := append([]float64(nil), y...)
	coeffs := make([]float64, order)
	for i := range coeffs {
		coeffs[i] = 1
	}
	next := make([]float64, order)

	var warn error
	fitted := false
	var sol, fit mat.VecDense
	for it := 0; it < baselineMaxIter; it++ {
		err := qr.SolveVecTo(&sol, false, mat.NewVecDense(n, work))
		if err != nil {
			var c mat.Condition
			if !errors.As(err, &c) {
				return nil, fmt.Errorf("baseline fit: %w", err)
			}
			if math.IsInf(float64(c), 1) {
				// Singular system, nothing was solved.
				if !fitted {
					base = make([]float64, n)
				}
				return base, fmt.Errorf("%w: singular system", ErrIllConditioned)
			}
			warn = fmt.Errorf("%w: condition number %.3g", ErrIllConditioned, float64(c))
		}
		for i := range next {
			next[i] = sol.AtVec(i)
		}
		if floats.Distance(next, coeffs, 2)/floats.Norm(coeffs, 2) < baselineTol {
			break
		}
		copy(coeffs, next)
		fit.MulVec(vander, mat.NewVecDense(order, coeffs))
		for i := range base {
			base[i] = fit.AtVec(i)
		}
		fitted = true
		for i, b := range base {
			work[i] = math.Min(work[i], b)
		}
	}
	return base, warn
}
