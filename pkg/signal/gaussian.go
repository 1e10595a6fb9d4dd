package signal

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// gaussianTruncate is the kernel half-width in standard deviations.
const gaussianTruncate = 4.0

// GaussianKernel returns the normalised sampled Gaussian of standard deviation
// sigma, truncated at four standard deviations. The kernel has odd length
// 2*radius+1 with radius = int(4*sigma + 0.5).
func GaussianKernel(sigma float64) []float64 {
	radius := int(gaussianTruncate*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	if radius == 0 {
		kernel[0] = 1
		return kernel
	}
	s2 := sigma * sigma
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * x * x / s2)
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// GaussianFilter smooths y with a Gaussian kernel of standard deviation sigma
// and returns a new slice of the same length. Samples beyond either end are
// mirrored about the edge (d c b a | a b c d | d c b a). A zero sigma returns
// an unchanged copy.
func GaussianFilter(y []float64, sigma float64) ([]float64, error) {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma < 0 {
		return nil, fmt.Errorf("%w: sigma must be a finite value >= 0: %f", ErrInvalidParameter, sigma)
	}
	out := make([]float64, len(y))
	if sigma == 0 || len(y) == 0 {
		copy(out, y)
		return out, nil
	}

	kernel := GaussianKernel(sigma)
	radius := len(kernel) / 2
	n := len(y)
	padded := make([]float64, n+2*radius)
	for i := range padded {
		padded[i] = y[reflect(i-radius, n)]
	}

	prod := make([]float64, len(kernel))
	for i := range out {
		vecmath.MulBlock(prod, padded[i:i+len(kernel)], kernel)
		out[i] = floats.Sum(prod)
	}
	return out, nil
}

// reflect maps an out of range index onto [0, n) by mirroring about the
// array edges, repeating as often as needed for kernels wider than the data.
func reflect(i, n int) int {
	period := 2 * n
	m := i % period
	if m < 0 {
		m += period
	}
	if m >= n {
		m = period - 1 - m
	}
	return m
}
