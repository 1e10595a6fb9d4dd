// Package cluster groups peaks by density over their standardised m/z.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

// Noise is the label of values that belong to no cluster.
const Noise = -1

// Default clustering settings, in standardised units.
const (
	DefaultRadius       = 0.16
	DefaultMinNeighbors = 2
)

// Clusterer assigns a cluster label to each value. Only label equality is
// meaningful; the numbering itself carries no information.
type Clusterer interface {
	Cluster(values []float64, radius float64, minNeighbors int) ([]int, error)
}

// DBSCAN is density based clustering over one dimension. A value is a core
// value when at least minNeighbors values, itself included, lie within radius
// (inclusive). Clusters are numbered from 0 in the order their first core
// value appears in the input.
type DBSCAN struct{}

// Cluster implements Clusterer.
func (DBSCAN) Cluster(values []float64, radius float64, minNeighbors int) ([]int, error) {
	if err := validate(radius, minNeighbors); err != nil {
		return nil, err
	}
	n := len(values)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n == 0 {
		return labels, nil
	}
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("cluster: value %d is NaN", i)
		}
	}

	// In one dimension every neighbourhood is a contiguous run of the sorted
	// values: [from[r], to[r]) for the value of rank r.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
	rank := make([]int, n)
	for r, idx := range order {
		rank[idx] = r
	}
	from := make([]int, n)
	to := make([]int, n)
	lo, hi := 0, 0
	for r, idx := range order {
		v := values[idx]
		for v-values[order[lo]] > radius {
			lo++
		}
		for hi < n && values[order[hi]]-v <= radius {
			hi++
		}
		from[r], to[r] = lo, hi
	}
	isCore := func(idx int) bool {
		r := rank[idx]
		return to[r]-from[r] >= minNeighbors
	}

	next := 0
	var stack []int
	for i := range values {
		if labels[i] != Noise || !isCore(i) {
			continue
		}
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if labels[p] != Noise {
				continue
			}
			labels[p] = next
			if !isCore(p) {
				continue
			}
			r := rank[p]
			for _, q := range order[from[r]:to[r]] {
				if labels[q] == Noise {
					stack = append(stack, q)
				}
			}
		}
		next++
	}
	return labels, nil
}

func validate(radius float64, minNeighbors int) error {
	if math.IsNaN(radius) || radius <= 0 {
		return &core.ParameterError{Param: "radius", Value: radius, Reason: "must be > 0"}
	}
	if minNeighbors < 1 {
		return &core.ParameterError{Param: "min_neighbors", Value: minNeighbors, Reason: "must be >= 1"}
	}
	return nil
}

// Standardize returns the values shifted to zero mean and scaled to unit
// population standard deviation. Values with no spread are only centred.
func Standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// LabeledPeak is a peak with its cluster label.
type LabeledPeak struct {
	core.Peak
	Label int
}

// Peaks clusters peaks over their standardised m/z and returns the peaks that
// belong to a cluster, in input order. Noise peaks are dropped.
func Peaks(peaks []core.Peak, c Clusterer, radius float64, minNeighbors int) ([]LabeledPeak, error) {
	if err := validate(radius, minNeighbors); err != nil {
		return nil, err
	}
	if len(peaks) == 0 {
		return nil, nil
	}
	mz := make([]float64, len(peaks))
	for i, p := range peaks {
		mz[i] = p.MZ
	}
	labels, err := c.Cluster(Standardize(mz), radius, minNeighbors)
	if err != nil {
		return nil, fmt.Errorf("clustering %d peaks: %w", len(peaks), err)
	}
	if len(labels) != len(peaks) {
		return nil, fmt.Errorf("clustering %d peaks: got %d labels", len(peaks), len(labels))
	}

	var labeled []LabeledPeak
	for i, p := range peaks {
		if labels[i] == Noise {
			continue
		}
		labeled = append(labeled, LabeledPeak{Peak: p, Label: labels[i]})
	}
	return labeled, nil
}
