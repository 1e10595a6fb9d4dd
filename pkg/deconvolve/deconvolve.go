// Package deconvolve reduces clustered peaks to one feature per cluster.
package deconvolve

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/msalign/pkg/cluster"
	"github.com/ChrisMcGann/msalign/pkg/core"
)

// ErrNoFeatures is returned when no cluster survives to be deconvolved.
var ErrNoFeatures = errors.New("deconvolve: no features found")

// Deconvolve returns one feature per cluster label, in ascending label order.
// The retention time and intensity come from the first peak with the highest
// intensity in the cluster; the m/z is the mean m/z of the whole cluster.
// Noise labelled peaks are ignored.
func Deconvolve(peaks []cluster.LabeledPeak) ([]core.Feature, error) {
	groups := make(map[int][]core.Peak)
	for _, p := range peaks {
		if p.Label == cluster.Noise {
			continue
		}
		groups[p.Label] = append(groups[p.Label], p.Peak)
	}
	if len(groups) == 0 {
		return nil, ErrNoFeatures
	}

	labels := make([]int, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	features := make([]core.Feature, 0, len(labels))
	for _, label := range labels {
		group := groups[label]
		best := group[0]
		mz := make([]float64, len(group))
		for i, p := range group {
			mz[i] = p.MZ
			if p.Intensity > best.Intensity {
				best = p
			}
		}
		features = append(features, core.Feature{
			RetentionTime: best.RetentionTime,
			Intensity:     best.Intensity,
			MZ:            stat.Mean(mz, nil),
		})
	}
	return features, nil
}
