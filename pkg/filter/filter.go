// Package filter provides feature table filtering
package filter

import (
	"sort"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

// Config holds filtering configuration. Zero values disable a filter.
type Config struct {
	TopN            int     // Keep only top N most intense features (0 = no limit)
	IntensityCutoff float64 // Keep only features at or above this % of the most intense one (0 = no cutoff)
	MinMZ           float64 // Lower m/z bound, inclusive (0 = none)
	MaxMZ           float64 // Upper m/z bound, inclusive (0 = none)
	MinRT           float64 // Lower retention time bound, inclusive (0 = none)
	MaxRT           float64 // Upper retention time bound, inclusive (0 = none)
}

// Enabled reports whether any filter is configured
func (c *Config) Enabled() bool {
	return c.TopN > 0 || c.IntensityCutoff > 0 || c.MinMZ != 0 || c.MaxMZ != 0 || c.MinRT != 0 || c.MaxRT != 0
}

// Apply applies all configured filters and returns the surviving features in
// their input order. The input slice is not modified.
func (c *Config) Apply(features []core.Feature) []core.Feature {
	// Range filters first
	filtered := c.filterByRange(features)

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		filtered = c.filterByIntensity(filtered)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		filtered = c.filterTopN(filtered)
	}

	return filtered
}

// filterByRange keeps features inside the m/z and retention time windows
func (c *Config) filterByRange(features []core.Feature) []core.Feature {
	filtered := make([]core.Feature, 0, len(features))
	for _, f := range features {
		if c.MinMZ != 0 && f.MZ < c.MinMZ {
			continue
		}
		if c.MaxMZ != 0 && f.MZ > c.MaxMZ {
			continue
		}
		if c.MinRT != 0 && f.RetentionTime < c.MinRT {
			continue
		}
		if c.MaxRT != 0 && f.RetentionTime > c.MaxRT {
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered
}

// filterByIntensity removes features below the intensity cutoff percentage
func (c *Config) filterByIntensity(features []core.Feature) []core.Feature {
	if len(features) == 0 {
		return features
	}

	// Find maximum intensity
	maxIntensity := features[0].Intensity
	for _, f := range features {
		if f.Intensity > maxIntensity {
			maxIntensity = f.Intensity
		}
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	var filtered []core.Feature
	for _, f := range features {
		if f.Intensity >= threshold {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense features, earliest first on ties
func (c *Config) filterTopN(features []core.Feature) []core.Feature {
	if len(features) <= c.TopN {
		return features
	}

	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return features[order[i]].Intensity > features[order[j]].Intensity
	})

	// Keep only top N, restoring input order
	keep := order[:c.TopN]
	sort.Ints(keep)
	filtered := make([]core.Feature, len(keep))
	for i, idx := range keep {
		filtered[i] = features[idx]
	}
	return filtered
}
