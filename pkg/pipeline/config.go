package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ChrisMcGann/msalign/pkg/align"
	"github.com/ChrisMcGann/msalign/pkg/cluster"
	"github.com/ChrisMcGann/msalign/pkg/core"
)

// Config holds every tunable of a pipeline run.
type Config struct {
	BaselineDegree      int     `json:"baseline_degree"`       // polynomial degree of the scan baseline
	NoiseSigma          float64 `json:"noise_sigma"`           // Gaussian smoothing width in points (0 = off)
	PeakThreshold       float64 `json:"peak_threshold"`        // absolute intensity a peak must exceed
	PeakMinDistance     int     `json:"peak_min_distance"`     // minimum index distance between peaks of a scan
	MZWindow            float64 `json:"mz_window"`             // m/z tolerance when pairing peaks
	RTWindow            float64 `json:"rt_window"`             // retention time tolerance when pairing peaks
	SmoothingFraction   float64 `json:"smoothing_fraction"`    // LOWESS neighbourhood fraction
	ClusterRadius       float64 `json:"cluster_radius"`        // DBSCAN radius in standardised m/z
	ClusterMinNeighbors int     `json:"cluster_min_neighbors"` // DBSCAN minimum neighbourhood size
	Workers             int     `json:"workers"`               // samples conditioned concurrently
}

// DefaultConfig returns the settings tuned for high resolution LC-MS runs.
func DefaultConfig() Config {
	return Config{
		BaselineDegree:      6,
		NoiseSigma:          0.7,
		PeakThreshold:       7e6,
		PeakMinDistance:     60,
		MZWindow:            align.DefaultMZWindow,
		RTWindow:            align.DefaultRTWindow,
		SmoothingFraction:   align.DefaultFraction,
		ClusterRadius:       cluster.DefaultRadius,
		ClusterMinNeighbors: cluster.DefaultMinNeighbors,
		Workers:             1,
	}
}

// LoadConfig reads a JSON config file. Fields missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate returns the first invalid field as a *core.ParameterError.
func (c Config) Validate() error {
	switch {
	case c.BaselineDegree < 0:
		return &core.ParameterError{Param: "baseline_degree", Value: c.BaselineDegree, Reason: "must be >= 0"}
	case !finite(c.NoiseSigma) || c.NoiseSigma < 0:
		return &core.ParameterError{Param: "noise_sigma", Value: c.NoiseSigma, Reason: "must be a finite value >= 0"}
	case math.IsNaN(c.PeakThreshold):
		return &core.ParameterError{Param: "peak_threshold", Value: c.PeakThreshold, Reason: "must be a number"}
	case c.PeakMinDistance < 0:
		return &core.ParameterError{Param: "peak_min_distance", Value: c.PeakMinDistance, Reason: "must be >= 0"}
	case !finite(c.MZWindow) || c.MZWindow < 0:
		return &core.ParameterError{Param: "mz_window", Value: c.MZWindow, Reason: "must be a finite value >= 0"}
	case !finite(c.RTWindow) || c.RTWindow < 0:
		return &core.ParameterError{Param: "rt_window", Value: c.RTWindow, Reason: "must be a finite value >= 0"}
	case math.IsNaN(c.SmoothingFraction) || c.SmoothingFraction <= 0 || c.SmoothingFraction > 1:
		return &core.ParameterError{Param: "smoothing_fraction", Value: c.SmoothingFraction, Reason: "must be in (0, 1]"}
	case math.IsNaN(c.ClusterRadius) || c.ClusterRadius <= 0:
		return &core.ParameterError{Param: "cluster_radius", Value: c.ClusterRadius, Reason: "must be > 0"}
	case c.ClusterMinNeighbors < 1:
		return &core.ParameterError{Param: "cluster_min_neighbors", Value: c.ClusterMinNeighbors, Reason: "must be >= 1"}
	case c.Workers < 1:
		return &core.ParameterError{Param: "workers", Value: c.Workers, Reason: "must be >= 1"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
