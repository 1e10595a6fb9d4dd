// Package pipeline wires signal conditioning, alignment, normalisation,
// clustering and deconvolution into a single run over a set of samples.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ChrisMcGann/msalign/pkg/align"
	"github.com/ChrisMcGann/msalign/pkg/cluster"
	"github.com/ChrisMcGann/msalign/pkg/core"
	"github.com/ChrisMcGann/msalign/pkg/deconvolve"
	"github.com/ChrisMcGann/msalign/pkg/normalize"
	"github.com/ChrisMcGann/msalign/pkg/regression"
)

// ErrNoSamples is returned by Run when it is given nothing to process.
var ErrNoSamples = errors.New("pipeline: no samples")

// Warning is a scan warning attributed to its sample.
type Warning struct {
	Sample string
	core.Warning
}

func (w Warning) Error() string {
	return fmt.Sprintf("sample %s: %s", w.Sample, w.Warning.Error())
}

// Result holds the feature table and the intermediate artifacts of a run.
type Result struct {
	Features   []core.Feature
	Samples    []*core.Sample
	Alignment  align.Alignment
	Normalized []core.Peak
	Labeled    []cluster.LabeledPeak
	Warnings   []Warning
}

// Pipeline runs the full processing chain with one configuration.
type Pipeline struct {
	Config    Config
	Smoother  regression.Smoother
	Clusterer cluster.Clusterer
	Logger    *slog.Logger
}

// New returns a pipeline using LOWESS and DBSCAN. A nil logger means
// slog.Default().
func New(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Config:    cfg,
		Smoother:  regression.NewLowess(),
		Clusterer: cluster.DBSCAN{},
		Logger:    logger,
	}
}

// Run conditions every sample in place, aligns their peaks and reduces them to
// a feature table. A run in which no features survive returns an empty
// feature table and a nil error.
func (p *Pipeline) Run(samples []*core.Sample) (*Result, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	for i, s := range samples {
		if s == nil {
			return nil, fmt.Errorf("pipeline: sample %d is nil", i)
		}
	}
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	logger := p.logger()

	if err := p.condition(samples); err != nil {
		return nil, err
	}
	result := &Result{Samples: samples}
	for _, s := range samples {
		for _, w := range s.Warnings() {
			result.Warnings = append(result.Warnings, Warning{Sample: s.Name, Warning: w})
		}
	}

	aligner := &align.Aligner{
		Window:   align.Window{MZ: p.Config.MZWindow, RT: p.Config.RTWindow},
		Fraction: p.Config.SmoothingFraction,
		Smoother: p.Smoother,
		Workers:  p.Config.Workers,
		Logger:   logger,
	}
	alignment, err := aligner.Align(samples)
	if err != nil {
		return nil, fmt.Errorf("alignment failed: %w", err)
	}
	result.Alignment = alignment

	result.Normalized = normalize.Peaks(alignment.Peaks)
	logger.Info("normalized peak intensities", "peaks", len(result.Normalized))

	clusterer := p.Clusterer
	if clusterer == nil {
		clusterer = cluster.DBSCAN{}
	}
	labeled, err := cluster.Peaks(result.Normalized, clusterer, p.Config.ClusterRadius, p.Config.ClusterMinNeighbors)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	result.Labeled = labeled
	logger.Info("clustered peaks", "peaks", len(labeled))

	features, err := deconvolve.Deconvolve(labeled)
	switch {
	case errors.Is(err, deconvolve.ErrNoFeatures):
		logger.Info("no features found")
		result.Features = []core.Feature{}
	case err != nil:
		return nil, fmt.Errorf("deconvolution failed: %w", err)
	default:
		result.Features = features
		logger.Info("deconvolved features", "features", len(features))
	}
	return result, nil
}

// condition runs baseline correction, noise filtering and peak detection on
// every sample, up to Config.Workers samples at a time.
func (p *Pipeline) condition(samples []*core.Sample) error {
	logger := p.logger()
	cfg := p.Config

	errs := make([]error, len(samples))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(cfg.Workers, len(samples)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s := samples[i]
				if err := conditionSample(s, cfg); err != nil {
					errs[i] = fmt.Errorf("sample %s: %w", s.Name, err)
					continue
				}
				logger.Debug("conditioned sample", "sample", s.Name, "scans", len(s.Scans()), "peaks", s.PeakCount())
			}
		}()
	}
	for i := range samples {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	total := 0
	for _, s := range samples {
		total += s.PeakCount()
	}
	logger.Info("detected peaks", "samples", len(samples), "peaks", total)
	return nil
}

func conditionSample(s *core.Sample, cfg Config) error {
	if err := s.AlignBaselines(cfg.BaselineDegree); err != nil {
		return err
	}
	if err := s.FilterNoise(cfg.NoiseSigma); err != nil {
		return err
	}
	return s.DetectPeaks(cfg.PeakThreshold, cfg.PeakMinDistance)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
