// Package align matches peaks of every sample against a reference sample and
// corrects the retention time drift of the matched peaks.
//
// The reference ("master") sample is the one with the most peaks. Every peak
// of every other sample with peaks ("test" samples) that lies within an m/z
// and retention time window of a reference peak forms a Match. The candidate
// side of each match carries the retention time difference to the reference
// peak; a local regression of the mean retention time over that difference
// yields the corrected retention time of the candidate peak.
package align

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/ChrisMcGann/msalign/pkg/core"
	"github.com/ChrisMcGann/msalign/pkg/regression"
)

// Default alignment settings.
const (
	DefaultMZWindow = 0.2
	DefaultRTWindow = 20
	DefaultFraction = 0.01
)

// Window bounds the absolute m/z and retention time difference of a match.
// Both bounds are inclusive.
type Window struct {
	MZ float64
	RT float64
}

// Validate checks that both bounds are finite and not negative.
func (w Window) Validate() error {
	if math.IsNaN(w.MZ) || math.IsInf(w.MZ, 0) || w.MZ < 0 {
		return &core.ParameterError{Param: "mz_window", Value: w.MZ, Reason: "must be a finite value >= 0"}
	}
	if math.IsNaN(w.RT) || math.IsInf(w.RT, 0) || w.RT < 0 {
		return &core.ParameterError{Param: "rt_window", Value: w.RT, Reason: "must be a finite value >= 0"}
	}
	return nil
}

// Match pairs a reference peak with a candidate peak from another sample.
// Reference.RetentionTime holds the mean of both retention times and
// Candidate.RetentionTime the reference minus candidate difference.
type Match struct {
	Reference core.Peak
	Candidate core.Peak
}

// Alignment is the outcome of Aligner.Align. All fields are empty when no
// sample has peaks or no peaks match.
type Alignment struct {
	Reference  *core.Sample
	Candidates []*core.Sample
	Matches    []Match
	// Peaks are the candidate peaks with corrected retention times, sorted
	// by retention time.
	Peaks []core.Peak
}

// Aligner runs reference selection, pairing and drift correction.
type Aligner struct {
	Window   Window
	Fraction float64
	Smoother regression.Smoother
	// Workers bounds the number of candidate samples paired concurrently.
	Workers int
	Logger  *slog.Logger
}

// NewAligner returns an Aligner with the default windows, fraction and a
// LOWESS smoother.
func NewAligner() *Aligner {
	return &Aligner{
		Window:   Window{MZ: DefaultMZWindow, RT: DefaultRTWindow},
		Fraction: DefaultFraction,
		Smoother: regression.NewLowess(),
		Workers:  1,
	}
}

// Align matches the peaks of samples against the reference sample and
// returns the drift corrected candidate peaks.
func (a *Aligner) Align(samples []*core.Sample) (Alignment, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := a.Window.Validate(); err != nil {
		return Alignment{}, err
	}
	if math.IsNaN(a.Fraction) || a.Fraction <= 0 || a.Fraction > 1 {
		return Alignment{}, &core.ParameterError{Param: "fraction", Value: a.Fraction, Reason: "must be in (0, 1]"}
	}

	logger.Info("starting peak alignment", "samples", len(samples))
	ref, ok := SelectReference(samples)
	if !ok {
		logger.Info("no sample has peaks, nothing to align")
		return Alignment{}, nil
	}
	logger.Info("found reference sample", "sample", ref.Name, "peaks", ref.PeakCount())

	candidates := SelectCandidates(samples, ref)
	logger.Info("found candidate samples", "count", len(candidates))

	matches := Pair(ref, candidates, a.Window, a.Workers)
	logger.Info("finished peak pairing", "matches", len(matches))

	smoother := a.Smoother
	if smoother == nil {
		smoother = regression.NewLowess()
	}
	peaks, err := Correct(matches, smoother, a.Fraction)
	if err != nil {
		return Alignment{}, err
	}
	logger.Info("finished retention time correction", "peaks", len(peaks))

	return Alignment{
		Reference:  ref,
		Candidates: candidates,
		Matches:    matches,
		Peaks:      peaks,
	}, nil
}

// SelectReference returns the sample with the most peaks, the earliest one on
// ties. It reports false when no sample has any peak.
func SelectReference(samples []*core.Sample) (*core.Sample, bool) {
	var ref *core.Sample
	for _, s := range samples {
		if s == nil {
			continue
		}
		if ref == nil || s.PeakCount() > ref.PeakCount() {
			ref = s
		}
	}
	if ref == nil || ref.PeakCount() == 0 {
		return nil, false
	}
	return ref, true
}

// SelectCandidates returns the samples with peaks other than ref. The
// reference is excluded by identity, so a sample with the same content as the
// reference is still a candidate.
func SelectCandidates(samples []*core.Sample, ref *core.Sample) []*core.Sample {
	var candidates []*core.Sample
	for _, s := range samples {
		if s == nil || s == ref || s.PeakCount() == 0 {
			continue
		}
		candidates = append(candidates, s)
	}
	return candidates
}

// Pair joins every reference peak with every candidate peak inside the
// window. Candidate samples are processed by up to workers goroutines; the
// result is ordered by reference peak, then candidate sample, then candidate
// peak regardless of scheduling.
func Pair(ref *core.Sample, candidates []*core.Sample, window Window, workers int) []Match {
	refPeaks := ref.Peaks()
	// perCandidate[c][r] holds the matches of reference peak r in candidate c.
	perCandidate := make([][][]Match, len(candidates))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < max(1, min(workers, len(candidates))); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				perCandidate[c] = pairSample(refPeaks, candidates[c].Peaks(), window)
			}
		}()
	}
	for c := range candidates {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	var matches []Match
	for r := range refPeaks {
		for c := range candidates {
			matches = append(matches, perCandidate[c][r]...)
		}
	}
	return matches
}

func pairSample(refPeaks, testPeaks []core.Peak, window Window) [][]Match {
	out := make([][]Match, len(refPeaks))
	for r, rp := range refPeaks {
		for _, tp := range testPeaks {
			if math.Abs(rp.MZ-tp.MZ) > window.MZ || math.Abs(rp.RetentionTime-tp.RetentionTime) > window.RT {
				continue
			}
			matched := rp
			matched.RetentionTime = (rp.RetentionTime + tp.RetentionTime) / 2
			candidate := tp
			candidate.RetentionTime = rp.RetentionTime - tp.RetentionTime
			out[r] = append(out[r], Match{Reference: matched, Candidate: candidate})
		}
	}
	return out
}

// Correct smooths the matched mean retention times over the candidate
// retention time differences and returns new candidate peaks carrying the
// smoothed value, sorted by retention time. Fewer than two matches are passed
// through unchanged.
func Correct(matches []Match, smoother regression.Smoother, fraction float64) ([]core.Peak, error) {
	peaks := make([]core.Peak, len(matches))
	for i, m := range matches {
		peaks[i] = m.Candidate
	}
	if len(matches) >= 2 {
		x := make([]float64, len(matches))
		y := make([]float64, len(matches))
		for i, m := range matches {
			x[i] = m.Candidate.RetentionTime
			y[i] = m.Reference.RetentionTime
		}
		smoothed, err := smoother.Smooth(x, y, fraction)
		if err != nil {
			return nil, fmt.Errorf("retention time correction: %w", err)
		}
		if len(smoothed) != len(peaks) {
			return nil, fmt.Errorf("retention time correction: smoother returned %d values for %d points", len(smoothed), len(peaks))
		}
		for i := range peaks {
			peaks[i].RetentionTime = smoothed[i]
		}
	}
	core.SortPeaksByRetentionTime(peaks)
	return peaks, nil
}
