package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/msalign/pkg/core"
	"github.com/ChrisMcGann/msalign/pkg/filter"
	"github.com/ChrisMcGann/msalign/pkg/pipeline"
	"github.com/ChrisMcGann/msalign/pkg/reader"
	csvwriter "github.com/ChrisMcGann/msalign/pkg/writer/csv"
	"github.com/ChrisMcGann/msalign/pkg/writer/sqlite"
)

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Build a feature table from LC-MS runs",
	Long: `Process one or more LC-MS runs (CSV scan tables or mzML files) into a
feature table. Each input file is one sample.

Examples:
  # Run with default settings, write a CSV feature table
  msalign run sample1.csv sample2.csv --out output.csv

  # Sparse data: lower the peak threshold and the noise filter width
  msalign run *.mzML --out features.db --threshold 1e5 --sigma 0.3 --workers 4

  # Start from a config file and keep the intermediate peaks
  msalign run *.csv --out output.csv --config params.json --dump-peaks peaks/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

// buildConfig starts from the defaults or the config file and applies the
// flags that were set explicitly.
func buildConfig(cmd *cobra.Command) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(configFile); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("degree") {
		cfg.BaselineDegree = baselineDegree
	}
	if flags.Changed("sigma") {
		cfg.NoiseSigma = noiseSigma
	}
	if flags.Changed("threshold") {
		cfg.PeakThreshold = peakThreshold
	}
	if flags.Changed("min-dist") {
		cfg.PeakMinDistance = peakMinDistance
	}
	if flags.Changed("mz-window") {
		cfg.MZWindow = mzWindow
	}
	if flags.Changed("rt-window") {
		cfg.RTWindow = rtWindow
	}
	if flags.Changed("frac") {
		cfg.SmoothingFraction = smoothingFrac
	}
	if flags.Changed("eps") {
		cfg.ClusterRadius = clusterRadius
	}
	if flags.Changed("min-samples") {
		cfg.ClusterMinNeighbors = clusterMinNbrs
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	return cfg, cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	outFormat := strings.ToLower(filepath.Ext(outputFile))
	if outFormat != ".csv" && outFormat != ".db" {
		return fmt.Errorf("invalid output format '%s', must be .csv or .db", outFormat)
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	var samples []*core.Sample
	for _, path := range args {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", path)
		}
		s, err := reader.ReadSample(path)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %s: %d scans\n", s.Name, len(s.Scans()))
		samples = append(samples, s)
	}

	fmt.Printf("Processing %d samples...\n", len(samples))
	fmt.Printf("Baseline degree: %d, noise sigma: %g\n", cfg.BaselineDegree, cfg.NoiseSigma)
	fmt.Printf("Peak threshold: %g, min distance: %d\n", cfg.PeakThreshold, cfg.PeakMinDistance)

	result, err := pipeline.New(cfg, newLogger()).Run(samples)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
	}

	filterConfig := &filter.Config{
		TopN:            topN,
		IntensityCutoff: cutoffPercent,
		MinMZ:           minMZ,
		MaxMZ:           maxMZ,
		MinRT:           minRT,
		MaxRT:           maxRT,
	}
	features := result.Features
	if filterConfig.Enabled() {
		features = filterConfig.Apply(features)
		fmt.Printf("Filtered features: %d of %d kept\n", len(features), len(result.Features))
	}

	if dumpPeaksDir != "" {
		if err := dumpPeaks(dumpPeaksDir, result); err != nil {
			return err
		}
	}

	switch outFormat {
	case ".csv":
		err = writeFeaturesCSV(outputFile, features)
	case ".db":
		err = writeFeaturesDB(outputFile, cfg, result, features)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nProcessing complete!\n")
	for _, s := range result.Samples {
		fmt.Printf("  %s: %d peaks\n", s.Name, s.PeakCount())
	}
	fmt.Printf("Matched peaks: %d\n", len(result.Alignment.Matches))
	fmt.Printf("Features: %d\n", len(features))
	if len(result.Warnings) > 0 {
		fmt.Printf("Warnings: %d scans\n", len(result.Warnings))
	}
	fmt.Printf("Output: %s\n", outputFile)

	return nil
}

func writeFeaturesCSV(path string, features []core.Feature) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := csvwriter.WriteFeatures(f, features); err != nil {
		f.Close()
		return fmt.Errorf("failed to write features: %w", err)
	}
	return f.Close()
}

func writeFeaturesDB(path string, cfg pipeline.Config, result *pipeline.Result, features []core.Feature) error {
	writer, err := sqlite.NewWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}

	if err := writer.SetConfig(cfg); err != nil {
		writer.Abort()
		return err
	}
	if storeScans {
		for _, s := range result.Samples {
			if err := writer.WriteSample(s); err != nil {
				writer.Abort()
				return fmt.Errorf("failed to write sample %s: %w", s.Name, err)
			}
		}
	}
	if err := writer.WritePeaks("aligned", result.Alignment.Peaks); err != nil {
		writer.Abort()
		return err
	}
	if err := writer.WritePeaks("normalized", result.Normalized); err != nil {
		writer.Abort()
		return err
	}
	if err := writer.WriteFeatures(features); err != nil {
		writer.Abort()
		return err
	}

	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	return nil
}

// dumpPeaks writes the matched peak pairs and the drift corrected peaks.
func dumpPeaks(dir string, result *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create peak dump directory: %w", err)
	}

	transformed, err := os.Create(filepath.Join(dir, "transformed.csv"))
	if err != nil {
		return fmt.Errorf("failed to create peak dump: %w", err)
	}
	if err := csvwriter.WriteMatches(transformed, result.Alignment.Matches); err != nil {
		transformed.Close()
		return fmt.Errorf("failed to write transformed peaks: %w", err)
	}
	if err := transformed.Close(); err != nil {
		return err
	}

	smoothened, err := os.Create(filepath.Join(dir, "smoothened.csv"))
	if err != nil {
		return fmt.Errorf("failed to create peak dump: %w", err)
	}
	if err := csvwriter.WritePeaks(smoothened, result.Alignment.Peaks); err != nil {
		smoothened.Close()
		return fmt.Errorf("failed to write smoothened peaks: %w", err)
	}
	return smoothened.Close()
}
