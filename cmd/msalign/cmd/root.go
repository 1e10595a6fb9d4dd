// Package cmd provides CLI command implementations
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/msalign/pkg/pipeline"
)

var (
	// Global flags
	verbose bool

	// Flags for run command
	outputFile      string
	configFile      string
	dumpPeaksDir    string
	storeScans      bool
	baselineDegree  int
	noiseSigma      float64
	peakThreshold   float64
	peakMinDistance int
	mzWindow        float64
	rtWindow        float64
	smoothingFrac   float64
	clusterRadius   float64
	clusterMinNbrs  int
	workers         int
	topN            int
	cutoffPercent   float64
	minMZ           float64
	maxMZ           float64
	minRT           float64
	maxRT           float64

	// Flags for convert command
	convertOutput string
	msLevel       int
)

var rootCmd = &cobra.Command{
	Use:   "msalign",
	Short: "msalign - LC-MS peak alignment and feature extraction",
	Long: `msalign turns raw LC-MS runs into a single feature table of
(retention time, intensity, m/z) rows observed consistently across samples.

Processing steps:
- Per-scan baseline correction, Gaussian noise filtering and peak picking
- Peak matching against the sample with the most peaks
- LOWESS retention time drift correction
- Quantile intensity normalization
- DBSCAN clustering over standardized m/z and deconvolution`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(summarizeCmd)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every processing stage to stderr")

	defaults := pipeline.DefaultConfig()

	// Run command flags
	runCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output feature table, .csv or .db (required)")
	runCmd.Flags().StringVar(&configFile, "config", "", "JSON config file; flags given explicitly override it")
	runCmd.Flags().StringVar(&dumpPeaksDir, "dump-peaks", "", "Directory to write transformed.csv and smoothened.csv into")
	runCmd.Flags().BoolVar(&storeScans, "store-scans", false, "Also store conditioned scans in a .db output")
	runCmd.Flags().IntVar(&baselineDegree, "degree", defaults.BaselineDegree, "Polynomial degree of the scan baseline")
	runCmd.Flags().Float64Var(&noiseSigma, "sigma", defaults.NoiseSigma, "Gaussian noise filter width in points (0 = off)")
	runCmd.Flags().Float64Var(&peakThreshold, "threshold", defaults.PeakThreshold, "Absolute intensity a peak must exceed")
	runCmd.Flags().IntVar(&peakMinDistance, "min-dist", defaults.PeakMinDistance, "Minimum index distance between peaks of a scan")
	runCmd.Flags().Float64Var(&mzWindow, "mz-window", defaults.MZWindow, "m/z tolerance when matching peaks")
	runCmd.Flags().Float64Var(&rtWindow, "rt-window", defaults.RTWindow, "Retention time tolerance when matching peaks")
	runCmd.Flags().Float64Var(&smoothingFrac, "frac", defaults.SmoothingFraction, "LOWESS neighbourhood fraction")
	runCmd.Flags().Float64Var(&clusterRadius, "eps", defaults.ClusterRadius, "DBSCAN radius in standardized m/z")
	runCmd.Flags().IntVar(&clusterMinNbrs, "min-samples", defaults.ClusterMinNeighbors, "DBSCAN minimum neighbourhood size")
	runCmd.Flags().IntVar(&workers, "workers", defaults.Workers, "Number of samples processed concurrently")
	runCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense features (0 = no limit)")
	runCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Feature intensity cutoff as % of the most intense (0 = no cutoff)")
	runCmd.Flags().Float64Var(&minMZ, "min-mz", 0, "Drop features below this m/z (0 = no bound)")
	runCmd.Flags().Float64Var(&maxMZ, "max-mz", 0, "Drop features above this m/z (0 = no bound)")
	runCmd.Flags().Float64Var(&minRT, "min-rt", 0, "Drop features eluting before this retention time (0 = no bound)")
	runCmd.Flags().Float64Var(&maxRT, "max-rt", 0, "Drop features eluting after this retention time (0 = no bound)")

	runCmd.MarkFlagRequired("out")

	// Convert command flags
	convertCmd.Flags().StringVarP(&convertOutput, "out", "o", "", "Output CSV file (default: input name with .csv)")
	convertCmd.Flags().IntVar(&msLevel, "ms-level", 1, "MS level to export (0 = all)")
}

// newLogger returns the logger handed to the pipeline. Stage logs are shown
// with --verbose; otherwise only warnings reach stderr.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
