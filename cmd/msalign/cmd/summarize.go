package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/msalign/pkg/reader"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [files...]",
	Short: "Print scan counts and ranges of LC-MS runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSummarize,
}

type runSummary struct {
	scans  int
	points int
	minRT  float64
	maxRT  float64
	minMZ  float64
	maxMZ  float64
}

func runSummarize(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		rows, err := reader.ReadRows(path)
		if err != nil {
			return err
		}

		s := runSummary{
			scans: len(rows),
			minRT: math.Inf(1), maxRT: math.Inf(-1),
			minMZ: math.Inf(1), maxMZ: math.Inf(-1),
		}
		for _, row := range rows {
			s.minRT = math.Min(s.minRT, row.RetentionTime)
			s.maxRT = math.Max(s.maxRT, row.RetentionTime)
			if len(row.MZ) == 0 {
				continue
			}
			s.points += len(row.MZ)
			s.minMZ = math.Min(s.minMZ, floats.Min(row.MZ))
			s.maxMZ = math.Max(s.maxMZ, floats.Max(row.MZ))
		}

		fmt.Printf("%s\n", path)
		fmt.Printf("  Scans:  %d\n", s.scans)
		fmt.Printf("  Points: %d\n", s.points)
		if s.scans > 0 {
			fmt.Printf("  RT:     %.3f - %.3f\n", s.minRT, s.maxRT)
		}
		if s.points > 0 {
			fmt.Printf("  m/z:    %.4f - %.4f\n", s.minMZ, s.maxMZ)
		}
	}
	return nil
}
