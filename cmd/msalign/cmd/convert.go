package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/msalign/pkg/reader/mzml"
	csvwriter "github.com/ChrisMcGann/msalign/pkg/writer/csv"
)

var convertCmd = &cobra.Command{
	Use:   "convert [file.mzML]",
	Short: "Convert an mzML run into a CSV scan table",
	Long: `Convert an mzML run into the CSV scan table read by the run command.
Each output row holds one spectrum: RT in seconds, then the intensity
and m/z arrays.

Examples:
  msalign convert sample1.mzML
  msalign convert sample1.mzML --out scans/sample1.csv --ms-level 0`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputFile := args[0]
	out := convertOutput
	if out == "" {
		out = strings.TrimSuffix(inputFile, filepath.Ext(inputFile)) + ".csv"
	}
	if msLevel < 0 {
		return fmt.Errorf("invalid MS level %d", msLevel)
	}

	inFile, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	reader := mzml.NewReader(inFile)
	reader.SetMSLevel(msLevel)
	writer := csvwriter.NewRowWriter(outFile)

	for reader.Next() {
		if err := writer.Write(reader.Row()); err != nil {
			return fmt.Errorf("failed to write spectrum %s: %w", reader.ID(), err)
		}
		if verbose && writer.Count()%1000 == 0 {
			fmt.Printf("Converted %d spectra...\n", writer.Count())
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading mzML: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Conversion complete!\n")
	fmt.Printf("Spectra written: %d\n", writer.Count())
	fmt.Printf("Output: %s\n", out)
	return outFile.Close()
}
