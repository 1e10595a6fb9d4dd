// msalign - LC-MS peak alignment and feature extraction tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/msalign/cmd/msalign/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
