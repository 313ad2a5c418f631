// Command preflight repairs and verifies the workspace of the
// step-by-step desktop tool before it starts: directory structure,
// virtual environment, dependencies, data integrity, self-tests, and
// diagnostics.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
