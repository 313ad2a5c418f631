package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stepbystep/preflight/internal/startup"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the report of the last startup run",
	Long: `Display the persisted report from the most recent startup run,
including repairs, self-test results, and the integrity summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		layout, _ := resolveLayout()
		report, err := startup.LoadReport(layout.ReportPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: no startup report available: %v\n", err)
			fmt.Fprintln(os.Stderr, "Run 'preflight run' first.")
			os.Exit(1)
		}

		if asJSON {
			if err := printJSON(os.Stdout, report); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		printReport(os.Stdout, report)
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "Print the report as JSON")
	rootCmd.AddCommand(reportCmd)
}
