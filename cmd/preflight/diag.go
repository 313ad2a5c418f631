package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stepbystep/preflight/internal/bootstrap"
	"github.com/stepbystep/preflight/internal/deps"
	"github.com/stepbystep/preflight/internal/diag"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Capture a system diagnostics snapshot",
	Long: `Collect diagnostics about the host, the Python environment, the
workspace paths, and the installed packages, then save the snapshot to
data/diagnostics_report.json.

With --html an HTML overview is written next to the JSON report.`,
	Run: func(cmd *cobra.Command, args []string) {
		withHTML, _ := cmd.Flags().GetBool("html")
		asJSON, _ := cmd.Flags().GetBool("json")

		layout, cfg := resolveLayout()
		logger, closeLog := fileLogger(layout)
		defer closeLog()

		ctx := context.Background()
		runtime := bootstrap.NewRuntime(layout, cfg.Python, logger)
		installer := deps.NewInstaller(runtime.Python(), cfg.CommandTimeout(), logger)
		collector := diag.NewCollector(layout, installer, logger)

		snapshot := collector.Collect(ctx, nil)

		if withHTML {
			htmlPath, err := collector.ExportHTML(snapshot)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: HTML export failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("HTML overview: %s\n", htmlPath)
		}
		jsonPath, err := collector.Save(snapshot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			if err := printJSON(os.Stdout, snapshot); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		for _, line := range diag.SummaryLines(snapshot) {
			fmt.Println(line)
		}
		fmt.Printf("Report: %s\n", jsonPath)
	},
}

func init() {
	diagCmd.Flags().Bool("html", false, "Also write the HTML overview")
	diagCmd.Flags().Bool("json", false, "Print the snapshot as JSON")
	rootCmd.AddCommand(diagCmd)
}
