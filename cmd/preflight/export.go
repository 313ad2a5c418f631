package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stepbystep/preflight/internal/archive"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the archive database into data/exports",
	Long: `Write every archive entry into a timestamped file under
data/exports, as JSON by default or as CSV with --format csv.

The dashboard offers the same export through its quick links; this
command makes it available without starting the application.`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		layout, _ := resolveLayout()
		store, err := archive.Open(layout.ArchivePath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		var path string
		switch format {
		case "json":
			path, err = store.ExportJSON(ctx, layout.ExportsDir())
		case "csv":
			path, err = store.ExportCSV(ctx, layout.ExportsDir())
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown export format %q (want json or csv)\n", format)
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Export written: %s\n", path)
	},
}

func init() {
	exportCmd.Flags().String("format", "json", "Export format: json or csv")
	rootCmd.AddCommand(exportCmd)
}
