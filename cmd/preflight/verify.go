package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stepbystep/preflight/internal/integrity"
	"github.com/stepbystep/preflight/internal/vault"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify protected files against the checksum manifest",
	Long: `Check every protected data file against the checksum manifest.

Changed files are backed up before the manifest is updated, missing
files are reported, and restore points are listed. Exits with status 2
when anything needs attention.`,
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		layout, cfg := resolveLayout()
		logger, closeLog := fileLogger(layout)

		store := vault.New(layout.BackupDir(), cfg.BackupKeep, logger)
		mgr := integrity.NewManager(layout, store, logger)
		summary, err := mgr.Verify(context.Background())
		closeLog()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			if err := printJSON(os.Stdout, summary); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		} else {
			printSecuritySummary(os.Stdout, summary)
		}

		if summary.Status != integrity.StatusOK {
			os.Exit(2)
		}
	},
}

func init() {
	verifyCmd.Flags().Bool("json", false, "Print the summary as JSON")
	rootCmd.AddCommand(verifyCmd)
}
