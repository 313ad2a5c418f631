package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stepbystep/preflight/internal/logview"
)

var logCmd = &cobra.Command{
	Use:   "log [term]",
	Short: "Show or search the startup log",
	Long: `Show the newest startup log lines, or search the whole log for a
term (case-insensitive) when one is given.

Examples:
  # Last 50 lines
  preflight log

  # Last 200 lines
  preflight log --limit 200

  # All lines mentioning backups
  preflight log backup`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		layout, _ := resolveLayout()
		reader := logview.NewReader(layout.StartupLogPath())

		var (
			entries []logview.Entry
			err     error
		)
		term := ""
		if len(args) == 1 {
			term = args[0]
			entries, err = reader.Search(term, limit)
		} else {
			entries, err = reader.Tail(limit)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			if term != "" {
				fmt.Printf("%s\n", yellow(fmt.Sprintf("No log lines match %q", term)))
			} else {
				fmt.Printf("%s\n", yellow("The startup log is empty"))
			}
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, entry := range entries {
			fmt.Printf("%s %s\n", gray(fmt.Sprintf("%6d", entry.Line)), entry.Text)
		}
	},
}

func init() {
	logCmd.Flags().IntP("limit", "n", logview.DefaultLimit, "Maximum number of lines to show")
	rootCmd.AddCommand(logCmd)
}
