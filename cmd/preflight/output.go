package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/stepbystep/preflight/internal/integrity"
	"github.com/stepbystep/preflight/internal/startup"
)

const listPreview = 5

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// previewList caps long lists for terminal output, appending a count
// of the hidden remainder.
func previewList(items []string, max int) []string {
	if len(items) <= max {
		return items
	}
	out := make([]string, 0, max+1)
	out = append(out, items[:max]...)
	out = append(out, fmt.Sprintf("... and %d more", len(items)-max))
	return out
}

// printReport renders a startup report for the terminal.
func printReport(w io.Writer, report *startup.Report) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== Startup Report ==="))
	fmt.Fprintf(w, "Run:      %s\n", gray(report.RunID))
	if report.LastRun != "" {
		fmt.Fprintf(w, "Finished: %s\n", report.LastRun)
	}
	if report.CreatedVirtualenv {
		fmt.Fprintf(w, "Virtualenv: %s\n", green("created"))
	}
	if report.InstalledDependencies {
		fmt.Fprintf(w, "Dependencies: %s\n", green(fmt.Sprintf("%d install step(s)", len(report.DependencyMessages))))
	}

	if len(report.RepairedPaths) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow(fmt.Sprintf("Repaired paths (%d):", len(report.RepairedPaths))))
		for _, line := range previewList(report.RepairedPaths, listPreview) {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	fmt.Fprintf(w, "\n%s\n", yellow("Self-tests:"))
	if len(report.SelfTests) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("not run"))
	}
	for _, res := range report.SelfTests {
		icon := green("✓")
		if !res.Passed {
			icon = red("✗")
		}
		fmt.Fprintf(w, "  %s %s: %s\n", icon, res.Name, res.Details)
	}

	if report.SecuritySummary != nil {
		printSecuritySummary(w, report.SecuritySummary)
	}

	if len(report.DiagnosticsMessages) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow("Diagnostics:"))
		for _, line := range report.DiagnosticsMessages {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	if len(report.Messages) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow(fmt.Sprintf("Messages (%d):", len(report.Messages))))
		for _, line := range previewList(report.Messages, 2*listPreview) {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	if len(report.RelaunchCommand) > 0 {
		fmt.Fprintf(w, "\nRelaunch: %s\n", gray(strings.Join(report.RelaunchCommand, " ")))
	}

	fmt.Fprintln(w)
	if report.AllPassed {
		fmt.Fprintf(w, "%s\n", green("All self-tests passed"))
	} else {
		fmt.Fprintf(w, "%s\n", red("Some self-tests failed"))
	}
}

// printSecuritySummary renders an integrity summary for the terminal.
func printSecuritySummary(w io.Writer, sum *integrity.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", yellow("Data integrity:"))
	if sum.Status == integrity.StatusOK {
		fmt.Fprintf(w, "  %s %d file(s) verified\n", green("✓"), sum.Verified)
	} else {
		fmt.Fprintf(w, "  %s %d file(s) verified, %d issue(s)\n", yellow("⚠"), sum.Verified, len(sum.Issues))
	}
	for _, issue := range sum.Issues {
		fmt.Fprintf(w, "  %s %s\n", red("✗"), issue)
	}
	for _, alert := range sum.SizeAlerts {
		fmt.Fprintf(w, "  %s %s\n", yellow("⚠"), alert)
	}
	for _, line := range previewList(sum.Backups, listPreview) {
		fmt.Fprintf(w, "  %s backup: %s\n", gray("•"), line)
	}
	for _, line := range sum.RestoreIssues {
		fmt.Fprintf(w, "  %s %s\n", yellow("⚠"), line)
	}
	if sum.UpdatedManifest {
		fmt.Fprintf(w, "  %s\n", gray("checksum manifest updated"))
	}
}
