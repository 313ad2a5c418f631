package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/stepbystep/preflight/internal/bootstrap"
	"github.com/stepbystep/preflight/internal/startup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full startup pipeline",
	Long: `Run all startup checks in order: structure repair, virtual
environment, dependencies, data integrity, self-tests, and diagnostics.

The pipeline never aborts on a failing step; everything it finds ends
up in the report. When the virtual environment exists but the tool is
not running inside it, the launcher is re-executed with the virtualenv
interpreter unless --no-relaunch is given.

Examples:
  # Full run in the current directory
  preflight run

  # Repair a different workspace without touching the network
  preflight run --workspace /path/to/tool --skip-deps`,
	Run: runStartup,
}

func init() {
	runCmd.Flags().Bool("skip-deps", false, "Skip the dependency installation step")
	runCmd.Flags().Bool("skip-diagnostics", false, "Skip the diagnostics step")
	runCmd.Flags().Bool("no-relaunch", false, "Never re-execute the launcher inside the virtualenv")
	runCmd.Flags().Bool("json", false, "Print the report as JSON instead of formatted output")
	rootCmd.AddCommand(runCmd)
}

// runStartup executes the pipeline and prints the resulting report.
// Shared between "preflight run" and the bare "preflight" invocation.
func runStartup(cmd *cobra.Command, _ []string) {
	skipDeps, _ := cmd.Flags().GetBool("skip-deps")
	skipDiag, _ := cmd.Flags().GetBool("skip-diagnostics")
	noRelaunch, _ := cmd.Flags().GetBool("no-relaunch")
	asJSON, _ := cmd.Flags().GetBool("json")

	layout, cfg := resolveLayout()
	if skipDeps {
		cfg.SkipDependencies = true
	}
	if skipDiag {
		cfg.SkipDiagnostics = true
	}

	logger, closeLog := fileLogger(layout)
	orch := startup.NewOrchestrator(layout, startup.Options{
		Config: cfg,
		Argv:   os.Args,
		Logger: logger,
	})
	report := orch.Run(context.Background())

	if asJSON {
		if err := printJSON(os.Stdout, report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			closeLog()
			os.Exit(1)
		}
	} else {
		printReport(os.Stdout, report)
	}

	plan := orch.Relaunch()
	closeLog()

	if plan != nil && !noRelaunch {
		code, err := execRelaunch(plan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: relaunch failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(code)
	}
	if !report.AllPassed {
		os.Exit(1)
	}
}

// execRelaunch hands the terminal to the launcher running inside the
// virtual environment and reports its exit code.
func execRelaunch(plan *bootstrap.Plan) (int, error) {
	cmd := exec.Command(plan.Path, plan.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), plan.Env...)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}
