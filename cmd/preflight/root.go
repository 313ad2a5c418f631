package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stepbystep/preflight/internal/config"
	"github.com/stepbystep/preflight/internal/logging"
	"github.com/stepbystep/preflight/internal/workspace"
)

var (
	workspaceRoot string
	configPath    string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Startup self-repair for the step-by-step tool workspace",
	Long: `Preflight keeps the workspace of the step-by-step desktop tool healthy.

It restores missing files and directories from templates, sets up the
Python virtual environment, installs dependencies, verifies protected
data files against a checksum manifest (with automatic backups), runs
self-tests, and captures a system diagnostics report.

Run it from the workspace directory or point it somewhere else with
--workspace. Results land in data/selftest_report.json and every run
is logged to logs/startup.log.`,
	Run: func(cmd *cobra.Command, args []string) {
		// A bare invocation behaves like "preflight run".
		runStartup(runCmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceRoot, "workspace", "w", ".", "Workspace directory containing data/ and logs/")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Read configuration from this file instead of <workspace>/"+config.FileName)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// resolveLayout loads the workspace layout and configuration for the
// selected root, exiting on unusable configuration.
func resolveLayout() (workspace.Layout, config.Config) {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	var cfg config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return workspace.DefaultLayout(root), cfg
}

// fileLogger returns a logger writing to the console and the startup
// log. The caller must invoke the returned close function.
func fileLogger(layout workspace.Layout) (*slog.Logger, func() error) {
	logger, closeLog, err := logging.Setup(verbose, layout.StartupLogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return logger, closeLog
}
