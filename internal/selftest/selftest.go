// Package selftest runs the lightweight launch checks executed near the
// end of the startup pipeline. Each check answers one question about
// whether the application can start safely; failures are reported, not
// fatal.
package selftest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stepbystep/preflight/internal/archive"
	"github.com/stepbystep/preflight/internal/settings"
	"github.com/stepbystep/preflight/internal/workspace"
)

// Result is the outcome of a single self-test.
type Result struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

type check struct {
	name string
	fn   func(ctx context.Context, layout workspace.Layout, logger *slog.Logger) (bool, string)
}

// Run executes every self-test in order and returns their results. The
// suite never aborts early; a failing check still lets the rest run.
func Run(ctx context.Context, layout workspace.Layout, logger *slog.Logger) []Result {
	if logger == nil {
		logger = slog.Default()
	}

	checks := []check{
		{name: "settings-valid", fn: checkSettings},
		{name: "data-files-parse", fn: checkDataFiles},
		{name: "archive-ping", fn: checkArchive},
		{name: "log-writable", fn: checkLogWritable},
	}

	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		passed, details := c.fn(ctx, layout, logger)
		results = append(results, Result{Name: c.name, Passed: passed, Details: details})
		if passed {
			logger.Info("self-test passed", "name", c.name, "details", details)
		} else {
			logger.Error("self-test failed", "name", c.name, "details", details)
		}
	}
	return results
}

// AllPassed reports whether every result succeeded.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// checkSettings loads the settings file through the validating store.
// A missing or corrupt file counts as a failure even though the store
// repairs it, so the report shows that user preferences were lost.
func checkSettings(_ context.Context, layout workspace.Layout, logger *slog.Logger) (bool, string) {
	path := layout.SettingsPath()
	_, statErr := os.Stat(path)
	missing := errors.Is(statErr, fs.ErrNotExist)

	store := settings.NewStore(path, logger)
	_, notes, err := store.Load()
	if err != nil {
		return false, fmt.Sprintf("settings could not be read: %v", err)
	}
	if missing {
		return false, "settings file was missing and has been restored"
	}
	for _, note := range notes {
		if note == "settings file was corrupt, defaults restored" {
			return false, "settings file was corrupt and has been replaced"
		}
	}
	if len(notes) > 0 {
		return true, "settings were adjusted: " + strings.Join(notes, "; ")
	}
	return true, "settings are complete"
}

// checkDataFiles parses every protected JSON file. Text and database
// files are covered by other checks.
func checkDataFiles(_ context.Context, layout workspace.Layout, _ *slog.Logger) (bool, string) {
	var problems []string
	checked := 0
	for _, rel := range layout.Protected {
		if filepath.Ext(rel) != ".json" {
			continue
		}
		data, err := os.ReadFile(layout.Abs(rel))
		if errors.Is(err, fs.ErrNotExist) {
			problems = append(problems, rel+": missing")
			continue
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		var payload any
		if err := json.Unmarshal(data, &payload); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid JSON", rel))
			continue
		}
		checked++
	}
	if len(problems) > 0 {
		return false, strings.Join(problems, "; ")
	}
	return true, fmt.Sprintf("%d data files parsed", checked)
}

// checkArchive opens the archive database and pings it.
func checkArchive(ctx context.Context, layout workspace.Layout, _ *slog.Logger) (bool, string) {
	store, err := archive.Open(layout.ArchivePath())
	if err != nil {
		return false, fmt.Sprintf("archive database unavailable: %v", err)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return false, fmt.Sprintf("archive database not responding: %v", err)
	}
	return true, "archive database responding"
}

// checkLogWritable proves the startup log accepts appends.
func checkLogWritable(_ context.Context, layout workspace.Layout, _ *slog.Logger) (bool, string) {
	path := layout.StartupLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Sprintf("log directory unavailable: %v", err)
	}
	handle, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Sprintf("startup log not writable: %v", err)
	}
	if err := handle.Close(); err != nil {
		return false, fmt.Sprintf("startup log not writable: %v", err)
	}
	return true, "startup log writable"
}
