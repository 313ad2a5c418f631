// Package structure restores the workspace skeleton before any other
// startup step runs: required directories, templated data files, and
// the archive database. Repairs are idempotent and never overwrite
// files that already exist, so the integrity scan that follows sees
// either untouched user data or a fresh template it can record.
package structure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/stepbystep/preflight/internal/archive"
	"github.com/stepbystep/preflight/internal/workspace"
)

// Repairer recreates missing pieces of the workspace layout.
type Repairer struct {
	layout workspace.Layout
	logger *slog.Logger
}

// NewRepairer returns a repairer for the given workspace layout.
func NewRepairer(layout workspace.Layout, logger *slog.Logger) *Repairer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{layout: layout, logger: logger}
}

// Ensure creates every required directory, writes each missing data
// file from its template, and bootstraps the archive database. It
// returns the workspace-relative paths it created. Files already on
// disk are left untouched.
func (r *Repairer) Ensure(ctx context.Context) ([]string, error) {
	repaired := []string{}

	for _, dir := range r.layout.Dirs {
		if err := os.MkdirAll(r.layout.Abs(dir), 0o755); err != nil {
			return repaired, fmt.Errorf("create directory %s: %w", dir, err)
		}
		r.logger.Debug("directory checked", "dir", dir)
	}

	for _, tf := range templateFiles() {
		path := r.layout.Abs(tf.rel)
		_, err := os.Stat(path)
		if err == nil {
			r.logger.Debug("file present", "file", tf.rel)
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return repaired, fmt.Errorf("inspect %s: %w", tf.rel, err)
		}
		if err := os.WriteFile(path, []byte(tf.content), 0o644); err != nil {
			return repaired, fmt.Errorf("restore %s: %w", tf.rel, err)
		}
		repaired = append(repaired, tf.rel)
		r.logger.Info("file restored from template", "file", tf.rel)
	}

	if created := r.ensureArchive(ctx); created {
		repaired = append(repaired, "data/archive.db")
	}

	return repaired, nil
}

// ensureArchive creates the SQLite archive database with its schema
// when it is missing. A failure here is logged but does not abort the
// repair pass: the application degrades to JSON archives without it.
func (r *Repairer) ensureArchive(ctx context.Context) bool {
	path := r.layout.ArchivePath()
	if _, err := os.Stat(path); err == nil {
		r.logger.Debug("archive database present", "path", path)
		return false
	}

	store, err := archive.Open(path)
	if err != nil {
		r.logger.Error("could not create archive database", "path", path, "error", err)
		return false
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		r.logger.Error("archive database not responding", "path", path, "error", err)
		return false
	}

	r.logger.Info("archive database initialized", "path", path)
	return true
}
