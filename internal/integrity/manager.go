// Package integrity owns the checksum manifest for protected workspace
// files. A verification pass compares the current content of every
// protected file against its recorded digest, snapshots changed files
// into the backup vault, and rates how trustworthy the newest backup of
// each file is.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/stepbystep/preflight/internal/checksum"
	"github.com/stepbystep/preflight/internal/vault"
	"github.com/stepbystep/preflight/internal/workspace"
)

// Status values for a verification summary.
const (
	StatusOK        = "ok"
	StatusAttention = "attention"
)

// Restore point confidence ratings.
const (
	RestoreOK       = "ok"
	RestoreMissing  = "missing"
	RestoreUnknown  = "unknown"
	RestoreMismatch = "mismatch"
)

// RestorePoint rates whether the newest backup of a file matches the
// digest currently recorded for it. Restore points are derived fresh on
// every pass and never persisted.
type RestorePoint struct {
	File    string `json:"file"`
	Status  string `json:"status"`
	Backup  string `json:"backup,omitempty"`
	Message string `json:"message,omitempty"`
}

// Summary collects the outcome of one verification pass.
type Summary struct {
	Status          string         `json:"status"`
	Verified        int            `json:"verified"`
	Issues          []string       `json:"issues"`
	Backups         []string       `json:"backups"`
	SizeAlerts      []string       `json:"size_alerts"`
	PrunedBackups   []string       `json:"pruned_backups"`
	RestorePoints   []RestorePoint `json:"restore_points"`
	RestoreIssues   []string       `json:"restore_issues"`
	UpdatedManifest bool           `json:"updated_manifest"`
	Timestamp       string         `json:"timestamp"`
}

func newSummary(stamp string) *Summary {
	return &Summary{
		Status:        StatusOK,
		Issues:        []string{},
		Backups:       []string{},
		SizeAlerts:    []string{},
		PrunedBackups: []string{},
		RestorePoints: []RestorePoint{},
		RestoreIssues: []string{},
		Timestamp:     stamp,
	}
}

// Manager runs checksum verification passes over the protected file set.
type Manager interface {
	// Verify compares every protected file against the manifest,
	// backing up changed files, pruning stale backups, and computing
	// restore points. Problems with individual files become summary
	// issues; only manifest persistence and hashing failures surface
	// as errors.
	Verify(ctx context.Context) (*Summary, error)
}

type manager struct {
	layout workspace.Layout
	vault  *vault.Vault
	logger *slog.Logger
	now    func() time.Time
}

// NewManager returns a Manager scanning the layout's protected files.
func NewManager(layout workspace.Layout, v *vault.Vault, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{layout: layout, vault: v, logger: logger, now: time.Now}
}

func (m *manager) Verify(ctx context.Context) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now()
	stamp := now.Format(time.RFC3339)
	sum := newSummary(stamp)

	man, err := m.ensureManifest(now)
	if err != nil {
		return nil, fmt.Errorf("ensure manifest: %w", err)
	}

	for _, rel := range m.layout.Protected {
		abs := m.layout.Abs(rel)
		entry := man.Entry(rel)

		digest, err := checksum.File(abs)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", rel, err)
		}
		size, err := checksum.Size(abs)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", rel, err)
		}
		sum.Verified++

		switch {
		case digest.IsAbsent():
			sum.Issues = append(sum.Issues, fmt.Sprintf("%s: file is missing", rel))
			sum.Status = StatusAttention
			sum.UpdatedManifest = true
			absent := checksum.Absent()
			entry.Checksum = &absent
			entry.Size = nil
			m.logger.Warn("protected file is missing", "file", rel)

		case entry.Checksum == nil:
			// First observation. Recording a fresh entry is routine
			// maintenance, not an anomaly.
			d := digest
			entry.Checksum = &d
			entry.Size = size
			sum.UpdatedManifest = true
			m.logger.Info("manifest entry added", "file", rel)

		case !digest.Equal(*entry.Checksum):
			m.recordChange(sum, rel, abs, digest)
			d := digest
			entry.Checksum = &d
			entry.Size = size
			sum.UpdatedManifest = true
			sum.Status = StatusAttention

		default:
			// Digest unchanged. A differing recorded size with a
			// matching digest means the size was stale metadata, so
			// repair it and flag the inconsistency.
			if entry.Size != nil && size != nil && *entry.Size != *size {
				alert := fmt.Sprintf("%s: file size changed from %d to %d bytes", rel, *entry.Size, *size)
				sum.Issues = append(sum.Issues, alert)
				sum.SizeAlerts = append(sum.SizeAlerts, alert)
				sum.Status = StatusAttention
			}
			entry.Size = size
		}

		entry.LastChecked = stamp
	}

	if sum.UpdatedManifest {
		if err := man.Write(m.layout.ManifestPath(), m.now()); err != nil {
			return nil, fmt.Errorf("persist manifest: %w", err)
		}
		m.logger.Info("security manifest updated", "path", m.layout.ManifestPath())
	}

	points, err := m.collectRestorePoints(man)
	if err != nil {
		return nil, err
	}
	sum.RestorePoints = points
	for _, p := range points {
		if p.Status != RestoreOK && p.Message != "" {
			sum.RestoreIssues = append(sum.RestoreIssues, p.Message)
		}
	}

	if len(sum.Issues) > 0 || len(sum.RestoreIssues) > 0 {
		sum.Status = StatusAttention
	}
	return sum, nil
}

// recordChange snapshots a changed file's current bytes and prunes the
// backup set for that name. Backup trouble is reported, never fatal.
func (m *manager) recordChange(sum *Summary, rel, abs string, digest checksum.Digest) {
	backupPath, err := m.vault.Backup(abs)
	if err != nil {
		sum.Issues = append(sum.Issues, fmt.Sprintf("%s: checksum mismatch detected, backup failed: %v", rel, err))
		m.logger.Error("backup failed after checksum mismatch", "file", rel, "error", err)
	} else {
		sum.Issues = append(sum.Issues, fmt.Sprintf("%s: checksum mismatch detected, current content backed up to %s", rel, backupPath))
		sum.Backups = append(sum.Backups, backupPath)
		m.logger.Warn("checksum mismatch, new checksum recorded", "file", rel, "backup", backupPath)
	}

	pruned, err := m.vault.Prune(filepath.Base(abs))
	if err != nil {
		m.logger.Warn("backup pruning failed", "file", rel, "error", err)
		return
	}
	sum.PrunedBackups = append(sum.PrunedBackups, pruned...)
}

// ensureManifest loads the manifest, rebuilding it from the current
// state of the protected files when missing or unreadable.
func (m *manager) ensureManifest(now time.Time) (*Manifest, error) {
	man, err := LoadManifest(m.layout.ManifestPath())
	if err != nil {
		m.logger.Error("security manifest unreadable, rebuilding", "error", err)
	}
	if man != nil {
		return man, nil
	}

	man, err = m.initialManifest(now)
	if err != nil {
		return nil, err
	}
	if err := man.Write(m.layout.ManifestPath(), now); err != nil {
		return nil, err
	}
	m.logger.Info("security manifest created", "path", m.layout.ManifestPath())
	return man, nil
}

func (m *manager) initialManifest(now time.Time) (*Manifest, error) {
	man := NewManifest(now)
	stamp := now.Format(time.RFC3339)
	for _, rel := range m.layout.Protected {
		abs := m.layout.Abs(rel)
		digest, err := checksum.File(abs)
		if err != nil {
			return nil, fmt.Errorf("seed manifest entry %s: %w", rel, err)
		}
		size, err := checksum.Size(abs)
		if err != nil {
			return nil, fmt.Errorf("seed manifest entry %s: %w", rel, err)
		}
		d := digest
		man.Files[rel] = &Entry{Checksum: &d, Size: size, LastChecked: stamp}
	}
	return man, nil
}

// collectRestorePoints rates the newest backup of every manifest entry,
// including entries for files no longer in the protected list.
func (m *manager) collectRestorePoints(man *Manifest) ([]RestorePoint, error) {
	points := make([]RestorePoint, 0, len(man.Files))
	for _, rel := range man.Paths() {
		entry := man.Files[rel]
		name := filepath.Base(filepath.FromSlash(rel))

		latest, err := m.vault.Latest(name)
		if err != nil {
			return nil, fmt.Errorf("find latest backup for %s: %w", rel, err)
		}
		if latest == "" {
			points = append(points, RestorePoint{
				File:    rel,
				Status:  RestoreMissing,
				Message: fmt.Sprintf("%s: no backup found", rel),
			})
			continue
		}
		if entry.Checksum == nil || entry.Checksum.IsAbsent() {
			points = append(points, RestorePoint{
				File:    rel,
				Status:  RestoreUnknown,
				Backup:  latest,
				Message: fmt.Sprintf("%s: manifest records no usable checksum", rel),
			})
			continue
		}

		backupDigest, err := checksum.File(latest)
		if err != nil {
			return nil, fmt.Errorf("hash backup %s: %w", latest, err)
		}
		if backupDigest.Equal(*entry.Checksum) {
			points = append(points, RestorePoint{File: rel, Status: RestoreOK, Backup: latest})
			continue
		}
		points = append(points, RestorePoint{
			File:    rel,
			Status:  RestoreMismatch,
			Backup:  latest,
			Message: fmt.Sprintf("%s: latest backup does not match the recorded checksum (%s)", rel, filepath.Base(latest)),
		})
	}
	return points, nil
}
