// Package vault stores timestamped safety copies of protected files and
// bounds how many copies survive per original file name.
package vault

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultKeep is the number of backups retained per original file name.
const DefaultKeep = 5

// stampLayout gives backups second resolution. Two backups of the same
// file within one second share a name and the later write wins; the
// retention count still holds.
const stampLayout = "20060102-150405"

const backupSuffix = ".bak"

// Vault writes backups of the form <name>.<YYYYMMDD-HHMMSS>.bak into a
// single backup directory.
type Vault struct {
	dir    string
	keep   int
	logger *slog.Logger
	now    func() time.Time
}

// New returns a vault writing into dir. A keep value below 1 falls back
// to DefaultKeep.
func New(dir string, keep int, logger *slog.Logger) *Vault {
	if keep < 1 {
		keep = DefaultKeep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{dir: dir, keep: keep, logger: logger, now: time.Now}
}

// Keep returns the retention count per original file name.
func (v *Vault) Keep() int {
	return v.keep
}

// Backup copies the current bytes of path into the vault and returns the
// backup's path. The source is read as it exists right now; the vault
// records what a file changed to, it does not preserve a known-good
// version.
func (v *Vault) Backup(path string) (string, error) {
	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for backup: %w", path, err)
	}
	defer src.Close()

	name := fmt.Sprintf("%s.%s%s", filepath.Base(path), v.now().Format(stampLayout), backupSuffix)
	target := filepath.Join(v.dir, name)

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create backup %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("copy %s to backup: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("flush backup %s: %w", target, err)
	}

	v.logger.Info("backup created", "file", filepath.Base(path), "backup", target)
	return target, nil
}

// List returns every backup recorded for the original file name, newest
// first by modification time.
func (v *Vault) List(name string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(v.dir, name+".*"+backupSuffix))
	if err != nil {
		return nil, fmt.Errorf("list backups for %s: %w", name, err)
	}

	type backupInfo struct {
		path    string
		modTime time.Time
	}
	infos := make([]backupInfo, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			// Raced with an external delete; nothing to retain.
			continue
		}
		infos = append(infos, backupInfo{path: match, modTime: info.ModTime()})
	}

	// Sort by modification time (newest first); the embedded timestamp
	// breaks ties so same-mtime backups stay in chronological order.
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].modTime.Equal(infos[j].modTime) {
			return infos[i].path > infos[j].path
		}
		return infos[i].modTime.After(infos[j].modTime)
	})

	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.path
	}
	return paths, nil
}

// Latest returns the newest backup for name, or "" when none exist.
func (v *Vault) Latest(name string) (string, error) {
	backups, err := v.List(name)
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", nil
	}
	return backups[0], nil
}

// Prune deletes backups for name beyond the retention count, oldest
// first, and returns the paths it removed. A backup that cannot be
// deleted is logged and skipped; stale backups must never abort a
// verification run.
func (v *Vault) Prune(name string) ([]string, error) {
	backups, err := v.List(name)
	if err != nil {
		return nil, err
	}
	if len(backups) <= v.keep {
		return nil, nil
	}

	var removed []string
	for _, stale := range backups[v.keep:] {
		if err := os.Remove(stale); err != nil {
			v.logger.Warn("could not delete stale backup", "backup", stale, "error", err)
			continue
		}
		removed = append(removed, stale)
	}
	return removed, nil
}
