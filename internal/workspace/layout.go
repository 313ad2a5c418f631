// Package workspace declares the on-disk shape of an application
// workspace: the directories that must exist, the files protected by
// integrity scans, and where the startup subsystem keeps its own state.
package workspace

import (
	"path/filepath"
	"runtime"
)

// Well-known names inside a workspace. Everything is relative to the
// workspace root; Layout resolves them to absolute paths.
const (
	dataDirName      = "data"
	logsDirName      = "logs"
	backupDirName    = "data/backups"
	exportsDirName   = "data/exports"
	manifestName     = "data/security_manifest.json"
	reportName       = "data/selftest_report.json"
	settingsName     = "data/settings.json"
	archiveName      = "data/archive.db"
	diagnosticsName  = "data/diagnostics_report.json"
	diagnosticsHTML  = "logs/diagnostics.html"
	startupLogName   = "logs/startup.log"
	requirementsName = "requirements.txt"
	venvDirName      = ".venv"
)

// Layout resolves every path the startup subsystem touches against a
// single workspace root. Build one with DefaultLayout and treat it as
// read-only; tests may swap Protected for a reduced set.
type Layout struct {
	// Root is the workspace directory the application runs out of.
	Root string

	// Dirs are workspace-relative directories created during structure
	// repair, in creation order.
	Dirs []string

	// Protected are the workspace-relative files covered by the
	// integrity manifest. After a verification pass every entry here
	// has a manifest record.
	Protected []string

	// Launcher is the application entry point handed to the relaunch
	// command together with the forwarded arguments.
	Launcher string
}

// DefaultLayout returns the standard workspace layout rooted at root.
func DefaultLayout(root string) Layout {
	return Layout{
		Root: root,
		Dirs: []string{
			"data",
			"logs",
			"data/exports",
			"data/converted_audio",
			"data/backups",
		},
		Protected: []string{
			"data/settings.json",
			"data/todo_items.json",
			"data/playlists.json",
			"data/archive.json",
			"data/archive.db",
			"data/release_checklist.json",
			"data/selftest_report.json",
			"data/color_audit.json",
			"data/usage_stats.json",
			"data/persistent_notes.txt",
			"progress.txt",
			"todo.txt",
		},
		Launcher: "start_tool.py",
	}
}

// Abs resolves a workspace-relative slash path against the root.
func (l Layout) Abs(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// DataDir is where the application persists its user data.
func (l Layout) DataDir() string { return l.Abs(dataDirName) }

// LogsDir holds the startup log and diagnostic exports.
func (l Layout) LogsDir() string { return l.Abs(logsDirName) }

// BackupDir is the vault directory for timestamped safety copies.
func (l Layout) BackupDir() string { return l.Abs(backupDirName) }

// ExportsDir receives archive exports.
func (l Layout) ExportsDir() string { return l.Abs(exportsDirName) }

// ManifestPath is the checksum manifest location.
func (l Layout) ManifestPath() string { return l.Abs(manifestName) }

// ReportPath is where the consolidated startup report is persisted.
func (l Layout) ReportPath() string { return l.Abs(reportName) }

// SettingsPath is the user preferences file.
func (l Layout) SettingsPath() string { return l.Abs(settingsName) }

// ArchivePath is the SQLite archive database.
func (l Layout) ArchivePath() string { return l.Abs(archiveName) }

// DiagnosticsPath is the JSON diagnostics report.
func (l Layout) DiagnosticsPath() string { return l.Abs(diagnosticsName) }

// DiagnosticsHTMLPath is the rendered HTML diagnostics report.
func (l Layout) DiagnosticsHTMLPath() string { return l.Abs(diagnosticsHTML) }

// StartupLogPath is the append-only startup log.
func (l Layout) StartupLogPath() string { return l.Abs(startupLogName) }

// RequirementsPath is the dependency manifest consumed by the installer.
func (l Layout) RequirementsPath() string { return l.Abs(requirementsName) }

// VenvDir is the isolated runtime environment directory.
func (l Layout) VenvDir() string { return l.Abs(venvDirName) }

// VenvPython is the interpreter inside the isolated environment.
func (l Layout) VenvPython() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(l.VenvDir(), "Scripts", "python.exe")
	}
	return filepath.Join(l.VenvDir(), "bin", "python")
}

// LauncherPath is the absolute path of the application entry point.
func (l Layout) LauncherPath() string { return l.Abs(l.Launcher) }
