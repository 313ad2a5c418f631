// Package diag collects a support snapshot of the host, the Python
// runtime, the workspace paths, and the installed packages, and renders
// it as JSON and HTML reports. The snapshot is advisory: collection
// problems become summary issues, never errors that stop startup.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/stepbystep/preflight/internal/bootstrap"
	"github.com/stepbystep/preflight/internal/deps"
	"github.com/stepbystep/preflight/internal/workspace"
)

// Snapshot is the collected diagnostics payload.
type Snapshot struct {
	GeneratedAt    string          `json:"generated_at"`
	Host           HostInfo        `json:"host"`
	Python         PythonInfo      `json:"python"`
	Virtualenv     VenvInfo        `json:"virtualenv"`
	Paths          []PathStatus    `json:"paths"`
	Packages       []PackageStatus `json:"packages"`
	Counts         Counts          `json:"counts"`
	Summary        Summary         `json:"summary"`
	Startup        map[string]any  `json:"startup"`
	HTMLReportPath string          `json:"html_report_path"`
}

// HostInfo describes the machine running the checks.
type HostInfo struct {
	GoVersion     string `json:"go_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Hostname      string `json:"hostname"`
	Workspace     string `json:"workspace"`
	DiskFreeBytes uint64 `json:"disk_free_bytes"`
}

// PythonInfo describes the interpreter dependency installs use.
type PythonInfo struct {
	Executable string `json:"executable"`
	Version    string `json:"version"`
}

// VenvInfo describes the isolated runtime environment.
type VenvInfo struct {
	Present bool   `json:"present"`
	Active  bool   `json:"active"`
	Path    string `json:"path"`
	Python  string `json:"python"`
}

// PathStatus is one checked workspace path.
type PathStatus struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Exists   bool   `json:"exists"`
	Writable bool   `json:"writable"`
}

// PackageStatus is the audit result for one required package.
type PackageStatus struct {
	Name             string `json:"name"`
	Purpose          string `json:"purpose"`
	Installed        bool   `json:"installed"`
	Version          string `json:"version"`
	Required         string `json:"required"`
	MeetsRequirement bool   `json:"meets_requirement"`
	Status           string `json:"status"`
	Message          string `json:"message"`
}

// Counts are quick totals for the support overview.
type Counts struct {
	ProtectedPresent int `json:"protected_present"`
	ProtectedMissing int `json:"protected_missing"`
	Backups          int `json:"backups"`
	LogLines         int `json:"log_lines"`
}

// Summary condenses the findings.
type Summary struct {
	Status          string   `json:"status"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Collector gathers diagnostics for a workspace.
type Collector struct {
	layout    workspace.Layout
	installer *deps.Installer
	logger    *slog.Logger
	now       func() time.Time
}

// NewCollector returns a collector. The installer provides interpreter
// and package queries; it must target the same interpreter the
// application will run with.
func NewCollector(layout workspace.Layout, installer *deps.Installer, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{layout: layout, installer: installer, logger: logger, now: time.Now}
}

// Collect gathers the full snapshot. startup carries report values the
// orchestrator wants echoed into the diagnostics, may be nil.
func (c *Collector) Collect(ctx context.Context, startup map[string]any) *Snapshot {
	snapshot := &Snapshot{
		GeneratedAt: c.now().Format(time.RFC3339),
		Host:        c.collectHost(),
		Virtualenv:  c.collectVenv(),
		Paths:       c.collectPaths(),
		Counts:      c.collectCounts(),
		Startup:     startup,
	}
	if snapshot.Startup == nil {
		snapshot.Startup = map[string]any{}
	}

	snapshot.Python = c.collectPython(ctx)
	snapshot.Packages = c.collectPackages(ctx)
	snapshot.Summary = buildSummary(snapshot)
	return snapshot
}

func (c *Collector) collectHost() HostInfo {
	host := HostInfo{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Workspace: c.layout.Root,
	}
	if name, err := os.Hostname(); err == nil {
		host.Hostname = name
	}
	if free, err := diskFree(c.layout.Root); err == nil {
		host.DiskFreeBytes = free
	} else {
		c.logger.Debug("disk space query failed", "error", err)
	}
	return host
}

func (c *Collector) collectPython(ctx context.Context) PythonInfo {
	info := PythonInfo{Executable: c.layout.VenvPython()}
	if _, err := os.Stat(info.Executable); err != nil {
		info.Executable = bootstrap.DefaultPython
	}
	if c.installer == nil {
		return info
	}
	version, err := c.installer.PythonVersion(ctx)
	if err != nil {
		c.logger.Warn("interpreter version query failed", "error", err)
		return info
	}
	info.Version = version
	return info
}

func (c *Collector) collectVenv() VenvInfo {
	venvPython := c.layout.VenvPython()
	_, err := os.Stat(venvPython)
	return VenvInfo{
		Present: err == nil,
		Active:  os.Getenv(bootstrap.RelaunchEnvFlag) != "",
		Path:    c.layout.VenvDir(),
		Python:  venvPython,
	}
}

func (c *Collector) collectPaths() []PathStatus {
	var statuses []PathStatus
	for _, dir := range c.layout.Dirs {
		statuses = append(statuses, checkPath(c.layout.Abs(dir), dir, "folder"))
	}
	statuses = append(statuses, checkPath(c.layout.StartupLogPath(), "logs/startup.log", "file"))
	return statuses
}

func checkPath(abs, rel, kind string) PathStatus {
	_, err := os.Stat(abs)
	exists := err == nil
	probe := abs
	if !exists {
		probe = filepath.Dir(abs)
	}
	return PathStatus{Path: rel, Kind: kind, Exists: exists, Writable: writable(probe)}
}

func (c *Collector) collectCounts() Counts {
	var counts Counts
	for _, rel := range c.layout.Protected {
		if _, err := os.Stat(c.layout.Abs(rel)); err == nil {
			counts.ProtectedPresent++
		} else {
			counts.ProtectedMissing++
		}
	}
	if backups, err := filepath.Glob(filepath.Join(c.layout.BackupDir(), "*.bak")); err == nil {
		counts.Backups = len(backups)
	}
	if data, err := os.ReadFile(c.layout.StartupLogPath()); err == nil {
		counts.LogLines = strings.Count(string(data), "\n")
	}
	return counts
}

// purposeMap explains why the fallback packages matter. Packages known
// only from the manifest get a generic purpose.
var purposeMap = map[string]string{
	"ttkbootstrap": "user interface theming",
	"simpleaudio":  "audio playback",
}

func (c *Collector) collectPackages(ctx context.Context) []PackageStatus {
	requirements, err := parseRequirements(c.layout.RequirementsPath())
	if err != nil {
		c.logger.Warn("requirements file unreadable", "error", err)
	}

	specs := make(map[string]Requirement, len(requirements))
	names := make(map[string]bool, len(requirements)+len(purposeMap))
	for _, req := range requirements {
		specs[req.Name] = req
		names[req.Name] = true
	}
	for name := range purposeMap {
		names[name] = true
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var installed map[string]string
	if c.installer != nil {
		installed, err = c.installer.InstalledVersions(ctx)
		if err != nil {
			c.logger.Warn("package version query failed", "error", err)
		}
	}

	statuses := make([]PackageStatus, 0, len(ordered))
	for _, name := range ordered {
		statuses = append(statuses, c.auditPackage(ctx, name, specs[name], installed))
	}
	return statuses
}

func (c *Collector) auditPackage(ctx context.Context, name string, req Requirement, installed map[string]string) PackageStatus {
	status := PackageStatus{Name: name, Required: req.Raw}
	if purpose, ok := purposeMap[name]; ok {
		status.Purpose = purpose
	} else {
		status.Purpose = "dependency"
	}

	version, inFreeze := installed[name]
	if inFreeze {
		status.Installed = true
		status.Version = version
	} else if c.installer != nil && c.installer.Available(ctx, importName(name)) {
		// Importable but not pip-managed; the version stays unknown.
		status.Installed = true
	}

	if !status.Installed {
		status.Status = StatusMissing
		status.MeetsRequirement = false
		status.Message = fmt.Sprintf("not installed, run 'python -m pip install %s'", name)
		if req.Raw != "" {
			status.Message += fmt.Sprintf(" (requires %s)", req.Raw)
		}
		return status
	}

	if status.Version == "" && req.Raw != "" {
		status.Status = StatusUnknown
		status.MeetsRequirement = true
		status.Message = fmt.Sprintf("installed, version unknown (requires %s)", req.Raw)
		return status
	}

	status.Status = requirementStatus(status.Version, req)
	switch status.Status {
	case StatusOutdated:
		status.MeetsRequirement = false
		status.Message = fmt.Sprintf("version %s does not meet %s", status.Version, req.Raw)
	case StatusUnknown:
		status.MeetsRequirement = true
		status.Message = fmt.Sprintf("version %s not comparable with %s", status.Version, req.Raw)
	default:
		status.MeetsRequirement = true
		status.Message = "package available"
	}
	return status
}

// importName maps a distribution name to the module probed with
// "import". The hyphen/underscore flip is the common difference.
func importName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func buildSummary(snapshot *Snapshot) Summary {
	summary := Summary{Status: "ok", Issues: []string{}, Recommendations: []string{}}

	if !snapshot.Virtualenv.Present {
		summary.Recommendations = append(summary.Recommendations,
			"virtual environment missing, it will be created on the next run")
	}

	for _, path := range snapshot.Paths {
		if !path.Exists {
			summary.Issues = append(summary.Issues, fmt.Sprintf("path %s is missing", path.Path))
			summary.Recommendations = append(summary.Recommendations,
				fmt.Sprintf("run the startup again to recreate %s", path.Path))
		} else if !path.Writable {
			summary.Issues = append(summary.Issues, fmt.Sprintf("path %s is not writable", path.Path))
			summary.Recommendations = append(summary.Recommendations,
				fmt.Sprintf("check permissions on %s", path.Path))
		}
	}

	for _, pkg := range snapshot.Packages {
		switch pkg.Status {
		case StatusMissing:
			summary.Issues = append(summary.Issues,
				fmt.Sprintf("package %s (%s) is missing", pkg.Name, pkg.Purpose))
			summary.Recommendations = append(summary.Recommendations, pkg.Message)
		case StatusOutdated:
			summary.Issues = append(summary.Issues,
				fmt.Sprintf("package %s does not meet %s (version %s)", pkg.Name, pkg.Required, pkg.Version))
			summary.Recommendations = append(summary.Recommendations,
				fmt.Sprintf("upgrade with 'python -m pip install --upgrade %s'", pkg.Name))
		}
	}

	if len(summary.Issues) > 0 {
		summary.Status = "attention"
	}
	return summary
}

// SummaryLines renders short report messages from a snapshot, in the
// order the startup report shows them.
func SummaryLines(snapshot *Snapshot) []string {
	var lines []string
	if count := len(snapshot.Summary.Issues); count > 0 {
		lines = append(lines, fmt.Sprintf(
			"system diagnostics (%s): %d issue(s) found, details in the diagnostics report",
			snapshot.GeneratedAt, count))
	} else {
		lines = append(lines, fmt.Sprintf(
			"system diagnostics (%s): no findings", snapshot.GeneratedAt))
	}

	if snapshot.Virtualenv.Present {
		lines = append(lines, "virtual environment is in place")
	} else {
		lines = append(lines, "tool runs without a virtual environment")
	}

	var missing, outdated []string
	for _, pkg := range snapshot.Packages {
		switch pkg.Status {
		case StatusMissing:
			missing = append(missing, pkg.Name)
		case StatusOutdated:
			outdated = append(outdated, pkg.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, "missing packages: "+strings.Join(missing, ", "))
	}
	if len(outdated) > 0 {
		lines = append(lines, "version mismatch for: "+strings.Join(outdated, ", "))
	}

	if snapshot.HTMLReportPath != "" {
		lines = append(lines, "HTML overview saved to "+snapshot.HTMLReportPath)
	}
	return lines
}
