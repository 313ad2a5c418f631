package startup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/stepbystep/preflight/internal/diag"
	"github.com/stepbystep/preflight/internal/integrity"
	"github.com/stepbystep/preflight/internal/selftest"
)

// Report collects everything a startup run repaired, installed, and
// found. It is persisted after every run for the dashboard and the
// report command.
type Report struct {
	RunID                 string             `json:"run_id"`
	LastRun               string             `json:"last_run"`
	AllPassed             bool               `json:"all_passed"`
	CreatedVirtualenv     bool               `json:"created_virtualenv"`
	InstalledDependencies bool               `json:"installed_dependencies"`
	RepairedPaths         []string           `json:"repaired_paths"`
	DependencyMessages    []string           `json:"dependency_messages"`
	Messages              []string           `json:"messages"`
	SelfTests             []selftest.Result  `json:"self_tests"`
	SecuritySummary       *integrity.Summary `json:"security_summary,omitempty"`
	Diagnostics           *diag.Snapshot     `json:"diagnostics,omitempty"`
	DiagnosticsMessages   []string           `json:"diagnostics_messages,omitempty"`
	DiagnosticsReportPath string             `json:"diagnostics_report_path,omitempty"`
	DiagnosticsHTMLPath   string             `json:"diagnostics_report_html_path,omitempty"`
	RelaunchCommand       []string           `json:"relaunch_command,omitempty"`
}

func newReport() *Report {
	return &Report{
		RunID:              uuid.New().String(),
		RepairedPaths:      []string{},
		DependencyMessages: []string{},
		Messages:           []string{},
		SelfTests:          []selftest.Result{},
	}
}

// AddMessage appends a progress or problem note to the report.
func (r *Report) AddMessage(message string) {
	r.Messages = append(r.Messages, message)
}

// AddRepairedPath records a repaired path once.
func (r *Report) AddRepairedPath(rel string) {
	for _, existing := range r.RepairedPaths {
		if existing == rel {
			return
		}
	}
	r.RepairedPaths = append(r.RepairedPaths, rel)
}

// AllSelfTestsPassed reports whether every recorded self-test passed.
// An empty suite counts as passed.
func (r *Report) AllSelfTestsPassed() bool {
	return selftest.AllPassed(r.SelfTests)
}

// LoadReport reads a persisted report from disk.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &report, nil
}

// write persists the report as indented JSON.
func (r *Report) write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
