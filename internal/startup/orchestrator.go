// Package startup drives the self-repair pipeline that runs before the
// desktop tool comes up: workspace structure, virtual environment,
// dependencies, data integrity, self-tests, and diagnostics, in that
// order. Every step converts its failures into report messages so a
// broken workspace still produces a complete report instead of a stack
// trace.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/stepbystep/preflight/internal/bootstrap"
	"github.com/stepbystep/preflight/internal/config"
	"github.com/stepbystep/preflight/internal/deps"
	"github.com/stepbystep/preflight/internal/diag"
	"github.com/stepbystep/preflight/internal/integrity"
	"github.com/stepbystep/preflight/internal/selftest"
	"github.com/stepbystep/preflight/internal/settings"
	"github.com/stepbystep/preflight/internal/structure"
	"github.com/stepbystep/preflight/internal/vault"
	"github.com/stepbystep/preflight/internal/workspace"
)

// Options configures a startup run beyond the workspace layout.
type Options struct {
	Config config.Config
	// Argv is the invocation that would be re-run inside the virtual
	// environment, typically os.Args.
	Argv   []string
	Logger *slog.Logger
}

// Orchestrator wires the repair managers together and runs them as one
// pipeline.
type Orchestrator struct {
	layout    workspace.Layout
	cfg       config.Config
	argv      []string
	logger    *slog.Logger
	now       func() time.Time
	repairer  *structure.Repairer
	runtime   *bootstrap.Runtime
	integrity integrity.Manager
	relaunch  *bootstrap.Plan
	report    *Report
}

// NewOrchestrator builds the full pipeline for the given workspace.
func NewOrchestrator(layout workspace.Layout, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := vault.New(layout.BackupDir(), opts.Config.BackupKeep, logger)
	return &Orchestrator{
		layout:    layout,
		cfg:       opts.Config,
		argv:      opts.Argv,
		logger:    logger,
		now:       time.Now,
		repairer:  structure.NewRepairer(layout, logger),
		runtime:   bootstrap.NewRuntime(layout, opts.Config.Python, logger),
		integrity: integrity.NewManager(layout, store, logger),
	}
}

// Relaunch returns the plan for re-running the tool inside the virtual
// environment, or nil when no relaunch is needed. Valid after Run.
func (o *Orchestrator) Relaunch() *bootstrap.Plan {
	return o.relaunch
}

type step struct {
	name string
	skip bool
	run  func(context.Context) error
}

// Run executes the whole pipeline and returns the report. Step
// failures and panics become report messages; only context
// cancellation cuts the run short, and even then the report is
// persisted with the remaining steps marked as skipped.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	o.report = newReport()
	o.relaunch = nil
	o.logger.Info("startup checks begin", "run_id", o.report.RunID, "workspace", o.layout.Root)

	if o.trimStartupLog() {
		o.report.AddMessage(fmt.Sprintf("startup log trimmed, last %d lines kept", o.cfg.LogMaxLines))
	}

	steps := []step{
		{name: "structure", run: o.runStructure},
		{name: "environment", run: o.runEnvironment},
		{name: "dependencies", skip: o.cfg.SkipDependencies, run: o.runDependencies},
		{name: "integrity", run: o.runIntegrity},
		{name: "self-tests", run: o.runSelfTests},
		{name: "diagnostics", skip: o.cfg.SkipDiagnostics, run: o.runDiagnostics},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			o.report.AddMessage(fmt.Sprintf("%s: skipped, run canceled", s.name))
			o.logger.Warn("step skipped", "step", s.name, "reason", "canceled")
			continue
		}
		if s.skip {
			o.report.AddMessage(fmt.Sprintf("%s skipped by configuration", s.name))
			o.logger.Info("step skipped", "step", s.name, "reason", "configuration")
			continue
		}
		o.runStep(ctx, s)
	}

	o.persistReport()
	o.logger.Info("startup checks finished",
		"run_id", o.report.RunID,
		"all_passed", o.report.AllPassed,
		"messages", len(o.report.Messages))
	return o.report
}

// runStep runs one step, converting errors and panics into report
// messages so the pipeline keeps going.
func (o *Orchestrator) runStep(ctx context.Context, s step) {
	defer func() {
		if r := recover(); r != nil {
			o.report.AddMessage(fmt.Sprintf("%s: %v", s.name, r))
			o.logger.Error("step panicked", "step", s.name, "panic", r)
		}
	}()
	o.logger.Debug("step begin", "step", s.name)
	if err := s.run(ctx); err != nil {
		o.report.AddMessage(fmt.Sprintf("%s: %v", s.name, err))
		o.logger.Error("step failed", "step", s.name, "error", err)
		return
	}
	o.logger.Debug("step done", "step", s.name)
}

func (o *Orchestrator) runStructure(ctx context.Context) error {
	repaired, err := o.repairer.Ensure(ctx)
	for _, rel := range repaired {
		o.report.AddRepairedPath(rel)
	}
	if err != nil {
		return err
	}

	store := settings.NewStore(o.layout.SettingsPath(), o.logger)
	_, notes, err := store.Load()
	if err != nil {
		return fmt.Errorf("settings check: %w", err)
	}
	if len(notes) > 0 {
		o.report.AddRepairedPath("data/settings.json")
		for _, note := range notes {
			o.report.AddMessage("settings note: " + note)
		}
	}
	return nil
}

func (o *Orchestrator) runEnvironment(ctx context.Context) error {
	created, err := o.runtime.EnsureVenv(ctx)
	o.report.CreatedVirtualenv = created
	if created {
		o.report.AddMessage("virtual environment created")
	}
	if err != nil {
		return err
	}
	if plan := o.runtime.RelaunchPlan(o.argv, os.Getenv); plan != nil {
		o.relaunch = plan
		o.report.RelaunchCommand = plan.Command()
		o.report.AddMessage("restart inside the virtual environment required")
	}
	return nil
}

func (o *Orchestrator) runDependencies(ctx context.Context) error {
	installer := o.newInstaller()
	outcome, err := installer.InstallManifest(ctx, o.layout.RequirementsPath(), "install requirements.txt")
	if err != nil {
		return err
	}
	if outcome == nil {
		o.logger.Info("no dependency manifest", "path", o.layout.RequirementsPath())
	} else {
		o.recordOutcome(outcome)
	}
	for _, pkg := range deps.DefaultPackageCommands() {
		if installer.Available(ctx, pkg.Name) {
			o.logger.Debug("package already available", "package", pkg.Name)
			continue
		}
		o.recordOutcome(installer.InstallPackage(ctx, pkg.Name, pkg.Args, ""))
	}
	return nil
}

// recordOutcome folds one installer invocation into the report.
func (o *Orchestrator) recordOutcome(out *deps.Outcome) {
	if out.Success {
		o.report.InstalledDependencies = true
		o.report.DependencyMessages = append(o.report.DependencyMessages, out.Description)
		return
	}
	if out.OfflineHint != "" {
		o.report.AddMessage(fmt.Sprintf("%s failed: %s", out.Description, out.OfflineHint))
		return
	}
	detail := strings.TrimSpace(out.Stderr)
	if detail == "" {
		o.report.AddMessage(out.Description + " failed")
		return
	}
	if idx := strings.IndexByte(detail, '\n'); idx >= 0 {
		detail = detail[:idx]
	}
	o.report.AddMessage(fmt.Sprintf("%s failed: %s", out.Description, detail))
}

func (o *Orchestrator) runIntegrity(ctx context.Context) error {
	summary, err := o.integrity.Verify(ctx)
	if err != nil {
		return err
	}
	o.report.SecuritySummary = summary
	o.report.AddMessage(fmt.Sprintf("data integrity checked: %d files verified, %d issues",
		summary.Verified, len(summary.Issues)))
	for _, issue := range summary.Issues {
		o.report.AddMessage("integrity warning: " + issue)
	}
	for _, backup := range summary.Backups {
		o.report.AddMessage("backup created: " + backup)
	}
	for _, removed := range summary.PrunedBackups {
		o.report.AddMessage("old backup removed: " + removed)
	}
	for _, alert := range summary.SizeAlerts {
		o.report.AddMessage("size alert: " + alert)
	}
	for _, issue := range summary.RestoreIssues {
		o.report.AddMessage("restore hint: " + issue)
	}
	return nil
}

func (o *Orchestrator) runSelfTests(ctx context.Context) error {
	results := selftest.Run(ctx, o.layout, o.logger)
	o.report.SelfTests = results
	for _, res := range results {
		if !res.Passed {
			o.report.AddMessage(fmt.Sprintf("self-test %s failed: %s", res.Name, res.Details))
		}
	}
	return nil
}

func (o *Orchestrator) runDiagnostics(ctx context.Context) error {
	collector := diag.NewCollector(o.layout, o.newInstaller(), o.logger)
	snapshot := collector.Collect(ctx, map[string]any{
		"created_virtualenv":     o.report.CreatedVirtualenv,
		"installed_dependencies": o.report.InstalledDependencies,
		"repaired_paths":         len(o.report.RepairedPaths),
		"self_tests_total":       len(o.report.SelfTests),
		"self_tests_passed":      o.report.AllSelfTestsPassed(),
	})

	// Export before save so the JSON snapshot records the HTML path.
	htmlPath, err := collector.ExportHTML(snapshot)
	if err != nil {
		o.report.AddMessage(fmt.Sprintf("diagnostics HTML export failed: %v", err))
		o.logger.Error("diagnostics HTML export failed", "error", err)
	} else {
		o.report.DiagnosticsHTMLPath = htmlPath
	}
	jsonPath, err := collector.Save(snapshot)
	if err != nil {
		o.report.AddMessage(fmt.Sprintf("diagnostics report not saved: %v", err))
		o.logger.Error("diagnostics report not saved", "error", err)
	} else {
		o.report.DiagnosticsReportPath = jsonPath
	}

	o.report.Diagnostics = snapshot
	o.report.DiagnosticsMessages = diag.SummaryLines(snapshot)
	for _, line := range o.report.DiagnosticsMessages {
		o.logger.Info("diagnostics", "summary", line)
	}
	return nil
}

func (o *Orchestrator) newInstaller() *deps.Installer {
	return deps.NewInstaller(o.runtime.Python(), o.cfg.CommandTimeout(), o.logger)
}

// trimStartupLog keeps the startup log at a bounded size by retaining
// only the newest lines. Reports whether anything was cut.
func (o *Orchestrator) trimStartupLog() bool {
	limit := o.cfg.LogMaxLines
	if limit <= 0 {
		return false
	}
	path := o.layout.StartupLogPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			o.logger.Warn("startup log not readable", "path", path, "error", err)
		}
		return false
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) <= limit {
		return false
	}
	kept := lines[len(lines)-limit:]
	if err := os.WriteFile(path, []byte(strings.Join(kept, "\n")+"\n"), 0o644); err != nil {
		o.logger.Warn("startup log not trimmed", "path", path, "error", err)
		return false
	}
	o.logger.Info("startup log trimmed", "kept", limit, "dropped", len(lines)-limit)
	return true
}

// persistReport stamps and writes the report. A write failure becomes
// one more message; the in-memory report is still returned to callers.
func (o *Orchestrator) persistReport() {
	o.report.LastRun = o.now().Format(time.RFC3339)
	o.report.AllPassed = o.report.AllSelfTestsPassed()
	if err := o.report.write(o.layout.ReportPath()); err != nil {
		o.report.AddMessage(fmt.Sprintf("startup report not saved: %v", err))
		o.logger.Error("startup report not saved", "error", err)
		return
	}
	o.logger.Info("startup report saved", "path", o.layout.ReportPath())
}
