// Package bootstrap prepares the isolated Python runtime the desktop
// application runs in. It creates the virtual environment when missing
// and computes the relaunch command for the caller, but never spawns
// the application itself. Process control stays with the cmd layer so
// everything here is plain input/output.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/stepbystep/preflight/internal/workspace"
)

// RelaunchEnvFlag marks a process that was already started through the
// relaunch command. Its presence suppresses further relaunch plans.
const RelaunchEnvFlag = "STEP_BY_STEP_VENV_ACTIVE"

// DefaultPython is the host interpreter used to create the virtual
// environment when none is configured.
const DefaultPython = "python3"

// Runtime manages the virtual environment of a workspace.
type Runtime struct {
	layout workspace.Layout
	python string
	logger *slog.Logger
}

// NewRuntime returns a runtime manager. python is the host interpreter
// used for environment creation; empty selects DefaultPython.
func NewRuntime(layout workspace.Layout, python string, logger *slog.Logger) *Runtime {
	if python == "" {
		python = DefaultPython
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{layout: layout, python: python, logger: logger}
}

// EnsureVenv creates the virtual environment when its interpreter is
// missing. It reports whether a new environment was created.
func (r *Runtime) EnsureVenv(ctx context.Context) (bool, error) {
	venvPython := r.layout.VenvPython()
	if _, err := os.Stat(venvPython); err == nil {
		r.logger.Debug("virtual environment present", "python", venvPython)
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("inspect virtualenv interpreter: %w", err)
	}

	r.logger.Info("creating virtual environment", "dir", r.layout.VenvDir())
	cmd := exec.CommandContext(ctx, r.python, "-m", "venv", r.layout.VenvDir())
	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("create virtualenv with %s: %w", r.python, err)
	}
	if _, err := os.Stat(venvPython); err != nil {
		return false, fmt.Errorf("virtualenv created but interpreter missing at %s", venvPython)
	}

	r.logger.Info("virtual environment created", "python", venvPython)
	return true, nil
}

// Python returns the interpreter dependency installs should use: the
// virtual environment's interpreter when it exists, otherwise the host
// interpreter.
func (r *Runtime) Python() string {
	venvPython := r.layout.VenvPython()
	if _, err := os.Stat(venvPython); err == nil {
		return venvPython
	}
	return r.python
}

// Plan describes how the caller should relaunch the application inside
// the virtual environment.
type Plan struct {
	// Path is the interpreter to execute.
	Path string
	// Args are the launcher script and the forwarded arguments.
	Args []string
	// Env holds extra environment entries marking the relaunch.
	Env []string
}

// Command returns the full relaunch command line for display and for
// the startup report.
func (p *Plan) Command() []string {
	return append([]string{p.Path}, p.Args...)
}

// RelaunchPlan decides whether the application must be restarted inside
// the virtual environment. It returns nil when the environment's
// interpreter is missing, when the relaunch marker is already set, or
// when argv already names that interpreter. The function only inspects
// its inputs; spawning is the caller's decision.
func (r *Runtime) RelaunchPlan(argv []string, getenv func(string) string) *Plan {
	venvPython := r.layout.VenvPython()
	if _, err := os.Stat(venvPython); err != nil {
		return nil
	}
	if getenv(RelaunchEnvFlag) != "" {
		return nil
	}
	if len(argv) > 0 && filepath.Clean(argv[0]) == filepath.Clean(venvPython) {
		return nil
	}

	args := []string{r.layout.LauncherPath()}
	if len(argv) > 1 {
		args = append(args, argv[1:]...)
	}
	return &Plan{
		Path: venvPython,
		Args: args,
		Env:  []string{RelaunchEnvFlag + "=1"},
	}
}
