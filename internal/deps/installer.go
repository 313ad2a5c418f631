// Package deps installs the application's runtime dependencies through
// the host package manager. Installs run as subprocesses and never
// surface process failures as errors: every invocation produces a
// structured Outcome so an unattended startup can report what happened
// and keep going, including on hosts with no network access.
package deps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single installer invocation. A hung installer
// becomes a failed Outcome instead of stalling the whole pipeline.
const DefaultTimeout = 120 * time.Second

// Outcome describes one installer invocation. Immutable once returned.
type Outcome struct {
	Description     string `json:"description"`
	Success         bool   `json:"success"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	OfflineDetected bool   `json:"offline_detected"`
	OfflineHint     string `json:"offline_hint,omitempty"`
}

// PackageCommand names a fallback package and the interpreter arguments
// that install it when the import probe fails.
type PackageCommand struct {
	Name string
	Args []string
}

// DefaultPackageCommands returns the fallback installs attempted for
// packages the dependency manifest may not cover.
func DefaultPackageCommands() []PackageCommand {
	return []PackageCommand{
		{Name: "ttkbootstrap", Args: []string{"-m", "pip", "install", "ttkbootstrap"}},
		{Name: "simpleaudio", Args: []string{"-m", "pip", "install", "simpleaudio"}},
	}
}

// Installer wraps the host package manager. No retry policy lives here;
// retries belong to the orchestrator if anyone ever wants them.
type Installer struct {
	python  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewInstaller returns an installer invoking the given interpreter. A
// timeout of 0 falls back to DefaultTimeout.
func NewInstaller(python string, timeout time.Duration, logger *slog.Logger) *Installer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{python: python, timeout: timeout, logger: logger}
}

// InstallManifest installs from a dependency manifest file. A missing
// manifest returns (nil, nil): nothing to do is not a failure.
func (inst *Installer) InstallManifest(ctx context.Context, manifestPath, description string) (*Outcome, error) {
	if _, err := os.Stat(manifestPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", manifestPath, err)
	}
	return inst.run(ctx, []string{"-m", "pip", "install", "-r", manifestPath}, description), nil
}

// InstallPackage installs a single named package with the given
// interpreter arguments.
func (inst *Installer) InstallPackage(ctx context.Context, name string, args []string, description string) *Outcome {
	if description == "" {
		description = fmt.Sprintf("install %s", name)
	}
	return inst.run(ctx, args, description)
}

// Available probes whether the named package can be imported by the
// interpreter. Probe failures count as "not installed".
func (inst *Installer) Available(ctx context.Context, name string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, inst.timeout)
	defer cancel()
	return exec.CommandContext(probeCtx, inst.python, "-c", "import "+name).Run() == nil
}

// PythonVersion reports the interpreter's version banner, e.g.
// "Python 3.12.1". Old interpreters print it to stderr.
func (inst *Installer) PythonVersion(ctx context.Context) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, inst.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, inst.python, "--version")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("query interpreter version: %w", err)
	}

	version := strings.TrimSpace(stdout.String())
	if version == "" {
		version = strings.TrimSpace(stderr.String())
	}
	return version, nil
}

// InstalledVersions returns the package versions pip reports, keyed by
// normalized package name. Lines pip freeze emits for editable or
// URL-based installs carry no pinned version and are skipped.
func (inst *Installer) InstalledVersions(ctx context.Context) (map[string]string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, inst.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, inst.python, "-m", "pip", "freeze")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("query installed packages: %w", err)
	}

	versions := make(map[string]string)
	for _, line := range strings.Split(stdout.String(), "\n") {
		name, version, found := strings.Cut(strings.TrimSpace(line), "==")
		if !found || name == "" {
			continue
		}
		versions[NormalizeName(name)] = strings.TrimSpace(version)
	}
	return versions, nil
}

// NormalizeName folds a package name the way pip does: lowercase with
// underscores treated as hyphens.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// run invokes the interpreter and converts every possible failure into
// a structured Outcome.
func (inst *Installer) run(ctx context.Context, args []string, description string) *Outcome {
	runCtx, cancel := context.WithTimeout(ctx, inst.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inst.python, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	inst.logger.Info("running installer", "description", description, "command", inst.python+" "+strings.Join(args, " "))
	err := cmd.Run()

	out := &Outcome{
		Description: description,
		Success:     err == nil,
		Stdout:      strings.TrimSpace(stdout.String()),
		Stderr:      strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return out
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		note := fmt.Sprintf("command timed out after %s", inst.timeout)
		if out.Stderr == "" {
			out.Stderr = note
		} else {
			out.Stderr += "\n" + note
		}
	} else {
		// Spawn failures (missing executable, permissions) carry their
		// explanation only in the error; exit codes keep whatever the
		// process wrote so the classifier can fall back to stdout.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && out.Stderr == "" {
			out.Stderr = err.Error()
		}
	}

	text := out.Stderr
	if text == "" {
		text = out.Stdout
	}
	if hint := offlineHint(text); hint != "" {
		out.OfflineDetected = true
		out.OfflineHint = hint
	}

	inst.logger.Warn("installer failed",
		"description", description,
		"offline", out.OfflineDetected,
		"stderr", out.Stderr)
	return out
}
