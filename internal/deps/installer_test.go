package deps

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstaller(t *testing.T, interpreter string, timeout time.Duration) *Installer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewInstaller(interpreter, timeout, logger)
}

func TestInstallPackageSuccess(t *testing.T) {
	inst := testInstaller(t, "sh", 0)

	out := inst.InstallPackage(context.Background(), "demo", []string{"-c", "echo installed demo"}, "install demo")
	require.NotNil(t, out)
	assert.True(t, out.Success)
	assert.Equal(t, "installed demo", out.Stdout)
	assert.False(t, out.OfflineDetected)
	assert.Empty(t, out.OfflineHint)
}

func TestInstallPackageNonZeroExitNeverPanics(t *testing.T) {
	inst := testInstaller(t, "sh", 0)

	out := inst.InstallPackage(context.Background(), "demo", []string{"-c", "echo boom >&2; exit 3"}, "install demo")
	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.Equal(t, "boom", out.Stderr)
	assert.False(t, out.OfflineDetected)
}

func TestInstallPackageSpawnFailure(t *testing.T) {
	inst := testInstaller(t, "/nonexistent/bin/python3", 0)

	out := inst.InstallPackage(context.Background(), "demo", nil, "install demo")
	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Stderr, "spawn failures must explain themselves in stderr")
}

func TestInstallPackageDefaultDescription(t *testing.T) {
	inst := testInstaller(t, "sh", 0)

	out := inst.InstallPackage(context.Background(), "simpleaudio", []string{"-c", "true"}, "")
	assert.Equal(t, "install simpleaudio", out.Description)
}

func TestOfflineClassification(t *testing.T) {
	tests := []struct {
		name        string
		script      string
		wantOffline bool
		wantHint    string
	}{
		{
			name:        "dns failure",
			script:      `echo "Name or service not known" >&2; exit 1`,
			wantOffline: true,
			wantHint:    offlineMessage,
		},
		{
			name:        "unreachable network",
			script:      `echo "network is unreachable" >&2; exit 1`,
			wantOffline: true,
			wantHint:    offlineMessage,
		},
		{
			name:        "timeout phrasing",
			script:      `echo "Connection timed out" >&2; exit 1`,
			wantOffline: true,
			wantHint:    timeoutMessage,
		},
		{
			name:        "unrelated failure",
			script:      `echo "permission denied" >&2; exit 1`,
			wantOffline: false,
			wantHint:    "",
		},
		{
			name:        "marker on stdout only",
			script:      `echo "proxy connection failed"; exit 1`,
			wantOffline: true,
			wantHint:    offlineMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := testInstaller(t, "sh", 0)
			out := inst.InstallPackage(context.Background(), "demo", []string{"-c", tt.script}, "install demo")
			assert.False(t, out.Success)
			assert.Equal(t, tt.wantOffline, out.OfflineDetected)
			assert.Equal(t, tt.wantHint, out.OfflineHint)
		})
	}
}

func TestInstallTimeout(t *testing.T) {
	inst := testInstaller(t, "sh", 100*time.Millisecond)

	start := time.Now()
	out := inst.InstallPackage(context.Background(), "demo", []string{"-c", "sleep 5"}, "install demo")
	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.Contains(t, out.Stderr, "timed out")
	assert.True(t, out.OfflineDetected)
	assert.Equal(t, timeoutMessage, out.OfflineHint)
	assert.Less(t, time.Since(start), 3*time.Second, "the timeout must cut the subprocess short")
}

func TestInstallManifestMissingFile(t *testing.T) {
	inst := testInstaller(t, "sh", 0)

	out, err := inst.InstallManifest(context.Background(), filepath.Join(t.TempDir(), "requirements.txt"), "install requirements")
	require.NoError(t, err)
	assert.Nil(t, out, "a missing manifest means nothing to do, not a failure")
}

func TestInstallManifestPresentFileRuns(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "requirements.txt")
	require.NoError(t, os.WriteFile(manifest, []byte("ttkbootstrap==1.10.1\n"), 0o644))

	inst := testInstaller(t, "sh", 0)
	out, err := inst.InstallManifest(context.Background(), manifest, "install requirements")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "install requirements", out.Description)
}

func TestAvailable(t *testing.T) {
	yes := testInstaller(t, "true", 0)
	assert.True(t, yes.Available(context.Background(), "anything"))

	no := testInstaller(t, "false", 0)
	assert.False(t, no.Available(context.Background(), "anything"))
}

func TestOfflineHintTable(t *testing.T) {
	for _, marker := range offlineMarkers {
		if got := offlineHint("ERROR: " + marker + " while fetching"); got != offlineMessage {
			t.Errorf("Expected marker %q to classify as offline, got %q", marker, got)
		}
	}
	if got := offlineHint("permission denied"); got != "" {
		t.Errorf("Expected unrelated text to stay unclassified, got %q", got)
	}
}

func stubInterpreter(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestPythonVersion(t *testing.T) {
	inst := testInstaller(t, stubInterpreter(t, `echo "Python 3.12.1"`), 0)

	version, err := inst.PythonVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Python 3.12.1", version)
}

func TestPythonVersionFromStderr(t *testing.T) {
	inst := testInstaller(t, stubInterpreter(t, `echo "Python 2.7.18" >&2`), 0)

	version, err := inst.PythonVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Python 2.7.18", version)
}

func TestPythonVersionFailure(t *testing.T) {
	inst := testInstaller(t, "false", 0)

	_, err := inst.PythonVersion(context.Background())
	assert.Error(t, err)
}

func TestInstalledVersions(t *testing.T) {
	body := `cat <<'OUT'
ttkbootstrap==1.10.1
Simple_Audio==1.0.4
editable @ file:///tmp/editable
OUT`
	inst := testInstaller(t, stubInterpreter(t, body), 0)

	versions, err := inst.InstalledVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.10.1", versions["ttkbootstrap"])
	assert.Equal(t, "1.0.4", versions["simple-audio"], "names are normalized like pip does")
	assert.Len(t, versions, 2, "unpinned lines are skipped")
}

func TestInstalledVersionsFailure(t *testing.T) {
	inst := testInstaller(t, "false", 0)

	_, err := inst.InstalledVersions(context.Background())
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ttkbootstrap", "ttkbootstrap"},
		{"Simple_Audio", "simple-audio"},
		{"  SPACED  ", "spaced"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("Expected %q to normalize to %q, got %q", tt.in, tt.want, got)
		}
	}
}
