package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/stepbystep/preflight/internal/integrity"
	"github.com/stepbystep/preflight/internal/selftest"
	"github.com/stepbystep/preflight/internal/startup"
)

func plainOutput(t *testing.T) {
	t.Helper()
	previous := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = previous })
}

func TestPreviewList(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		max   int
		want  []string
	}{
		{
			name:  "short list unchanged",
			items: []string{"a", "b"},
			max:   5,
			want:  []string{"a", "b"},
		},
		{
			name:  "exact limit unchanged",
			items: []string{"a", "b", "c"},
			max:   3,
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "long list truncated",
			items: []string{"a", "b", "c", "d"},
			max:   2,
			want:  []string{"a", "b", "... and 2 more"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := previewList(tt.items, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestPrintReportSections(t *testing.T) {
	plainOutput(t)

	report := &startup.Report{
		RunID:                 "run-1234",
		LastRun:               "2026-08-25T09:00:00Z",
		AllPassed:             true,
		CreatedVirtualenv:     true,
		InstalledDependencies: true,
		RepairedPaths:         []string{"data/settings.json", "data/archive.db"},
		DependencyMessages:    []string{"install requirements.txt"},
		Messages:              []string{"virtual environment created"},
		SelfTests: []selftest.Result{
			{Name: "settings", Passed: true, Details: "settings are complete"},
			{Name: "archive", Passed: true, Details: "archive responds"},
		},
		RelaunchCommand: []string{"/ws/.venv/bin/python", "/ws/start_tool.py"},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"=== Startup Report ===",
		"run-1234",
		"Virtualenv: created",
		"Repaired paths (2):",
		"data/settings.json",
		"✓ settings: settings are complete",
		"✓ archive: archive responds",
		"Messages (1):",
		"Relaunch: /ws/.venv/bin/python /ws/start_tool.py",
		"All self-tests passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintReportFailingRun(t *testing.T) {
	plainOutput(t)

	report := &startup.Report{
		RunID: "run-5678",
		SelfTests: []selftest.Result{
			{Name: "archive", Passed: false, Details: "ping failed"},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	if !strings.Contains(out, "Some self-tests failed") {
		t.Errorf("Expected a failure footer, got:\n%s", out)
	}
	if !strings.Contains(out, "✗ archive: ping failed") {
		t.Errorf("Expected the failing self-test to be marked, got:\n%s", out)
	}
	if strings.Contains(out, "Virtualenv: created") {
		t.Error("Expected no virtualenv line when nothing was created")
	}
}

func TestPrintSecuritySummary(t *testing.T) {
	plainOutput(t)

	sum := &integrity.Summary{
		Status:          integrity.StatusAttention,
		Verified:        9,
		Issues:          []string{"progress.txt: file is missing"},
		Backups:         []string{"data/backups/settings_20260825.json"},
		SizeAlerts:      []string{"data/archive.json: file size changed from 10 to 99999 bytes"},
		UpdatedManifest: true,
	}

	var buf bytes.Buffer
	printSecuritySummary(&buf, sum)
	out := buf.String()

	for _, want := range []string{
		"Data integrity:",
		"9 file(s) verified, 1 issue(s)",
		"✗ progress.txt: file is missing",
		"backup: data/backups/settings_20260825.json",
		"⚠ data/archive.json: file size changed",
		"checksum manifest updated",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintJSONRoundTrip(t *testing.T) {
	report := &startup.Report{RunID: "run-json", Messages: []string{"ok"}}

	var buf bytes.Buffer
	if err := printJSON(&buf, report); err != nil {
		t.Fatalf("printJSON failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %v:\n%s", err, buf.String())
	}
	if decoded["run_id"] != "run-json" {
		t.Errorf("Expected run_id to survive, got %v", decoded["run_id"])
	}
}
