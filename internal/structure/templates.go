package structure

import (
	"encoding/json"

	"github.com/stepbystep/preflight/internal/settings"
)

// templateFile pairs a workspace-relative path with the payload written
// when the file is absent on disk.
type templateFile struct {
	rel     string
	content string
}

// templateFiles returns the seed content for every required data file,
// in repair order. Existing files are never overwritten with these.
func templateFiles() []templateFile {
	return []templateFile{
		{rel: "data/settings.json", content: mustJSON(settings.Defaults())},
		{rel: "data/todo_items.json", content: mustJSON(map[string]any{"items": []any{}})},
		{rel: "data/playlists.json", content: mustJSON(map[string]any{"tracks": []any{}})},
		{rel: "data/archive.json", content: mustJSON(map[string]any{"entries": []any{}})},
		{rel: "data/persistent_notes.txt", content: ""},
		{rel: "data/usage_stats.json", content: mustJSON(map[string]any{})},
		{rel: "data/selftest_report.json", content: mustJSON(reportSkeleton())},
		{rel: "data/release_checklist.json", content: mustJSON(releaseChecklist())},
		{rel: "data/color_audit.json", content: mustJSON(colorAuditSkeleton())},
		{rel: "data/diagnostics_report.json", content: mustJSON(diagnosticsSkeleton())},
		{rel: "data/security_manifest.json", content: mustJSON(manifestSkeleton())},
	}
}

// reportSkeleton is the empty self-test report shown before the first
// startup run has completed.
func reportSkeleton() map[string]any {
	return map[string]any{
		"last_run":                     "",
		"all_passed":                   false,
		"self_tests":                   []any{},
		"created_virtualenv":           false,
		"installed_dependencies":       false,
		"messages":                     []any{},
		"repaired_paths":               []any{},
		"dependency_messages":          []any{},
		"security_summary":             securitySkeleton(),
		"color_audit":                  colorAuditSkeleton(),
		"diagnostics":                  diagnosticsSkeleton(),
		"diagnostics_messages":         []any{},
		"diagnostics_report_path":      "",
		"diagnostics_report_html_path": "",
	}
}

func securitySkeleton() map[string]any {
	return map[string]any{
		"status":           "unknown",
		"verified":         0,
		"issues":           []any{},
		"backups":          []any{},
		"size_alerts":      []any{},
		"pruned_backups":   []any{},
		"restore_points":   []any{},
		"restore_issues":   []any{},
		"updated_manifest": false,
		"timestamp":        "",
	}
}

func colorAuditSkeleton() map[string]any {
	return map[string]any{
		"generated_at":    "",
		"overall_status":  "unknown",
		"worst_ratio":     0.0,
		"themes":          []any{},
		"issues":          []any{},
		"recommendations": []any{},
	}
}

func diagnosticsSkeleton() map[string]any {
	return map[string]any{
		"generated_at": "",
		"python":       map[string]any{},
		"virtualenv":   map[string]any{},
		"paths":        []any{},
		"packages":     []any{},
		"summary": map[string]any{
			"status":          "unknown",
			"issues":          []any{},
			"recommendations": []any{},
		},
		"startup": map[string]any{},
	}
}

func manifestSkeleton() map[string]any {
	return map[string]any{
		"files":      map[string]any{},
		"created_at": "",
		"updated_at": "",
	}
}

type checklistItem struct {
	Title   string `json:"title"`
	Done    bool   `json:"done"`
	Details string `json:"details"`
}

// releaseChecklist seeds the shipped release checklist so the dashboard
// has something to display on a fresh workspace.
func releaseChecklist() map[string]any {
	return map[string]any{
		"items": []checklistItem{
			{
				Title:   "Automatic start with self-tests",
				Done:    true,
				Details: "The launcher runs dependency checks and repairs on every boot.",
			},
			{
				Title:   "Audio format check and normalization",
				Done:    true,
				Details: "The playlist area verifies and converts tracks to WAV.",
			},
			{
				Title:   "Archive export as CSV and JSON",
				Done:    true,
				Details: "Quick links export database entries into data/exports/.",
			},
			{
				Title:   "Startup log searchable in the interface",
				Done:    true,
				Details: "A dedicated panel filters logs/startup.log by search term.",
			},
			{
				Title:   "Final release review",
				Done:    true,
				Details: "End-to-end check documented, release approved.",
			},
		},
		"updated_at": "",
	}
}

// mustJSON renders a template payload as indented JSON. Templates are
// fixed values, so encoding cannot fail at runtime.
func mustJSON(payload any) string {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(data) + "\n"
}
