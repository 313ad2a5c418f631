package diag

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRequirements(t *testing.T) {
	content := `# UI dependencies
ttkbootstrap>=1.10
simpleaudio == 1.0.4
Snake_Case_Pkg~=2.1
bare_name

pinned==3.0  # keep in sync with the docs
markered>=1.0; python_version < "3.9"
not a valid line!!!
`
	path := filepath.Join(t.TempDir(), "requirements.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	requirements, err := parseRequirements(path)
	if err != nil {
		t.Fatalf("parseRequirements failed: %v", err)
	}
	if len(requirements) != 6 {
		t.Fatalf("Expected 6 requirements, got %d: %v", len(requirements), requirements)
	}

	byName := make(map[string]Requirement)
	for _, req := range requirements {
		byName[req.Name] = req
	}

	if req := byName["ttkbootstrap"]; req.Op != ">=" || req.Version != "1.10" {
		t.Errorf("Expected ttkbootstrap >= 1.10, got %+v", req)
	}
	if req := byName["simpleaudio"]; req.Op != "==" || req.Version != "1.0.4" {
		t.Errorf("Expected simpleaudio == 1.0.4, got %+v", req)
	}
	if req, ok := byName["snake-case-pkg"]; !ok || req.Op != "~=" {
		t.Errorf("Expected normalized snake-case-pkg with ~=, got %+v", req)
	}
	if req := byName["bare-name"]; req.Op != "" || req.Raw != "" {
		t.Errorf("Expected bare requirement, got %+v", req)
	}
	if req := byName["pinned"]; req.Version != "3.0" {
		t.Errorf("Expected comment stripped from pinned, got %+v", req)
	}
	if req := byName["markered"]; req.Version != "1.0" {
		t.Errorf("Expected environment marker stripped, got %+v", req)
	}
}

func TestParseRequirementsMissingFile(t *testing.T) {
	requirements, err := parseRequirements(filepath.Join(t.TempDir(), "requirements.txt"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if len(requirements) != 0 {
		t.Errorf("Expected no requirements, got %v", requirements)
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.10.1", "v1.10.1"},
		{"2.0", "v2.0.0"},
		{"1", "v1.0.0"},
		{"3.12.1rc1", "v3.12.1"},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeVersion(tt.in); got != tt.want {
			t.Errorf("Expected %q to normalize to %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestRequirementStatus(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		op        string
		version   string
		want      string
	}{
		{"minimum met", "1.10.1", ">=", "1.0", StatusOK},
		{"minimum missed", "0.9", ">=", "1.0", StatusOutdated},
		{"pin matched", "1.0.4", "==", "1.0.4", StatusOK},
		{"pin missed", "1.0.4", "==", "2.0", StatusOutdated},
		{"upper bound ok", "1.0", "<=", "2.0", StatusOK},
		{"upper bound exceeded", "2.1", "<", "2.0", StatusOutdated},
		{"compatible release", "1.10", "~=", "1.2", StatusOK},
		{"strictly greater equal value", "1.0", ">", "1.0", StatusOutdated},
		{"exclusion hit", "1.0", "!=", "1.0", StatusOutdated},
		{"exclusion clear", "1.1", "!=", "1.0", StatusOK},
		{"bare requirement", "1.0", "", "", StatusOK},
		{"uncomparable installed", "nightly", ">=", "1.0", StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Requirement{Name: "pkg", Op: tt.op, Version: tt.version}
			if got := requirementStatus(tt.installed, req); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
