package diag

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/stepbystep/preflight/internal/deps"
)

// Requirement statuses reported per audited package.
const (
	StatusOK       = "ok"
	StatusOutdated = "outdated"
	StatusMissing  = "missing"
	StatusUnknown  = "unknown"
)

// Requirement is one parsed line of the dependency manifest.
type Requirement struct {
	// Name is the normalized package name.
	Name string
	// Op is the comparison operator, empty for a bare name.
	Op string
	// Version is the version the operator compares against.
	Version string
	// Raw preserves the requirement line for display, e.g. ">=1.2".
	Raw string
}

var (
	requirementLine = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*([<>=!~]+\s*\S+)?\s*$`)
	specParts       = regexp.MustCompile(`^(>=|<=|==|!=|~=|>|<)?\s*(\S+)$`)
	versionDigits   = regexp.MustCompile(`\d+`)
)

// parseRequirements reads a pip requirements file. Unparseable lines
// are skipped; a missing file yields no requirements.
func parseRequirements(path string) ([]Requirement, error) {
	handle, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read requirements: %w", err)
	}
	defer handle.Close()

	var requirements []Requirement
	scanner := bufio.NewScanner(handle)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Drop trailing comments and environment markers.
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		match := requirementLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		req := Requirement{Name: deps.NormalizeName(match[1])}
		if spec := strings.TrimSpace(match[2]); spec != "" {
			req.Raw = spec
			if parts := specParts.FindStringSubmatch(spec); parts != nil {
				req.Op = parts[1]
				req.Version = parts[2]
			}
		}
		requirements = append(requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return requirements, fmt.Errorf("read requirements: %w", err)
	}
	return requirements, nil
}

// normalizeVersion turns a Python version string into a semver value:
// the first three numeric components, zero-padded. Returns "" when no
// digits are present.
func normalizeVersion(raw string) string {
	parts := versionDigits.FindAllString(raw, 3)
	if len(parts) == 0 {
		return ""
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return "v" + strings.Join(parts, ".")
}

// requirementStatus compares an installed version against a parsed
// requirement. Versions that cannot be compared report unknown rather
// than failing the audit.
func requirementStatus(installedVersion string, req Requirement) string {
	if req.Op == "" || req.Version == "" {
		return StatusOK
	}
	current := normalizeVersion(installedVersion)
	target := normalizeVersion(req.Version)
	if !semver.IsValid(current) || !semver.IsValid(target) {
		return StatusUnknown
	}

	cmp := semver.Compare(current, target)
	var met bool
	switch req.Op {
	case ">":
		met = cmp > 0
	case ">=", "~=":
		met = cmp >= 0
	case "<":
		met = cmp < 0
	case "<=":
		met = cmp <= 0
	case "==":
		met = cmp == 0
	case "!=":
		met = cmp != 0
	default:
		return StatusUnknown
	}
	if met {
		return StatusOK
	}
	return StatusOutdated
}
