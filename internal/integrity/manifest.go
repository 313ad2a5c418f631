package integrity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stepbystep/preflight/internal/checksum"
)

// Entry records the last known state of one protected file. Entries are
// owned by the Manifest and mutated only during a verification pass.
type Entry struct {
	// Checksum is nil while a file has never been observed. Once a pass
	// has seen the path it is always set, possibly to the absent digest
	// when the file was missing at check time.
	Checksum    *checksum.Digest `json:"sha256"`
	Size        *int64           `json:"size"`
	LastChecked string           `json:"last_checked,omitempty"`
}

// Manifest is the persisted map of protected file paths to their
// recorded digests. Timestamps are RFC 3339 strings; the structure
// template seeds them empty, so they stay strings rather than
// time.Time values.
type Manifest struct {
	Files     map[string]*Entry `json:"files"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// NewManifest returns an empty manifest stamped with now.
func NewManifest(now time.Time) *Manifest {
	stamp := now.Format(time.RFC3339)
	return &Manifest{
		Files:     make(map[string]*Entry),
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
}

// LoadManifest reads the manifest at path. A missing file yields
// (nil, nil) so the caller can rebuild; a present but unreadable or
// malformed file yields an error for the same purpose.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Files == nil {
		m.Files = make(map[string]*Entry)
	}
	return &m, nil
}

// Entry returns the record for rel, creating an empty one on first use.
func (m *Manifest) Entry(rel string) *Entry {
	if e, ok := m.Files[rel]; ok {
		return e
	}
	e := &Entry{}
	m.Files[rel] = e
	return e
}

// Paths returns the manifest's file paths in stable sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for rel := range m.Files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

// Write persists the manifest, refreshing updated_at.
func (m *Manifest) Write(path string, now time.Time) error {
	m.UpdatedAt = now.Format(time.RFC3339)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
