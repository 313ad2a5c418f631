// Package logview reads and searches the startup log for display in
// the CLI and the dashboard.
package logview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLimit bounds tail and search output when the caller does not
// ask for a specific number of lines.
const DefaultLimit = 50

// Entry is a single log line with its absolute position in the file.
type Entry struct {
	Line int
	Text string
}

// Reader inspects a textual log file. Missing files are created empty
// so a fresh workspace can be browsed without errors.
type Reader struct {
	path string
}

// NewReader returns a reader for the log file at path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// EnsureExists creates the log file and its directory when missing.
func (r *Reader) EnsureExists() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	handle, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create log file %s: %w", r.path, err)
	}
	return handle.Close()
}

// Tail returns the most recent limit lines.
func (r *Reader) Tail(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	lines, err := r.readLines()
	if err != nil {
		return nil, err
	}
	start := 0
	if len(lines) > limit {
		start = len(lines) - limit
	}
	entries := make([]Entry, 0, len(lines)-start)
	for i := start; i < len(lines); i++ {
		entries = append(entries, Entry{Line: i + 1, Text: lines[i]})
	}
	return entries, nil
}

// Search returns up to limit lines containing term, case-insensitive.
// An empty term falls back to Tail.
func (r *Reader) Search(term string, limit int) ([]Entry, error) {
	if term == "" {
		return r.Tail(limit)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	lines, err := r.readLines()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)
	entries := []Entry{}
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), needle) {
			entries = append(entries, Entry{Line: i + 1, Text: line})
			if len(entries) >= limit {
				break
			}
		}
	}
	return entries, nil
}

// readLines loads the whole file. Startup logs are trimmed to a few
// thousand lines, so reading them at once is fine. Lines keep whatever
// bytes they carry; invalid UTF-8 passes through untouched.
func (r *Reader) readLines() ([]string, error) {
	if err := r.EnsureExists(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", r.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}
