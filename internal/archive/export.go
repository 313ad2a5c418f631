package archive

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const exportStampLayout = "20060102-150405"

// ExportJSON writes every entry into dir as a timestamped JSON file and
// returns its path.
func (s *Store) ExportJSON(ctx context.Context, dir string) (string, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if entries == nil {
		entries = []Entry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode archive export: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("archive_export_%s.json", time.Now().Format(exportStampLayout)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write archive export %s: %w", path, err)
	}
	return path, nil
}

// ExportCSV writes every entry into dir as a timestamped CSV file and
// returns its path.
func (s *Store) ExportCSV(ctx context.Context, dir string) (string, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("archive_export_%s.csv", time.Now().Format(exportStampLayout)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive export %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "title", "description", "created_at"}); err != nil {
		return "", fmt.Errorf("write export header: %w", err)
	}
	for _, e := range entries {
		record := []string{strconv.FormatInt(e.ID, 10), e.Title, e.Description, e.CreatedAt}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush archive export: %w", err)
	}
	return path, nil
}
