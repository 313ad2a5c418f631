package archive

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "archive.db"))
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesSchemaAndPings(t *testing.T) {
	store := openTestStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() returned error: %v", err)
	}
	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected an empty archive, got %d entries", count)
	}
}

func TestAddAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, "Project kickoff", "Notes from the first meeting")
	if err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}
	if first.ID == 0 {
		t.Error("Expected a database-assigned id")
	}
	if _, err := store.Add(ctx, "Release 1.0", "Shipped"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
}

func TestAddDuplicateTitle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "Project kickoff", "first"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}
	_, err := store.Add(ctx, "Project kickoff", "second")
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func TestAddEmptyTitle(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Add(context.Background(), "   ", "whitespace only"); err == nil {
		t.Error("Expected an error for an empty title")
	}
}

func TestExports(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "exports")

	if _, err := store.Add(ctx, "Project kickoff", "Notes"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	jsonPath, err := store.ExportJSON(ctx, dir)
	if err != nil {
		t.Fatalf("ExportJSON() returned error: %v", err)
	}
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("Failed to read JSON export: %v", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("JSON export is not valid JSON: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Project kickoff" {
		t.Errorf("Unexpected JSON export content: %+v", entries)
	}

	csvPath, err := store.ExportCSV(ctx, dir)
	if err != nil {
		t.Fatalf("ExportCSV() returned error: %v", err)
	}
	if !strings.HasSuffix(csvPath, ".csv") {
		t.Errorf("Expected a .csv path, got %s", csvPath)
	}
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("Failed to open CSV export: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("CSV export is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected header plus one row, got %d records", len(records))
	}
	if records[0][1] != "title" || records[1][1] != "Project kickoff" {
		t.Errorf("Unexpected CSV export content: %v", records)
	}
}
