package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stepbystep/preflight/internal/checksum"
	"github.com/stepbystep/preflight/internal/vault"
	"github.com/stepbystep/preflight/internal/workspace"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testManager builds a manager over a workspace with a reduced protected
// set of two files, both present on disk.
func testManager(t *testing.T) (Manager, workspace.Layout) {
	t.Helper()
	root := t.TempDir()
	layout := workspace.DefaultLayout(root)
	layout.Protected = []string{"data/settings.json", "data/persistent_notes.txt"}

	if err := os.MkdirAll(layout.DataDir(), 0o755); err != nil {
		t.Fatalf("Failed to create data dir: %v", err)
	}
	writeProtected(t, layout, "data/settings.json", `{"theme": "light"}`)
	writeProtected(t, layout, "data/persistent_notes.txt", "remember the milk")

	v := vault.New(layout.BackupDir(), vault.DefaultKeep, quietLogger())
	return NewManager(layout, v, quietLogger()), layout
}

func writeProtected(t *testing.T, layout workspace.Layout, rel, content string) {
	t.Helper()
	if err := os.WriteFile(layout.Abs(rel), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
}

func writeTemplateManifest(t *testing.T, layout workspace.Layout) {
	t.Helper()
	payload := `{"files": {}, "created_at": "", "updated_at": ""}`
	if err := os.WriteFile(layout.ManifestPath(), []byte(payload), 0o644); err != nil {
		t.Fatalf("Failed to write template manifest: %v", err)
	}
}

func loadManifestFromDisk(t *testing.T, layout workspace.Layout) *Manifest {
	t.Helper()
	man, err := LoadManifest(layout.ManifestPath())
	if err != nil {
		t.Fatalf("Failed to reload manifest: %v", err)
	}
	if man == nil {
		t.Fatal("Expected a manifest on disk")
	}
	return man
}

func hexOf(content string) string {
	raw := sha256.Sum256([]byte(content))
	return hex.EncodeToString(raw[:])
}

func TestVerifyFirstSightIsNotAnAnomaly(t *testing.T) {
	mgr, layout := testManager(t)
	writeTemplateManifest(t, layout)

	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	if len(sum.Issues) != 0 {
		t.Errorf("First sight must not raise issues, got %v", sum.Issues)
	}
	if !sum.UpdatedManifest {
		t.Error("Expected the manifest to be marked dirty after first sight")
	}
	if sum.Verified != 2 {
		t.Errorf("Expected 2 verified files, got %d", sum.Verified)
	}

	man := loadManifestFromDisk(t, layout)
	entry, ok := man.Files["data/settings.json"]
	if !ok {
		t.Fatal("Expected a manifest entry for data/settings.json")
	}
	if entry.Checksum == nil || entry.Checksum.Hex() != hexOf(`{"theme": "light"}`) {
		t.Errorf("Expected the file's true digest to be recorded, got %v", entry.Checksum)
	}
	if entry.Size == nil || *entry.Size != int64(len(`{"theme": "light"}`)) {
		t.Errorf("Expected recorded size %d, got %v", len(`{"theme": "light"}`), entry.Size)
	}
}

func TestVerifyUnchangedFilesStayQuiet(t *testing.T) {
	mgr, _ := testManager(t)

	if _, err := mgr.Verify(context.Background()); err != nil {
		t.Fatalf("Seeding pass failed: %v", err)
	}
	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Second pass failed: %v", err)
	}

	if len(sum.Issues) != 0 {
		t.Errorf("Unchanged files must not raise issues, got %v", sum.Issues)
	}
	if sum.UpdatedManifest {
		t.Error("Stamping last_checked alone must not dirty the manifest")
	}
	if len(sum.Backups) != 0 {
		t.Errorf("Unchanged files must not be backed up, got %v", sum.Backups)
	}
}

func TestVerifyChangeBacksUpNewContent(t *testing.T) {
	mgr, layout := testManager(t)

	if _, err := mgr.Verify(context.Background()); err != nil {
		t.Fatalf("Seeding pass failed: %v", err)
	}
	writeProtected(t, layout, "data/settings.json", `{"theme": "dark"}`)

	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	if sum.Status != StatusAttention {
		t.Errorf("Expected status attention after a change, got %s", sum.Status)
	}
	if len(sum.Backups) != 1 {
		t.Fatalf("Expected exactly one backup, got %d", len(sum.Backups))
	}

	// The vault records what the file changed to, not the last known
	// good version.
	backed, err := os.ReadFile(sum.Backups[0])
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if string(backed) != `{"theme": "dark"}` {
		t.Errorf("Expected backup of the new content, got %q", backed)
	}

	man := loadManifestFromDisk(t, layout)
	entry := man.Files["data/settings.json"]
	if entry.Checksum == nil || entry.Checksum.Hex() != hexOf(`{"theme": "dark"}`) {
		t.Error("Expected the entry digest to advance to the new content")
	}

	// With the backup matching the newly recorded digest, the restore
	// point for the changed file is ok.
	for _, p := range sum.RestorePoints {
		if p.File == "data/settings.json" && p.Status != RestoreOK {
			t.Errorf("Expected an ok restore point for the changed file, got %s (%s)", p.Status, p.Message)
		}
	}
}

func TestVerifyMissingFileRaisesIssueWithoutBackup(t *testing.T) {
	mgr, layout := testManager(t)

	if _, err := mgr.Verify(context.Background()); err != nil {
		t.Fatalf("Seeding pass failed: %v", err)
	}
	if err := os.Remove(layout.Abs("data/persistent_notes.txt")); err != nil {
		t.Fatalf("Failed to delete protected file: %v", err)
	}

	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	if sum.Status != StatusAttention {
		t.Errorf("Expected status attention, got %s", sum.Status)
	}
	found := false
	for _, issue := range sum.Issues {
		if issue == "data/persistent_notes.txt: file is missing" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a missing-file issue, got %v", sum.Issues)
	}
	if len(sum.Backups) != 0 {
		t.Errorf("A missing file must not trigger a backup, got %v", sum.Backups)
	}

	man := loadManifestFromDisk(t, layout)
	entry := man.Files["data/persistent_notes.txt"]
	if entry.Checksum == nil || !entry.Checksum.IsAbsent() {
		t.Error("Expected the entry to record the absent digest")
	}
	if entry.Size != nil {
		t.Errorf("Expected a nil size for a missing file, got %d", *entry.Size)
	}
}

func TestVerifyReappearedFileIsAChangeEvent(t *testing.T) {
	mgr, layout := testManager(t)

	if _, err := mgr.Verify(context.Background()); err != nil {
		t.Fatalf("Seeding pass failed: %v", err)
	}
	if err := os.Remove(layout.Abs("data/persistent_notes.txt")); err != nil {
		t.Fatalf("Failed to delete protected file: %v", err)
	}
	if _, err := mgr.Verify(context.Background()); err != nil {
		t.Fatalf("Missing pass failed: %v", err)
	}

	writeProtected(t, layout, "data/persistent_notes.txt", "it came back different")
	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	if len(sum.Backups) != 1 {
		t.Fatalf("Expected the reappeared file to be treated as a change, got %d backups", len(sum.Backups))
	}
	man := loadManifestFromDisk(t, layout)
	entry := man.Files["data/persistent_notes.txt"]
	if entry.Checksum == nil || entry.Checksum.Hex() != hexOf("it came back different") {
		t.Error("Expected the entry digest to record the reappeared content")
	}
}

func TestVerifySizeAnomalyRepairsMetadata(t *testing.T) {
	mgr, layout := testManager(t)

	// Hand-craft a manifest whose digest matches the file but whose
	// recorded size is stale.
	staleSize := int64(999)
	man := &Manifest{
		Files: map[string]*Entry{
			"data/settings.json": {
				Checksum: digestPtr(checksum.Known(hexOf(`{"theme": "light"}`))),
				Size:     &staleSize,
			},
			"data/persistent_notes.txt": {
				Checksum: digestPtr(checksum.Known(hexOf("remember the milk"))),
			},
		},
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-01-01T00:00:00Z",
	}
	data, err := json.Marshal(man)
	if err != nil {
		t.Fatalf("Failed to encode manifest: %v", err)
	}
	if err := os.WriteFile(layout.ManifestPath(), data, 0o644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}

	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	if len(sum.SizeAlerts) != 1 {
		t.Fatalf("Expected one size alert, got %v", sum.SizeAlerts)
	}
	if sum.Status != StatusAttention {
		t.Errorf("Expected status attention, got %s", sum.Status)
	}
	if len(sum.Backups) != 0 {
		t.Error("A size anomaly with a matching digest must not trigger a backup")
	}

	reloaded := loadManifestFromDisk(t, layout)
	entry := reloaded.Files["data/settings.json"]
	if entry.Size == nil || *entry.Size != int64(len(`{"theme": "light"}`)) {
		t.Errorf("Expected the recorded size to be repaired, got %v", entry.Size)
	}
}

func TestRestorePointMismatch(t *testing.T) {
	mgr, layout := testManager(t)

	if _, err := mgr.Verify(context.Background()); err != nil {
		t.Fatalf("Seeding pass failed: %v", err)
	}

	// A stale backup that no longer matches the recorded digest.
	if err := os.MkdirAll(layout.BackupDir(), 0o755); err != nil {
		t.Fatalf("Failed to create backup dir: %v", err)
	}
	stale := filepath.Join(layout.BackupDir(), "settings.json.20260101-120000.bak")
	if err := os.WriteFile(stale, []byte("ancient content"), 0o644); err != nil {
		t.Fatalf("Failed to seed stale backup: %v", err)
	}

	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	var point *RestorePoint
	for i := range sum.RestorePoints {
		if sum.RestorePoints[i].File == "data/settings.json" {
			point = &sum.RestorePoints[i]
		}
	}
	if point == nil {
		t.Fatal("Expected a restore point for data/settings.json")
	}
	if point.Status != RestoreMismatch {
		t.Errorf("Expected a mismatch restore point, got %s", point.Status)
	}
	if point.Backup != stale {
		t.Errorf("Expected the restore point to reference %s, got %s", stale, point.Backup)
	}
	if len(sum.RestoreIssues) == 0 {
		t.Error("Expected the mismatch to surface in restore issues")
	}
	if sum.Status != StatusAttention {
		t.Errorf("Expected status attention, got %s", sum.Status)
	}
}

func TestVerifyCorruptManifestIsRebuilt(t *testing.T) {
	mgr, layout := testManager(t)

	if err := os.WriteFile(layout.ManifestPath(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupt manifest: %v", err)
	}

	sum, err := mgr.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}
	if len(sum.Issues) != 0 {
		t.Errorf("Rebuilding the manifest must not raise issues, got %v", sum.Issues)
	}

	man := loadManifestFromDisk(t, layout)
	if len(man.Files) != 2 {
		t.Errorf("Expected 2 rebuilt entries, got %d", len(man.Files))
	}
	entry := man.Files["data/settings.json"]
	if entry == nil || entry.Checksum == nil || entry.Checksum.Hex() != hexOf(`{"theme": "light"}`) {
		t.Error("Expected the rebuilt manifest to carry the file's true digest")
	}
}

func digestPtr(d checksum.Digest) *checksum.Digest {
	return &d
}
