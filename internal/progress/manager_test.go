package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ramodal61/n8n/internal/catalog"
	ferrors "github.com/ramodal61/n8n/internal/errors"
	"github.com/ramodal61/n8n/internal/ledger"
	"github.com/ramodal61/n8n/internal/table"
)

// createDataFile writes a SQLite data file with n rows into dir.
func createDataFile(t *testing.T, dir, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE rows (id INTEGER PRIMARY KEY, payload TEXT)`); err != nil {
		t.Fatalf("failed to create rows table: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := db.Exec(`INSERT INTO rows (payload) VALUES (?)`, fmt.Sprintf("row-%d", i)); err != nil {
			t.Fatalf("failed to insert row %d: %v", i, err)
		}
	}
	return path
}

// createWideDataFile is createDataFile with rows padded to 4KB each, for
// tests that need the file size to change measurably.
func createWideDataFile(t *testing.T, dir, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE rows (id INTEGER PRIMARY KEY, payload TEXT)`); err != nil {
		t.Fatalf("failed to create rows table: %v", err)
	}
	pad := strings.Repeat("x", 4096)
	for i := 0; i < n; i++ {
		if _, err := db.Exec(`INSERT INTO rows (payload) VALUES (?)`, pad); err != nil {
			t.Fatalf("failed to insert row %d: %v", i, err)
		}
	}
	return path
}

func registerFiles(t *testing.T, metaPath string, names ...string) {
	t.Helper()
	var entries []catalog.MetaEntry
	for _, name := range names {
		entries = append(entries, catalog.MetaEntry{SavedName: name, Status: catalog.StatusActive})
	}
	if err := catalog.SaveEntries(metaPath, entries); err != nil {
		t.Fatal(err)
	}
}

func newTestManager(t *testing.T, dir string) (*Manager, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	metaPath := filepath.Join(dir, "meta.json")
	return NewManager(store, table.NewReader(), dir, metaPath, nil), store
}

func TestManager_FileProgressSynthesizesRecord(t *testing.T) {
	dir := t.TempDir()
	createDataFile(t, dir, "a.sqlite", 12)
	manager, store := newTestManager(t, dir)
	ctx := context.Background()

	rec, err := manager.FileProgress(ctx, "a.sqlite")
	if err != nil {
		t.Fatalf("FileProgress failed: %v", err)
	}
	if rec.Total != 12 || rec.Processed != 0 || rec.IsEstimated {
		t.Errorf("got %+v", rec)
	}

	// The synthesized record must have been persisted.
	led, _ := store.Load(ctx)
	if _, ok := led["a.sqlite"]; !ok {
		t.Error("synthesized record should be saved")
	}
}

func TestManager_FileProgressMissingFile(t *testing.T) {
	manager, _ := newTestManager(t, t.TempDir())
	_, err := manager.FileProgress(context.Background(), "nope.sqlite")
	if !ferrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestManager_UpdateProgress(t *testing.T) {
	dir := t.TempDir()
	createDataFile(t, dir, "a.sqlite", 10)
	manager, store := newTestManager(t, dir)
	ctx := context.Background()

	if err := manager.UpdateProgress(ctx, "a.sqlite", 7, 3, 7); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	led, _ := store.Load(ctx)
	rec := led["a.sqlite"]
	if rec.Processed != 7 || rec.LastBatch != 3 || rec.LastBatchSize != 7 {
		t.Errorf("got %+v", rec)
	}
}

func TestManager_UpdateProgressRejectsOverrun(t *testing.T) {
	dir := t.TempDir()
	createDataFile(t, dir, "a.sqlite", 10)
	manager, store := newTestManager(t, dir)
	ctx := context.Background()

	if err := manager.UpdateProgress(ctx, "a.sqlite", 5, 1, 5); err != nil {
		t.Fatal(err)
	}

	err := manager.UpdateProgress(ctx, "a.sqlite", 11, 2, 6)
	if ferrors.GetCode(err) != ferrors.CodeInvariantViolation {
		t.Fatalf("expected INVARIANT_VIOLATION, got %v", err)
	}

	// The stored record must be untouched by the rejected update.
	led, _ := store.Load(ctx)
	if rec := led["a.sqlite"]; rec.Processed != 5 || rec.LastBatch != 1 {
		t.Errorf("rejected update leaked into the ledger: %+v", rec)
	}
}

func TestManager_UpdateProgressRejectsNegative(t *testing.T) {
	dir := t.TempDir()
	createDataFile(t, dir, "a.sqlite", 10)
	manager, _ := newTestManager(t, dir)

	err := manager.UpdateProgress(context.Background(), "a.sqlite", -1, 1, 0)
	if ferrors.GetCode(err) != ferrors.CodeInvariantViolation {
		t.Fatalf("expected INVARIANT_VIOLATION, got %v", err)
	}
}

func TestManager_SyncAddsEligibleFiles(t *testing.T) {
	dir := t.TempDir()
	createDataFile(t, dir, "a.sqlite", 5)
	createDataFile(t, dir, "b.sqlite", 8)
	manager, store := newTestManager(t, dir)
	registerFiles(t, filepath.Join(dir, "meta.json"), "a.sqlite", "b.sqlite")
	ctx := context.Background()

	if err := manager.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	led, _ := store.Load(ctx)
	if len(led) != 2 {
		t.Fatalf("got %d records, want 2", len(led))
	}
	if led["a.sqlite"].Total != 5 || led["b.sqlite"].Total != 8 {
		t.Errorf("got %+v", led)
	}
}

func TestManager_SyncIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	createDataFile(t, dir, "a.sqlite", 5)
	manager, store := newTestManager(t, dir)
	registerFiles(t, filepath.Join(dir, "meta.json"), "a.sqlite")
	ctx := context.Background()

	if err := manager.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := manager.UpdateProgress(ctx, "a.sqlite", 3, 1, 3); err != nil {
		t.Fatal(err)
	}

	// A second sync without file changes must not disturb progress.
	if err := manager.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	led, _ := store.Load(ctx)
	if led["a.sqlite"].Processed != 3 {
		t.Errorf("Processed = %d, want 3", led["a.sqlite"].Processed)
	}
}

func TestManager_SyncWithoutCatalog(t *testing.T) {
	manager, _ := newTestManager(t, t.TempDir())
	if err := manager.Sync(context.Background()); err != nil {
		t.Fatalf("Sync without a catalog should be a no-op, got %v", err)
	}
}

func TestManager_SyncRefreshesGrownFile(t *testing.T) {
	dir := t.TempDir()
	createDataFile(t, dir, "a.sqlite", 5)
	manager, store := newTestManager(t, dir)
	registerFiles(t, filepath.Join(dir, "meta.json"), "a.sqlite")
	ctx := context.Background()

	if err := manager.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := manager.UpdateProgress(ctx, "a.sqlite", 5, 1, 5); err != nil {
		t.Fatal(err)
	}

	// Grow the file out-of-band and sync again. The replacement carries
	// enough payload to guarantee a different file size.
	os.Remove(filepath.Join(dir, "a.sqlite"))
	createWideDataFile(t, dir, "a.sqlite", 20)

	if err := manager.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	led, _ := store.Load(ctx)
	rec := led["a.sqlite"]
	if rec.Total != 20 {
		t.Errorf("Total = %d, want 20", rec.Total)
	}
	if rec.Processed != 5 {
		t.Errorf("Processed = %d, want 5 (preserved)", rec.Processed)
	}
}

func TestManager_AllProgressClampsShrunkFile(t *testing.T) {
	dir := t.TempDir()
	createWideDataFile(t, dir, "a.sqlite", 10)
	manager, _ := newTestManager(t, dir)
	ctx := context.Background()

	if _, err := manager.FileProgress(ctx, "a.sqlite"); err != nil {
		t.Fatal(err)
	}
	if err := manager.UpdateProgress(ctx, "a.sqlite", 10, 1, 10); err != nil {
		t.Fatal(err)
	}

	// Replace the file with a smaller one.
	os.Remove(filepath.Join(dir, "a.sqlite"))
	createDataFile(t, dir, "a.sqlite", 2)

	led, err := manager.AllProgress(ctx)
	if err != nil {
		t.Fatalf("AllProgress failed: %v", err)
	}
	rec := led["a.sqlite"]
	if rec.Total != 2 {
		t.Errorf("Total = %d, want 2", rec.Total)
	}
	if rec.Processed != 2 {
		t.Errorf("Processed = %d, want clamped to 2", rec.Processed)
	}
}
