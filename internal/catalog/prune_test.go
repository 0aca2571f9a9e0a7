package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")
	touchFile(t, dir, "a.sqlite")
	touchFile(t, dir, "b.sqlite")
	touchFile(t, dir, "notes.txt")

	writeCatalog(t, path, []MetaEntry{
		{SavedName: "a.sqlite", Status: StatusActive},
		{SavedName: "A.SQLITE", Status: StatusNew},      // duplicate of a.sqlite
		{SavedName: "b.sqlite", Status: Status("temp")}, // status not kept
		{SavedName: "notes.txt", Status: StatusActive},  // wrong suffix
		{SavedName: "gone.sqlite", Status: StatusNew},   // not on disk
	})

	result, err := Prune(context.Background(), path, dir, PruneOptions{Suffix: ".sqlite"})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	if len(result.Kept) != 1 || result.Kept[0].SavedName != "a.sqlite" {
		t.Errorf("kept = %+v, want only a.sqlite", result.Kept)
	}
	if result.RemovedStatus != 1 {
		t.Errorf("RemovedStatus = %d, want 1", result.RemovedStatus)
	}
	if result.RemovedSuffix != 1 {
		t.Errorf("RemovedSuffix = %d, want 1", result.RemovedSuffix)
	}
	if result.RemovedMissing != 1 {
		t.Errorf("RemovedMissing = %d, want 1", result.RemovedMissing)
	}
	if result.RemovedDuplicate != 1 {
		t.Errorf("RemovedDuplicate = %d, want 1", result.RemovedDuplicate)
	}

	// The catalog on disk must reflect the prune.
	entries, err := LoadEntries(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].SavedName != "a.sqlite" {
		t.Errorf("persisted entries = %+v", entries)
	}
}

func TestPrune_NoopWhenClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")
	touchFile(t, dir, "a.sqlite")
	writeCatalog(t, path, []MetaEntry{{SavedName: "a.sqlite", Status: StatusActive}})

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	result, err := Prune(context.Background(), path, dir, PruneOptions{Suffix: ".sqlite"})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if result.Removed() != 0 {
		t.Errorf("Removed = %d, want 0", result.Removed())
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("clean catalog should not be rewritten")
	}
	if _, err := os.Stat(path + ".bak.snappy"); !os.IsNotExist(err) {
		t.Error("no backup should be written for a no-op prune")
	}
}

func TestPrune_WritesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")
	touchFile(t, dir, "a.sqlite")
	writeCatalog(t, path, []MetaEntry{
		{SavedName: "a.sqlite", Status: StatusActive},
		{SavedName: "gone.sqlite", Status: StatusNew},
	})

	if _, err := Prune(context.Background(), path, dir, PruneOptions{Suffix: ".sqlite"}); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	// The backup holds the pre-prune catalog.
	restored, err := RestoreBackup(path)
	if err != nil {
		t.Fatalf("RestoreBackup failed: %v", err)
	}
	if len(restored) != 2 {
		t.Errorf("backup has %d entries, want 2", len(restored))
	}
}

func TestPrune_MissingCatalog(t *testing.T) {
	dir := t.TempDir()
	_, err := Prune(context.Background(), filepath.Join(dir, "meta.json"), dir, PruneOptions{})
	if err == nil {
		t.Fatal("pruning a missing catalog should error, not panic")
	}
}
