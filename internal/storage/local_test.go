package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	return store, base
}

func writeLocalFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalStorage_UploadDownloadRoundTrip(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()
	scratch := t.TempDir()

	src := writeLocalFile(t, scratch, "in.sqlite", "row data")
	if err := store.Upload(ctx, src, "tables/in.sqlite"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	dst := filepath.Join(scratch, "out.sqlite")
	if err := store.Download(ctx, "tables/in.sqlite", dst); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "row data" {
		t.Errorf("got %q, want %q", data, "row data")
	}
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	store, _ := newLocal(t)
	err := store.Download(context.Background(), "nope.sqlite", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_Exists(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()
	scratch := t.TempDir()

	src := writeLocalFile(t, scratch, "a.sqlite", "x")
	if err := store.Upload(ctx, src, "a.sqlite"); err != nil {
		t.Fatal(err)
	}

	ok, err := store.Exists(ctx, "a.sqlite")
	if err != nil || !ok {
		t.Errorf("Exists(a.sqlite) = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, "b.sqlite")
	if err != nil || ok {
		t.Errorf("Exists(b.sqlite) = %v, %v", ok, err)
	}
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()
	scratch := t.TempDir()

	src := writeLocalFile(t, scratch, "a.sqlite", "x")
	if err := store.Upload(ctx, src, "a.sqlite"); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, "a.sqlite"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "a.sqlite"); err != nil {
		t.Fatalf("deleting a missing object should be a no-op: %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()
	scratch := t.TempDir()

	for _, name := range []string{"a.sqlite", "b.sqlite"} {
		src := writeLocalFile(t, scratch, name, "x")
		if err := store.Upload(ctx, src, "tables/"+name); err != nil {
			t.Fatal(err)
		}
	}
	src := writeLocalFile(t, scratch, "other", "x")
	if err := store.Upload(ctx, src, "misc/other"); err != nil {
		t.Fatal(err)
	}

	objects, err := store.ListObjects(ctx, "tables")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	sort.Strings(objects)
	want := []string{"tables/a.sqlite", "tables/b.sqlite"}
	if len(objects) != 2 || objects[0] != want[0] || objects[1] != want[1] {
		t.Errorf("got %v, want %v", objects, want)
	}
}

func TestLocalStorage_ListObjectsMissingPrefix(t *testing.T) {
	store, _ := newLocal(t)
	objects, err := store.ListObjects(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing prefix should list nothing, got %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("got %v, want empty", objects)
	}
}
