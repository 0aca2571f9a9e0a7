package table

import (
	"os"
	"path/filepath"
	"testing"

	ferrors "github.com/ramodal61/n8n/internal/errors"
)

func touchFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, dir, "Orders.sqlite")
	touchFile(t, dir, "line_items.sqlite")

	tests := []struct {
		name  string
		table string
		want  string
	}{
		{"exact with suffix", "Orders.sqlite", "Orders.sqlite"},
		{"suffix appended", "Orders", "Orders.sqlite"},
		{"case insensitive", "orders", "Orders.sqlite"},
		{"case insensitive with suffix", "ORDERS.SQLITE", "Orders.sqlite"},
		{"spaces sanitized", "line items", "line_items.sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(dir, tt.table)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.table, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.table, got, tt.want)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, dir, "orders.sqlite")

	_, err := Resolve(dir, "customers")
	if !ferrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolve_EmptyName(t *testing.T) {
	_, err := Resolve(t.TempDir(), "")
	if !ferrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND for empty name, got %v", err)
	}
}

func TestResolve_MissingDir(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "nope"), "orders")
	if !ferrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND for missing directory, got %v", err)
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates("line items")
	want := []string{"line items.sqlite", "line_items.sqlite"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCandidates_SuffixNotDoubled(t *testing.T) {
	got := Candidates("orders.sqlite")
	if len(got) != 1 || got[0] != "orders.sqlite" {
		t.Errorf("got %v, want [orders.sqlite]", got)
	}
}
