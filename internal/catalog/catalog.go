// Package catalog manages the working file catalog: the list of known
// data files and their lifecycle status. The catalog is consumed by the
// progress and batch subsystems but populated by remote sync.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ferrors "github.com/ramodal61/n8n/internal/errors"
)

// Status is the lifecycle state of a catalog entry.
type Status string

const (
	StatusActive  Status = "active"
	StatusNew     Status = "new"
	StatusChanged Status = "changed"
	StatusDone    Status = "done"
)

// DefaultKeepStatus lists the statuses eligible for progress tracking.
// Entries in any other state are transient and pruned.
var DefaultKeepStatus = []Status{StatusActive, StatusNew, StatusChanged, StatusDone}

// MetaEntry is one catalog record.
type MetaEntry struct {
	SavedName string `json:"saved_name"`
	Status    Status `json:"status"`
}

// LoadEntries reads a catalog file. A missing file is a NOT_FOUND error;
// an unparsable file is a PARSE_FAILED error. Neither panics.
func LoadEntries(path string) ([]MetaEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NewNotFound(fmt.Sprintf("catalog: file %s does not exist", path))
		}
		return nil, fmt.Errorf("catalog: failed to read %s: %w", path, err)
	}

	var entries []MetaEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCategoryCatalog, ferrors.CodeParseFailed,
			fmt.Sprintf("catalog: file %s is not valid JSON", path), err)
	}
	return entries, nil
}

// SaveEntries rewrites a catalog file atomically.
func SaveEntries(path string, entries []MetaEntry) error {
	if entries == nil {
		entries = []MetaEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: failed to marshal entries: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*.tmp")
	if err != nil {
		return fmt.Errorf("catalog: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("catalog: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("catalog: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("catalog: failed to replace %s: %w", path, err)
	}
	return nil
}

// Register adds an entry for name with the given status, creating the
// catalog file when absent. An existing entry with the same name (compared
// case-insensitively) is left untouched.
func Register(ctx context.Context, path, name string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := LoadEntries(path)
	if err != nil && !ferrors.IsNotFound(err) {
		return err
	}

	lower := strings.ToLower(name)
	for _, e := range entries {
		if strings.ToLower(e.SavedName) == lower {
			return nil
		}
	}

	entries = append(entries, MetaEntry{SavedName: name, Status: status})
	return SaveEntries(path, entries)
}

// EligibleFiles returns the saved names from a catalog whose status is in
// keepStatus and whose file exists in dataDir (case-insensitive match).
// The returned names are the actual on-disk spellings.
func EligibleFiles(path, dataDir string, keepStatus []Status) ([]string, error) {
	entries, err := LoadEntries(path)
	if err != nil {
		return nil, err
	}

	onDisk, err := listFilesLower(dataDir)
	if err != nil {
		return nil, err
	}

	keep := statusSet(keepStatus)
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if !keep[e.Status] {
			continue
		}
		actual, ok := onDisk[strings.ToLower(e.SavedName)]
		if !ok || seen[strings.ToLower(actual)] {
			continue
		}
		seen[strings.ToLower(actual)] = true
		names = append(names, actual)
	}
	return names, nil
}

// listFilesLower maps lower-cased file names in dir to their actual names.
func listFilesLower(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("catalog: failed to list %s: %w", dir, err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out[strings.ToLower(e.Name())] = e.Name()
	}
	return out, nil
}

func statusSet(statuses []Status) map[Status]bool {
	set := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}
