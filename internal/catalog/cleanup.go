package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	ferrors "github.com/ramodal61/n8n/internal/errors"
)

// CleanupResult reports what an orphan cleanup pass deleted.
type CleanupResult struct {
	Deleted []string `json:"deleted"`
	Kept    int      `json:"kept"`
	Errors  []string `json:"errors,omitempty"`
}

// CleanupOrphans deletes files and directories in dataDir that no catalog
// references and that are not in the exclusion set. Catalog files, their
// backups, and ledger lock/temp files are always excluded. An unparsable
// catalog aborts the pass: without its references a deletion cannot be
// proven safe.
func CleanupOrphans(ctx context.Context, dataDir string, catalogPaths, exclude []string) (*CleanupResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	referenced := make(map[string]bool)
	for _, path := range catalogPaths {
		entries, err := LoadEntries(path)
		if err != nil {
			if ferrors.IsNotFound(err) {
				continue // a missing catalog references nothing
			}
			return nil, err
		}
		for _, e := range entries {
			referenced[strings.ToLower(e.SavedName)] = true
		}
	}

	protected := make(map[string]bool)
	for _, path := range catalogPaths {
		protected[strings.ToLower(filepath.Base(path))] = true
		protected[strings.ToLower(filepath.Base(path))+".bak.snappy"] = true
	}
	for _, name := range exclude {
		protected[strings.ToLower(name)] = true
	}

	dirEntries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &CleanupResult{Deleted: []string{}}, nil
		}
		return nil, fmt.Errorf("catalog: failed to list %s: %w", dataDir, err)
	}

	result := &CleanupResult{Deleted: []string{}}
	for _, e := range dirEntries {
		name := e.Name()
		lower := strings.ToLower(name)

		if referenced[lower] || protected[lower] || isWorkingFile(lower) {
			result.Kept++
			continue
		}

		target := filepath.Join(dataDir, name)
		if err := os.RemoveAll(target); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		result.Deleted = append(result.Deleted, name)
	}

	if len(result.Deleted) > 0 {
		log.Printf("catalog: cleanup removed %d orphans from %s", len(result.Deleted), dataDir)
	}
	return result, nil
}

// isWorkingFile reports whether a name belongs to the bookkeeping machinery
// itself (locks, temp files, compressed backups) rather than data.
func isWorkingFile(lowerName string) bool {
	return strings.HasSuffix(lowerName, ".lock") ||
		strings.HasSuffix(lowerName, ".tmp") ||
		strings.HasSuffix(lowerName, ".snappy")
}
