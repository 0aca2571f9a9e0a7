package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/golang/snappy"
)

// PruneOptions tunes a prune pass.
type PruneOptions struct {
	// KeepStatus lists eligible statuses (DefaultKeepStatus when empty).
	KeepStatus []Status
	// Suffix is the required data-file suffix (e.g. ".sqlite").
	Suffix string
	// SkipBackup disables the compressed backup of the previous catalog.
	SkipBackup bool
}

// PruneResult reports what a prune pass kept and removed.
type PruneResult struct {
	Path             string      `json:"path"`
	Kept             []MetaEntry `json:"kept"`
	RemovedStatus    int         `json:"removed_status"`
	RemovedSuffix    int         `json:"removed_suffix"`
	RemovedMissing   int         `json:"removed_missing"`
	RemovedDuplicate int         `json:"removed_duplicate"`
}

// Removed returns the total number of entries dropped.
func (r *PruneResult) Removed() int {
	return r.RemovedStatus + r.RemovedSuffix + r.RemovedMissing + r.RemovedDuplicate
}

// Prune rewrites the catalog at metaPath keeping only entries that have an
// allowed status, carry the data-file suffix, and resolve to a file in
// dataDir (case-insensitive). The first occurrence wins on duplicate names.
// A missing or unparsable catalog surfaces as an error, never a panic.
func Prune(ctx context.Context, metaPath, dataDir string, opts PruneOptions) (*PruneResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(opts.KeepStatus) == 0 {
		opts.KeepStatus = DefaultKeepStatus
	}

	entries, err := LoadEntries(metaPath)
	if err != nil {
		return nil, err
	}

	onDisk, err := listFilesLower(dataDir)
	if err != nil {
		return nil, err
	}

	keep := statusSet(opts.KeepStatus)
	suffix := strings.ToLower(opts.Suffix)
	seen := make(map[string]bool)

	result := &PruneResult{Path: metaPath, Kept: []MetaEntry{}}
	for _, e := range entries {
		lower := strings.ToLower(e.SavedName)
		switch {
		case !keep[e.Status]:
			result.RemovedStatus++
		case suffix != "" && !strings.HasSuffix(lower, suffix):
			result.RemovedSuffix++
		case seen[lower]:
			result.RemovedDuplicate++
		default:
			if _, exists := onDisk[lower]; !exists {
				result.RemovedMissing++
				continue
			}
			seen[lower] = true
			result.Kept = append(result.Kept, e)
		}
	}

	if result.Removed() == 0 {
		return result, nil
	}

	if !opts.SkipBackup {
		if err := backupCatalog(metaPath); err != nil {
			// Backup is best-effort; the prune itself still proceeds.
			log.Printf("catalog: failed to back up %s before prune: %v", metaPath, err)
		}
	}

	if err := SaveEntries(metaPath, result.Kept); err != nil {
		return nil, err
	}

	log.Printf("catalog: pruned %s: kept %d, removed %d (status=%d suffix=%d missing=%d duplicate=%d)",
		metaPath, len(result.Kept), result.Removed(),
		result.RemovedStatus, result.RemovedSuffix, result.RemovedMissing, result.RemovedDuplicate)
	return result, nil
}

// backupCatalog writes a snappy-compressed copy of the catalog next to it
// before a destructive rewrite.
func backupCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	backupPath := path + ".bak.snappy"
	if err := os.WriteFile(backupPath, snappy.Encode(nil, data), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", backupPath, err)
	}
	return nil
}

// RestoreBackup decodes the snappy backup of the catalog at path and
// returns its entries. Used by operators to inspect what a prune removed.
func RestoreBackup(path string) ([]MetaEntry, error) {
	compressed, err := os.ReadFile(path + ".bak.snappy")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read backup of %s: %w", path, err)
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to decompress backup of %s: %w", path, err)
	}
	var entries []MetaEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("catalog: backup of %s is not valid JSON: %w", path, err)
	}
	return entries, nil
}
