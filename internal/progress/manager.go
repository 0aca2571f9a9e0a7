// Package progress is the single point of truth for how much of each data
// file has been released to consumers. It wraps the ledger store and
// repairs row totals by inspecting the actual files when counts are
// missing or stale.
package progress

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ramodal61/n8n/internal/catalog"
	ferrors "github.com/ramodal61/n8n/internal/errors"
	"github.com/ramodal61/n8n/internal/ledger"
	"github.com/ramodal61/n8n/internal/table"
)

// Manager coordinates ledger state with the actual data files.
type Manager struct {
	store      ledger.Store
	reader     *table.Reader
	dataDir    string
	metaPath   string
	keepStatus []catalog.Status
}

// NewManager creates a progress manager. keepStatus defaults to the
// catalog's allowed set when empty.
func NewManager(store ledger.Store, reader *table.Reader, dataDir, metaPath string, keepStatus []catalog.Status) *Manager {
	if len(keepStatus) == 0 {
		keepStatus = catalog.DefaultKeepStatus
	}
	return &Manager{
		store:      store,
		reader:     reader,
		dataDir:    dataDir,
		metaPath:   metaPath,
		keepStatus: keepStatus,
	}
}

// DataDir returns the directory holding the data files.
func (m *Manager) DataDir() string {
	return m.dataDir
}

// FileProgress returns the record for fileName, synthesizing one from the
// actual file on first sight (processed=0, total measured).
func (m *Manager) FileProgress(ctx context.Context, fileName string) (ledger.FileProgress, error) {
	led, err := m.store.Load(ctx)
	if err != nil {
		return ledger.FileProgress{}, err
	}

	if rec, ok := led[fileName]; ok {
		return rec, nil
	}

	rec, err := m.measure(ctx, fileName)
	if err != nil {
		return ledger.FileProgress{}, err
	}

	led[fileName] = rec
	if err := m.store.Save(ctx, led); err != nil {
		return ledger.FileProgress{}, err
	}
	return rec, nil
}

// AllProgress returns the full ledger with stale totals recomputed.
// Records whose file has vanished are returned untouched; removing them is
// reconciliation's job, not the progress manager's.
func (m *Manager) AllProgress(ctx context.Context) (ledger.Ledger, error) {
	led, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	changed := false
	for name, rec := range led {
		info, err := os.Stat(filepath.Join(m.dataDir, name))
		if err != nil {
			continue
		}
		if info.Size() == rec.SizeBytes {
			continue
		}
		refreshed, err := m.refresh(ctx, name, rec)
		if err != nil {
			log.Printf("progress: failed to refresh total of %s: %v", name, err)
			continue
		}
		led[name] = refreshed
		changed = true
	}

	if changed {
		if err := m.store.Save(ctx, led); err != nil {
			return nil, err
		}
	}
	return led, nil
}

// UpdateProgress validates and persists a new processed count for fileName.
// A processed value outside [0, total] is rejected with an
// INVARIANT_VIOLATION, never silently clamped: a violation here means an
// allocator bug and must surface.
func (m *Manager) UpdateProgress(ctx context.Context, fileName string, processed, lastBatch, lastBatchSize int64) error {
	led, err := m.store.Load(ctx)
	if err != nil {
		return err
	}

	rec, ok := led[fileName]
	if !ok {
		rec, err = m.measure(ctx, fileName)
		if err != nil {
			return err
		}
	}

	if processed < 0 || processed > rec.Total {
		log.Printf("progress: rejecting update for %s: processed=%d total=%d",
			fileName, processed, rec.Total)
		return ferrors.NewInvariantViolation(
			fmt.Sprintf("progress: processed %d out of range [0, %d] for %s",
				processed, rec.Total, fileName)).WithDetails(map[string]interface{}{
			"file_name": fileName,
			"processed": processed,
			"total":     rec.Total,
		})
	}

	rec.Processed = processed
	rec.LastBatch = lastBatch
	rec.LastBatchSize = lastBatchSize
	led[fileName] = rec

	return m.store.Save(ctx, led)
}

// Sync reconciles the ledger against the eligible file set: newly eligible
// files are added with processed=0, files whose size changed get their
// total recomputed, and processed counters of unaffected files are left
// alone. Calling Sync twice without intervening file changes is a no-op
// the second time.
func (m *Manager) Sync(ctx context.Context) error {
	eligible, err := catalog.EligibleFiles(m.metaPath, m.dataDir, m.keepStatus)
	if err != nil {
		if ferrors.IsNotFound(err) {
			return nil // no catalog yet means nothing to track
		}
		return err
	}

	led, err := m.store.Load(ctx)
	if err != nil {
		return err
	}

	changed := false
	for _, name := range eligible {
		rec, ok := led[name]
		if !ok {
			fresh, err := m.measure(ctx, name)
			if err != nil {
				log.Printf("progress: failed to measure new file %s: %v", name, err)
				continue
			}
			led[name] = fresh
			changed = true
			continue
		}

		info, err := os.Stat(filepath.Join(m.dataDir, name))
		if err != nil || info.Size() == rec.SizeBytes {
			continue
		}
		refreshed, err := m.refresh(ctx, name, rec)
		if err != nil {
			log.Printf("progress: failed to refresh total of %s: %v", name, err)
			continue
		}
		led[name] = refreshed
		changed = true
	}

	if !changed {
		return nil
	}
	return m.store.Save(ctx, led)
}

// measure builds a fresh record for a file never seen before.
func (m *Manager) measure(ctx context.Context, fileName string) (ledger.FileProgress, error) {
	path := filepath.Join(m.dataDir, fileName)
	total, estimated, err := m.reader.Measure(ctx, path)
	if err != nil {
		return ledger.FileProgress{}, err
	}

	var size int64
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}

	return ledger.FileProgress{
		Total:       total,
		IsEstimated: estimated,
		SizeBytes:   size,
	}, nil
}

// refresh recomputes the total of an existing record whose file changed
// out-of-band, preserving its processed counter. When the file shrank
// below the processed count the counter is clamped with a warning: the
// rows are gone, so this is file churn to absorb, not an allocator bug.
func (m *Manager) refresh(ctx context.Context, fileName string, rec ledger.FileProgress) (ledger.FileProgress, error) {
	fresh, err := m.measure(ctx, fileName)
	if err != nil {
		return ledger.FileProgress{}, err
	}

	rec.Total = fresh.Total
	rec.IsEstimated = fresh.IsEstimated
	rec.SizeBytes = fresh.SizeBytes
	if rec.Processed > rec.Total {
		log.Printf("progress: file %s shrank below processed count (%d > %d), clamping",
			fileName, rec.Processed, rec.Total)
		rec.Processed = rec.Total
	}
	return rec, nil
}
