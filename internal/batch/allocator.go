// Package batch distributes a per-invocation row quota across all eligible
// data files that still have unprocessed rows, committing each advance
// through the progress manager.
package batch

import (
	"context"
	"log"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/ramodal61/n8n/internal/catalog"
	ferrors "github.com/ramodal61/n8n/internal/errors"
	"github.com/ramodal61/n8n/internal/ledger"
	"github.com/ramodal61/n8n/internal/progress"
	"github.com/ramodal61/n8n/internal/table"
)

// DefaultQuota is the number of rows released per allocation round.
const DefaultQuota = 15000

// RemoteSyncer triggers an out-of-core refresh of the catalog before an
// allocation round. Failures are logged and never abort the round.
type RemoteSyncer interface {
	Sync(ctx context.Context) error
}

// Allocator runs allocation rounds.
type Allocator struct {
	progress   *progress.Manager
	reader     *table.Reader
	syncer     RemoteSyncer // may be nil
	metaPath   string
	dataDir    string
	quota      int64
	keepStatus []catalog.Status
}

// Config holds allocator construction parameters.
type Config struct {
	Progress   *progress.Manager
	Reader     *table.Reader
	Syncer     RemoteSyncer
	MetaPath   string
	DataDir    string
	Quota      int64
	KeepStatus []catalog.Status
}

// NewAllocator creates an allocator. Quota defaults to DefaultQuota;
// KeepStatus defaults to the catalog's allowed set.
func NewAllocator(cfg Config) *Allocator {
	if cfg.Quota <= 0 {
		cfg.Quota = DefaultQuota
	}
	if len(cfg.KeepStatus) == 0 {
		cfg.KeepStatus = catalog.DefaultKeepStatus
	}
	return &Allocator{
		progress:   cfg.Progress,
		reader:     cfg.Reader,
		syncer:     cfg.Syncer,
		metaPath:   cfg.MetaPath,
		dataDir:    cfg.DataDir,
		quota:      cfg.Quota,
		keepStatus: cfg.KeepStatus,
	}
}

// FileBatch describes the rows released from one file in one round.
type FileBatch struct {
	File  string        `json:"file"`
	Start int64         `json:"start"`
	Count int64         `json:"count"`
	End   int64         `json:"end"`
	Rows  *table.RowSet `json:"rows,omitempty"`
}

// Result is the outcome of one allocation round.
type Result struct {
	BatchID      string        `json:"batch_id"`
	BatchNo      int64         `json:"batch_no"`
	Quota        int64         `json:"quota"`
	Allocated    int64         `json:"allocated"`
	Batches      []FileBatch   `json:"batches"`
	Progress     ledger.Ledger `json:"progress"`
	TotalRecords int64         `json:"total_records"`
	AllProcessed int64         `json:"all_processed"`
}

// Run performs one allocation round: refresh the catalog, synchronize
// progress, then walk candidates in ascending-total order taking rows
// until the quota is spent. A failure on a single file is logged and the
// walk continues with the remaining candidates.
func (a *Allocator) Run(ctx context.Context) (*Result, error) {
	// Out-of-core catalog refresh is best-effort.
	if a.syncer != nil {
		if err := a.syncer.Sync(ctx); err != nil {
			log.Printf("batch: remote sync failed, continuing with local catalog: %v", err)
		}
	}

	if _, err := catalog.Prune(ctx, a.metaPath, a.dataDir, catalog.PruneOptions{
		KeepStatus: a.keepStatus,
		Suffix:     table.DataFileSuffix,
	}); err != nil && !ferrors.IsNotFound(err) {
		return nil, err
	}

	if err := a.progress.Sync(ctx); err != nil {
		return nil, err
	}

	led, err := a.progress.AllProgress(ctx)
	if err != nil {
		return nil, err
	}

	eligible, err := catalog.EligibleFiles(a.metaPath, a.dataDir, a.keepStatus)
	if err != nil && !ferrors.IsNotFound(err) {
		return nil, err
	}

	batchNo := nextBatchNo(led)
	result := &Result{
		BatchID: uuid.New().String(),
		BatchNo: batchNo,
		Quota:   a.quota,
		Batches: []FileBatch{},
	}

	plan := Plan(led, eligible, a.quota)
	for _, alloc := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(a.dataDir, alloc.File)
		rows, err := a.reader.ReadRows(ctx, path, alloc.Start, alloc.Count)
		if err != nil {
			log.Printf("batch: failed to read %d rows of %s at %d, skipping: %v",
				alloc.Count, alloc.File, alloc.Start, err)
			continue
		}

		if err := a.progress.UpdateProgress(ctx, alloc.File, alloc.End, batchNo, alloc.Count); err != nil {
			log.Printf("batch: failed to commit progress for %s, skipping: %v", alloc.File, err)
			continue
		}

		result.Batches = append(result.Batches, FileBatch{
			File:  alloc.File,
			Start: alloc.Start,
			Count: alloc.Count,
			End:   alloc.End,
			Rows:  rows,
		})
		result.Allocated += alloc.Count
	}

	// Snapshot progress after the commits of this round.
	snapshot, err := a.progress.AllProgress(ctx)
	if err != nil {
		return nil, err
	}
	result.Progress = snapshot
	result.TotalRecords = snapshot.TotalRows()
	result.AllProcessed = snapshot.TotalProcessed()

	return result, nil
}

// Allocation is one planned advance: release rows [Start, End) of File.
type Allocation struct {
	File  string
	Start int64
	Count int64
	End   int64
}

// Plan computes the per-file allocations for one round without touching
// any file. Candidates are the eligible files with a backlog, walked in
// ascending order of total so small files finish before large ones
// consume the quota; names break ties for determinism.
func Plan(led ledger.Ledger, eligible []string, quota int64) []Allocation {
	if quota <= 0 {
		return nil
	}

	type candidate struct {
		name string
		rec  ledger.FileProgress
	}

	var candidates []candidate
	for _, name := range eligible {
		rec, ok := led[name]
		if !ok || rec.Remaining() <= 0 {
			continue
		}
		candidates = append(candidates, candidate{name: name, rec: rec})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rec.Total != candidates[j].rec.Total {
			return candidates[i].rec.Total < candidates[j].rec.Total
		}
		return candidates[i].name < candidates[j].name
	})

	var plan []Allocation
	remaining := quota
	for _, c := range candidates {
		if remaining <= 0 {
			break
		}
		take := c.rec.Remaining()
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Allocation{
			File:  c.name,
			Start: c.rec.Processed,
			Count: take,
			End:   c.rec.Processed + take,
		})
		remaining -= take
	}
	return plan
}

// nextBatchNo returns one past the highest batch counter recorded in the
// ledger, so the counter stays monotonic across restarts.
func nextBatchNo(led ledger.Ledger) int64 {
	var max int64
	for _, rec := range led {
		if rec.LastBatch > max {
			max = rec.LastBatch
		}
	}
	return max + 1
}
