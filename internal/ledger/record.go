// Package ledger provides durable per-file progress accounting.
// The ledger maps each data file name to how many of its rows have been
// released to consumers versus how many exist in total.
package ledger

import (
	"fmt"

	ferrors "github.com/ramodal61/n8n/internal/errors"
)

// FileProgress is the progress record for a single data file.
type FileProgress struct {
	// Total is the known row count of the file.
	Total int64 `json:"total"`

	// IsEstimated is true when Total was derived from the file size
	// rather than an exact row scan.
	IsEstimated bool `json:"is_estimated"`

	// Processed is the count of rows already released for consumption.
	// Invariant: 0 <= Processed <= Total.
	Processed int64 `json:"processed"`

	// LastBatch is the batch counter of the most recent allocation
	// that touched this file.
	LastBatch int64 `json:"last_batch"`

	// LastBatchSize is the number of rows granted in that allocation.
	LastBatchSize int64 `json:"last_batch_size"`

	// SizeBytes is the file size observed when Total was computed.
	// A differing on-disk size marks the total as stale.
	SizeBytes int64 `json:"size_bytes"`
}

// Remaining returns the unprocessed backlog of the file.
func (p FileProgress) Remaining() int64 {
	return p.Total - p.Processed
}

// Done reports whether every row of the file has been released.
func (p FileProgress) Done() bool {
	return p.Processed >= p.Total
}

// Validate checks the per-record invariant.
func (p FileProgress) Validate(fileName string) error {
	if p.Total < 0 {
		return ferrors.NewInvariantViolation(
			fmt.Sprintf("file %s: negative total %d", fileName, p.Total))
	}
	if p.Processed < 0 || p.Processed > p.Total {
		return ferrors.NewInvariantViolation(
			fmt.Sprintf("file %s: processed %d out of range [0, %d]",
				fileName, p.Processed, p.Total)).WithDetails(map[string]interface{}{
			"file_name": fileName,
			"processed": p.Processed,
			"total":     p.Total,
		})
	}
	return nil
}

// Ledger maps file names to their progress records.
type Ledger map[string]FileProgress

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	cp := make(Ledger, len(l))
	for name, rec := range l {
		cp[name] = rec
	}
	return cp
}

// Validate checks the invariant for every record.
func (l Ledger) Validate() error {
	for name, rec := range l {
		if err := rec.Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// TotalRows returns the sum of all known row counts.
func (l Ledger) TotalRows() int64 {
	var n int64
	for _, rec := range l {
		n += rec.Total
	}
	return n
}

// TotalProcessed returns the sum of all released row counts.
func (l Ledger) TotalProcessed() int64 {
	var n int64
	for _, rec := range l {
		n += rec.Processed
	}
	return n
}

// AllDone reports whether every tracked file is fully processed.
func (l Ledger) AllDone() bool {
	return l.TotalProcessed() >= l.TotalRows()
}
