// Package table reads rows from SQLite-backed data files.
// Each data file holds a single "rows" table; the package does not
// interpret the row schema beyond column names.
package table

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	ferrors "github.com/ramodal61/n8n/internal/errors"
)

// DataFileSuffix is the expected suffix of data files.
const DataFileSuffix = ".sqlite"

// DefaultEstimatedRowBytes is the assumed bytes-per-row when a file
// cannot be row-counted exactly.
const DefaultEstimatedRowBytes = 512

// rowsTable is the table every data file is expected to carry.
const rowsTable = "rows"

// RowSet holds rows read from a data file.
type RowSet struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Reader reads and counts rows in SQLite data files.
type Reader struct {
	// EstimatedRowBytes is the divisor for size-based estimates.
	EstimatedRowBytes int64
}

// NewReader creates a Reader with default settings.
func NewReader() *Reader {
	return &Reader{EstimatedRowBytes: DefaultEstimatedRowBytes}
}

// ReadRows returns up to count rows starting at offset from the data file
// at path. Offsets beyond the end yield an empty RowSet, not an error.
func (r *Reader) ReadRows(ctx context.Context, path string, offset, count int64) (*RowSet, error) {
	if count <= 0 {
		return &RowSet{Columns: []string{}, Rows: [][]interface{}{}}, nil
	}

	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT * FROM %s LIMIT ? OFFSET ?", rowsTable)
	rows, err := db.QueryContext(ctx, query, count, offset)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCategoryBatch, ferrors.CodeReadFailed,
			fmt.Sprintf("table: failed to read rows from %s", path), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("table: failed to read columns of %s: %w", path, err)
	}

	result := &RowSet{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("table: failed to scan row from %s: %w", path, err)
		}
		// SQLite hands TEXT back as []byte; JSON encoding wants strings.
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCategoryBatch, ferrors.CodeReadFailed,
			fmt.Sprintf("table: error iterating rows of %s", path), err)
	}

	return result, nil
}

// CountRows returns the exact row count of the data file at path.
func (r *Reader) CountRows(ctx context.Context, path string) (int64, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", rowsTable)
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("table: failed to count rows of %s: %w", path, err)
	}
	return count, nil
}

// EstimateRows derives a row count from the file size. A non-empty file
// estimates to at least one row.
func (r *Reader) EstimateRows(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ferrors.NewNotFound(fmt.Sprintf("table: data file %s does not exist", path))
		}
		return 0, fmt.Errorf("table: failed to stat %s: %w", path, err)
	}

	rowBytes := r.EstimatedRowBytes
	if rowBytes <= 0 {
		rowBytes = DefaultEstimatedRowBytes
	}

	estimate := info.Size() / rowBytes
	if estimate == 0 && info.Size() > 0 {
		estimate = 1
	}
	return estimate, nil
}

// Measure returns the row count of the data file at path: exact when the
// file opens as SQLite, a size-based estimate otherwise. The second return
// reports whether the value is estimated.
func (r *Reader) Measure(ctx context.Context, path string) (int64, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return 0, false, ferrors.NewNotFound(fmt.Sprintf("table: data file %s does not exist", path))
		}
		return 0, false, fmt.Errorf("table: failed to stat %s: %w", path, err)
	}

	count, err := r.CountRows(ctx, path)
	if err == nil {
		return count, false, nil
	}

	estimate, estErr := r.EstimateRows(path)
	if estErr != nil {
		return 0, false, estErr
	}
	return estimate, true, nil
}

// openReadOnly opens a SQLite data file without taking write locks.
func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ferrors.NewNotFound(fmt.Sprintf("table: data file %s does not exist", path))
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("table: failed to open %s: %w", path, err)
	}
	// sql.Open is lazy; force the file to actually parse as SQLite.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("table: %s is not a readable SQLite file: %w", path, err)
	}
	return db, nil
}
