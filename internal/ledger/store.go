package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spaolacci/murmur3"

	ferrors "github.com/ramodal61/n8n/internal/errors"
)

// Store abstracts ledger persistence. All mutation of the persisted ledger
// goes through Save; no component writes the ledger file directly.
type Store interface {
	// Load reads the full ledger. A missing backing file yields an empty
	// ledger, not an error. A corrupt backing file yields a CORRUPT_STATE
	// error; the caller may Reset explicitly.
	Load(ctx context.Context) (Ledger, error)

	// Save writes the full ledger back, atomically from the perspective
	// of concurrent readers. Concurrent saves are serialized; waiting for
	// the write lock is bounded and surfaces a retryable LOCK_TIMEOUT.
	Save(ctx context.Context, l Ledger) error

	// Reset replaces whatever is persisted with an empty ledger.
	Reset(ctx context.Context) error
}

// envelope is the on-disk representation: the records plus a checksum of
// their canonical JSON encoding, so a torn or tampered file is detected
// on load instead of being served as data.
type envelope struct {
	Checksum string `json:"checksum"`
	Records  Ledger `json:"records"`
}

// FileStore persists the ledger as a single JSON file guarded by a
// sidecar lock file.
type FileStore struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	retryEvery  time.Duration
}

// FileStoreConfig holds tunables for FileStore.
type FileStoreConfig struct {
	// LockTimeout bounds the wait for the write lock (default 5s).
	LockTimeout time.Duration
	// RetryInterval is the poll interval while waiting (default 25ms).
	RetryInterval time.Duration
}

// NewFileStore creates a file-backed ledger store at path.
func NewFileStore(path string, cfg FileStoreConfig) (*FileStore, error) {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ledger: failed to create directory: %w", err)
	}
	return &FileStore{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: cfg.LockTimeout,
		retryEvery:  cfg.RetryInterval,
	}, nil
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and verifies the persisted ledger.
func (s *FileStore) Load(ctx context.Context) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Ledger{}, nil
		}
		return nil, fmt.Errorf("ledger: failed to read %s: %w", s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ferrors.NewCorruptState(
			fmt.Sprintf("ledger file %s is not valid JSON", s.path), err)
	}
	if env.Records == nil {
		env.Records = Ledger{}
	}

	sum, err := checksumRecords(env.Records)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to checksum records: %w", err)
	}
	if env.Checksum != sum {
		return nil, ferrors.NewCorruptState(
			fmt.Sprintf("ledger file %s checksum mismatch (stored %s, computed %s)",
				s.path, env.Checksum, sum), nil)
	}

	return env.Records, nil
}

// Save writes the ledger under the write lock, via temp file + rename so a
// concurrent reader sees either the old or the new file, never a mix.
func (s *FileStore) Save(ctx context.Context, l Ledger) error {
	if err := l.Validate(); err != nil {
		return err
	}

	release, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	return s.writeLocked(l)
}

// Reset replaces the persisted ledger with an empty one.
func (s *FileStore) Reset(ctx context.Context) error {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	return s.writeLocked(Ledger{})
}

// writeLocked marshals and atomically replaces the backing file.
// Caller must hold the lock.
func (s *FileStore) writeLocked(l Ledger) error {
	sum, err := checksumRecords(l)
	if err != nil {
		return fmt.Errorf("ledger: failed to checksum records: %w", err)
	}

	data, err := json.MarshalIndent(envelope{Checksum: sum, Records: l}, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: failed to marshal ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("ledger: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ledger: failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ledger: failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ledger: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ledger: failed to replace %s: %w", s.path, err)
	}
	return nil
}

// acquireLock takes the sidecar lock file with a bounded wait.
// The lock is advisory: every writer in this process and any cooperating
// process goes through the same file.
func (s *FileStore) acquireLock(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(s.lockTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(s.lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("ledger: failed to create lock file: %w", err)
		}

		if time.Now().After(deadline) {
			return nil, ferrors.NewLockTimeout(
				fmt.Sprintf("ledger: lock %s not acquired within %v", s.lockPath, s.lockTimeout))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryEvery):
		}
	}
}

// checksumRecords computes the murmur3-128 digest of the canonical JSON
// encoding of the records. encoding/json sorts map keys, so the encoding
// is deterministic.
func checksumRecords(l Ledger) (string, error) {
	canonical, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	h1, h2 := murmur3.Sum128(canonical)
	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		buf[i] = byte(h1 >> (56 - 8*i))
		buf[8+i] = byte(h2 >> (56 - 8*i))
	}
	return hex.EncodeToString(buf), nil
}
