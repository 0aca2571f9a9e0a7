// Package remote synchronizes data files from the remote drive into the
// local data directory and registers new arrivals in the catalog. From the
// allocator's perspective this is fire-and-forget: a failed sync never
// blocks an allocation round.
package remote

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ramodal61/n8n/internal/catalog"
	ferrors "github.com/ramodal61/n8n/internal/errors"
	"github.com/ramodal61/n8n/internal/storage"
	"github.com/ramodal61/n8n/internal/table"
)

// DefaultConcurrency bounds parallel downloads per sync pass.
const DefaultConcurrency = 4

// Syncer pulls missing data files from object storage.
type Syncer struct {
	store       storage.ObjectStorage
	dataDir     string
	metaPath    string
	prefix      string
	concurrency int64
}

// NewSyncer creates a syncer that mirrors objects under prefix into
// dataDir and registers them at metaPath.
func NewSyncer(store storage.ObjectStorage, dataDir, metaPath, prefix string, concurrency int) *Syncer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Syncer{
		store:       store,
		dataDir:     dataDir,
		metaPath:    metaPath,
		prefix:      prefix,
		concurrency: int64(concurrency),
	}
}

// SyncResult reports the outcome of one sync pass.
type SyncResult struct {
	Downloaded []string `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// Sync runs a pass and logs the outcome, returning only pass-level
// failures (the remote listing being unreachable).
func (s *Syncer) Sync(ctx context.Context) error {
	result, err := s.SyncWithResult(ctx)
	if err != nil {
		return err
	}
	if len(result.Downloaded) > 0 || len(result.Errors) > 0 {
		log.Printf("remote: sync downloaded %d files, skipped %d, %d errors",
			len(result.Downloaded), result.Skipped, len(result.Errors))
	}
	return nil
}

// SyncWithResult lists remote data files, downloads the ones missing
// locally with bounded parallelism, and registers each download in the
// catalog with status "new". Per-file failures are collected, not fatal.
func (s *Syncer) SyncWithResult(ctx context.Context) (*SyncResult, error) {
	objects, err := s.store.ListObjects(ctx, s.prefix)
	if err != nil {
		return nil, ferrors.NewStorageError(ferrors.CodeSyncFailed,
			"remote: failed to list remote objects", err)
	}

	local, err := listFilesLower(s.dataDir)
	if err != nil {
		return nil, err
	}

	var missing []string
	result := &SyncResult{Downloaded: []string{}}
	for _, obj := range objects {
		name := path.Base(obj)
		if !strings.HasSuffix(strings.ToLower(name), table.DataFileSuffix) {
			continue
		}
		if _, ok := local[strings.ToLower(name)]; ok {
			result.Skipped++
			continue
		}
		missing = append(missing, obj)
	}

	if len(missing) == 0 {
		return result, nil
	}

	sem := semaphore.NewWeighted(s.concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var fetched []string

	for _, obj := range missing {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(objectPath string) {
			defer sem.Release(1)
			defer wg.Done()

			name, err := s.download(ctx, objectPath)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", objectPath, err))
				return
			}
			fetched = append(fetched, name)
		}(obj)
	}
	wg.Wait()

	// Catalog registration is serialized: the catalog file has no
	// concurrent-writer protection of its own.
	for _, name := range fetched {
		if err := catalog.Register(ctx, s.metaPath, name, catalog.StatusNew); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		result.Downloaded = append(result.Downloaded, name)
	}

	return result, nil
}

// DownloadTable fetches a single table by name from the remote drive,
// trying the same ordered name guesses used for local resolution.
func (s *Syncer) DownloadTable(ctx context.Context, tableName string) (string, error) {
	// Already present locally?
	if name, err := table.Resolve(s.dataDir, tableName); err == nil {
		return name, nil
	}

	for _, candidate := range table.Candidates(tableName) {
		objectPath := candidate
		if s.prefix != "" {
			objectPath = path.Join(s.prefix, candidate)
		}
		exists, err := s.store.Exists(ctx, objectPath)
		if err != nil {
			return "", ferrors.NewStorageError(ferrors.CodeDownloadFailed,
				fmt.Sprintf("remote: failed to probe %s", objectPath), err)
		}
		if !exists {
			continue
		}
		return s.fetch(ctx, objectPath)
	}

	return "", ferrors.NewNotFound(
		fmt.Sprintf("remote: no remote object matches table %q", tableName))
}

// fetch downloads one object into the data directory and registers it.
func (s *Syncer) fetch(ctx context.Context, objectPath string) (string, error) {
	name, err := s.download(ctx, objectPath)
	if err != nil {
		return "", err
	}
	if err := catalog.Register(ctx, s.metaPath, name, catalog.StatusNew); err != nil {
		return "", err
	}
	return name, nil
}

// download pulls one object into the data directory.
func (s *Syncer) download(ctx context.Context, objectPath string) (string, error) {
	name := path.Base(objectPath)
	localPath := filepath.Join(s.dataDir, name)

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return "", fmt.Errorf("remote: failed to create data dir: %w", err)
	}
	if err := s.store.Download(ctx, objectPath, localPath); err != nil {
		return "", ferrors.NewStorageError(ferrors.CodeDownloadFailed,
			fmt.Sprintf("remote: failed to download %s", objectPath), err)
	}
	return name, nil
}

// listFilesLower maps lower-cased file names in dir to their actual names.
func listFilesLower(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("remote: failed to list %s: %w", dir, err)
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
