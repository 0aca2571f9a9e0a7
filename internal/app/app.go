// Package app wires configuration into running components: the ledger
// store, progress manager, batch allocator, remote syncer, and the HTTP
// server that fronts them.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	apihttp "github.com/ramodal61/n8n/internal/api/http"
	"github.com/ramodal61/n8n/internal/batch"
	"github.com/ramodal61/n8n/internal/config"
	"github.com/ramodal61/n8n/internal/ledger"
	"github.com/ramodal61/n8n/internal/progress"
	"github.com/ramodal61/n8n/internal/remote"
	"github.com/ramodal61/n8n/internal/server"
	"github.com/ramodal61/n8n/internal/storage"
	"github.com/ramodal61/n8n/internal/table"
)

// Version is stamped at build time.
var Version = "dev"

// App holds the assembled service.
type App struct {
	cfg       *config.Config
	store     ledger.Store
	manager   *progress.Manager
	allocator *batch.Allocator
	syncer    *remote.Syncer
	shutdown  *server.ShutdownManager

	httpServer *server.GracefulHTTPServer
	daemonStop context.CancelFunc
}

// New builds the application from configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	store, err := ledger.NewFileStore(cfg.LedgerPath(), ledger.FileStoreConfig{
		LockTimeout:   cfg.Ledger.LockTimeout,
		RetryInterval: cfg.Ledger.RetryInterval,
	})
	if err != nil {
		return nil, err
	}

	reader := table.NewReader()
	reader.EstimatedRowBytes = cfg.Batch.EstimatedRowBytes

	manager := progress.NewManager(store, reader, cfg.DataDir, cfg.MetaPath(), nil)

	objStore, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}

	var syncer *remote.Syncer
	if objStore != nil {
		syncer = remote.NewSyncer(objStore, cfg.DataDir, cfg.MetaPath(),
			cfg.Sync.Prefix, cfg.Sync.Concurrency)
	}

	allocCfg := batch.Config{
		Progress: manager,
		Reader:   reader,
		MetaPath: cfg.MetaPath(),
		DataDir:  cfg.DataDir,
		Quota:    cfg.Batch.Quota,
	}
	if syncer != nil {
		allocCfg.Syncer = syncer
	}
	allocator := batch.NewAllocator(allocCfg)

	return &App{
		cfg:       cfg,
		store:     store,
		manager:   manager,
		allocator: allocator,
		syncer:    syncer,
		shutdown:  server.NewShutdownManager(0),
	}, nil
}

// buildStorage creates the remote drive backend, or nil when none applies.
func buildStorage(cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Storage(context.Background(), cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("app: unsupported storage type %q", cfg.Storage.Type)
	}
}

// Start launches the HTTP server and, when configured, the background sync
// daemon. It returns once the listener is running.
func (a *App) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	wrap := apihttp.DefaultMiddleware()

	mux.Handle("/v1/batch/run", wrap(apihttp.NewBatchHandler(a.allocator)))
	mux.Handle("/v1/progress", wrap(apihttp.NewProgressHandler(a.manager)))
	mux.Handle("/v1/health", wrap(apihttp.NewHealthHandler(Version, a.cfg.DataDir)))

	admin := apihttp.NewAdminHandler(a.syncer, a.cfg.DataDir, a.cfg.MetaPath(),
		[]string{a.cfg.Ledger.FileName})
	mux.Handle("/v1/sync", wrap(http.HandlerFunc(admin.HandleSync)))
	mux.Handle("/v1/tables/", wrap(http.HandlerFunc(admin.HandleDownload)))
	mux.Handle("/v1/meta/prune", wrap(http.HandlerFunc(admin.HandlePrune)))
	mux.Handle("/v1/meta/cleanup", wrap(http.HandlerFunc(admin.HandleCleanup)))

	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.httpServer = server.NewGracefulHTTPServer(srv, a.shutdown)

	go func() {
		log.Printf("app: http server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil {
			log.Printf("app: http server error: %v", err)
		}
	}()

	if a.syncer != nil && a.cfg.Sync.Interval > 0 {
		daemonCtx, cancel := context.WithCancel(context.Background())
		a.daemonStop = cancel
		go a.runSyncDaemon(daemonCtx, a.cfg.Sync.Interval)
	}

	return nil
}

// runSyncDaemon runs periodic remote sync passes until its context ends.
func (a *App) runSyncDaemon(ctx context.Context, interval time.Duration) {
	log.Printf("app: sync daemon running every %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("app: sync daemon stopped")
			return
		case <-ticker.C:
			if err := a.syncer.Sync(ctx); err != nil {
				log.Printf("app: periodic sync failed: %v", err)
			}
		}
	}
}

// Stop shuts the application down gracefully.
func (a *App) Stop(ctx context.Context) error {
	if a.daemonStop != nil {
		a.daemonStop()
	}
	return a.shutdown.Shutdown(ctx)
}

// Wait blocks until a termination signal arrives, then shuts down.
func (a *App) Wait(ctx context.Context) error {
	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		return err
	}
	if a.daemonStop != nil {
		a.daemonStop()
	}
	return nil
}

// Allocator exposes the batch allocator, mainly for embedding callers.
func (a *App) Allocator() *batch.Allocator {
	return a.allocator
}

// Progress exposes the progress manager.
func (a *App) Progress() *progress.Manager {
	return a.manager
}
