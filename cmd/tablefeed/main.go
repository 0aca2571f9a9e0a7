// Package main implements the tablefeed binary: a batch-progress service
// that meters rows out of tabular data files over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ramodal61/n8n/internal/app"
	"github.com/ramodal61/n8n/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		addr        string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Directory holding data files and the progress ledger")
	flag.StringVar(&addr, "addr", "", "HTTP listen address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Tablefeed - Batch Progress Tracking For Tabular Data Files\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tablefeed [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tablefeed --data-dir /data/tablefeed\n")
		fmt.Fprintf(os.Stderr, "  tablefeed --config /etc/tablefeed/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TABLEFEED_DATA_DIR       Directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TABLEFEED_HTTP_ADDR      HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  TABLEFEED_BATCH_QUOTA    Rows released per allocation round\n")
		fmt.Fprintf(os.Stderr, "  TABLEFEED_SYNC_INTERVAL  Background sync interval (0 disables)\n")
		fmt.Fprintf(os.Stderr, "  TABLEFEED_STORAGE_TYPE   Remote storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("tablefeed version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, addr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	app.Version = version
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.Wait(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, addr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags win.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("Tablefeed starting")
	log.Printf("Configuration:")
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  HTTP:     %s", cfg.HTTP.Addr)
	log.Printf("  Quota:    %d rows/round", cfg.Batch.Quota)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	if cfg.Sync.Interval > 0 {
		log.Printf("  Sync:     every %v", cfg.Sync.Interval)
	}
}
