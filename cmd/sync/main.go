package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/dvloznov/ledgerkeep/internal/config"
	"github.com/dvloznov/ledgerkeep/internal/logger"
	"github.com/dvloznov/ledgerkeep/internal/simplefin"
	"github.com/dvloznov/ledgerkeep/internal/store"
	"github.com/dvloznov/ledgerkeep/internal/sync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	dbPath := flag.String("db", "", "Path to the SQLite database (overrides config)")
	daysBack := flag.Int("days-back", 0, "Lookback window in days (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *daysBack > 0 {
		cfg.SyncDaysBack = *daysBack
	}

	if cfg.SimpleFINAccessURL == "" {
		log.Fatal().Msg("Error: SIMPLEFIN_ACCESS_URL (or simplefin_access_url in config) is required")
	}

	// Create context with timeout so the CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Int("days_back", cfg.SyncDaysBack).
		Str("db_path", cfg.DBPath).
		Msg("Starting reconciliation run")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("Failed to open ledger store")
	}
	defer st.Close()

	client, err := simplefin.NewClient(cfg.SimpleFINAccessURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize aggregation client")
	}

	engine := sync.NewEngine(client, st)

	report, err := engine.Reconcile(ctx, cfg.SyncDaysBack)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(report)
}
