package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/ledgerkeep/internal/api/handlers"
	"github.com/dvloznov/ledgerkeep/internal/api/middleware"
	"github.com/dvloznov/ledgerkeep/internal/config"
	"github.com/dvloznov/ledgerkeep/internal/logger"
	"github.com/dvloznov/ledgerkeep/internal/simplefin"
	"github.com/dvloznov/ledgerkeep/internal/store"
	"github.com/dvloznov/ledgerkeep/internal/sync"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
		dbPath     = flag.String("db", "", "Path to the SQLite database (overrides config)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// Open the ledger store
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("Failed to open ledger store")
	}
	defer st.Close()

	// Initialize the sync engine if a source is configured
	var engine *sync.Engine
	if cfg.SimpleFINAccessURL != "" {
		client, err := simplefin.NewClient(cfg.SimpleFINAccessURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize aggregation client")
		}
		engine = sync.NewEngine(client, st)
	} else {
		log.Warn().Msg("No SimpleFIN access URL configured - sync endpoint disabled")
	}
	history := sync.NewHistory()

	// Start the periodic scheduler in the background when configured
	ctx := logger.WithContext(context.Background(), log)
	schedulerCtx, cancelScheduler := context.WithCancel(ctx)
	defer cancelScheduler()

	if engine != nil && cfg.SyncInterval > 0 {
		go sync.RunPeriodic(schedulerCtx, engine, history, time.Duration(cfg.SyncInterval), cfg.SyncDaysBack)
	}

	// Initialize handlers
	accountsHandler := handlers.NewAccountsHandler(st, log)
	transactionsHandler := handlers.NewTransactionsHandler(st, log)
	budgetsHandler := handlers.NewBudgetsHandler(st, log)
	savingsHandler := handlers.NewSavingsBucketsHandler(st, log)

	var syncHandler *handlers.SyncHandler
	if engine != nil {
		syncHandler = handlers.NewSyncHandler(engine, history, log)
	} else {
		syncHandler = handlers.NewSyncHandler(nil, history, log)
	}

	// Create router
	mux := http.NewServeMux()

	// Sync endpoints
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.Trigger(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/sync/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			syncHandler.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Accounts endpoints
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			accountsHandler.Create(w, r)
		case http.MethodGet:
			accountsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/accounts/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/accounts/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Account ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			accountsHandler.Get(w, r, id)
		case http.MethodPut:
			accountsHandler.Update(w, r, id)
		case http.MethodDelete:
			accountsHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Transactions endpoints
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			transactionsHandler.Create(w, r)
		case http.MethodGet:
			transactionsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/transactions/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.Get(w, r, id)
		case http.MethodPut:
			transactionsHandler.Update(w, r, id)
		case http.MethodDelete:
			transactionsHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Budget category endpoints
	mux.HandleFunc("/budgets", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			budgetsHandler.Create(w, r)
		case http.MethodGet:
			budgetsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/budgets/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/budgets/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Budget category ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			budgetsHandler.Get(w, r, id)
		case http.MethodPut:
			budgetsHandler.Update(w, r, id)
		case http.MethodDelete:
			budgetsHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Savings bucket endpoints
	mux.HandleFunc("/savings-buckets", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			savingsHandler.Create(w, r)
		case http.MethodGet:
			savingsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/savings-buckets/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/savings-buckets/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Savings bucket ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			savingsHandler.Get(w, r, id)
		case http.MethodPut:
			savingsHandler.Update(w, r, id)
		case http.MethodDelete:
			savingsHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // sync runs block on network fetches
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("db_path", cfg.DBPath).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelScheduler()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
