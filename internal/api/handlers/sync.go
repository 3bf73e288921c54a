package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerkeep/internal/api/middleware"
	"github.com/dvloznov/ledgerkeep/internal/logger"
	"github.com/dvloznov/ledgerkeep/internal/sync"
)

const defaultDaysBack = 30

// Reconciler runs one reconciliation over a lookback window.
type Reconciler interface {
	Reconcile(ctx context.Context, daysBack int) (*sync.Report, error)
}

// SyncHandler handles the reconciliation trigger and run history.
type SyncHandler struct {
	engine  Reconciler
	history *sync.History
	log     zerolog.Logger
}

// NewSyncHandler creates a new sync handler. A nil engine means no sync
// source is configured; triggering then returns 400.
func NewSyncHandler(engine Reconciler, history *sync.History, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, history: history, log: log}
}

// Trigger handles POST /sync?days_back=N. Success returns the run report
// with skip counts; skips are not failures. Source and conflict failures
// are caller-correctable 400s, anything else is a 500.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		middleware.WriteError(w, http.StatusBadRequest, "Sync source is not configured")
		return
	}

	daysBack := defaultDaysBack
	if v := r.URL.Query().Get("days_back"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "days_back must be a positive integer")
			return
		}
		daysBack = n
	}

	ctx := logger.WithContext(r.Context(), h.log)
	started := time.Now().UTC()

	report, err := h.engine.Reconcile(ctx, daysBack)
	h.history.Record(daysBack, started, report, err)

	if err != nil {
		h.log.Error().Err(err).Int("days_back", daysBack).Msg("Reconciliation failed")
		switch {
		case errors.Is(err, sync.ErrSourceUnavailable), errors.Is(err, sync.ErrConflict):
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			middleware.WriteError(w, http.StatusInternalServerError, "An unexpected error occurred during sync")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

// ListRuns handles GET /sync/runs
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := sync.RunFilter{
		Status: sync.RunStatus(query.Get("status")),
	}
	filter.Skip, filter.Limit = parsePagination(query)

	runs := h.history.List(filter)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
