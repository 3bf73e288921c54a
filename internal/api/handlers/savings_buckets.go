package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerkeep/internal/api/middleware"
	"github.com/dvloznov/ledgerkeep/internal/ledger"
	"github.com/dvloznov/ledgerkeep/internal/store"
)

// SavingsBucketsHandler handles savings bucket CRUD endpoints.
type SavingsBucketsHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewSavingsBucketsHandler creates a new savings buckets handler.
func NewSavingsBucketsHandler(st *store.Store, log zerolog.Logger) *SavingsBucketsHandler {
	return &SavingsBucketsHandler{store: st, log: log}
}

// Create handles POST /savings-buckets
func (h *SavingsBucketsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var bucket ledger.SavingsBucket
	if err := json.NewDecoder(r.Body).Decode(&bucket); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if bucket.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if bucket.TargetAmount.IsZero() {
		middleware.WriteError(w, http.StatusBadRequest, "target_amount is required")
		return
	}

	if err := h.store.CreateSavingsBucket(r.Context(), &bucket); err != nil {
		writeStoreError(w, h.log, err, "Savings bucket")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, bucket)
}

// List handles GET /savings-buckets
func (h *SavingsBucketsHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := parsePagination(r.URL.Query())

	buckets, err := h.store.ListSavingsBuckets(r.Context(), skip, limit)
	if err != nil {
		writeStoreError(w, h.log, err, "Savings bucket")
		return
	}
	if buckets == nil {
		buckets = []ledger.SavingsBucket{}
	}
	middleware.WriteJSON(w, http.StatusOK, buckets)
}

// Get handles GET /savings-buckets/{id}
func (h *SavingsBucketsHandler) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := h.parseID(w, rawID)
	if !ok {
		return
	}
	bucket, err := h.store.GetSavingsBucket(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.log, err, "Savings bucket")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, bucket)
}

// Update handles PUT /savings-buckets/{id}
func (h *SavingsBucketsHandler) Update(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := h.parseID(w, rawID)
	if !ok {
		return
	}
	var upd ledger.SavingsBucketUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bucket, err := h.store.UpdateSavingsBucket(r.Context(), id, upd)
	if err != nil {
		writeStoreError(w, h.log, err, "Savings bucket")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, bucket)
}

// Delete handles DELETE /savings-buckets/{id}
func (h *SavingsBucketsHandler) Delete(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := h.parseID(w, rawID)
	if !ok {
		return
	}
	if err := h.store.DeleteSavingsBucket(r.Context(), id); err != nil {
		writeStoreError(w, h.log, err, "Savings bucket")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": rawID})
}

func (h *SavingsBucketsHandler) parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid savings bucket ID")
		return 0, false
	}
	return id, true
}
