package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerkeep/internal/api/middleware"
	"github.com/dvloznov/ledgerkeep/internal/ledger"
	"github.com/dvloznov/ledgerkeep/internal/store"
)

// TransactionsHandler handles transaction CRUD endpoints.
type TransactionsHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(st *store.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: st, log: log}
}

// Create handles POST /transactions. The account_id must reference an
// existing account; dangling references are rejected, never stored.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if tx.ID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	if tx.AccountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	if tx.PostedDate.IsZero() {
		middleware.WriteError(w, http.StatusBadRequest, "posted_date is required")
		return
	}

	if err := h.store.CreateTransaction(r.Context(), &tx); err != nil {
		writeStoreError(w, h.log, err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// List handles GET /transactions with optional account_id, start_date and
// end_date filters, returning newest-posted first.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := store.TransactionFilter{
		AccountID: query.Get("account_id"),
	}
	filter.Skip, filter.Limit = parsePagination(query)

	if v := query.Get("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
		filter.StartDate = &t
	}
	if v := query.Get("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
		filter.EndDate = &t
	}

	transactions, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		writeStoreError(w, h.log, err, "Transaction")
		return
	}
	if transactions == nil {
		transactions = []ledger.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// Get handles GET /transactions/{id}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := h.store.GetTransaction(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.log, err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Update handles PUT /transactions/{id}
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	var upd ledger.TransactionUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.store.UpdateTransaction(r.Context(), id, upd)
	if err != nil {
		writeStoreError(w, h.log, err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Delete handles DELETE /transactions/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.DeleteTransaction(r.Context(), id); err != nil {
		writeStoreError(w, h.log, err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}
