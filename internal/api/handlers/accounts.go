package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerkeep/internal/api/middleware"
	"github.com/dvloznov/ledgerkeep/internal/ledger"
	"github.com/dvloznov/ledgerkeep/internal/store"
)

// AccountsHandler handles account CRUD endpoints.
type AccountsHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(st *store.Store, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{store: st, log: log}
}

// Create handles POST /accounts
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var account ledger.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if account.ID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	if account.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.store.CreateAccount(r.Context(), &account); err != nil {
		writeStoreError(w, h.log, err, "Account")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// List handles GET /accounts
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := parsePagination(r.URL.Query())

	accounts, err := h.store.ListAccounts(r.Context(), skip, limit)
	if err != nil {
		writeStoreError(w, h.log, err, "Account")
		return
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	middleware.WriteJSON(w, http.StatusOK, accounts)
}

// Get handles GET /accounts/{id}
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	account, err := h.store.GetAccount(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.log, err, "Account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// Update handles PUT /accounts/{id}
func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	var upd ledger.AccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.store.UpdateAccount(r.Context(), id, upd)
	if err != nil {
		writeStoreError(w, h.log, err, "Account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// Delete handles DELETE /accounts/{id}. Deleting an account also deletes
// its transactions.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.DeleteAccount(r.Context(), id); err != nil {
		writeStoreError(w, h.log, err, "Account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}
