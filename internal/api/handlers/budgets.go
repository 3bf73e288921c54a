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

// BudgetsHandler handles budget category CRUD endpoints.
type BudgetsHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(st *store.Store, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{store: st, log: log}
}

// Create handles POST /budgets
func (h *BudgetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var category ledger.BudgetCategory
	if err := json.NewDecoder(r.Body).Decode(&category); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if category.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.store.CreateBudgetCategory(r.Context(), &category); err != nil {
		writeStoreError(w, h.log, err, "Budget category")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, category)
}

// List handles GET /budgets
func (h *BudgetsHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := parsePagination(r.URL.Query())

	categories, err := h.store.ListBudgetCategories(r.Context(), skip, limit)
	if err != nil {
		writeStoreError(w, h.log, err, "Budget category")
		return
	}
	if categories == nil {
		categories = []ledger.BudgetCategory{}
	}
	middleware.WriteJSON(w, http.StatusOK, categories)
}

// Get handles GET /budgets/{id}
func (h *BudgetsHandler) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := h.parseID(w, rawID)
	if !ok {
		return
	}
	category, err := h.store.GetBudgetCategory(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.log, err, "Budget category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, category)
}

// Update handles PUT /budgets/{id}
func (h *BudgetsHandler) Update(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := h.parseID(w, rawID)
	if !ok {
		return
	}
	var upd ledger.BudgetCategoryUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	category, err := h.store.UpdateBudgetCategory(r.Context(), id, upd)
	if err != nil {
		writeStoreError(w, h.log, err, "Budget category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, category)
}

// Delete handles DELETE /budgets/{id}. Transactions referencing the
// category keep their rows; the reference is nulled.
func (h *BudgetsHandler) Delete(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := h.parseID(w, rawID)
	if !ok {
		return
	}
	if err := h.store.DeleteBudgetCategory(r.Context(), id); err != nil {
		writeStoreError(w, h.log, err, "Budget category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": rawID})
}

func (h *BudgetsHandler) parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid budget category ID")
		return 0, false
	}
	return id, true
}
