// Package handlers implements the HTTP surface: CRUD per entity plus the
// sync trigger. Handlers are thin; validation and status mapping live
// here, everything else is delegated to the store and the sync engine.
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerkeep/internal/api/middleware"
	"github.com/dvloznov/ledgerkeep/internal/store"
)

// parsePagination reads skip/limit query parameters, defaulting to 0/100.
func parsePagination(q url.Values) (skip, limit int) {
	skip, limit = 0, 100
	if v := q.Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return skip, limit
}

// parseDate accepts YYYY-MM-DD or RFC 3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// writeStoreError maps store errors onto HTTP statuses: missing records
// are 404, constraint violations 409, everything else 500.
func writeStoreError(w http.ResponseWriter, log zerolog.Logger, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrConflict):
		middleware.WriteError(w, http.StatusConflict, what+" conflicts with an existing record")
	default:
		log.Error().Err(err).Msg("Store operation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
