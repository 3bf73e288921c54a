package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerkeep/internal/ledger"
	"github.com/dvloznov/ledgerkeep/internal/store"
)

func newTransactionsHandler(t *testing.T) (*TransactionsHandler, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewTransactionsHandler(st, zerolog.Nop()), st
}

func seedTransactions(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()

	account := ledger.Account{ID: "A1", Name: "Checking"}
	if err := st.CreateAccount(ctx, &account); err != nil {
		t.Fatalf("seeding account: %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []ledger.Transaction{
		{ID: "T1", AccountID: "A1", PostedDate: base, Amount: decimal.New(-100, -2)},
		{ID: "T2", AccountID: "A1", PostedDate: base.AddDate(0, 0, 5), Amount: decimal.New(250, -2)},
	}
	if err := st.InsertTransactions(ctx, rows); err != nil {
		t.Fatalf("seeding transactions: %v", err)
	}
}

func TestTransactionsListFilters(t *testing.T) {
	h, st := newTransactionsHandler(t)
	seedTransactions(t, st)

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"all newest first", "", []string{"T2", "T1"}},
		{"by account", "?account_id=A1", []string{"T2", "T1"}},
		{"unknown account", "?account_id=A9", nil},
		{"start date", "?start_date=2025-06-03", []string{"T2"}},
		{"end date", "?end_date=2025-06-03", []string{"T1"}},
		{"limit", "?limit=1", []string{"T2"}},
		{"skip", "?skip=1", []string{"T1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/transactions"+tc.query, nil)
			rec := httptest.NewRecorder()
			h.List(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			var got []ledger.Transaction
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			var ids []string
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("ids = %v, want %v", ids, tc.want)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("ids = %v, want %v", ids, tc.want)
				}
			}
		})
	}
}

func TestTransactionsListBadDate(t *testing.T) {
	h, _ := newTransactionsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/transactions?start_date=yesterday", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTransactionsCreateUnknownAccount(t *testing.T) {
	h, _ := newTransactionsHandler(t)

	body := `{"id":"T1","account_id":"ghost","posted_date":"2025-06-01T00:00:00Z","amount":"5.00"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestTransactionsCreateValidation(t *testing.T) {
	h, _ := newTransactionsHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing id", `{"account_id":"A1","posted_date":"2025-06-01T00:00:00Z"}`},
		{"missing account", `{"id":"T1","posted_date":"2025-06-01T00:00:00Z"}`},
		{"missing posted date", `{"id":"T1","account_id":"A1"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		h.Create(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}
