package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerkeep/internal/ledger"
)

const transactionColumns = "id, account_id, category_id, posted_date, amount, description, memo, payee, pending, created_at"

// TransactionFilter narrows ListTransactions. Zero values mean "no filter";
// Limit must be positive.
type TransactionFilter struct {
	AccountID string
	StartDate *time.Time
	EndDate   *time.Time
	Skip      int
	Limit     int
}

// CreateTransaction inserts a new transaction. The account_id must
// reference an existing account; a dangling reference or duplicate ID
// surfaces as ErrConflict.
func (s *Store) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, nullableInt64(t.CategoryID), t.PostedDate,
		t.Amount.StringFixed(2), t.Description, t.Memo, t.Payee, t.Pending, t.CreatedAt)
	return wrapExecErr("CreateTransaction", err)
}

// InsertTransactions inserts a batch of transactions in a single database
// transaction. The engine calls this once per commit batch; a failure
// rolls back this batch only.
func (s *Store) InsertTransactions(ctx context.Context, transactions []ledger.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertTransactions: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertTransactions: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range transactions {
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.AccountID, nullableInt64(t.CategoryID), t.PostedDate,
			t.Amount.StringFixed(2), t.Description, t.Memo, t.Payee, t.Pending, createdAt); err != nil {
			return wrapExecErr("InsertTransactions", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertTransactions: commit: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID. Returns ErrNotFound when absent.
func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetTransaction %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetTransaction %q: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns transactions matching the filter, ordered by
// posted_date descending.
func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) ([]ledger.Transaction, error) {
	var where []string
	var args []any

	if filter.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.StartDate != nil {
		where = append(where, "posted_date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, "posted_date <= ?")
		args = append(args, *filter.EndDate)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY posted_date DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// ListTransactionIDs returns the full set of transaction IDs as an
// in-memory membership set for the reconciliation engine.
func (s *Store) ListTransactionIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionIDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListTransactionIDs: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// CountTransactions returns the number of stored transactions.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

// UpdateTransaction applies the set fields of upd to the transaction.
// Returns the updated record, or ErrNotFound.
func (s *Store) UpdateTransaction(ctx context.Context, id string, upd ledger.TransactionUpdate) (*ledger.Transaction, error) {
	if upd.IsZero() {
		return s.GetTransaction(ctx, id)
	}

	var sets []string
	var args []any
	appendSet := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.CategoryID != nil {
		appendSet("category_id", *upd.CategoryID)
	}
	if upd.PostedDate != nil {
		appendSet("posted_date", *upd.PostedDate)
	}
	if upd.Amount != nil {
		appendSet("amount", upd.Amount.StringFixed(2))
	}
	if upd.Description != nil {
		appendSet("description", *upd.Description)
	}
	if upd.Memo != nil {
		appendSet("memo", *upd.Memo)
	}
	if upd.Payee != nil {
		appendSet("payee", *upd.Payee)
	}
	if upd.Pending != nil {
		appendSet("pending", *upd.Pending)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, wrapExecErr("UpdateTransaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("UpdateTransaction %q: %w", id, ErrNotFound)
	}
	return s.GetTransaction(ctx, id)
}

// DeleteTransaction removes a transaction. Returns ErrNotFound when absent.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("DeleteTransaction %q: %w", id, ErrNotFound)
	}
	return nil
}

func scanTransaction(r rowScanner) (*ledger.Transaction, error) {
	var t ledger.Transaction
	var categoryID sql.NullInt64
	var amount string
	if err := r.Scan(&t.ID, &t.AccountID, &categoryID, &t.PostedDate, &amount,
		&t.Description, &t.Memo, &t.Payee, &t.Pending, &t.CreatedAt); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	return &t, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
