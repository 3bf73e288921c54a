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

const accountColumns = "id, name, currency, type, balance, org_name, url, last_updated"

// CreateAccount inserts a new account. Returns ErrConflict if the ID
// already exists.
func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) error {
	if a.LastUpdated.IsZero() {
		a.LastUpdated = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Currency, a.Type, a.Balance.StringFixed(2),
		a.OrgName, a.URL, a.LastUpdated)
	return wrapExecErr("CreateAccount", err)
}

// InsertAccounts inserts a batch of accounts in a single transaction.
// All rows commit or none do; a uniqueness violation anywhere in the
// batch surfaces as ErrConflict with nothing written.
func (s *Store) InsertAccounts(ctx context.Context, accounts []ledger.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertAccounts: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertAccounts: prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range accounts {
		lastUpdated := a.LastUpdated
		if lastUpdated.IsZero() {
			lastUpdated = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.Name, a.Currency, a.Type, a.Balance.StringFixed(2),
			a.OrgName, a.URL, lastUpdated); err != nil {
			return wrapExecErr("InsertAccounts", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertAccounts: commit: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by ID. Returns ErrNotFound when absent.
func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetAccount %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetAccount %q: %w", id, err)
	}
	return a, nil
}

// ListAccounts returns accounts ordered by ID with offset/limit pagination.
func (s *Store) ListAccounts(ctx context.Context, skip, limit int) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT ? OFFSET ?`,
		limit, skip)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// ListAccountIDs returns the full set of account IDs as an in-memory
// membership set. The reconciliation engine snapshots this once per run.
func (s *Store) ListAccountIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("ListAccountIDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListAccountIDs: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// CountAccounts returns the number of stored accounts.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountAccounts: %w", err)
	}
	return n, nil
}

// UpdateAccount applies the set fields of upd to the account and refreshes
// last_updated. Returns the updated record, or ErrNotFound.
func (s *Store) UpdateAccount(ctx context.Context, id string, upd ledger.AccountUpdate) (*ledger.Account, error) {
	sets := []string{"last_updated = ?"}
	args := []any{time.Now().UTC()}

	appendSet := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Name != nil {
		appendSet("name", *upd.Name)
	}
	if upd.Currency != nil {
		appendSet("currency", *upd.Currency)
	}
	if upd.Type != nil {
		appendSet("type", *upd.Type)
	}
	if upd.Balance != nil {
		appendSet("balance", upd.Balance.StringFixed(2))
	}
	if upd.OrgName != nil {
		appendSet("org_name", *upd.OrgName)
	}
	if upd.URL != nil {
		appendSet("url", *upd.URL)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, wrapExecErr("UpdateAccount", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("UpdateAccount %q: %w", id, ErrNotFound)
	}
	return s.GetAccount(ctx, id)
}

// DeleteAccount removes an account and, via foreign-key cascade, all of
// its transactions. Returns ErrNotFound when the account does not exist.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteAccount %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("DeleteAccount %q: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*ledger.Account, error) {
	var a ledger.Account
	var balance string
	if err := r.Scan(&a.ID, &a.Name, &a.Currency, &a.Type, &balance,
		&a.OrgName, &a.URL, &a.LastUpdated); err != nil {
		return nil, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parsing balance %q: %w", balance, err)
	}
	return &a, nil
}
