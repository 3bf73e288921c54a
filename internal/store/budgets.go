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

// CreateBudgetCategory inserts a new budget category and fills in the
// store-assigned ID.
func (s *Store) CreateBudgetCategory(ctx context.Context, c *ledger.BudgetCategory) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_categories (name, monthly_limit, created_at) VALUES (?, ?, ?)`,
		c.Name, c.MonthlyLimit.StringFixed(2), c.CreatedAt)
	if err != nil {
		return wrapExecErr("CreateBudgetCategory", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("CreateBudgetCategory: %w", err)
	}
	return nil
}

// GetBudgetCategory retrieves a budget category by ID.
func (s *Store) GetBudgetCategory(ctx context.Context, id int64) (*ledger.BudgetCategory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, monthly_limit, created_at FROM budget_categories WHERE id = ?`, id)

	var c ledger.BudgetCategory
	var limit string
	if err := row.Scan(&c.ID, &c.Name, &limit, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetBudgetCategory %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetBudgetCategory %d: %w", id, err)
	}
	var err error
	if c.MonthlyLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("GetBudgetCategory %d: parsing limit %q: %w", id, limit, err)
	}
	return &c, nil
}

// ListBudgetCategories returns budget categories with offset/limit pagination.
func (s *Store) ListBudgetCategories(ctx context.Context, skip, limit int) ([]ledger.BudgetCategory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, monthly_limit, created_at FROM budget_categories ORDER BY id LIMIT ? OFFSET ?`,
		limit, skip)
	if err != nil {
		return nil, fmt.Errorf("ListBudgetCategories: %w", err)
	}
	defer rows.Close()

	var categories []ledger.BudgetCategory
	for rows.Next() {
		var c ledger.BudgetCategory
		var lim string
		if err := rows.Scan(&c.ID, &c.Name, &lim, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListBudgetCategories: %w", err)
		}
		if c.MonthlyLimit, err = decimal.NewFromString(lim); err != nil {
			return nil, fmt.Errorf("ListBudgetCategories: parsing limit %q: %w", lim, err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateBudgetCategory applies the set fields of upd. Returns the updated
// record, or ErrNotFound.
func (s *Store) UpdateBudgetCategory(ctx context.Context, id int64, upd ledger.BudgetCategoryUpdate) (*ledger.BudgetCategory, error) {
	if upd.IsZero() {
		return s.GetBudgetCategory(ctx, id)
	}

	var sets []string
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.MonthlyLimit != nil {
		sets = append(sets, "monthly_limit = ?")
		args = append(args, upd.MonthlyLimit.StringFixed(2))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE budget_categories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, wrapExecErr("UpdateBudgetCategory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("UpdateBudgetCategory %d: %w", id, ErrNotFound)
	}
	return s.GetBudgetCategory(ctx, id)
}

// DeleteBudgetCategory removes a budget category. Transactions that
// referenced it keep their rows with category_id nulled by the store's
// ON DELETE SET NULL constraint.
func (s *Store) DeleteBudgetCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM budget_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteBudgetCategory %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("DeleteBudgetCategory %d: %w", id, ErrNotFound)
	}
	return nil
}
