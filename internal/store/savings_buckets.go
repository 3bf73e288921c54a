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

// CreateSavingsBucket inserts a new savings bucket and fills in the
// store-assigned ID.
func (s *Store) CreateSavingsBucket(ctx context.Context, b *ledger.SavingsBucket) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO savings_buckets (name, target_amount, current_amount, goal_date, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.Name, b.TargetAmount.StringFixed(2), b.CurrentAmount.StringFixed(2),
		nullableTime(b.GoalDate), b.CreatedAt)
	if err != nil {
		return wrapExecErr("CreateSavingsBucket", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("CreateSavingsBucket: %w", err)
	}
	return nil
}

// GetSavingsBucket retrieves a savings bucket by ID.
func (s *Store) GetSavingsBucket(ctx context.Context, id int64) (*ledger.SavingsBucket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, target_amount, current_amount, goal_date, created_at
		 FROM savings_buckets WHERE id = ?`, id)
	b, err := scanSavingsBucket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetSavingsBucket %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetSavingsBucket %d: %w", id, err)
	}
	return b, nil
}

// ListSavingsBuckets returns savings buckets with offset/limit pagination.
func (s *Store) ListSavingsBuckets(ctx context.Context, skip, limit int) ([]ledger.SavingsBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, target_amount, current_amount, goal_date, created_at
		 FROM savings_buckets ORDER BY id LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("ListSavingsBuckets: %w", err)
	}
	defer rows.Close()

	var buckets []ledger.SavingsBucket
	for rows.Next() {
		b, err := scanSavingsBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSavingsBuckets: %w", err)
		}
		buckets = append(buckets, *b)
	}
	return buckets, rows.Err()
}

// UpdateSavingsBucket applies the set fields of upd. Returns the updated
// record, or ErrNotFound.
func (s *Store) UpdateSavingsBucket(ctx context.Context, id int64, upd ledger.SavingsBucketUpdate) (*ledger.SavingsBucket, error) {
	if upd.IsZero() {
		return s.GetSavingsBucket(ctx, id)
	}

	var sets []string
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.TargetAmount != nil {
		sets = append(sets, "target_amount = ?")
		args = append(args, upd.TargetAmount.StringFixed(2))
	}
	if upd.CurrentAmount != nil {
		sets = append(sets, "current_amount = ?")
		args = append(args, upd.CurrentAmount.StringFixed(2))
	}
	if upd.GoalDate != nil {
		sets = append(sets, "goal_date = ?")
		args = append(args, *upd.GoalDate)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE savings_buckets SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, wrapExecErr("UpdateSavingsBucket", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("UpdateSavingsBucket %d: %w", id, ErrNotFound)
	}
	return s.GetSavingsBucket(ctx, id)
}

// DeleteSavingsBucket removes a savings bucket. Returns ErrNotFound when absent.
func (s *Store) DeleteSavingsBucket(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM savings_buckets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteSavingsBucket %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("DeleteSavingsBucket %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanSavingsBucket(r rowScanner) (*ledger.SavingsBucket, error) {
	var b ledger.SavingsBucket
	var target, current string
	var goalDate sql.NullTime
	if err := r.Scan(&b.ID, &b.Name, &target, &current, &goalDate, &b.CreatedAt); err != nil {
		return nil, err
	}
	if goalDate.Valid {
		b.GoalDate = &goalDate.Time
	}
	var err error
	if b.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return nil, fmt.Errorf("parsing target amount %q: %w", target, err)
	}
	if b.CurrentAmount, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parsing current amount %q: %w", current, err)
	}
	return &b, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
