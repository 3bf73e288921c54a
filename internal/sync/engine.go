// Package sync reconciles the local ledger against the external
// aggregation provider. The merge is additive-only: records already in
// the store are never modified or deleted, which makes a run idempotent
// and safe to repeat over overlapping lookback windows.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerkeep/internal/ledger"
	"github.com/dvloznov/ledgerkeep/internal/logger"
	"github.com/dvloznov/ledgerkeep/internal/simplefin"
	"github.com/dvloznov/ledgerkeep/internal/store"
)

// TransactionBatchSize is the number of staged transactions committed per
// store transaction during phase 2. A mid-run failure loses at most one
// batch; earlier batches stay durable.
const TransactionBatchSize = 100

// Failure taxonomy for a reconciliation run. Callers dispatch with
// errors.Is; the HTTP layer maps the first two to 400 and the last to 500.
var (
	// ErrSourceUnavailable: the provider could not be reached or returned
	// garbage. Nothing was written.
	ErrSourceUnavailable = errors.New("sync: source unavailable")
	// ErrConflict: the accounts-phase batch hit a uniqueness violation
	// (a concurrent writer). No accounts were committed and no
	// transactions were attempted.
	ErrConflict = errors.New("sync: conflict committing accounts")
	// ErrInternal: an unexpected failure mid transactions-phase. The
	// current batch was rolled back; prior batches remain committed.
	ErrInternal = errors.New("sync: internal error")
)

// Source is the external-provider contract the engine consumes.
type Source interface {
	FetchAccounts(ctx context.Context, daysBack int, includeTransactions bool) ([]simplefin.Account, error)
	FetchTransactions(ctx context.Context, daysBack int) ([]simplefin.Transaction, error)
}

// Ledger is the slice of the store the engine needs: identifier
// snapshots, batch inserts and totals.
type Ledger interface {
	ListAccountIDs(ctx context.Context) (map[string]struct{}, error)
	ListTransactionIDs(ctx context.Context) (map[string]struct{}, error)
	InsertAccounts(ctx context.Context, accounts []ledger.Account) error
	InsertTransactions(ctx context.Context, transactions []ledger.Transaction) error
	CountAccounts(ctx context.Context) (int, error)
	CountTransactions(ctx context.Context) (int, error)
}

// Report summarizes one reconciliation run.
type Report struct {
	NewAccountsAdded     int       `json:"new_accounts_added"`
	NewTransactionsAdded int       `json:"new_transactions_added"`
	SkippedTransactions  int       `json:"skipped_transactions"`
	TotalAccounts        int       `json:"total_accounts"`
	TotalTransactions    int       `json:"total_transactions"`
	Timestamp            time.Time `json:"timestamp"`
}

// Engine merges provider snapshots into the ledger store.
type Engine struct {
	source    Source
	store     Ledger
	batchSize int
}

// NewEngine creates a reconciliation engine over the given source and store.
func NewEngine(source Source, store Ledger) *Engine {
	return &Engine{
		source:    source,
		store:     store,
		batchSize: TransactionBatchSize,
	}
}

// Reconcile runs one additive merge over a lookback window of daysBack
// days: accounts first, then transactions, strictly ordered because a
// transaction is only insertable once its account is durably written.
func (e *Engine) Reconcile(ctx context.Context, daysBack int) (*Report, error) {
	if daysBack < 1 {
		return nil, fmt.Errorf("days back must be a positive integer, got %d", daysBack)
	}

	log := logger.FromContext(ctx)
	log.Info().Int("days_back", daysBack).Msg("Starting reconciliation")

	report := &Report{}

	knownAccountIDs, err := e.reconcileAccounts(ctx, daysBack, report)
	if err != nil {
		return nil, err
	}

	if err := e.reconcileTransactions(ctx, daysBack, knownAccountIDs, report); err != nil {
		return nil, err
	}

	if report.TotalAccounts, err = e.store.CountAccounts(ctx); err != nil {
		return nil, fmt.Errorf("%w: counting accounts: %v", ErrInternal, err)
	}
	if report.TotalTransactions, err = e.store.CountTransactions(ctx); err != nil {
		return nil, fmt.Errorf("%w: counting transactions: %v", ErrInternal, err)
	}
	report.Timestamp = time.Now().UTC()

	log.Info().
		Int("new_accounts", report.NewAccountsAdded).
		Int("new_transactions", report.NewTransactionsAdded).
		Int("skipped_transactions", report.SkippedTransactions).
		Int("total_accounts", report.TotalAccounts).
		Int("total_transactions", report.TotalTransactions).
		Msg("Reconciliation completed")

	return report, nil
}

// reconcileAccounts is phase 1: stage every external account whose ID is
// not yet stored and commit the staged set in one atomic batch. It returns
// the union of pre-existing and newly inserted account IDs, which phase 2
// uses to validate transaction references.
func (e *Engine) reconcileAccounts(ctx context.Context, daysBack int, report *Report) (map[string]struct{}, error) {
	log := logger.FromContext(ctx)

	existing, err := e.store.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing account ids: %v", ErrInternal, err)
	}

	// Embedded transactions are deliberately not requested here; phase 2
	// always re-fetches its own list, so they would only be discarded.
	external, err := e.source.FetchAccounts(ctx, daysBack, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	log.Info().
		Int("external_accounts", len(external)).
		Int("existing_accounts", len(existing)).
		Msg("Processing accounts phase")

	known := make(map[string]struct{}, len(existing))
	for id := range existing {
		known[id] = struct{}{}
	}

	var staged []ledger.Account
	for _, acc := range external {
		if acc.ID == "" {
			log.Warn().Str("account_name", acc.Name).Msg("External account missing ID, skipping")
			continue
		}
		if _, ok := known[acc.ID]; ok {
			// Already present. Existing fields are never overwritten.
			continue
		}

		balance, err := decimal.NewFromString(acc.Balance)
		if err != nil {
			log.Warn().
				Str("account_id", acc.ID).
				Str("balance", acc.Balance).
				Msg("Unparseable account balance, storing zero")
			balance = decimal.Zero
		}

		staged = append(staged, ledger.Account{
			ID:          acc.ID,
			Name:        acc.Name,
			Currency:    acc.Currency,
			Type:        acc.Type,
			Balance:     balance,
			OrgName:     acc.Org.Name,
			URL:         acc.Org.URL,
			LastUpdated: time.Now().UTC(),
		})
		known[acc.ID] = struct{}{}
	}

	if err := e.store.InsertAccounts(ctx, staged); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, fmt.Errorf("%w: inserting accounts: %v", ErrInternal, err)
	}

	report.NewAccountsAdded = len(staged)
	log.Info().Int("new_accounts", len(staged)).Msg("Accounts phase committed")

	return known, nil
}

// reconcileTransactions is phase 2: stage external transactions that are
// new, well-formed and reference a known account, committing them in
// fixed-size batches. Per-record defects are tallied as skips, never
// escalated.
func (e *Engine) reconcileTransactions(ctx context.Context, daysBack int, knownAccountIDs map[string]struct{}, report *Report) error {
	log := logger.FromContext(ctx)

	existing, err := e.store.ListTransactionIDs(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing transaction ids: %v", ErrInternal, err)
	}

	external, err := e.source.FetchTransactions(ctx, daysBack)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	log.Info().
		Int("external_transactions", len(external)).
		Int("existing_transactions", len(existing)).
		Msg("Processing transactions phase")

	var batch []ledger.Transaction
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.InsertTransactions(ctx, batch); err != nil {
			return fmt.Errorf("%w: committing transaction batch: %v", ErrInternal, err)
		}
		report.NewTransactionsAdded += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, tx := range external {
		record, ok := e.buildTransaction(log, tx, existing, knownAccountIDs)
		if !ok {
			report.SkippedTransactions++
			continue
		}

		batch = append(batch, *record)
		// Guards against the provider repeating an ID within one window.
		existing[record.ID] = struct{}{}

		if len(batch) >= e.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	log.Info().
		Int("new_transactions", report.NewTransactionsAdded).
		Int("skipped_transactions", report.SkippedTransactions).
		Msg("Transactions phase committed")

	return nil
}

// buildTransaction validates one external record and maps it to a ledger
// row. A false return means the record is skip-worthy: structurally
// defective, already stored, or referencing an unknown account.
func (e *Engine) buildTransaction(log zerolog.Logger, tx simplefin.Transaction, existing, knownAccountIDs map[string]struct{}) (*ledger.Transaction, bool) {
	if tx.ID == "" {
		log.Warn().Str("account_id", tx.AccountID).Msg("External transaction missing ID, skipping")
		return nil, false
	}
	if tx.AccountID == "" {
		log.Warn().Str("transaction_id", tx.ID).Msg("External transaction missing account ID, skipping")
		return nil, false
	}
	if _, ok := existing[tx.ID]; ok {
		// Already stored; additive policy leaves it untouched.
		return nil, false
	}
	if _, ok := knownAccountIDs[tx.AccountID]; !ok {
		// The owning account is neither stored nor part of this run's
		// committed accounts phase. Inserting would dangle the foreign key.
		log.Warn().
			Str("transaction_id", tx.ID).
			Str("account_id", tx.AccountID).
			Msg("External transaction references unknown account, skipping")
		return nil, false
	}

	if tx.Posted <= 0 {
		log.Warn().
			Str("transaction_id", tx.ID).
			Int64("posted", tx.Posted).
			Msg("External transaction has invalid posted time, skipping")
		return nil, false
	}

	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		log.Warn().
			Str("transaction_id", tx.ID).
			Str("amount", tx.Amount).
			Msg("External transaction has unparseable amount, skipping")
		return nil, false
	}

	return &ledger.Transaction{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		PostedDate:  time.Unix(tx.Posted, 0).UTC(),
		Amount:      amount,
		Description: tx.Description,
		Memo:        tx.Memo,
		Payee:       tx.Payee,
		Pending:     tx.Pending,
		CreatedAt:   time.Now().UTC(),
	}, true
}
