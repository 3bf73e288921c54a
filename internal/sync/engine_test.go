package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerkeep/internal/ledger"
	"github.com/dvloznov/ledgerkeep/internal/simplefin"
	"github.com/dvloznov/ledgerkeep/internal/store"
)

// mockSource is a canned external provider.
type mockSource struct {
	accounts        []simplefin.Account
	transactions    []simplefin.Transaction
	accountsErr     error
	transactionsErr error
}

func (m *mockSource) FetchAccounts(ctx context.Context, daysBack int, includeTransactions bool) ([]simplefin.Account, error) {
	if m.accountsErr != nil {
		return nil, m.accountsErr
	}
	return m.accounts, nil
}

func (m *mockSource) FetchTransactions(ctx context.Context, daysBack int) ([]simplefin.Transaction, error) {
	if m.transactionsErr != nil {
		return nil, m.transactionsErr
	}
	return m.transactions, nil
}

// memLedger is an in-memory Ledger with the store's conflict semantics.
type memLedger struct {
	accounts     map[string]ledger.Account
	transactions map[string]ledger.Transaction

	insertAccountsErr error
	failOnBatch       int // 1-based transaction batch index to fail, 0 = never
	batchesCommitted  int
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts:     make(map[string]ledger.Account),
		transactions: make(map[string]ledger.Transaction),
	}
}

func (m *memLedger) ListAccountIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(m.accounts))
	for id := range m.accounts {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memLedger) ListTransactionIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(m.transactions))
	for id := range m.transactions {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memLedger) InsertAccounts(ctx context.Context, accounts []ledger.Account) error {
	if m.insertAccountsErr != nil {
		return m.insertAccountsErr
	}
	for _, a := range accounts {
		if _, exists := m.accounts[a.ID]; exists {
			return fmt.Errorf("insert accounts: %w", store.ErrConflict)
		}
	}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return nil
}

func (m *memLedger) InsertTransactions(ctx context.Context, transactions []ledger.Transaction) error {
	m.batchesCommitted++
	if m.failOnBatch > 0 && m.batchesCommitted == m.failOnBatch {
		return errors.New("disk full")
	}
	for _, t := range transactions {
		if _, exists := m.transactions[t.ID]; exists {
			return fmt.Errorf("insert transactions: %w", store.ErrConflict)
		}
	}
	for _, t := range transactions {
		if _, ok := m.accounts[t.AccountID]; !ok {
			return fmt.Errorf("insert transactions: dangling account %s: %w", t.AccountID, store.ErrConflict)
		}
		m.transactions[t.ID] = t
	}
	return nil
}

func (m *memLedger) CountAccounts(ctx context.Context) (int, error) {
	return len(m.accounts), nil
}

func (m *memLedger) CountTransactions(ctx context.Context) (int, error) {
	return len(m.transactions), nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Unix()

func checkingAccount() simplefin.Account {
	return simplefin.Account{
		ID:       "A1",
		Name:     "Checking",
		Currency: "USD",
		Type:     "checking",
		Balance:  "100.00",
		Org:      simplefin.Organization{Name: "First Bank", URL: "https://firstbank.example"},
	}
}

func TestReconcileEmptyStore(t *testing.T) {
	source := &mockSource{
		accounts: []simplefin.Account{checkingAccount()},
		transactions: []simplefin.Transaction{
			{ID: "T1", AccountID: "A1", Posted: testEpoch, Amount: "-20.00", Description: "Coffee"},
		},
	}
	st := newMemLedger()

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if report.NewAccountsAdded != 1 {
		t.Errorf("NewAccountsAdded = %d, want 1", report.NewAccountsAdded)
	}
	if report.NewTransactionsAdded != 1 {
		t.Errorf("NewTransactionsAdded = %d, want 1", report.NewTransactionsAdded)
	}
	if report.SkippedTransactions != 0 {
		t.Errorf("SkippedTransactions = %d, want 0", report.SkippedTransactions)
	}
	if report.TotalAccounts != 1 || report.TotalTransactions != 1 {
		t.Errorf("totals = %d/%d, want 1/1", report.TotalAccounts, report.TotalTransactions)
	}
	if report.Timestamp.IsZero() {
		t.Error("report timestamp not set")
	}

	account, ok := st.accounts["A1"]
	if !ok {
		t.Fatal("account A1 not stored")
	}
	if account.Name != "Checking" || !account.Balance.Equal(dec("100.00")) {
		t.Errorf("stored account = %+v", account)
	}
	if account.OrgName != "First Bank" || account.URL != "https://firstbank.example" {
		t.Errorf("org fields not mapped: %+v", account)
	}

	tx, ok := st.transactions["T1"]
	if !ok {
		t.Fatal("transaction T1 not stored")
	}
	if tx.AccountID != "A1" || !tx.Amount.Equal(dec("-20.00")) {
		t.Errorf("stored transaction = %+v", tx)
	}
	if !tx.PostedDate.Equal(time.Unix(testEpoch, 0).UTC()) {
		t.Errorf("PostedDate = %v, want %v", tx.PostedDate, time.Unix(testEpoch, 0).UTC())
	}
}

func TestReconcileIdempotent(t *testing.T) {
	source := &mockSource{
		accounts: []simplefin.Account{checkingAccount()},
		transactions: []simplefin.Transaction{
			{ID: "T1", AccountID: "A1", Posted: testEpoch, Amount: "-20.00"},
		},
	}
	st := newMemLedger()
	engine := NewEngine(source, st)

	if _, err := engine.Reconcile(context.Background(), 30); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	report, err := engine.Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.NewAccountsAdded != 0 {
		t.Errorf("second run NewAccountsAdded = %d, want 0", report.NewAccountsAdded)
	}
	if report.NewTransactionsAdded != 0 {
		t.Errorf("second run NewTransactionsAdded = %d, want 0", report.NewTransactionsAdded)
	}
	if report.SkippedTransactions != 1 {
		t.Errorf("second run SkippedTransactions = %d, want 1 (already present)", report.SkippedTransactions)
	}
	if len(st.accounts) != 1 || len(st.transactions) != 1 {
		t.Errorf("store grew: %d accounts, %d transactions", len(st.accounts), len(st.transactions))
	}
}

func TestReconcileNeverOverwritesExistingAccount(t *testing.T) {
	st := newMemLedger()
	st.accounts["A1"] = ledger.Account{ID: "A1", Name: "My Checking", Balance: dec("55.00")}

	external := checkingAccount()
	external.Balance = "999.99"
	external.Name = "Renamed By Bank"
	source := &mockSource{accounts: []simplefin.Account{external}}

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.NewAccountsAdded != 0 {
		t.Errorf("NewAccountsAdded = %d, want 0", report.NewAccountsAdded)
	}

	account := st.accounts["A1"]
	if account.Name != "My Checking" || !account.Balance.Equal(dec("55.00")) {
		t.Errorf("existing account modified by sync: %+v", account)
	}
}

func TestReconcileSkipsTransactionForUnknownAccount(t *testing.T) {
	source := &mockSource{
		accounts: []simplefin.Account{checkingAccount()},
		transactions: []simplefin.Transaction{
			{ID: "T9", AccountID: "A9", Posted: testEpoch, Amount: "-5.00"},
		},
	}
	st := newMemLedger()

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.SkippedTransactions != 1 {
		t.Errorf("SkippedTransactions = %d, want 1", report.SkippedTransactions)
	}
	if report.NewTransactionsAdded != 0 {
		t.Errorf("NewTransactionsAdded = %d, want 0", report.NewTransactionsAdded)
	}
	if _, ok := st.transactions["T9"]; ok {
		t.Error("transaction with unknown account was stored")
	}
}

func TestReconcileTransactionForAccountAddedThisRun(t *testing.T) {
	// The known-account set must include accounts committed in phase 1,
	// not just pre-existing ones.
	source := &mockSource{
		accounts: []simplefin.Account{checkingAccount()},
		transactions: []simplefin.Transaction{
			{ID: "T1", AccountID: "A1", Posted: testEpoch, Amount: "1.00"},
		},
	}
	st := newMemLedger()

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.NewTransactionsAdded != 1 || report.SkippedTransactions != 0 {
		t.Errorf("added=%d skipped=%d, want 1/0", report.NewTransactionsAdded, report.SkippedTransactions)
	}
}

func TestReconcileSourceUnavailable(t *testing.T) {
	source := &mockSource{accountsErr: errors.New("connection refused")}
	st := newMemLedger()

	_, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if len(st.accounts) != 0 || len(st.transactions) != 0 {
		t.Error("store changed despite source failure")
	}
}

func TestReconcileTransactionFetchFailureKeepsAccounts(t *testing.T) {
	// Phase 1 commits durably; an adapter failure in phase 2 aborts the
	// run but does not undo the accounts phase.
	source := &mockSource{
		accounts:        []simplefin.Account{checkingAccount()},
		transactionsErr: errors.New("timeout"),
	}
	st := newMemLedger()

	_, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if len(st.accounts) != 1 {
		t.Errorf("accounts committed in phase 1 = %d, want 1", len(st.accounts))
	}
	if len(st.transactions) != 0 {
		t.Error("transactions written despite fetch failure")
	}
}

func TestReconcileAccountsConflict(t *testing.T) {
	source := &mockSource{accounts: []simplefin.Account{checkingAccount()}}
	st := newMemLedger()
	st.insertAccountsErr = fmt.Errorf("race: %w", store.ErrConflict)

	_, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(st.transactions) != 0 {
		t.Error("transactions attempted after accounts conflict")
	}
}

func TestReconcileSkipsMalformedRecords(t *testing.T) {
	source := &mockSource{
		accounts: []simplefin.Account{checkingAccount()},
		transactions: []simplefin.Transaction{
			{ID: "", AccountID: "A1", Posted: testEpoch, Amount: "1.00"},   // missing ID
			{ID: "T2", AccountID: "", Posted: testEpoch, Amount: "1.00"},   // missing account
			{ID: "T3", AccountID: "A1", Posted: 0, Amount: "1.00"},         // invalid posted
			{ID: "T4", AccountID: "A1", Posted: testEpoch, Amount: "oops"}, // bad amount
			{ID: "T5", AccountID: "A1", Posted: testEpoch, Amount: "3.50"}, // valid
		},
	}
	st := newMemLedger()

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.SkippedTransactions != 4 {
		t.Errorf("SkippedTransactions = %d, want 4", report.SkippedTransactions)
	}
	if report.NewTransactionsAdded != 1 {
		t.Errorf("NewTransactionsAdded = %d, want 1", report.NewTransactionsAdded)
	}
	if _, ok := st.transactions["T5"]; !ok {
		t.Error("valid transaction T5 not stored")
	}
}

func TestReconcileDeduplicatesWithinFetch(t *testing.T) {
	source := &mockSource{
		accounts: []simplefin.Account{checkingAccount()},
		transactions: []simplefin.Transaction{
			{ID: "T1", AccountID: "A1", Posted: testEpoch, Amount: "1.00"},
			{ID: "T1", AccountID: "A1", Posted: testEpoch, Amount: "1.00"},
		},
	}
	st := newMemLedger()

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.NewTransactionsAdded != 1 || report.SkippedTransactions != 1 {
		t.Errorf("added=%d skipped=%d, want 1/1", report.NewTransactionsAdded, report.SkippedTransactions)
	}
}

func TestReconcileBatching(t *testing.T) {
	var txs []simplefin.Transaction
	for i := 0; i < 5; i++ {
		txs = append(txs, simplefin.Transaction{
			ID:        fmt.Sprintf("T%d", i),
			AccountID: "A1",
			Posted:    testEpoch + int64(i),
			Amount:    "1.00",
		})
	}
	source := &mockSource{accounts: []simplefin.Account{checkingAccount()}, transactions: txs}
	st := newMemLedger()

	engine := NewEngine(source, st)
	engine.batchSize = 2

	report, err := engine.Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.NewTransactionsAdded != 5 {
		t.Errorf("NewTransactionsAdded = %d, want 5", report.NewTransactionsAdded)
	}
	// 2 full batches plus the final partial one.
	if st.batchesCommitted != 3 {
		t.Errorf("batchesCommitted = %d, want 3", st.batchesCommitted)
	}
}

func TestReconcileBatchFailurePreservesPriorBatches(t *testing.T) {
	var txs []simplefin.Transaction
	for i := 0; i < 5; i++ {
		txs = append(txs, simplefin.Transaction{
			ID:        fmt.Sprintf("T%d", i),
			AccountID: "A1",
			Posted:    testEpoch + int64(i),
			Amount:    "1.00",
		})
	}
	source := &mockSource{accounts: []simplefin.Account{checkingAccount()}, transactions: txs}
	st := newMemLedger()
	st.failOnBatch = 2

	engine := NewEngine(source, st)
	engine.batchSize = 2

	_, err := engine.Reconcile(context.Background(), 30)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
	// First batch of 2 stays durable; the failed batch wrote nothing.
	if len(st.transactions) != 2 {
		t.Errorf("stored transactions = %d, want 2", len(st.transactions))
	}
}

func TestReconcileMonotonicCounts(t *testing.T) {
	st := newMemLedger()
	st.accounts["A0"] = ledger.Account{ID: "A0", Name: "Old"}
	st.transactions["T0"] = ledger.Transaction{ID: "T0", AccountID: "A0", Amount: dec("9.00")}

	source := &mockSource{
		accounts: []simplefin.Account{checkingAccount()},
		transactions: []simplefin.Transaction{
			{ID: "T1", AccountID: "A1", Posted: testEpoch, Amount: "-20.00"},
		},
	}

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.TotalAccounts != 1+report.NewAccountsAdded {
		t.Errorf("TotalAccounts = %d, want before+added = %d", report.TotalAccounts, 1+report.NewAccountsAdded)
	}
	if report.TotalTransactions != 1+report.NewTransactionsAdded {
		t.Errorf("TotalTransactions = %d, want before+added = %d", report.TotalTransactions, 1+report.NewTransactionsAdded)
	}
}

func TestReconcileSkipsAccountWithoutID(t *testing.T) {
	anonymous := checkingAccount()
	anonymous.ID = ""
	source := &mockSource{accounts: []simplefin.Account{anonymous, checkingAccount()}}
	st := newMemLedger()

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.NewAccountsAdded != 1 {
		t.Errorf("NewAccountsAdded = %d, want 1", report.NewAccountsAdded)
	}
	if _, ok := st.accounts[""]; ok {
		t.Error("account with empty ID was stored")
	}
}

func TestReconcileMalformedBalanceStoredAsZero(t *testing.T) {
	broken := checkingAccount()
	broken.Balance = "not-a-number"
	source := &mockSource{accounts: []simplefin.Account{broken}}
	st := newMemLedger()

	report, err := NewEngine(source, st).Reconcile(context.Background(), 30)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.NewAccountsAdded != 1 {
		t.Fatalf("NewAccountsAdded = %d, want 1", report.NewAccountsAdded)
	}
	if !st.accounts["A1"].Balance.Equal(decimal.Zero) {
		t.Errorf("balance = %s, want 0", st.accounts["A1"].Balance)
	}
}

func TestReconcileRejectsNonPositiveWindow(t *testing.T) {
	engine := NewEngine(&mockSource{}, newMemLedger())
	for _, days := range []int{0, -1} {
		if _, err := engine.Reconcile(context.Background(), days); err == nil {
			t.Errorf("Reconcile(%d) succeeded, want error", days)
		}
	}
}
