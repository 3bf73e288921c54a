// Package ledger defines the domain records kept by the store: accounts,
// transactions, budget categories and savings buckets. Monetary amounts are
// fixed-point decimals throughout; floats never touch storage.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a bank or brokerage account as issued by the aggregation
// provider. The ID is the provider's string identifier and is immutable
// once the account exists locally.
type Account struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	Balance     decimal.Decimal `json:"balance"`
	OrgName     string          `json:"org_name"`
	URL         string          `json:"url"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Transaction is one posted or pending ledger entry. AccountID must
// reference an existing Account; CategoryID optionally references a
// BudgetCategory and is nulled when the category is deleted.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	PostedDate  time.Time       `json:"posted_date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Memo        string          `json:"memo"`
	Payee       string          `json:"payee"`
	Pending     bool            `json:"pending"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BudgetCategory is a monthly spending envelope. IDs are store-assigned.
type BudgetCategory struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SavingsBucket is a named savings goal. IDs are store-assigned.
type SavingsBucket struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	GoalDate      *time.Time      `json:"goal_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
