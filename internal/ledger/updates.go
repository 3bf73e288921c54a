package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Partial-update structs enumerate exactly the fields each entity allows a
// caller to change. A nil pointer means "leave as is". This replaces
// reflect-over-arbitrary-keys update handling with an explicit allow list.

// AccountUpdate holds optional field changes for an Account. The ID is
// immutable and therefore absent.
type AccountUpdate struct {
	Name     *string          `json:"name,omitempty"`
	Currency *string          `json:"currency,omitempty"`
	Type     *string          `json:"type,omitempty"`
	Balance  *decimal.Decimal `json:"balance,omitempty"`
	OrgName  *string          `json:"org_name,omitempty"`
	URL      *string          `json:"url,omitempty"`
}

// IsZero reports whether no fields are set.
func (u AccountUpdate) IsZero() bool {
	return u.Name == nil && u.Currency == nil && u.Type == nil &&
		u.Balance == nil && u.OrgName == nil && u.URL == nil
}

// TransactionUpdate holds optional field changes for a Transaction.
// The ID and AccountID are immutable.
type TransactionUpdate struct {
	CategoryID  *int64           `json:"category_id,omitempty"`
	PostedDate  *time.Time       `json:"posted_date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
	Memo        *string          `json:"memo,omitempty"`
	Payee       *string          `json:"payee,omitempty"`
	Pending     *bool            `json:"pending,omitempty"`
}

// IsZero reports whether no fields are set.
func (u TransactionUpdate) IsZero() bool {
	return u.CategoryID == nil && u.PostedDate == nil && u.Amount == nil &&
		u.Description == nil && u.Memo == nil && u.Payee == nil && u.Pending == nil
}

// BudgetCategoryUpdate holds optional field changes for a BudgetCategory.
type BudgetCategoryUpdate struct {
	Name         *string          `json:"name,omitempty"`
	MonthlyLimit *decimal.Decimal `json:"monthly_limit,omitempty"`
}

// IsZero reports whether no fields are set.
func (u BudgetCategoryUpdate) IsZero() bool {
	return u.Name == nil && u.MonthlyLimit == nil
}

// SavingsBucketUpdate holds optional field changes for a SavingsBucket.
type SavingsBucketUpdate struct {
	Name          *string          `json:"name,omitempty"`
	TargetAmount  *decimal.Decimal `json:"target_amount,omitempty"`
	CurrentAmount *decimal.Decimal `json:"current_amount,omitempty"`
	GoalDate      *time.Time       `json:"goal_date,omitempty"`
}

// IsZero reports whether no fields are set.
func (u SavingsBucketUpdate) IsZero() bool {
	return u.Name == nil && u.TargetAmount == nil &&
		u.CurrentAmount == nil && u.GoalDate == nil
}
