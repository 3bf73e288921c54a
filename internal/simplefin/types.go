package simplefin

// Wire types for the aggregation provider's /accounts endpoint. Amounts
// arrive as decimal strings and are parsed downstream; this package never
// converts money to floats.

// Organization identifies the institution holding an account.
type Organization struct {
	Domain string `json:"domain,omitempty"`
	Name   string `json:"name,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Account is one account as reported by the provider, optionally with
// its transactions for the requested window embedded.
type Account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Type         string        `json:"type"`
	Balance      string        `json:"balance"`
	Org          Organization  `json:"org"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Transaction is one transaction as reported by the provider. AccountID
// is not on the wire; FetchTransactions stamps it while flattening the
// per-account embedded lists.
type Transaction struct {
	ID          string `json:"id"`
	AccountID   string `json:"-"`
	Posted      int64  `json:"posted"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Memo        string `json:"memo"`
	Payee       string `json:"payee"`
	Pending     bool   `json:"pending"`
}

type accountsResponse struct {
	Errors   []string  `json:"errors"`
	Accounts []Account `json:"accounts"`
}
