package core

import (
	"errors"
	"strings"
	"time"
)

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountOther      AccountType = "other"

	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

type (
	AccountType  string
	CategoryType string

	// Account is a stable record of a financial account. Balances never live
	// here; they come from monthly snapshots.
	Account struct {
		ID        int64       `json:"id"`
		Name      string      `json:"name"`
		Type      AccountType `json:"type"`
		Currency  string      `json:"currency"`
		IsActive  bool        `json:"is_active"`
		CreatedAt time.Time   `json:"created_at"`
	}

	// Snapshot is the closed financial state of one account for one calendar
	// month. Exactly one snapshot may exist per (account, year, month); it is
	// the only authoritative source for balances and income/expense totals.
	// TotalIncome and TotalExpense are positive magnitudes.
	Snapshot struct {
		ID              int64     `json:"id"`
		AccountID       int64     `json:"account_id"`
		Year            int       `json:"year"`
		Month           int       `json:"month"`
		StartingBalance float64   `json:"starting_balance"`
		EndingBalance   float64   `json:"ending_balance"`
		TotalIncome     float64   `json:"total_income"`
		TotalExpense    float64   `json:"total_expense"`
		CreatedAt       time.Time `json:"created_at"`
		UpdatedAt       time.Time `json:"updated_at"`
	}

	// SnapshotPatch carries a partial update for a snapshot. Nil fields are
	// left untouched. The (account, year, month) key is not patchable.
	SnapshotPatch struct {
		StartingBalance *float64 `json:"starting_balance"`
		EndingBalance   *float64 `json:"ending_balance"`
		TotalIncome     *float64 `json:"total_income"`
		TotalExpense    *float64 `json:"total_expense"`
	}

	// Transaction is optional drill-down detail. Negative amount = outflow,
	// positive = inflow. Transactions never feed balance computation.
	Transaction struct {
		ID          int64     `json:"id"`
		AccountID   int64     `json:"account_id"`
		Date        time.Time `json:"date"`
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		Currency    string    `json:"currency"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Category struct {
		ID    int64        `json:"id"`
		Name  string       `json:"name"`
		Type  CategoryType `json:"type"`
		Color string       `json:"color,omitempty"`
	}
)

var (
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidMonth       = errors.New("month must be between 1 and 12")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyDescription   = errors.New("empty description")

	// ErrDuplicateSnapshot reports a create for an (account, year, month) key
	// that already holds a snapshot.
	ErrDuplicateSnapshot = errors.New("snapshot already exists for account and period")

	// ErrAccountMissing reports a write referencing an account that does not
	// exist.
	ErrAccountMissing = errors.New("account does not exist")

	ErrDuplicateCategory = errors.New("category already exists")

	ErrNotFound = errors.New("not found")
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountCash, AccountInvestment, AccountOther:
		return true
	}
	return false
}

func (t CategoryType) Valid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	if len(a.Currency) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range a.Currency {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

func (s Snapshot) Validate() error {
	if s.AccountID <= 0 {
		return ErrAccountMissing
	}
	return Period{Year: s.Year, Month: s.Month}.Validate()
}

// Empty reports whether the patch would change nothing.
func (p SnapshotPatch) Empty() bool {
	return p.StartingBalance == nil && p.EndingBalance == nil &&
		p.TotalIncome == nil && p.TotalExpense == nil
}

func (t Transaction) Validate() error {
	if t.AccountID <= 0 {
		return ErrAccountMissing
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return errors.New("category type must be income or expense")
	}
	return nil
}
