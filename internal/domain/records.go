package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies what a transaction represents for reporting.
type Category string

const (
	CategorySale    Category = "sale"
	CategoryRefund  Category = "refund"
	CategoryFee     Category = "fee"
	CategoryExpense Category = "expense"
)

// TransactionRecord is a normalized revenue or spend event.
// Records are facts: the engine derives aggregates from them and never edits them.
type TransactionRecord struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Amount     int64     `json:"amount"`     // signed, minor units (cents)
	SourceTag  string    `json:"source_tag"` // "pos", "cash", "doordash", ...
	Category   Category  `json:"category,omitempty"`
}

// Timestamp returns the instant the record is bucketed by.
func (t TransactionRecord) Timestamp() time.Time { return t.OccurredAt }

// Kind returns the category, treating an empty one as a sale.
func (t TransactionRecord) Kind() Category {
	if t.Category == "" {
		return CategorySale
	}
	return t.Category
}

// Money returns the amount in major units.
func (t TransactionRecord) Money() decimal.Decimal {
	return decimal.New(t.Amount, -2)
}

// PayoutRecord is a settlement announced by a sale platform.
type PayoutRecord struct {
	ID             string          `json:"id"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	SourcePlatform string          `json:"source_platform"`
}

// DepositRecord is a credit observed on a bank statement.
type DepositRecord struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	BankAccountID string          `json:"bank_account_id"`
}

// Timestamped is implemented by records that can be placed on a timeline.
type Timestamped interface {
	Timestamp() time.Time
}
