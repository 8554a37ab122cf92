package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the kind of ledger movement an audit entry records.
type TransactionType string

const (
	TransactionReservation TransactionType = "reservation"
	TransactionDeduction   TransactionType = "deduction"
	TransactionReturn      TransactionType = "return"
	TransactionRelease     TransactionType = "release"
)

// LedgerTransaction is an immutable audit entry on a budget code.
// Entries are append-only, they are never updated or deleted.
type LedgerTransaction struct {
	DefaultModel
	BudgetCodeID   uuid.UUID `gorm:"index"`
	Type           TransactionType
	Amount         decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	BalanceBefore  decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // remaining before the movement
	BalanceAfter   decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // remaining after the movement
	RequestID      uuid.UUID       `gorm:"index"`
	DisbursementID string          `gorm:"index"` // idempotency key, set on deductions only
	Actor          string
}
