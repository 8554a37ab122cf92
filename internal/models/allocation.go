package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStatus is the lifecycle phase of a reservation.
type AllocationStatus string

const (
	// AllocationAllocated means funds are earmarked but nothing was disbursed.
	AllocationAllocated AllocationStatus = "allocated"
	// AllocationSpent means at least one disbursement was recorded.
	AllocationSpent AllocationStatus = "spent"
	// AllocationReleased means the reservation was returned to the pool.
	AllocationReleased AllocationStatus = "released"
)

// Allocation is one reservation of ledger funds against one requesting
// workflow instance. A request holds at most one active allocation per
// budget code at a time.
type Allocation struct {
	DefaultModel
	BudgetCodeID       uuid.UUID  `gorm:"index"`
	BudgetCode         BudgetCode `json:"-"`
	RequestID          uuid.UUID  `gorm:"index"`
	RequestType        string
	Amount             decimal.Decimal  `gorm:"type:DECIMAL(20,8)"` // the reserved amount
	Status             AllocationStatus `gorm:"default:allocated"`
	ActualSpent        decimal.Decimal  `gorm:"type:DECIMAL(20,8)"` // cumulative disbursements
	DisbursementCount  uint
	AllocatedAt        time.Time
	FirstSpentAt       *time.Time
	LastDisbursementAt *time.Time
	BalanceReturned    decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	ReleaseReason      string
	ReleasedAt         *time.Time
}

// Active reports whether the allocation still holds capacity on its
// budget code.
func (a Allocation) Active() bool {
	return a.Status == AllocationAllocated || a.Status == AllocationSpent
}

// Outstanding returns the reserved amount that has not been disbursed yet.
// Released allocations hold nothing.
func (a Allocation) Outstanding() decimal.Decimal {
	if !a.Active() {
		return decimal.Zero
	}

	return a.Amount.Sub(a.ActualSpent)
}
