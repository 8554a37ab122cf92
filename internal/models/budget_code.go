package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxAmount is the system ceiling for a single ledger movement.
var MaxAmount = decimal.New(1, 12)

// BudgetCode is a named pool of money for a department and fiscal year.
//
// All money movements go through the ledger operations below. Each mutating
// operation is a single atomic read-modify-write: it runs inside a database
// transaction and bumps the aggregate version, so two concurrent operations
// against the same code can never both apply on stale state.
type BudgetCode struct {
	DefaultModel
	Code        string `gorm:"uniqueIndex"`
	Description string
	TotalBudget decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Used        decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // maintained by Deduct and ReturnUnused, never recomputed
	Department  string
	Period      string
	FiscalYear  int
	Active      bool `gorm:"default:true"`
	Version     uint

	Allocations  []Allocation        `json:"-"`
	Transactions []LedgerTransaction `json:"-"`
	Revisions    []BudgetRevision    `json:"-"`
}

// Remaining returns the headline balance: total minus used.
func (b BudgetCode) Remaining() decimal.Decimal {
	return b.TotalBudget.Sub(b.Used)
}

// UtilizationLevel classifies how much of a budget code is used.
type UtilizationLevel string

const (
	UtilizationCritical UtilizationLevel = "critical"
	UtilizationWarning  UtilizationLevel = "warning"
	UtilizationModerate UtilizationLevel = "moderate"
	UtilizationHealthy  UtilizationLevel = "healthy"
)

// Utilization returns used as a percentage of the total budget.
func (b BudgetCode) Utilization() decimal.Decimal {
	if b.TotalBudget.IsZero() {
		return decimal.Zero
	}

	return b.Used.Div(b.TotalBudget).Mul(decimal.NewFromInt(100))
}

// UtilizationStatus classifies the code for dashboard alerting. It never
// blocks operations, capacity checks use Remaining and the outstanding
// reservations instead.
func (b BudgetCode) UtilizationStatus() UtilizationLevel {
	utilization := b.Utilization()

	switch {
	case utilization.GreaterThanOrEqual(decimal.NewFromInt(90)):
		return UtilizationCritical
	case utilization.GreaterThanOrEqual(decimal.NewFromInt(75)):
		return UtilizationWarning
	case utilization.GreaterThanOrEqual(decimal.NewFromInt(60)):
		return UtilizationModerate
	default:
		return UtilizationHealthy
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}

	return nil
}

// available returns the capacity left for new reservations: remaining minus
// everything outstanding on active allocations. An allocation with the given
// ID is excluded, which allows re-reserving for the same request without its
// own hold counting against it.
func (b *BudgetCode) available(tx *gorm.DB, exclude uuid.UUID) (decimal.Decimal, error) {
	var outstanding decimal.NullDecimal

	q := tx.Table("allocations").
		Where("budget_code_id = ? AND status IN ?", b.ID, []AllocationStatus{AllocationAllocated, AllocationSpent})
	if exclude != uuid.Nil {
		q = q.Where("id != ?", exclude)
	}

	err := q.Select("SUM(amount - actual_spent)").Row().Scan(&outstanding)
	if err != nil {
		return decimal.Zero, err
	}

	return b.Remaining().Sub(outstanding.Decimal), nil
}

// saveVersioned persists the money fields of the aggregate. The write only
// applies if nobody changed the aggregate since it was read, otherwise
// ErrConcurrentModification is returned and the caller's transaction rolls
// back.
func (b *BudgetCode) saveVersioned(tx *gorm.DB) error {
	newVersion := b.Version + 1

	res := tx.Model(&BudgetCode{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Select("TotalBudget", "Used", "Version").
		Updates(BudgetCode{TotalBudget: b.TotalBudget, Used: b.Used, Version: newVersion})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}

	b.Version = newVersion
	return nil
}

func (b *BudgetCode) appendTransaction(tx *gorm.DB, t LedgerTransaction) error {
	t.BudgetCodeID = b.ID
	return tx.Create(&t).Error
}

// ReserveParams are the inputs for a reservation.
type ReserveParams struct {
	RequestID   uuid.UUID
	RequestType string
	Amount      decimal.Decimal
	Actor       string
}

// Reserve earmarks funds for a requesting workflow without spending them.
//
// Reservation does not change Used; it narrows the capacity for subsequent
// reservations. If the request already holds an identical allocated
// reservation, the call is a no-op. A released or spent allocation for the
// same request is reinstated with the new amount instead of creating a
// duplicate, which supports re-approval after a prior rejection or return.
//
// The receiver must have been loaded inside tx.
func (b *BudgetCode) Reserve(tx *gorm.DB, p ReserveParams) (*Allocation, error) {
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}

	if !b.Active {
		return nil, ErrBudgetCodeInactive
	}

	var allocation Allocation
	exists := true
	err := tx.Where(&Allocation{BudgetCodeID: b.ID, RequestID: p.RequestID}).First(&allocation).Error
	if errors.Is(err, ErrResourceNotFound) {
		exists = false
	} else if err != nil {
		return nil, err
	}

	// Idempotent re-reservation
	if exists && allocation.Status == AllocationAllocated && allocation.Amount.Equal(p.Amount) {
		return &allocation, nil
	}

	exclude := uuid.Nil
	needed := p.Amount
	if exists {
		// A reinstated allocation keeps its disbursement history, so the
		// new amount must still cover what was already spent. The spent
		// part is in Used already and only the rest holds new capacity.
		if p.Amount.LessThan(allocation.ActualSpent) {
			return nil, ErrInvalidAmount
		}

		exclude = allocation.ID
		needed = p.Amount.Sub(allocation.ActualSpent)
	}

	available, err := b.available(tx, exclude)
	if err != nil {
		return nil, err
	}

	if needed.GreaterThan(available) {
		return nil, ErrInsufficientFunds
	}

	now := time.Now().In(time.UTC)

	if exists {
		allocation.Amount = p.Amount
		allocation.Status = AllocationAllocated
		allocation.AllocatedAt = now
		allocation.ReleaseReason = ""
		allocation.ReleasedAt = nil

		err = tx.Model(&allocation).
			Select("Amount", "Status", "AllocatedAt", "ReleaseReason", "ReleasedAt").
			Updates(allocation).Error
	} else {
		allocation = Allocation{
			BudgetCodeID: b.ID,
			RequestID:    p.RequestID,
			RequestType:  p.RequestType,
			Amount:       p.Amount,
			Status:       AllocationAllocated,
			AllocatedAt:  now,
		}

		err = tx.Create(&allocation).Error
	}

	if err != nil {
		return nil, err
	}

	err = b.appendTransaction(tx, LedgerTransaction{
		Type:          TransactionReservation,
		Amount:        p.Amount,
		BalanceBefore: b.Remaining(),
		BalanceAfter:  b.Remaining(),
		RequestID:     p.RequestID,
		Actor:         p.Actor,
	})
	if err != nil {
		return nil, err
	}

	// Used did not change, but the version bump serializes competing
	// reservations against the capacity check above.
	if err := b.saveVersioned(tx); err != nil {
		return nil, err
	}

	return &allocation, nil
}

// DeductParams are the inputs for a disbursement.
type DeductParams struct {
	RequestID      uuid.UUID
	DisbursementID string
	Amount         decimal.Decimal
	Actor          string
}

// Deduct records an actual disbursement against a reservation.
//
// A reservation supports multiple partial disbursements until the cumulative
// total reaches the reserved amount. Every call needs a caller-supplied
// DisbursementID; replaying an already-recorded disbursement is a no-op, so
// network retries cannot double-spend.
func (b *BudgetCode) Deduct(tx *gorm.DB, p DeductParams) (*Allocation, error) {
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}

	if p.DisbursementID == "" {
		return nil, ErrMissingDisbursementID
	}

	var allocation Allocation
	err := tx.
		Where("budget_code_id = ? AND request_id = ? AND status IN ?",
			b.ID, p.RequestID, []AllocationStatus{AllocationAllocated, AllocationSpent}).
		First(&allocation).Error
	if errors.Is(err, ErrResourceNotFound) {
		return nil, ErrNoActiveAllocation
	} else if err != nil {
		return nil, err
	}

	// Replayed disbursement: already recorded, nothing to do
	var replays int64
	err = tx.Model(&LedgerTransaction{}).
		Where(&LedgerTransaction{
			BudgetCodeID:   b.ID,
			RequestID:      p.RequestID,
			DisbursementID: p.DisbursementID,
			Type:           TransactionDeduction,
		}).
		Count(&replays).Error
	if err != nil {
		return nil, err
	}

	if replays > 0 {
		return &allocation, nil
	}

	if allocation.ActualSpent.Add(p.Amount).GreaterThan(allocation.Amount) {
		return nil, ErrAllocationExceeded
	}

	if p.Amount.GreaterThan(b.Remaining()) {
		return nil, ErrInsufficientFunds
	}

	before := b.Remaining()
	now := time.Now().In(time.UTC)

	allocation.ActualSpent = allocation.ActualSpent.Add(p.Amount)
	allocation.Status = AllocationSpent
	allocation.DisbursementCount++
	allocation.LastDisbursementAt = &now
	if allocation.FirstSpentAt == nil {
		allocation.FirstSpentAt = &now
	}

	err = tx.Model(&allocation).
		Select("ActualSpent", "Status", "DisbursementCount", "FirstSpentAt", "LastDisbursementAt").
		Updates(allocation).Error
	if err != nil {
		return nil, err
	}

	b.Used = b.Used.Add(p.Amount)

	err = b.appendTransaction(tx, LedgerTransaction{
		Type:           TransactionDeduction,
		Amount:         p.Amount,
		BalanceBefore:  before,
		BalanceAfter:   b.Remaining(),
		RequestID:      p.RequestID,
		DisbursementID: p.DisbursementID,
		Actor:          p.Actor,
	})
	if err != nil {
		return nil, err
	}

	if err := b.saveVersioned(tx); err != nil {
		return nil, err
	}

	return &allocation, nil
}

// ReturnUnused returns money to the pool after actual spend came in under
// the disbursed amount. Both Used and the allocation's ActualSpent shrink.
func (b *BudgetCode) ReturnUnused(tx *gorm.DB, requestID uuid.UUID, amount decimal.Decimal, actor string) (*Allocation, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var allocation Allocation
	err := tx.
		Where(&Allocation{BudgetCodeID: b.ID, RequestID: requestID, Status: AllocationSpent}).
		First(&allocation).Error
	if errors.Is(err, ErrResourceNotFound) {
		return nil, ErrNoActiveAllocation
	} else if err != nil {
		return nil, err
	}

	if amount.GreaterThan(allocation.ActualSpent) {
		return nil, ErrInvalidAmount
	}

	before := b.Remaining()

	allocation.ActualSpent = allocation.ActualSpent.Sub(amount)
	allocation.BalanceReturned = allocation.BalanceReturned.Add(amount)

	err = tx.Model(&allocation).
		Select("ActualSpent", "BalanceReturned").
		Updates(allocation).Error
	if err != nil {
		return nil, err
	}

	b.Used = b.Used.Sub(amount)

	err = b.appendTransaction(tx, LedgerTransaction{
		Type:          TransactionReturn,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  b.Remaining(),
		RequestID:     requestID,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}

	if err := b.saveVersioned(tx); err != nil {
		return nil, err
	}

	return &allocation, nil
}

// Release returns a not-yet-spent reservation to the pool, typically when
// the owning workflow was rejected or cancelled. Used stays untouched since
// nothing was ever deducted.
func (b *BudgetCode) Release(tx *gorm.DB, requestID uuid.UUID, reason, actor string) (*Allocation, error) {
	var allocation Allocation
	err := tx.
		Where(&Allocation{BudgetCodeID: b.ID, RequestID: requestID, Status: AllocationAllocated}).
		First(&allocation).Error
	if errors.Is(err, ErrResourceNotFound) {
		return nil, ErrNoActiveAllocation
	} else if err != nil {
		return nil, err
	}

	released, err := b.releaseAllocation(tx, &allocation, reason, actor)
	if err != nil {
		return nil, err
	}

	if !released {
		return nil, ErrNoActiveAllocation
	}

	if err := b.saveVersioned(tx); err != nil {
		return nil, err
	}

	return &allocation, nil
}

// releaseAllocation marks a single allocation as released. The update is
// conditional on the allocation still being allocated, so concurrent
// releases of the same allocation apply exactly once.
func (b *BudgetCode) releaseAllocation(tx *gorm.DB, allocation *Allocation, reason, actor string) (bool, error) {
	now := time.Now().In(time.UTC)

	res := tx.Model(&Allocation{}).
		Where("id = ? AND status = ?", allocation.ID, AllocationAllocated).
		Select("Status", "ReleaseReason", "ReleasedAt").
		Updates(Allocation{Status: AllocationReleased, ReleaseReason: reason, ReleasedAt: &now})
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	allocation.Status = AllocationReleased
	allocation.ReleaseReason = reason
	allocation.ReleasedAt = &now

	err := b.appendTransaction(tx, LedgerTransaction{
		Type:          TransactionRelease,
		Amount:        allocation.Amount,
		BalanceBefore: b.Remaining(),
		BalanceAfter:  b.Remaining(),
		RequestID:     allocation.RequestID,
		Actor:         actor,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

// ReleaseStale releases every allocation that has been sitting in allocated
// for longer than the threshold. Re-running the sweep finds nothing left to
// release, so it is safe to run on a timer and concurrently with itself.
func (b *BudgetCode) ReleaseStale(tx *gorm.DB, olderThan time.Time, actor string) (int, error) {
	var stale []Allocation
	err := tx.
		Where("budget_code_id = ? AND status = ? AND allocated_at < ?", b.ID, AllocationAllocated, olderThan).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range stale {
		ok, err := b.releaseAllocation(tx, &stale[i], "stale reservation sweep", actor)
		if err != nil {
			return released, err
		}

		if ok {
			released++
		}
	}

	if released > 0 {
		if err := b.saveVersioned(tx); err != nil {
			return released, err
		}
	}

	return released, nil
}

// loadBudgetCode loads a budget code by ID inside a transaction.
func loadBudgetCode(tx *gorm.DB, id uuid.UUID) (BudgetCode, error) {
	var code BudgetCode
	err := tx.First(&code, "id = ?", id).Error
	return code, err
}

// ReserveFunds runs Reserve in its own transaction.
func ReserveFunds(codeID uuid.UUID, p ReserveParams) (BudgetCode, Allocation, error) {
	var code BudgetCode
	var allocation Allocation

	err := DB.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = loadBudgetCode(tx, codeID)
		if err != nil {
			return err
		}

		a, err := code.Reserve(tx, p)
		if err != nil {
			return err
		}

		allocation = *a
		return nil
	})

	return code, allocation, err
}

// DeductFunds runs Deduct in its own transaction.
func DeductFunds(codeID uuid.UUID, p DeductParams) (BudgetCode, Allocation, error) {
	var code BudgetCode
	var allocation Allocation

	err := DB.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = loadBudgetCode(tx, codeID)
		if err != nil {
			return err
		}

		a, err := code.Deduct(tx, p)
		if err != nil {
			return err
		}

		allocation = *a
		return nil
	})

	return code, allocation, err
}

// ReturnFunds runs ReturnUnused in its own transaction.
func ReturnFunds(codeID, requestID uuid.UUID, amount decimal.Decimal, actor string) (BudgetCode, Allocation, error) {
	var code BudgetCode
	var allocation Allocation

	err := DB.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = loadBudgetCode(tx, codeID)
		if err != nil {
			return err
		}

		a, err := code.ReturnUnused(tx, requestID, amount, actor)
		if err != nil {
			return err
		}

		allocation = *a
		return nil
	})

	return code, allocation, err
}

// ReleaseFunds runs Release in its own transaction.
func ReleaseFunds(codeID, requestID uuid.UUID, reason, actor string) (BudgetCode, Allocation, error) {
	var code BudgetCode
	var allocation Allocation

	err := DB.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = loadBudgetCode(tx, codeID)
		if err != nil {
			return err
		}

		a, err := code.Release(tx, requestID, reason, actor)
		if err != nil {
			return err
		}

		allocation = *a
		return nil
	})

	return code, allocation, err
}

// SweepStaleReservations releases stale allocations across all active budget
// codes. Each code is swept in its own transaction so one conflict does not
// abort the whole sweep.
func SweepStaleReservations(olderThanDays int) (int, error) {
	var codeIDs []uuid.UUID
	err := DB.Model(&BudgetCode{}).Where(&BudgetCode{Active: true}).Pluck("id", &codeIDs).Error
	if err != nil {
		return 0, err
	}

	olderThan := time.Now().In(time.UTC).AddDate(0, 0, -olderThanDays)

	released := 0
	for _, id := range codeIDs {
		err := DB.Transaction(func(tx *gorm.DB) error {
			code, err := loadBudgetCode(tx, id)
			if err != nil {
				return err
			}

			n, err := code.ReleaseStale(tx, olderThan, "system")
			if err != nil {
				return err
			}

			released += n
			return nil
		})
		if err != nil {
			return released, err
		}
	}

	return released, nil
}
