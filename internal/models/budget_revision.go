package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RevisionStatus is the terminal status of a budget revision request.
type RevisionStatus string

const (
	RevisionPending  RevisionStatus = "pending"
	RevisionApproved RevisionStatus = "approved"
	RevisionRejected RevisionStatus = "rejected"
)

// BudgetRevision is a request to change the total budget of a code. Every
// revision is governed by its own approval chain; the budget only changes
// once the chain's final step approves.
type BudgetRevision struct {
	DefaultModel
	BudgetCodeID    uuid.UUID       `gorm:"index"`
	PreviousBudget  decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	RequestedBudget decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	ChangeAmount    decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Reason          string
	RequestedBy     string
	Status          RevisionStatus `gorm:"default:pending"`
	DecidedAt       *time.Time

	Steps []ApprovalStep `gorm:"-" json:"steps,omitempty"`
}

// BudgetHistory records an applied budget change. Append-only.
type BudgetHistory struct {
	DefaultModel
	BudgetCodeID   uuid.UUID       `gorm:"index"`
	PreviousBudget decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	NewBudget      decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	ChangeAmount   decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	ChangedBy      string
	Reason         string
}

// LoadSteps loads the revision's approval chain in level order.
func (r *BudgetRevision) LoadSteps(tx *gorm.DB) error {
	steps, err := loadSteps(tx, OwnerBudgetRevision, r.ID)
	if err != nil {
		return err
	}

	r.Steps = steps
	return nil
}

// RequestBudgetRevision opens a revision for a budget code and builds its
// approval chain from the revision policy.
func RequestBudgetRevision(codeID uuid.UUID, newAmount decimal.Decimal, reason string, requester Identity) (BudgetRevision, error) {
	var revision BudgetRevision

	err := DB.Transaction(func(tx *gorm.DB) error {
		code, err := loadBudgetCode(tx, codeID)
		if err != nil {
			return err
		}

		if !code.Active {
			return ErrBudgetCodeInactive
		}

		if err := validateAmount(newAmount); err != nil {
			return err
		}

		if newAmount.Equal(code.TotalBudget) {
			return ErrInvalidAmount
		}

		revision = BudgetRevision{
			BudgetCodeID:    code.ID,
			PreviousBudget:  code.TotalBudget,
			RequestedBudget: newAmount,
			ChangeAmount:    newAmount.Sub(code.TotalBudget),
			Reason:          reason,
			RequestedBy:     requester.Email,
			Status:          RevisionPending,
		}

		if err := tx.Create(&revision).Error; err != nil {
			return err
		}

		steps, err := BuildChain(OwnerBudgetRevision, revision.ID, RequestTypeBudgetRevision, code.Department, DefaultPolicy, DefaultDirectory)
		if err != nil {
			return err
		}

		if err := tx.Create(&steps).Error; err != nil {
			return err
		}

		revision.Steps = steps
		return nil
	})

	return revision, err
}

// DecideBudgetRevision applies one chain decision to a pending revision.
//
// Only when the chain's final step approves does the new total apply to the
// budget code and a history entry get written. A rejection at any step
// terminates the revision without touching the budget.
func DecideBudgetRevision(codeID, revisionID uuid.UUID, actor Identity, decision Decision, comment string) (BudgetRevision, error) {
	var revision BudgetRevision

	err := DB.Transaction(func(tx *gorm.DB) error {
		code, err := loadBudgetCode(tx, codeID)
		if err != nil {
			return err
		}

		err = tx.First(&revision, "id = ? AND budget_code_id = ?", revisionID, codeID).Error
		if err != nil {
			return err
		}

		if revision.Status != RevisionPending {
			return ErrAlreadyDecided
		}

		if err := revision.LoadSteps(tx); err != nil {
			return err
		}

		step, outcome, err := Decide(revision.Steps, actor, decision, comment)
		if err != nil {
			return err
		}

		err = tx.Model(step).
			Select("Status", "Comment", "DecidedBy", "DecidedAt").
			Updates(*step).Error
		if err != nil {
			return err
		}

		now := time.Now().In(time.UTC)

		switch outcome {
		case ChainRejected:
			revision.Status = RevisionRejected
			revision.DecidedAt = &now

		case ChainCompleted:
			if revision.RequestedBudget.LessThan(code.Used) {
				return ErrBudgetBelowUsed
			}

			code.TotalBudget = revision.RequestedBudget
			if err := code.saveVersioned(tx); err != nil {
				return err
			}

			history := BudgetHistory{
				BudgetCodeID:   code.ID,
				PreviousBudget: revision.PreviousBudget,
				NewBudget:      revision.RequestedBudget,
				ChangeAmount:   revision.ChangeAmount,
				ChangedBy:      actor.Email,
				Reason:         revision.Reason,
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}

			revision.Status = RevisionApproved
			revision.DecidedAt = &now

		case ChainAdvanced:
			return nil
		}

		return tx.Model(&revision).
			Select("Status", "DecidedAt").
			Updates(revision).Error
	})

	return revision, err
}

// ApproveBudgetRevision records an approval by the revision chain's current
// approver.
func ApproveBudgetRevision(codeID, revisionID uuid.UUID, actor Identity, comment string) (BudgetRevision, error) {
	return DecideBudgetRevision(codeID, revisionID, actor, DecisionApprove, comment)
}

// RejectBudgetRevision terminates the revision without changing the budget.
func RejectBudgetRevision(codeID, revisionID uuid.UUID, actor Identity, comment string) (BudgetRevision, error) {
	return DecideBudgetRevision(codeID, revisionID, actor, DecisionReject, comment)
}
