package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectPlanStatus is the workflow stage of a project plan.
type ProjectPlanStatus string

const (
	ProjectPlanDraft         ProjectPlanStatus = "draft"
	ProjectPlanPendingReview ProjectPlanStatus = "pending_review"
	ProjectPlanApproved      ProjectPlanStatus = "approved"
	ProjectPlanRejected      ProjectPlanStatus = "rejected"
)

// ProjectPlan is a planning document that travels through the same approval
// chain primitive as requisitions, without any ledger coupling. Money only
// moves once individual requisitions are raised against the plan.
type ProjectPlan struct {
	DefaultModel
	Title           string
	Description     string
	Department      string
	RequesterName   string
	RequesterEmail  string          `gorm:"index"`
	EstimatedBudget decimal.Decimal `gorm:"type:DECIMAL(20,8)"`

	Status      ProjectPlanStatus `gorm:"default:draft"`
	SubmittedAt *time.Time
	DecidedAt   *time.Time

	Version uint

	Steps []ApprovalStep `gorm:"-" json:"steps,omitempty"`
}

// LoadSteps loads the plan's approval chain in level order.
func (p *ProjectPlan) LoadSteps(tx *gorm.DB) error {
	steps, err := loadSteps(tx, OwnerProjectPlan, p.ID)
	if err != nil {
		return err
	}

	p.Steps = steps
	return nil
}

func (p *ProjectPlan) saveVersioned(tx *gorm.DB, values map[string]any) error {
	newVersion := p.Version + 1
	values["version"] = newVersion

	res := tx.Model(&ProjectPlan{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}

	p.Version = newVersion
	return nil
}

// SubmitProjectPlan freezes the approval chain for a draft plan and hands
// it to the first approver.
func SubmitProjectPlan(id uuid.UUID, actor Identity) (ProjectPlan, error) {
	var plan ProjectPlan

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&plan, "id = ?", id).Error
		if err != nil {
			return err
		}

		if plan.Status != ProjectPlanDraft {
			return ErrInvalidTransition
		}

		if actor.Email != plan.RequesterEmail && actor.Role != RoleAdmin {
			return ErrUnauthorized
		}

		steps, err := BuildChain(OwnerProjectPlan, plan.ID, RequestTypeProjectPlan, plan.Department, DefaultPolicy, DefaultDirectory)
		if err != nil {
			return err
		}

		if err := tx.Create(&steps).Error; err != nil {
			return err
		}

		now := time.Now().In(time.UTC)
		err = plan.saveVersioned(tx, map[string]any{
			"status":       ProjectPlanPendingReview,
			"submitted_at": now,
		})
		if err != nil {
			return err
		}

		plan.Status = ProjectPlanPendingReview
		plan.SubmittedAt = &now
		plan.Steps = steps
		return nil
	})

	return plan, err
}

// DecideProjectPlan applies one approval-chain decision to a plan under
// review.
func DecideProjectPlan(id uuid.UUID, actor Identity, decision Decision, comment string) (ProjectPlan, error) {
	var plan ProjectPlan

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&plan, "id = ?", id).Error
		if err != nil {
			return err
		}

		if plan.Status == ProjectPlanApproved || plan.Status == ProjectPlanRejected {
			return ErrAlreadyDecided
		}

		if plan.Status != ProjectPlanPendingReview {
			return ErrInvalidTransition
		}

		if err := plan.LoadSteps(tx); err != nil {
			return err
		}

		step, outcome, err := Decide(plan.Steps, actor, decision, comment)
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
			plan.Status = ProjectPlanRejected
			plan.DecidedAt = &now
		case ChainCompleted:
			plan.Status = ProjectPlanApproved
			plan.DecidedAt = &now
		case ChainAdvanced:
			return nil
		}

		return plan.saveVersioned(tx, map[string]any{
			"status":     plan.Status,
			"decided_at": now,
		})
	})

	return plan, err
}
