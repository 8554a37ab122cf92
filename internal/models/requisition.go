package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequisitionStatus is the workflow stage of a purchase requisition.
type RequisitionStatus string

const (
	RequisitionDraft               RequisitionStatus = "draft"
	RequisitionPendingSupervisor   RequisitionStatus = "pending_supervisor"
	RequisitionPendingFinance      RequisitionStatus = "pending_finance_verification"
	RequisitionPendingSupplyChain  RequisitionStatus = "pending_supply_chain_review"
	RequisitionPendingBuyer        RequisitionStatus = "pending_buyer_assignment"
	RequisitionPendingHead         RequisitionStatus = "pending_head_approval"
	RequisitionApproved            RequisitionStatus = "approved"
	RequisitionRejected            RequisitionStatus = "rejected"
	RequisitionSupplyChainRejected RequisitionStatus = "supply_chain_rejected"
	RequisitionCancelled           RequisitionStatus = "cancelled"
)

// Terminal reports whether no further workflow transition is possible.
func (s RequisitionStatus) Terminal() bool {
	switch s {
	case RequisitionApproved, RequisitionRejected, RequisitionSupplyChainRejected, RequisitionCancelled:
		return true
	}

	return false
}

// DecisionRecord captures who decided a workflow gate, when and why.
type DecisionRecord struct {
	DecidedBy string     `json:"decidedBy,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
	Comment   string     `json:"comment,omitempty"`
}

// Requisition is a purchase requisition moving through the procurement
// workflow. Its status is always derived from the role that last acted on
// the approval chain, never advanced independently, so the chain and the
// status cannot disagree.
type Requisition struct {
	DefaultModel
	RequestNumber  string `gorm:"uniqueIndex"`
	Title          string
	Description    string
	Department     string
	RequesterName  string
	RequesterEmail string `gorm:"index"`

	Amount         decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // requested by the employee
	ApprovedAmount decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // reserved by finance
	BudgetCodeID   *uuid.UUID      `gorm:"index"`

	Status      RequisitionStatus `gorm:"default:draft"`
	SubmittedAt *time.Time

	SupervisorDecision  DecisionRecord `gorm:"embedded;embeddedPrefix:supervisor_"`
	FinanceDecision     DecisionRecord `gorm:"embedded;embeddedPrefix:finance_"`
	SupplyChainDecision DecisionRecord `gorm:"embedded;embeddedPrefix:supply_chain_"`
	HeadDecision        DecisionRecord `gorm:"embedded;embeddedPrefix:head_"`

	BuyerName       string
	BuyerEmail      string
	SourcingNotes   string
	BuyerAssignedAt *time.Time

	Version uint

	Steps []ApprovalStep `gorm:"-" json:"steps,omitempty"`
}

func (r *Requisition) BeforeCreate(tx *gorm.DB) error {
	_ = r.DefaultModel.BeforeCreate(tx)

	if r.RequestNumber == "" {
		r.RequestNumber = fmt.Sprintf("PR-%d-%s", time.Now().Year(), strings.ToUpper(r.ID.String()[:8]))
	}

	return nil
}

// LoadSteps loads the requisition's approval chain in level order.
func (r *Requisition) LoadSteps(tx *gorm.DB) error {
	steps, err := loadSteps(tx, OwnerRequisition, r.ID)
	if err != nil {
		return err
	}

	r.Steps = steps
	return nil
}

// saveVersioned persists the given columns of the requisition, failing with
// ErrConcurrentModification if another request changed it in the meantime.
func (r *Requisition) saveVersioned(tx *gorm.DB, values map[string]any) error {
	newVersion := r.Version + 1
	values["version"] = newVersion

	res := tx.Model(&Requisition{}).
		Where("id = ? AND version = ?", r.ID, r.Version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}

	r.Version = newVersion
	return nil
}

// nextStatusForRole maps the role that just approved to the workflow stage
// the requisition enters. Computing the transition target from the acting
// role keeps the chain and the status from ever disagreeing.
func nextStatusForRole(role string) (RequisitionStatus, error) {
	switch role {
	case RoleSupervisor:
		return RequisitionPendingFinance, nil
	case RoleFinance:
		return RequisitionPendingSupplyChain, nil
	case RoleSupplyChain:
		return RequisitionPendingBuyer, nil
	case RoleHead:
		return RequisitionApproved, nil
	}

	return "", fmt.Errorf("%w: no transition for role %s", ErrInvalidTransition, role)
}

// rejectedStatusForRole maps the rejecting role to the terminal failure
// state.
func rejectedStatusForRole(role string) RequisitionStatus {
	if role == RoleSupplyChain {
		return RequisitionSupplyChainRejected
	}

	return RequisitionRejected
}

func (r *Requisition) decisionRecordForRole(role string) *DecisionRecord {
	switch role {
	case RoleSupervisor:
		return &r.SupervisorDecision
	case RoleFinance:
		return &r.FinanceDecision
	case RoleSupplyChain:
		return &r.SupplyChainDecision
	case RoleHead:
		return &r.HeadDecision
	}

	return nil
}

// SubmitRequisition freezes the approval chain for a draft requisition and
// hands it to the first approver.
func SubmitRequisition(id uuid.UUID, actor Identity) (Requisition, error) {
	var requisition Requisition

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&requisition, "id = ?", id).Error
		if err != nil {
			return err
		}

		if requisition.Status != RequisitionDraft {
			return ErrInvalidTransition
		}

		if actor.Email != requisition.RequesterEmail && actor.Role != RoleAdmin {
			return ErrUnauthorized
		}

		if err := validateAmount(requisition.Amount); err != nil {
			return err
		}

		steps, err := BuildChain(OwnerRequisition, requisition.ID, RequestTypeRequisition, requisition.Department, DefaultPolicy, DefaultDirectory)
		if err != nil {
			return err
		}

		if err := tx.Create(&steps).Error; err != nil {
			return err
		}

		now := time.Now().In(time.UTC)
		err = requisition.saveVersioned(tx, map[string]any{
			"status":       RequisitionPendingSupervisor,
			"submitted_at": now,
		})
		if err != nil {
			return err
		}

		requisition.Status = RequisitionPendingSupervisor
		requisition.SubmittedAt = &now
		requisition.Steps = steps
		return nil
	})

	return requisition, err
}

// RequisitionDecision is one gate decision on a requisition.
type RequisitionDecision struct {
	Decision Decision
	Comment  string

	// Finance approval only: the budget code to reserve against and the
	// amount to reserve. The amount defaults to the requested amount.
	BudgetCodeID   *uuid.UUID
	ApprovedAmount *decimal.Decimal
}

// decidableStatuses are the stages in which the chain's current approver
// may act. pending_buyer_assignment is deliberately absent: the head gate
// only opens once a buyer is attached.
var decidableStatuses = map[RequisitionStatus]bool{
	RequisitionPendingSupervisor:  true,
	RequisitionPendingFinance:     true,
	RequisitionPendingSupplyChain: true,
	RequisitionPendingHead:        true,
}

// DecideRequisition applies one approval-chain decision to a requisition
// and performs the coupled ledger mutation in the same transaction: finance
// approval reserves funds, any rejection releases a reservation that
// exists. Workflow transition and ledger movement apply together or not at
// all.
func DecideRequisition(id uuid.UUID, actor Identity, input RequisitionDecision) (Requisition, error) {
	var requisition Requisition

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&requisition, "id = ?", id).Error
		if err != nil {
			return err
		}

		if requisition.Status.Terminal() {
			return ErrAlreadyDecided
		}

		if !decidableStatuses[requisition.Status] {
			return ErrInvalidTransition
		}

		if err := requisition.LoadSteps(tx); err != nil {
			return err
		}

		step, outcome, err := Decide(requisition.Steps, actor, input.Decision, input.Comment)
		if err != nil {
			return err
		}

		err = tx.Model(step).
			Select("Status", "Comment", "DecidedBy", "DecidedAt").
			Updates(*step).Error
		if err != nil {
			return err
		}

		// The role's embedded decision record shares the role name as its
		// column prefix.
		values := map[string]any{
			fmt.Sprintf("%s_decided_by", step.Role): actor.Email,
			fmt.Sprintf("%s_decided_at", step.Role): *step.DecidedAt,
			fmt.Sprintf("%s_comment", step.Role):    input.Comment,
		}

		if record := requisition.decisionRecordForRole(step.Role); record != nil {
			record.DecidedBy = actor.Email
			record.DecidedAt = step.DecidedAt
			record.Comment = input.Comment
		}

		if outcome == ChainRejected {
			status := rejectedStatusForRole(step.Role)
			values["status"] = status
			requisition.Status = status

			if err := requisition.releaseReservation(tx, "requisition "+string(status), actor.Email); err != nil {
				return err
			}

			return requisition.saveVersioned(tx, values)
		}

		next, err := nextStatusForRole(step.Role)
		if err != nil {
			return err
		}

		if step.Role == RoleFinance {
			if err := requisition.reserveAtFinanceGate(tx, actor, input, values); err != nil {
				return err
			}
		}

		values["status"] = next
		requisition.Status = next

		return requisition.saveVersioned(tx, values)
	})

	return requisition, err
}

// reserveAtFinanceGate is the hand-off point where approval and accounting
// meet: finance chose a budget code and an amount, so the reservation is
// made before the requisition moves on to supply chain review.
func (r *Requisition) reserveAtFinanceGate(tx *gorm.DB, actor Identity, input RequisitionDecision, values map[string]any) error {
	codeID := r.BudgetCodeID
	if input.BudgetCodeID != nil {
		codeID = input.BudgetCodeID
	}

	if codeID == nil {
		return fmt.Errorf("%w: finance approval requires a budget code", ErrInvalidTransition)
	}

	amount := r.Amount
	if input.ApprovedAmount != nil {
		amount = *input.ApprovedAmount
	}

	code, err := loadBudgetCode(tx, *codeID)
	if err != nil {
		return err
	}

	_, err = code.Reserve(tx, ReserveParams{
		RequestID:   r.ID,
		RequestType: RequestTypeRequisition,
		Amount:      amount,
		Actor:       actor.Email,
	})
	if err != nil {
		return err
	}

	values["budget_code_id"] = *codeID
	values["approved_amount"] = amount

	r.BudgetCodeID = codeID
	r.ApprovedAmount = amount

	return nil
}

// releaseReservation gives reserved funds back to the pool when a
// requisition fails. Nothing happens if no reservation was ever made, or if
// it is already spent or released.
func (r *Requisition) releaseReservation(tx *gorm.DB, reason, actor string) error {
	if r.BudgetCodeID == nil {
		return nil
	}

	code, err := loadBudgetCode(tx, *r.BudgetCodeID)
	if err != nil {
		return err
	}

	_, err = code.Release(tx, r.ID, reason, actor)
	if errors.Is(err, ErrNoActiveAllocation) {
		return nil
	}

	return err
}

// BuyerAssignment attaches sourcing metadata to a requisition.
type BuyerAssignment struct {
	BuyerName     string
	BuyerEmail    string
	SourcingNotes string
}

// AssignRequisitionBuyer attaches a buyer after supply chain review. Funds
// are already reserved at this point; no further ledger action happens.
// Only the identity that approved the supply chain gate may assign the
// buyer.
func AssignRequisitionBuyer(id uuid.UUID, actor Identity, assignment BuyerAssignment) (Requisition, error) {
	var requisition Requisition

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&requisition, "id = ?", id).Error
		if err != nil {
			return err
		}

		if requisition.Status != RequisitionPendingBuyer {
			return ErrInvalidTransition
		}

		if actor.Email != requisition.SupplyChainDecision.DecidedBy && actor.Role != RoleAdmin {
			return ErrUnauthorized
		}

		now := time.Now().In(time.UTC)
		err = requisition.saveVersioned(tx, map[string]any{
			"buyer_name":        assignment.BuyerName,
			"buyer_email":       assignment.BuyerEmail,
			"sourcing_notes":    assignment.SourcingNotes,
			"buyer_assigned_at": now,
			"status":            RequisitionPendingHead,
		})
		if err != nil {
			return err
		}

		requisition.BuyerName = assignment.BuyerName
		requisition.BuyerEmail = assignment.BuyerEmail
		requisition.SourcingNotes = assignment.SourcingNotes
		requisition.BuyerAssignedAt = &now
		requisition.Status = RequisitionPendingHead
		return nil
	})

	return requisition, err
}

// CancelRequisition lets the requester withdraw a requisition that has not
// reached a terminal state. A reservation that exists is released so a
// cancelled request never holds capacity hostage.
func CancelRequisition(id uuid.UUID, actor Identity, comment string) (Requisition, error) {
	var requisition Requisition

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&requisition, "id = ?", id).Error
		if err != nil {
			return err
		}

		if requisition.Status.Terminal() {
			return ErrAlreadyDecided
		}

		if actor.Email != requisition.RequesterEmail && actor.Role != RoleAdmin {
			return ErrUnauthorized
		}

		if err := requisition.releaseReservation(tx, "requisition cancelled", actor.Email); err != nil {
			return err
		}

		err = requisition.saveVersioned(tx, map[string]any{
			"status": RequisitionCancelled,
		})
		if err != nil {
			return err
		}

		requisition.Status = RequisitionCancelled
		return nil
	})

	return requisition, err
}

// RecordDisbursement records an actual payment against an approved
// requisition's reservation. Partial disbursements may repeat until the
// reservation is exhausted. The disbursement ID makes retries safe.
func RecordDisbursement(id uuid.UUID, actor Identity, disbursementID string, amount decimal.Decimal) (Requisition, Allocation, error) {
	var requisition Requisition
	var allocation Allocation

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&requisition, "id = ?", id).Error
		if err != nil {
			return err
		}

		if requisition.Status != RequisitionApproved || requisition.BudgetCodeID == nil {
			return ErrInvalidTransition
		}

		code, err := loadBudgetCode(tx, *requisition.BudgetCodeID)
		if err != nil {
			return err
		}

		a, err := code.Deduct(tx, DeductParams{
			RequestID:      requisition.ID,
			DisbursementID: disbursementID,
			Amount:         amount,
			Actor:          actor.Email,
		})
		if err != nil {
			return err
		}

		allocation = *a
		return nil
	})

	return requisition, allocation, err
}

// RecordReturn returns unused money after actual spend came in under the
// disbursed amount.
func RecordReturn(id uuid.UUID, actor Identity, amount decimal.Decimal) (Requisition, Allocation, error) {
	var requisition Requisition
	var allocation Allocation

	err := DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&requisition, "id = ?", id).Error
		if err != nil {
			return err
		}

		if requisition.Status != RequisitionApproved || requisition.BudgetCodeID == nil {
			return ErrInvalidTransition
		}

		code, err := loadBudgetCode(tx, *requisition.BudgetCodeID)
		if err != nil {
			return err
		}

		a, err := code.ReturnUnused(tx, requisition.ID, amount, actor.Email)
		if err != nil {
			return err
		}

		allocation = *a
		return nil
	})

	return requisition, allocation, err
}
