package v1

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
	pf_uuid "github.com/procureflow/backend/internal/uuid"
	"github.com/shopspring/decimal"
)

// RequisitionEditable represents all user configurable parameters
type RequisitionEditable struct {
	Title       string          `json:"title" example:"10 engineering laptops"`                 // Short title of the requisition
	Description string          `json:"description" example:"Replacement hardware" default:""` // What is being procured and why
	Department  string          `json:"department" example:"IT" default:""`                     // Department raising the requisition
	Amount      decimal.Decimal `json:"amount" example:"25000"`                                 // Requested amount
}

func (editable RequisitionEditable) model() models.Requisition {
	return models.Requisition{
		Title:       editable.Title,
		Description: editable.Description,
		Department:  editable.Department,
		Amount:      editable.Amount,
	}
}

type RequisitionLinks struct {
	Self          string `json:"self" example:"https://example.com/v1/requisitions/3b1ea324-d438-4419-882a-2fc91d71772f"`                        // The requisition itself
	Submit        string `json:"submit" example:"https://example.com/v1/requisitions/3b1ea324-d438-4419-882a-2fc91d71772f/submit"`               // Submit the draft into the workflow
	Decision      string `json:"decision" example:"https://example.com/v1/requisitions/3b1ea324-d438-4419-882a-2fc91d71772f/decision"`           // Apply the next approval decision
	Buyer         string `json:"buyer" example:"https://example.com/v1/requisitions/3b1ea324-d438-4419-882a-2fc91d71772f/buyer"`                 // Assign the buyer
	Disbursements string `json:"disbursements" example:"https://example.com/v1/requisitions/3b1ea324-d438-4419-882a-2fc91d71772f/disbursements"` // Record a disbursement
	Returns       string `json:"returns" example:"https://example.com/v1/requisitions/3b1ea324-d438-4419-882a-2fc91d71772f/returns"`             // Return unused reserved funds
	Cancel        string `json:"cancel" example:"https://example.com/v1/requisitions/3b1ea324-d438-4419-882a-2fc91d71772f/cancel"`               // Cancel the requisition
}

type Requisition struct {
	models.DefaultModel
	RequisitionEditable
	Links RequisitionLinks `json:"links"`

	// These fields are managed by the workflow
	RequestNumber  string          `json:"requestNumber" example:"PR-2024-52D967D3"`                              // Human readable request number
	RequesterName  string          `json:"requesterName" example:"Jane Doe"`                                      // Who raised the requisition
	RequesterEmail string          `json:"requesterEmail" example:"jane.doe@example.com"`                         // Email of the requester
	Status         string          `json:"status" example:"pending_finance_verification"`                         // Workflow stage
	SubmittedAt    *time.Time      `json:"submittedAt" example:"2024-03-20T14:42:00Z" extensions:"x-nullable"`    // When the draft entered the workflow
	ApprovedAmount decimal.Decimal `json:"approvedAmount" example:"25000"`                                        // Amount reserved by finance
	BudgetCodeID   *uuid.UUID      `json:"budgetCodeId" example:"52d967d3-33f4-4b04-9ba7-772e5ab9d0ce" extensions:"x-nullable"` // Budget code funds are reserved against

	SupervisorDecision  models.DecisionRecord `json:"supervisorDecision"`
	FinanceDecision     models.DecisionRecord `json:"financeDecision"`
	SupplyChainDecision models.DecisionRecord `json:"supplyChainDecision"`
	HeadDecision        models.DecisionRecord `json:"headDecision"`

	BuyerName       string     `json:"buyerName,omitempty" example:"John Smith"`
	BuyerEmail      string     `json:"buyerEmail,omitempty" example:"john.smith@example.com"`
	SourcingNotes   string     `json:"sourcingNotes,omitempty" example:"Preferred vendor: ACME"`
	BuyerAssignedAt *time.Time `json:"buyerAssignedAt" extensions:"x-nullable"`

	Steps []ApprovalStep `json:"steps"` // Approval chain, empty for drafts
}

func newRequisition(c *gin.Context, model models.Requisition) Requisition {
	url := httputil.RequestHost(c)
	self := fmt.Sprintf("%s/v1/requisitions/%s", url, model.ID)

	return Requisition{
		DefaultModel: model.DefaultModel,
		RequisitionEditable: RequisitionEditable{
			Title:       model.Title,
			Description: model.Description,
			Department:  model.Department,
			Amount:      model.Amount,
		},
		Links: RequisitionLinks{
			Self:          self,
			Submit:        self + "/submit",
			Decision:      self + "/decision",
			Buyer:         self + "/buyer",
			Disbursements: self + "/disbursements",
			Returns:       self + "/returns",
			Cancel:        self + "/cancel",
		},
		RequestNumber:  model.RequestNumber,
		RequesterName:  model.RequesterName,
		RequesterEmail: model.RequesterEmail,
		Status:         string(model.Status),
		SubmittedAt:    model.SubmittedAt,
		ApprovedAmount: model.ApprovedAmount,
		BudgetCodeID:   model.BudgetCodeID,

		SupervisorDecision:  model.SupervisorDecision,
		FinanceDecision:     model.FinanceDecision,
		SupplyChainDecision: model.SupplyChainDecision,
		HeadDecision:        model.HeadDecision,

		BuyerName:       model.BuyerName,
		BuyerEmail:      model.BuyerEmail,
		SourcingNotes:   model.SourcingNotes,
		BuyerAssignedAt: model.BuyerAssignedAt,

		Steps: newApprovalSteps(model.Steps),
	}
}

type RequisitionListResponse struct {
	Data       []Requisition `json:"data"`                                                          // List of requisitions
	Error      *string       `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination   `json:"pagination"`                                                    // Pagination information
}

type RequisitionResponse struct {
	Data  *Requisition `json:"data"`                                                          // Data for the requisition
	Error *string      `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type RequisitionQueryFilter struct {
	RequestNumber  string       `form:"requestNumber" filterField:"false"` // By request number, glob patterns are supported
	Department     string       `form:"department"`                        // By department
	Status         string       `form:"status"`                            // By workflow stage
	RequesterEmail string       `form:"requester"`                         // By email of the requester
	BudgetCodeID   pf_uuid.UUID `form:"budgetCode"`                        // By ID of the budget code funds are reserved against
	Offset         uint         `form:"offset" filterField:"false"`        // The offset of the first requisition returned. Defaults to 0.
	Limit          int          `form:"limit" filterField:"false"`         // Maximum number of requisitions to return. Defaults to 50.
}

func (f RequisitionQueryFilter) model() models.Requisition {
	var budgetCodeID *uuid.UUID
	if f.BudgetCodeID.UUID != uuid.Nil {
		budgetCodeID = &f.BudgetCodeID.UUID
	}

	return models.Requisition{
		Department:     f.Department,
		Status:         models.RequisitionStatus(f.Status),
		RequesterEmail: f.RequesterEmail,
		BudgetCodeID:   budgetCodeID,
	}
}

// RequisitionDecisionEditable is the request body for workflow gate decisions.
type RequisitionDecisionEditable struct {
	DecisionEditable

	// Finance approval only
	BudgetCodeID   *uuid.UUID       `json:"budgetCodeId" example:"52d967d3-33f4-4b04-9ba7-772e5ab9d0ce" extensions:"x-nullable"` // Budget code to reserve against
	ApprovedAmount *decimal.Decimal `json:"approvedAmount" example:"25000" extensions:"x-nullable"`                              // Amount to reserve, defaults to the requested amount
}

// BuyerAssignmentEditable is the request body for attaching a buyer.
type BuyerAssignmentEditable struct {
	BuyerName     string `json:"buyerName" example:"John Smith" binding:"required"`               // Name of the buyer
	BuyerEmail    string `json:"buyerEmail" example:"john.smith@example.com" binding:"required"`  // Email of the buyer
	SourcingNotes string `json:"sourcingNotes" example:"Preferred vendor: ACME" default:""`       // Notes for sourcing
}

// DisbursementEditable is the request body for recording a disbursement.
type DisbursementEditable struct {
	DisbursementID string          `json:"disbursementId" example:"INV-2024-001" binding:"required"` // Idempotency key, e.g. the invoice number
	Amount         decimal.Decimal `json:"amount" example:"12500"`                                   // Disbursed amount
}

// ReturnEditable is the request body for returning unused funds.
type ReturnEditable struct {
	Amount decimal.Decimal `json:"amount" example:"500"` // Amount to return to the budget pool
}

// CancelEditable is the request body for cancelling a requisition.
type CancelEditable struct {
	Comment string `json:"comment" example:"No longer needed" default:""` // Why the requisition is cancelled
}
