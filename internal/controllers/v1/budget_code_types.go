package v1

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
	"github.com/shopspring/decimal"
)

// BudgetCodeEditable represents all user configurable parameters
type BudgetCodeEditable struct {
	Code        string          `json:"code" example:"IT-CAPEX-2024"`                            // Unique code identifying the budget pool
	Description string          `json:"description" example:"IT capital expenditure" default:""` // Description of the budget code
	TotalBudget decimal.Decimal `json:"totalBudget" example:"1000000"`                           // Total budget of the pool
	Department  string          `json:"department" example:"IT" default:""`                      // Department the pool belongs to
	Period      string          `json:"period" example:"annual" default:""`                      // Budgeting period
	FiscalYear  int             `json:"fiscalYear" example:"2024"`                               // Fiscal year of the pool
}

func (editable BudgetCodeEditable) model() models.BudgetCode {
	return models.BudgetCode{
		Code:        editable.Code,
		Description: editable.Description,
		TotalBudget: editable.TotalBudget,
		Department:  editable.Department,
		Period:      editable.Period,
		FiscalYear:  editable.FiscalYear,
	}
}

type BudgetCodeLinks struct {
	Self         string `json:"self" example:"https://example.com/v1/budget-codes/3b1ea324-d438-4419-882a-2fc91d71772f"`                      // The budget code itself
	Transactions string `json:"transactions" example:"https://example.com/v1/budget-codes/3b1ea324-d438-4419-882a-2fc91d71772f/transactions"` // Ledger transactions of this budget code
	Allocations  string `json:"allocations" example:"https://example.com/v1/budget-codes/3b1ea324-d438-4419-882a-2fc91d71772f/allocations"`   // Allocations of this budget code
	Revisions    string `json:"revisions" example:"https://example.com/v1/budget-codes/3b1ea324-d438-4419-882a-2fc91d71772f/revisions"`       // Budget revisions of this budget code
	Forecast     string `json:"forecast" example:"https://example.com/v1/budget-codes/3b1ea324-d438-4419-882a-2fc91d71772f/forecast"`         // Exhaustion forecast of this budget code
	Utilization  string `json:"utilization" example:"https://example.com/v1/budget-codes/3b1ea324-d438-4419-882a-2fc91d71772f/utilization"`   // Utilization of this budget code
}

type BudgetCode struct {
	models.DefaultModel
	BudgetCodeEditable
	Links BudgetCodeLinks `json:"links"`

	// These fields are computed
	Used              decimal.Decimal `json:"used" example:"300000"`            // Net amount disbursed so far
	Remaining         decimal.Decimal `json:"remaining" example:"700000"`       // Total minus used
	Utilization       decimal.Decimal `json:"utilization" example:"30"`         // Used as a percentage of total
	UtilizationStatus string          `json:"utilizationStatus" example:"healthy"` // healthy, moderate, warning or critical
	Active            bool            `json:"active" example:"true"`            // Inactive codes reject new reservations
}

func newBudgetCode(c *gin.Context, model models.BudgetCode) BudgetCode {
	url := httputil.RequestHost(c)
	self := fmt.Sprintf("%s/v1/budget-codes/%s", url, model.ID)

	return BudgetCode{
		DefaultModel: model.DefaultModel,
		BudgetCodeEditable: BudgetCodeEditable{
			Code:        model.Code,
			Description: model.Description,
			TotalBudget: model.TotalBudget,
			Department:  model.Department,
			Period:      model.Period,
			FiscalYear:  model.FiscalYear,
		},
		Links: BudgetCodeLinks{
			Self:         self,
			Transactions: self + "/transactions",
			Allocations:  self + "/allocations",
			Revisions:    self + "/revisions",
			Forecast:     self + "/forecast",
			Utilization:  self + "/utilization",
		},
		Used:              model.Used,
		Remaining:         model.Remaining(),
		Utilization:       model.Utilization(),
		UtilizationStatus: string(model.UtilizationStatus()),
		Active:            model.Active,
	}
}

type BudgetCodeListResponse struct {
	Data       []BudgetCode `json:"data"`                                                          // List of budget codes
	Error      *string      `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination  `json:"pagination"`                                                    // Pagination information
}

type BudgetCodeResponse struct {
	Data  *BudgetCode `json:"data"`                                                          // Data for the budget code
	Error *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type BudgetCodeQueryFilter struct {
	Code       string `form:"code" filterField:"false"`   // By code, glob patterns are supported
	Department string `form:"department"`                 // By department
	FiscalYear int    `form:"fiscalYear"`                 // By fiscal year
	Active     bool   `form:"active"`                     // Is the budget code active?
	Offset     uint   `form:"offset" filterField:"false"` // The offset of the first budget code returned. Defaults to 0.
	Limit      int    `form:"limit" filterField:"false"`  // Maximum number of budget codes to return. Defaults to 50.
}

func (f BudgetCodeQueryFilter) model() models.BudgetCode {
	return models.BudgetCode{
		Department: f.Department,
		FiscalYear: f.FiscalYear,
		Active:     f.Active,
	}
}

// LedgerTransactionObject is the API representation of a ledger audit entry.
type LedgerTransactionObject struct {
	models.DefaultModel
	Type           string          `json:"type" example:"deduction"`                                  // reservation, deduction, return or release
	Amount         decimal.Decimal `json:"amount" example:"400000"`                                   // Moved amount
	BalanceBefore  decimal.Decimal `json:"balanceBefore" example:"1000000"`                           // Remaining balance before the movement
	BalanceAfter   decimal.Decimal `json:"balanceAfter" example:"600000"`                             // Remaining balance after the movement
	RequestID      string          `json:"requestId" example:"52d967d3-33f4-4b04-9ba7-772e5ab9d0ce"`  // Workflow instance the movement belongs to
	DisbursementID string          `json:"disbursementId,omitempty" example:"INV-2024-001"`           // Idempotency key, set on deductions only
	Actor          string          `json:"actor" example:"jane.doe@example.com"`                      // Who triggered the movement
}

func newLedgerTransaction(model models.LedgerTransaction) LedgerTransactionObject {
	return LedgerTransactionObject{
		DefaultModel:   model.DefaultModel,
		Type:           string(model.Type),
		Amount:         model.Amount,
		BalanceBefore:  model.BalanceBefore,
		BalanceAfter:   model.BalanceAfter,
		RequestID:      model.RequestID.String(),
		DisbursementID: model.DisbursementID,
		Actor:          model.Actor,
	}
}

type LedgerTransactionListResponse struct {
	Data       []LedgerTransactionObject `json:"data"`                                                          // List of ledger transactions
	Error      *string                   `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination               `json:"pagination"`                                                    // Pagination information
}

// AllocationObject is the API representation of a reservation.
type AllocationObject struct {
	models.DefaultModel
	RequestID         string          `json:"requestId" example:"52d967d3-33f4-4b04-9ba7-772e5ab9d0ce"` // Workflow instance holding the reservation
	RequestType       string          `json:"requestType" example:"requisition"`                        // Kind of workflow instance
	Amount            decimal.Decimal `json:"amount" example:"400000"`                                  // Reserved amount
	Status            string          `json:"status" example:"allocated"`                               // allocated, spent or released
	ActualSpent       decimal.Decimal `json:"actualSpent" example:"150000"`                             // Cumulative disbursements
	Outstanding       decimal.Decimal `json:"outstanding" example:"250000"`                             // Reserved but not yet disbursed
	DisbursementCount uint            `json:"disbursementCount" example:"2"`                            // Number of disbursements recorded
	BalanceReturned   decimal.Decimal `json:"balanceReturned" example:"0"`                              // Amount returned after overestimation
	ReleaseReason     string          `json:"releaseReason,omitempty" example:"requisition rejected"`   // Why the reservation was released
}

func newAllocation(model models.Allocation) AllocationObject {
	return AllocationObject{
		DefaultModel:      model.DefaultModel,
		RequestID:         model.RequestID.String(),
		RequestType:       model.RequestType,
		Amount:            model.Amount,
		Status:            string(model.Status),
		ActualSpent:       model.ActualSpent,
		Outstanding:       model.Outstanding(),
		DisbursementCount: model.DisbursementCount,
		BalanceReturned:   model.BalanceReturned,
		ReleaseReason:     model.ReleaseReason,
	}
}

type AllocationListResponse struct {
	Data  []AllocationObject `json:"data"`                                                          // List of allocations
	Error *string            `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type AllocationResponse struct {
	Data  *AllocationObject `json:"data"`                                                          // Data for the allocation
	Error *string           `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type ForecastResponse struct {
	Data  *models.Forecast `json:"data"`                                                          // Forecast for the budget code
	Error *string          `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type UtilizationObject struct {
	TotalBudget decimal.Decimal `json:"totalBudget" example:"1000000"` // The total budget of the code
	Used        decimal.Decimal `json:"used" example:"300000"`         // Funds reserved or spent
	Remaining   decimal.Decimal `json:"remaining" example:"700000"`    // Funds still available
	Utilization decimal.Decimal `json:"utilization" example:"30"`      // Used as a percentage of total
	Status      string          `json:"status" example:"healthy"`      // healthy, moderate, warning or critical
}

type UtilizationResponse struct {
	Data  *UtilizationObject `json:"data"`                                                          // Utilization of the budget code
	Error *string            `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// BudgetRevisionEditable represents all user configurable parameters
type BudgetRevisionEditable struct {
	RequestedBudget decimal.Decimal `json:"requestedBudget" example:"1500000"`                  // The new total budget
	Reason          string          `json:"reason" example:"Scope increase for Q3" default:""` // Why the budget should change
}

type BudgetRevisionObject struct {
	models.DefaultModel
	BudgetRevisionEditable
	PreviousBudget decimal.Decimal `json:"previousBudget" example:"1000000"`         // Total budget when the revision was requested
	ChangeAmount   decimal.Decimal `json:"changeAmount" example:"500000"`            // Requested minus previous
	RequestedBy    string          `json:"requestedBy" example:"jane.doe@example.com"` // Who requested the revision
	Status         string          `json:"status" example:"pending"`                 // pending, approved or rejected
	Steps          []ApprovalStep  `json:"steps"`                                    // Approval chain of the revision
}

func newBudgetRevision(model models.BudgetRevision) BudgetRevisionObject {
	return BudgetRevisionObject{
		DefaultModel: model.DefaultModel,
		BudgetRevisionEditable: BudgetRevisionEditable{
			RequestedBudget: model.RequestedBudget,
			Reason:          model.Reason,
		},
		PreviousBudget: model.PreviousBudget,
		ChangeAmount:   model.ChangeAmount,
		RequestedBy:    model.RequestedBy,
		Status:         string(model.Status),
		Steps:          newApprovalSteps(model.Steps),
	}
}

type BudgetRevisionListResponse struct {
	Data  []BudgetRevisionObject `json:"data"`                                                          // List of budget revisions
	Error *string                `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type BudgetRevisionResponse struct {
	Data  *BudgetRevisionObject `json:"data"`                                                          // Data for the budget revision
	Error *string               `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// DecisionEditable is the request body for approval chain decisions.
type DecisionEditable struct {
	Decision string `json:"decision" example:"approve" binding:"required"` // approve or reject
	Comment  string `json:"comment" example:"Budget confirmed" default:""` // Comment to record with the decision
}
