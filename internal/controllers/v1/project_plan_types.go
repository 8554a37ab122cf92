package v1

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
	"github.com/shopspring/decimal"
)

// ProjectPlanEditable represents all user configurable parameters
type ProjectPlanEditable struct {
	Title           string          `json:"title" example:"Office refurbishment"`                 // Short title of the plan
	Description     string          `json:"description" example:"New desks for floor 3" default:""` // What the project covers
	Department      string          `json:"department" example:"Facilities" default:""`           // Department raising the plan
	EstimatedBudget decimal.Decimal `json:"estimatedBudget" example:"150000"`                     // Estimated total cost
}

func (editable ProjectPlanEditable) model() models.ProjectPlan {
	return models.ProjectPlan{
		Title:           editable.Title,
		Description:     editable.Description,
		Department:      editable.Department,
		EstimatedBudget: editable.EstimatedBudget,
	}
}

type ProjectPlanLinks struct {
	Self     string `json:"self" example:"https://example.com/v1/project-plans/3b1ea324-d438-4419-882a-2fc91d71772f"`              // The project plan itself
	Submit   string `json:"submit" example:"https://example.com/v1/project-plans/3b1ea324-d438-4419-882a-2fc91d71772f/submit"`     // Submit the draft for review
	Decision string `json:"decision" example:"https://example.com/v1/project-plans/3b1ea324-d438-4419-882a-2fc91d71772f/decision"` // Apply the next approval decision
}

type ProjectPlan struct {
	models.DefaultModel
	ProjectPlanEditable
	Links ProjectPlanLinks `json:"links"`

	// These fields are managed by the workflow
	RequesterName  string     `json:"requesterName" example:"Jane Doe"`                                   // Who raised the plan
	RequesterEmail string     `json:"requesterEmail" example:"jane.doe@example.com"`                      // Email of the requester
	Status         string     `json:"status" example:"pending_review"`                                    // Workflow stage
	SubmittedAt    *time.Time `json:"submittedAt" example:"2024-03-20T14:42:00Z" extensions:"x-nullable"` // When the draft entered review
	DecidedAt      *time.Time `json:"decidedAt" extensions:"x-nullable"`                                  // When the final decision was recorded

	Steps []ApprovalStep `json:"steps"` // Approval chain, empty for drafts
}

func newProjectPlan(c *gin.Context, model models.ProjectPlan) ProjectPlan {
	url := httputil.RequestHost(c)
	self := fmt.Sprintf("%s/v1/project-plans/%s", url, model.ID)

	return ProjectPlan{
		DefaultModel: model.DefaultModel,
		ProjectPlanEditable: ProjectPlanEditable{
			Title:           model.Title,
			Description:     model.Description,
			Department:      model.Department,
			EstimatedBudget: model.EstimatedBudget,
		},
		Links: ProjectPlanLinks{
			Self:     self,
			Submit:   self + "/submit",
			Decision: self + "/decision",
		},
		RequesterName:  model.RequesterName,
		RequesterEmail: model.RequesterEmail,
		Status:         string(model.Status),
		SubmittedAt:    model.SubmittedAt,
		DecidedAt:      model.DecidedAt,

		Steps: newApprovalSteps(model.Steps),
	}
}

type ProjectPlanListResponse struct {
	Data       []ProjectPlan `json:"data"`                                                          // List of project plans
	Error      *string       `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination   `json:"pagination"`                                                    // Pagination information
}

type ProjectPlanResponse struct {
	Data  *ProjectPlan `json:"data"`                                                          // Data for the project plan
	Error *string      `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type ProjectPlanQueryFilter struct {
	Department     string `form:"department"`                 // By department
	Status         string `form:"status"`                     // By workflow stage
	RequesterEmail string `form:"requester"`                  // By email of the requester
	Offset         uint   `form:"offset" filterField:"false"` // The offset of the first plan returned. Defaults to 0.
	Limit          int    `form:"limit" filterField:"false"`  // Maximum number of plans to return. Defaults to 50.
}

func (f ProjectPlanQueryFilter) model() models.ProjectPlan {
	return models.ProjectPlan{
		Department:     f.Department,
		Status:         models.ProjectPlanStatus(f.Status),
		RequesterEmail: f.RequesterEmail,
	}
}
