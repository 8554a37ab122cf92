package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
	pf_uuid "github.com/procureflow/backend/internal/uuid"
)

type URIID struct {
	ID pf_uuid.UUID `uri:"id" binding:"required" format:"UUID"` // ID of the resource
}

// URISubID addresses a nested resource, e.g. a revision of a budget code.
type URISubID struct {
	URIID
	SubID pf_uuid.UUID `uri:"subId" binding:"required" format:"UUID"` // ID of the nested resource
}

// Pagination contains information about the pagination for collection endpoint responses.
type Pagination struct {
	Count  int   `json:"count" example:"25"`  // The amount of records returned in this response
	Offset uint  `json:"offset" example:"50"` // The offset for the first record returned
	Limit  int   `json:"limit" example:"25"`  // The maximum amount of resources to return for this request
	Total  int64 `json:"total" example:"827"` // The total number of resources matching the query
}

// actor returns the acting identity for the request or writes an
// error response and returns false.
func actor(c *gin.Context) (models.Identity, bool) {
	identity, ok := httputil.Actor(c)
	if !ok {
		c.JSON(status(errActorRequired), httpError{
			Error: errActorRequired.Error(),
		})
		return models.Identity{}, false
	}

	return identity, true
}

// ApprovalStep is the API representation of a single approval chain step.
type ApprovalStep struct {
	Level         uint    `json:"level" example:"1"`                                   // Position in the chain, starting at 1
	Role          string  `json:"role" example:"finance"`                              // Role the step was built for
	ApproverName  string  `json:"approverName" example:"Jane Doe"`                     // Name of the approver at chain build time
	ApproverEmail string  `json:"approverEmail" example:"jane.doe@example.com"`        // Email of the approver at chain build time
	Status        string  `json:"status" example:"pending"`                            // pending, approved or rejected
	Comment       string  `json:"comment" example:"Budget confirmed"`                  // Comment left with the decision
	DecidedBy     string  `json:"decidedBy" example:"jane.doe@example.com"`            // Who recorded the decision
	DecidedAt     *string `json:"decidedAt" example:"2024-03-20T14:42:00Z" extensions:"x-nullable"` // When the decision was recorded
}

func newApprovalStep(model models.ApprovalStep) ApprovalStep {
	step := ApprovalStep{
		Level:         model.Level,
		Role:          model.Role,
		ApproverName:  model.ApproverName,
		ApproverEmail: model.ApproverEmail,
		Status:        string(model.Status),
		Comment:       model.Comment,
		DecidedBy:     model.DecidedBy,
	}

	if model.DecidedAt != nil {
		s := model.DecidedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		step.DecidedAt = &s
	}

	return step
}

func newApprovalSteps(steps []models.ApprovalStep) []ApprovalStep {
	data := make([]ApprovalStep, 0, len(steps))
	for _, step := range steps {
		data = append(data, newApprovalStep(step))
	}

	return data
}
