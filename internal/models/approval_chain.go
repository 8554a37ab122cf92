package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalStatus is the status of a single approval step.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Decision is the verdict of an approver on the current step.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// OwnerType identifies the kind of workflow a chain belongs to.
type OwnerType string

const (
	OwnerRequisition    OwnerType = "requisition"
	OwnerProjectPlan    OwnerType = "project_plan"
	OwnerBudgetRevision OwnerType = "budget_revision"
)

// Request types known to the chain policies.
const (
	RequestTypeRequisition    = "requisition"
	RequestTypeProjectPlan    = "project_plan"
	RequestTypeBudgetRevision = "budget_revision"
)

// ApprovalStep is one gate in an approval chain. The approver identity is a
// snapshot taken when the chain was built.
type ApprovalStep struct {
	DefaultModel
	OwnerType          OwnerType `gorm:"index:idx_approval_owner"`
	OwnerID            uuid.UUID `gorm:"index:idx_approval_owner"`
	Level              uint
	Role               string
	ApproverName       string
	ApproverEmail      string
	ApproverDepartment string
	Status             ApprovalStatus `gorm:"default:pending"`
	Comment            string
	DecidedBy          string
	DecidedAt          *time.Time
}

// ChainPolicy maps a request type to the ordered roles that must sign off on
// it. Overrides allow departments to deviate from the organization-wide
// default.
type ChainPolicy struct {
	Roles     map[string][]string
	Overrides map[string]map[string][]string // department -> request type -> roles
}

// DefaultChainPolicy returns the organization-wide approval policy.
func DefaultChainPolicy() ChainPolicy {
	return ChainPolicy{
		Roles: map[string][]string{
			RequestTypeRequisition:    {RoleSupervisor, RoleFinance, RoleSupplyChain, RoleHead},
			RequestTypeProjectPlan:    {RoleSupervisor, RoleHead},
			RequestTypeBudgetRevision: {RoleFinance, RoleHead},
		},
	}
}

// RolesFor returns the ordered roles for a request type, honoring
// department overrides.
func (p ChainPolicy) RolesFor(requestType, department string) []string {
	if byType, ok := p.Overrides[department]; ok {
		if roles, ok := byType[requestType]; ok {
			return roles
		}
	}

	return p.Roles[requestType]
}

// DefaultPolicy and DefaultDirectory are used by the package-level workflow
// operations. Tests replace them with fixtures.
var (
	DefaultPolicy              = DefaultChainPolicy()
	DefaultDirectory Directory = DBDirectory{}
)

// BuildChain resolves the approver roles for a request through the directory
// and freezes the resolved identities into ordered approval steps.
//
// Resolution happens exactly once, at submission time. Later changes to who
// holds a role do not retroactively change an in-flight chain.
func BuildChain(ownerType OwnerType, ownerID uuid.UUID, requestType, department string, policy ChainPolicy, directory Directory) ([]ApprovalStep, error) {
	roles := policy.RolesFor(requestType, department)

	steps := make([]ApprovalStep, 0, len(roles))
	for i, role := range roles {
		identity, err := directory.Resolve(role, department)
		if err != nil {
			return nil, err
		}

		steps = append(steps, ApprovalStep{
			OwnerType:          ownerType,
			OwnerID:            ownerID,
			Level:              uint(i + 1),
			Role:               role,
			ApproverName:       identity.Name,
			ApproverEmail:      identity.Email,
			ApproverDepartment: identity.Department,
			Status:             ApprovalPending,
		})
	}

	return steps, nil
}

// CurrentStep returns the step whose approver has to act next: the
// lowest-level step that is still pending.
//
// It returns nil if the chain is exhausted (fully approved) or terminated
// (an earlier step was rejected). "Current" is always derived by scanning
// the chain, never stored, so it cannot desynchronize from the steps.
func CurrentStep(steps []ApprovalStep) *ApprovalStep {
	var current *ApprovalStep

	for i := range steps {
		if steps[i].Status == ApprovalRejected {
			return nil
		}

		if steps[i].Status != ApprovalPending {
			continue
		}

		if current == nil || steps[i].Level < current.Level {
			current = &steps[i]
		}
	}

	return current
}

// ChainOutcome describes the chain state after a decision was applied.
type ChainOutcome string

const (
	// ChainAdvanced means the decision passed control to the next step.
	ChainAdvanced ChainOutcome = "advanced"
	// ChainCompleted means the final step approved, the chain is exhausted.
	ChainCompleted ChainOutcome = "completed"
	// ChainRejected means the chain is terminal, later steps stay untouched.
	ChainRejected ChainOutcome = "rejected"
)

// Decide stamps the current step of the chain with the actor's decision.
//
// The actor must be the approver of the current step. Users with the admin
// role may decide on behalf of any approver. A rejection terminates the
// chain; steps after the rejected one are never forced through.
func Decide(steps []ApprovalStep, actor Identity, decision Decision, comment string) (*ApprovalStep, ChainOutcome, error) {
	current := CurrentStep(steps)
	if current == nil {
		return nil, "", ErrAlreadyDecided
	}

	if actor.Email != current.ApproverEmail && actor.Role != RoleAdmin {
		return nil, "", ErrUnauthorized
	}

	now := time.Now().In(time.UTC)
	current.Comment = comment
	current.DecidedBy = actor.Email
	current.DecidedAt = &now

	if decision == DecisionReject {
		current.Status = ApprovalRejected
		return current, ChainRejected, nil
	}

	current.Status = ApprovalApproved

	if CurrentStep(steps) == nil {
		return current, ChainCompleted, nil
	}

	return current, ChainAdvanced, nil
}

// loadSteps loads the approval chain of a workflow instance in level order.
func loadSteps(tx *gorm.DB, ownerType OwnerType, ownerID uuid.UUID) ([]ApprovalStep, error) {
	var steps []ApprovalStep
	err := tx.
		Where(&ApprovalStep{OwnerType: ownerType, OwnerID: ownerID}).
		Order("level ASC").
		Find(&steps).Error

	return steps, err
}
