package models_test

import (
	"github.com/google/uuid"
	"github.com/procureflow/backend/internal/models"
)

func (suite *TestSuiteStandard) TestBuildChain() {
	suite.createTestApprovers("IT")
	ownerID := uuid.New()

	steps, err := models.BuildChain(models.OwnerRequisition, ownerID, models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)
	suite.Require().Len(steps, 4)

	// Levels are contiguous and ordered, roles follow the policy
	expected := []string{models.RoleSupervisor, models.RoleFinance, models.RoleSupplyChain, models.RoleHead}
	for i, step := range steps {
		suite.Assert().Equal(uint(i+1), step.Level)
		suite.Assert().Equal(expected[i], step.Role)
		suite.Assert().Equal(models.ApprovalPending, step.Status)
		suite.Assert().NotEmpty(step.ApproverEmail)
	}
}

func (suite *TestSuiteStandard) TestBuildChainUnresolvedRole() {
	// No finance user exists
	suite.createTestUser(models.User{Role: models.RoleSupervisor, Department: "IT"})

	_, err := models.BuildChain(models.OwnerRequisition, uuid.New(), models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Assert().ErrorIs(err, models.ErrUnresolvedRole)
}

func (suite *TestSuiteStandard) TestBuildChainDepartmentFallback() {
	// An organization-wide finance user covers departments without their own
	orgFinance := suite.createTestUser(models.User{Role: models.RoleFinance, Department: ""})
	deptFinance := suite.createTestUser(models.User{Role: models.RoleFinance, Department: "IT"})

	steps, err := models.BuildChain(models.OwnerBudgetRevision, uuid.New(), models.RequestTypeBudgetRevision, "IT", models.DefaultPolicy, models.DefaultDirectory)
	if suite.Assert().ErrorIs(err, models.ErrUnresolvedRole) {
		// head is missing, only the resolution order matters here
		_ = steps
	}

	suite.createTestUser(models.User{Role: models.RoleHead, Department: ""})

	steps, err = models.BuildChain(models.OwnerBudgetRevision, uuid.New(), models.RequestTypeBudgetRevision, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)
	suite.Require().Len(steps, 2)

	suite.Assert().Equal(deptFinance.Email, steps[0].ApproverEmail)

	steps, err = models.BuildChain(models.OwnerBudgetRevision, uuid.New(), models.RequestTypeBudgetRevision, "Facilities", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)
	suite.Assert().Equal(orgFinance.Email, steps[0].ApproverEmail)
}

func (suite *TestSuiteStandard) TestChainPolicyOverrides() {
	policy := models.DefaultChainPolicy()
	policy.Overrides = map[string]map[string][]string{
		"IT": {
			models.RequestTypeProjectPlan: {models.RoleHead},
		},
	}

	suite.Assert().Equal([]string{models.RoleHead}, policy.RolesFor(models.RequestTypeProjectPlan, "IT"))
	suite.Assert().Equal([]string{models.RoleSupervisor, models.RoleHead}, policy.RolesFor(models.RequestTypeProjectPlan, "Facilities"))
}

func (suite *TestSuiteStandard) TestCurrentStep() {
	users := suite.createTestApprovers("IT")
	steps, err := models.BuildChain(models.OwnerRequisition, uuid.New(), models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)

	current := models.CurrentStep(steps)
	suite.Require().NotNil(current)
	suite.Assert().Equal(uint(1), current.Level)
	suite.Assert().Equal(users[models.RoleSupervisor].Email, current.ApproverEmail)
}

func (suite *TestSuiteStandard) TestDecideAdvancesChain() {
	users := suite.createTestApprovers("IT")
	steps, err := models.BuildChain(models.OwnerRequisition, uuid.New(), models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)

	step, outcome, err := models.Decide(steps, users[models.RoleSupervisor].Identity(), models.DecisionApprove, "looks fine")
	suite.Require().NoError(err)

	suite.Assert().Equal(models.ChainAdvanced, outcome)
	suite.Assert().Equal(models.ApprovalApproved, step.Status)
	suite.Assert().Equal("looks fine", step.Comment)
	suite.Assert().NotNil(step.DecidedAt)

	// Control passed to the finance step
	current := models.CurrentStep(steps)
	suite.Require().NotNil(current)
	suite.Assert().Equal(models.RoleFinance, current.Role)
}

func (suite *TestSuiteStandard) TestDecideCompletesChain() {
	users := suite.createTestApprovers("IT")
	steps, err := models.BuildChain(models.OwnerProjectPlan, uuid.New(), models.RequestTypeProjectPlan, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)
	suite.Require().Len(steps, 2)

	_, outcome, err := models.Decide(steps, users[models.RoleSupervisor].Identity(), models.DecisionApprove, "")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.ChainAdvanced, outcome)

	_, outcome, err = models.Decide(steps, users[models.RoleHead].Identity(), models.DecisionApprove, "")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.ChainCompleted, outcome)

	suite.Assert().Nil(models.CurrentStep(steps))

	// The exhausted chain rejects further decisions
	_, _, err = models.Decide(steps, users[models.RoleHead].Identity(), models.DecisionApprove, "")
	suite.Assert().ErrorIs(err, models.ErrAlreadyDecided)
}

func (suite *TestSuiteStandard) TestDecideRejectionIsTerminal() {
	users := suite.createTestApprovers("IT")
	steps, err := models.BuildChain(models.OwnerRequisition, uuid.New(), models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)

	_, outcome, err := models.Decide(steps, users[models.RoleSupervisor].Identity(), models.DecisionApprove, "")
	suite.Require().NoError(err)
	suite.Require().Equal(models.ChainAdvanced, outcome)

	step, outcome, err := models.Decide(steps, users[models.RoleFinance].Identity(), models.DecisionReject, "no budget")
	suite.Require().NoError(err)

	suite.Assert().Equal(models.ChainRejected, outcome)
	suite.Assert().Equal(models.ApprovalRejected, step.Status)

	// Later steps stay untouched and the chain accepts nothing further
	suite.Assert().Equal(models.ApprovalPending, steps[2].Status)
	suite.Assert().Equal(models.ApprovalPending, steps[3].Status)
	suite.Assert().Nil(models.CurrentStep(steps))

	_, _, err = models.Decide(steps, users[models.RoleSupplyChain].Identity(), models.DecisionApprove, "")
	suite.Assert().ErrorIs(err, models.ErrAlreadyDecided)
}

func (suite *TestSuiteStandard) TestDecideUnauthorized() {
	users := suite.createTestApprovers("IT")
	steps, err := models.BuildChain(models.OwnerRequisition, uuid.New(), models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)

	// The finance approver cannot act before the supervisor
	_, _, err = models.Decide(steps, users[models.RoleFinance].Identity(), models.DecisionApprove, "")
	suite.Assert().ErrorIs(err, models.ErrUnauthorized)

	suite.Assert().Equal(models.ApprovalPending, steps[0].Status)
}

func (suite *TestSuiteStandard) TestDecideAdminOverride() {
	suite.createTestApprovers("IT")
	admin := suite.createTestUser(models.User{Role: models.RoleAdmin})

	steps, err := models.BuildChain(models.OwnerRequisition, uuid.New(), models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)

	step, outcome, err := models.Decide(steps, admin.Identity(), models.DecisionApprove, "delegated")
	suite.Require().NoError(err)

	suite.Assert().Equal(models.ChainAdvanced, outcome)
	suite.Assert().Equal(admin.Email, step.DecidedBy)
}

func (suite *TestSuiteStandard) TestChainSnapshotsFrozen() {
	users := suite.createTestApprovers("IT")
	steps, err := models.BuildChain(models.OwnerRequisition, uuid.New(), models.RequestTypeRequisition, "IT", models.DefaultPolicy, models.DefaultDirectory)
	suite.Require().NoError(err)

	original := users[models.RoleSupervisor]

	// The supervisor role changes hands after the chain was built
	suite.Require().NoError(models.DB.Model(&models.User{}).
		Where("id = ?", original.ID).
		Update("active", false).Error)
	suite.createTestUser(models.User{Role: models.RoleSupervisor, Department: "IT", Email: "new.supervisor@example.com"})

	// The in-flight chain keeps the frozen snapshot
	current := models.CurrentStep(steps)
	suite.Require().NotNil(current)
	suite.Assert().Equal(original.Email, current.ApproverEmail)

	// And only the frozen approver may act
	_, outcome, err := models.Decide(steps, original.Identity(), models.DecisionApprove, "")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.ChainAdvanced, outcome)
}
