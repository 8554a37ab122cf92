package models_test

import (
	"github.com/procureflow/backend/internal/models"
)

func (suite *TestSuiteStandard) TestSubmitProjectPlan() {
	suite.createTestApprovers("IT")
	plan := suite.createTestProjectPlan(models.ProjectPlan{Department: "IT"})

	requester := models.Identity{Email: "requester@example.com"}

	submitted, err := models.SubmitProjectPlan(plan.ID, requester)
	suite.Require().NoError(err)

	suite.Assert().Equal(models.ProjectPlanPendingReview, submitted.Status)
	suite.Assert().NotNil(submitted.SubmittedAt)
	suite.Require().Len(submitted.Steps, 2)
	suite.Assert().Equal(models.RoleSupervisor, submitted.Steps[0].Role)
	suite.Assert().Equal(models.RoleHead, submitted.Steps[1].Role)

	_, err = models.SubmitProjectPlan(plan.ID, requester)
	suite.Assert().ErrorIs(err, models.ErrInvalidTransition)
}

func (suite *TestSuiteStandard) TestSubmitProjectPlanRequesterOnly() {
	suite.createTestApprovers("IT")
	plan := suite.createTestProjectPlan(models.ProjectPlan{Department: "IT"})

	_, err := models.SubmitProjectPlan(plan.ID, models.Identity{Email: "somebody.else@example.com"})
	suite.Assert().ErrorIs(err, models.ErrUnauthorized)
}

func (suite *TestSuiteStandard) TestProjectPlanApproval() {
	users := suite.createTestApprovers("IT")
	plan := suite.createTestProjectPlan(models.ProjectPlan{Department: "IT"})

	_, err := models.SubmitProjectPlan(plan.ID, models.Identity{Email: "requester@example.com"})
	suite.Require().NoError(err)

	p, err := models.DecideProjectPlan(plan.ID, users[models.RoleSupervisor].Identity(), models.DecisionApprove, "")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.ProjectPlanPendingReview, p.Status)

	p, err = models.DecideProjectPlan(plan.ID, users[models.RoleHead].Identity(), models.DecisionApprove, "go ahead")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.ProjectPlanApproved, p.Status)
	suite.Assert().NotNil(p.DecidedAt)

	// Approving a plan reserves nothing on any ledger
	var count int64
	suite.Require().NoError(models.DB.Model(&models.Allocation{}).Count(&count).Error)
	suite.Assert().Zero(count)

	_, err = models.DecideProjectPlan(plan.ID, users[models.RoleHead].Identity(), models.DecisionApprove, "")
	suite.Assert().ErrorIs(err, models.ErrAlreadyDecided)
}

func (suite *TestSuiteStandard) TestProjectPlanRejection() {
	users := suite.createTestApprovers("IT")
	plan := suite.createTestProjectPlan(models.ProjectPlan{Department: "IT"})

	_, err := models.SubmitProjectPlan(plan.ID, models.Identity{Email: "requester@example.com"})
	suite.Require().NoError(err)

	p, err := models.DecideProjectPlan(plan.ID, users[models.RoleSupervisor].Identity(), models.DecisionReject, "budget year is closed")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.ProjectPlanRejected, p.Status)

	_, err = models.DecideProjectPlan(plan.ID, users[models.RoleHead].Identity(), models.DecisionApprove, "")
	suite.Assert().ErrorIs(err, models.ErrAlreadyDecided)
}

func (suite *TestSuiteStandard) TestDecideProjectPlanDraft() {
	users := suite.createTestApprovers("IT")
	plan := suite.createTestProjectPlan(models.ProjectPlan{Department: "IT"})

	_, err := models.DecideProjectPlan(plan.ID, users[models.RoleSupervisor].Identity(), models.DecisionApprove, "")
	suite.Assert().ErrorIs(err, models.ErrInvalidTransition)
}
