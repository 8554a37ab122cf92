package models_test

import (
	"github.com/google/uuid"
	"github.com/procureflow/backend/internal/models"
	"github.com/shopspring/decimal"
)

// createTestRevisionApprovers seeds the budget revision chain roles.
func (suite *TestSuiteStandard) createTestRevisionApprovers(department string) map[string]models.User {
	users := make(map[string]models.User)

	for _, role := range []string{models.RoleFinance, models.RoleHead} {
		users[role] = suite.createTestUser(models.User{
			Name:       role + " " + department,
			Role:       role,
			Department: department,
		})
	}

	return users
}

func (suite *TestSuiteStandard) TestRequestBudgetRevision() {
	suite.createTestRevisionApprovers("IT")
	code := suite.createTestBudgetCode(models.BudgetCode{
		TotalBudget: decimal.NewFromInt(1000000),
		Department:  "IT",
	})

	requester := models.Identity{Name: "Jane Doe", Email: "jane.doe@example.com"}

	revision, err := models.RequestBudgetRevision(code.ID, decimal.NewFromInt(1500000), "scope increase", requester)
	suite.Require().NoError(err)

	suite.Assert().Equal(models.RevisionPending, revision.Status)
	suite.Assert().True(revision.PreviousBudget.Equal(decimal.NewFromInt(1000000)))
	suite.Assert().True(revision.ChangeAmount.Equal(decimal.NewFromInt(500000)))
	suite.Assert().Equal("jane.doe@example.com", revision.RequestedBy)
	suite.Require().Len(revision.Steps, 2)
	suite.Assert().Equal(models.RoleFinance, revision.Steps[0].Role)
	suite.Assert().Equal(models.RoleHead, revision.Steps[1].Role)

	// The budget does not change until the chain completes
	var reloaded models.BudgetCode
	suite.Require().NoError(models.DB.First(&reloaded, "id = ?", code.ID).Error)
	suite.Assert().True(reloaded.TotalBudget.Equal(decimal.NewFromInt(1000000)))
}

func (suite *TestSuiteStandard) TestRequestBudgetRevisionUnchangedAmount() {
	suite.createTestRevisionApprovers("IT")
	code := suite.createTestBudgetCode(models.BudgetCode{
		TotalBudget: decimal.NewFromInt(1000000),
		Department:  "IT",
	})

	_, err := models.RequestBudgetRevision(code.ID, decimal.NewFromInt(1000000), "no change", models.Identity{Email: "x@example.com"})
	suite.Assert().ErrorIs(err, models.ErrInvalidAmount)
}

func (suite *TestSuiteStandard) TestBudgetRevisionApproval() {
	users := suite.createTestRevisionApprovers("IT")
	code := suite.createTestBudgetCode(models.BudgetCode{
		TotalBudget: decimal.NewFromInt(1000000),
		Department:  "IT",
	})

	revision, err := models.RequestBudgetRevision(code.ID, decimal.NewFromInt(1500000), "scope increase", models.Identity{Email: "jane.doe@example.com"})
	suite.Require().NoError(err)

	revision, err = models.ApproveBudgetRevision(code.ID, revision.ID, users[models.RoleFinance].Identity(), "")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.RevisionPending, revision.Status)

	revision, err = models.ApproveBudgetRevision(code.ID, revision.ID, users[models.RoleHead].Identity(), "")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.RevisionApproved, revision.Status)
	suite.Assert().NotNil(revision.DecidedAt)

	// The new budget applies and the change is recorded in the history
	var reloaded models.BudgetCode
	suite.Require().NoError(models.DB.First(&reloaded, "id = ?", code.ID).Error)
	suite.Assert().True(reloaded.TotalBudget.Equal(decimal.NewFromInt(1500000)))

	var history []models.BudgetHistory
	suite.Require().NoError(models.DB.Where("budget_code_id = ?", code.ID).Find(&history).Error)
	suite.Require().Len(history, 1)
	suite.Assert().True(history[0].PreviousBudget.Equal(decimal.NewFromInt(1000000)))
	suite.Assert().True(history[0].NewBudget.Equal(decimal.NewFromInt(1500000)))
}

func (suite *TestSuiteStandard) TestBudgetRevisionRejection() {
	users := suite.createTestRevisionApprovers("IT")
	code := suite.createTestBudgetCode(models.BudgetCode{
		TotalBudget: decimal.NewFromInt(1000000),
		Department:  "IT",
	})

	revision, err := models.RequestBudgetRevision(code.ID, decimal.NewFromInt(2000000), "scope increase", models.Identity{Email: "jane.doe@example.com"})
	suite.Require().NoError(err)

	revision, err = models.RejectBudgetRevision(code.ID, revision.ID, users[models.RoleFinance].Identity(), "not this year")
	suite.Require().NoError(err)
	suite.Assert().Equal(models.RevisionRejected, revision.Status)

	var reloaded models.BudgetCode
	suite.Require().NoError(models.DB.First(&reloaded, "id = ?", code.ID).Error)
	suite.Assert().True(reloaded.TotalBudget.Equal(decimal.NewFromInt(1000000)))

	// A decided revision rejects further decisions
	_, err = models.ApproveBudgetRevision(code.ID, revision.ID, users[models.RoleHead].Identity(), "")
	suite.Assert().ErrorIs(err, models.ErrAlreadyDecided)
}

func (suite *TestSuiteStandard) TestBudgetRevisionBelowUsed() {
	users := suite.createTestRevisionApprovers("IT")
	code := suite.createTestBudgetCode(models.BudgetCode{
		TotalBudget: decimal.NewFromInt(1000000),
		Department:  "IT",
	})

	// Spend 600k
	requestID := uuid.New()
	_, _, err := models.ReserveFunds(code.ID, models.ReserveParams{
		RequestID: requestID,
		Amount:    decimal.NewFromInt(600000),
		Actor:     "finance@example.com",
	})
	suite.Require().NoError(err)
	_, _, err = models.DeductFunds(code.ID, models.DeductParams{
		RequestID:      requestID,
		DisbursementID: "INV-1",
		Amount:         decimal.NewFromInt(600000),
		Actor:          "buyer@example.com",
	})
	suite.Require().NoError(err)

	// A revision below the spent amount passes the chain but cannot apply
	revision, err := models.RequestBudgetRevision(code.ID, decimal.NewFromInt(500000), "cut", models.Identity{Email: "jane.doe@example.com"})
	suite.Require().NoError(err)

	_, err = models.ApproveBudgetRevision(code.ID, revision.ID, users[models.RoleFinance].Identity(), "")
	suite.Require().NoError(err)

	_, err = models.ApproveBudgetRevision(code.ID, revision.ID, users[models.RoleHead].Identity(), "")
	suite.Assert().ErrorIs(err, models.ErrBudgetBelowUsed)

	var reloaded models.BudgetCode
	suite.Require().NoError(models.DB.First(&reloaded, "id = ?", code.ID).Error)
	suite.Assert().True(reloaded.TotalBudget.Equal(decimal.NewFromInt(1000000)))
}
