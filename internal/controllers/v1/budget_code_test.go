package v1_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	v1 "github.com/procureflow/backend/internal/controllers/v1"
	"github.com/procureflow/backend/internal/models"
	"github.com/procureflow/backend/test"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestBudgetCodesOptions() {
	tests := []struct {
		name   string
		id     string // path at the budget codes endpoint to test
		status int    // Expected HTTP status code
	}{
		{"No budget code with this ID", uuid.New().String(), http.StatusNotFound},
		{"Not a valid UUID", "NotParseableAsUUID", http.StatusBadRequest},
		{"Budget code exists", createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{}).Data.ID.String(), http.StatusNoContent},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			path := fmt.Sprintf("%s/%s", "http://example.com/v1/budget-codes", tt.id)
			r := test.Request(t, http.MethodOptions, path, "")
			test.AssertHTTPStatus(t, tt.status, &r)

			if tt.status == http.StatusNoContent {
				assert.Equal(t, "GET, PATCH, DELETE", r.Header().Get("allow"))
			}
		})
	}
}

func (suite *TestSuiteStandard) TestBudgetCodesCreate() {
	response := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{
		Code:        "IT-OPEX-2024",
		Description: "IT operational expenditure",
		Department:  "IT",
		TotalBudget: decimal.NewFromInt(500000),
		FiscalYear:  2024,
	})

	data := response.Data
	suite.Require().NotNil(data)

	suite.Assert().Equal("IT-OPEX-2024", data.Code)
	suite.Assert().True(data.Active)
	suite.Assert().True(data.Remaining.Equal(decimal.NewFromInt(500000)))
	suite.Assert().Equal("healthy", data.UtilizationStatus)
	suite.Assert().Equal(fmt.Sprintf("http://example.com/v1/budget-codes/%s", data.ID), data.Links.Self)
	suite.Assert().Equal(data.Links.Self+"/forecast", data.Links.Forecast)
}

func (suite *TestSuiteStandard) TestBudgetCodesCreateDuplicateCode() {
	createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "IT-CAPEX-2024"})
	createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "IT-CAPEX-2024"}, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestBudgetCodesCreateInvalidBody() {
	r := test.Request(suite.T(), http.MethodPost, "http://example.com/v1/budget-codes", `{ broken`, requesterHeaders())
	test.AssertHTTPStatus(suite.T(), http.StatusBadRequest, &r)
}

func (suite *TestSuiteStandard) TestBudgetCodesGetSingle() {
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{})

	tests := []struct {
		name   string
		id     string
		status int
		method string
	}{
		{"GET Existing budget code", c.Data.ID.String(), http.StatusOK, http.MethodGet},
		{"GET No budget code with this ID", uuid.New().String(), http.StatusNotFound, http.MethodGet},
		{"GET Invalid ID (negative number)", "-56", http.StatusBadRequest, http.MethodGet},
		{"GET Invalid ID (string)", "notaUUID", http.StatusBadRequest, http.MethodGet},
		{"PATCH Invalid ID (string)", "notaUUID", http.StatusBadRequest, http.MethodPatch},
		{"DELETE Invalid ID (string)", "notaUUID", http.StatusBadRequest, http.MethodDelete},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := test.Request(t, tt.method, fmt.Sprintf("http://example.com/v1/budget-codes/%s", tt.id), "")

			var response v1.BudgetCodeResponse
			test.DecodeResponse(t, &r, &response)
			test.AssertHTTPStatus(t, tt.status, &r)
		})
	}
}

func (suite *TestSuiteStandard) TestBudgetCodesGetFilter() {
	_ = createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "IT-CAPEX-2024", Department: "IT", FiscalYear: 2024})
	_ = createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "IT-OPEX-2024", Department: "IT", FiscalYear: 2024})
	_ = createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "FAC-CAPEX-2025", Department: "Facilities", FiscalYear: 2025})

	tests := []struct {
		name  string
		query string
		len   int
	}{
		{"No filter", "", 3},
		{"Code glob", "code=IT-*", 2},
		{"Code glob single", "code=*OPEX*", 1},
		{"Department", "department=Facilities", 1},
		{"Fiscal year", "fiscalYear=2024", 2},
		{"Fiscal year without match", "fiscalYear=2030", 0},
		{"Limit", "limit=2", 2},
		{"Offset", "offset=2", 1},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := test.Request(t, http.MethodGet, fmt.Sprintf("http://example.com/v1/budget-codes?%s", tt.query), "")
			test.AssertHTTPStatus(t, http.StatusOK, &r)

			var response v1.BudgetCodeListResponse
			test.DecodeResponse(t, &r, &response)
			assert.Len(t, response.Data, tt.len)
		})
	}
}

func (suite *TestSuiteStandard) TestBudgetCodesGetFilterPagination() {
	_ = createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "IT-CAPEX-2024", Department: "IT", FiscalYear: 2024})
	_ = createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "IT-OPEX-2024", Department: "IT", FiscalYear: 2024})
	_ = createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "IT-OPEX-2025", Department: "IT", FiscalYear: 2025})
	_ = createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Code: "FAC-CAPEX-2025", Department: "Facilities", FiscalYear: 2025})

	// Total counts every glob match, not the rows of the current page
	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/budget-codes?code=IT-*&limit=2", "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.BudgetCodeListResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Len(response.Data, 2)
	suite.Assert().Equal(int64(3), response.Pagination.Total)
	suite.Assert().Equal(2, response.Pagination.Count)

	// The last page fills up with the remaining matches
	r = test.Request(suite.T(), http.MethodGet, "http://example.com/v1/budget-codes?code=IT-*&limit=2&offset=2", "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	test.DecodeResponse(suite.T(), &r, &response)
	suite.Require().Len(response.Data, 1)
	suite.Assert().Equal(int64(3), response.Pagination.Total)
	suite.Assert().Equal("IT-OPEX-2025", response.Data[0].Code)
}

func (suite *TestSuiteStandard) TestBudgetCodesUpdate() {
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Description: "Old description"})

	r := test.Request(suite.T(), http.MethodPatch, c.Data.Links.Self, map[string]any{
		"description": "New description",
	})
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.BudgetCodeResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal("New description", response.Data.Description)
}

func (suite *TestSuiteStandard) TestBudgetCodesUpdateIgnoresTotalBudget() {
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{TotalBudget: decimal.NewFromInt(1000000)})

	// The total budget is only changed through revisions
	r := test.Request(suite.T(), http.MethodPatch, c.Data.Links.Self, map[string]any{
		"totalBudget": "999",
	})
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	r = test.Request(suite.T(), http.MethodGet, c.Data.Links.Self, "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.BudgetCodeResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().True(response.Data.TotalBudget.Equal(decimal.NewFromInt(1000000)))
}

func (suite *TestSuiteStandard) TestBudgetCodesDeactivate() {
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{})

	r := test.Request(suite.T(), http.MethodDelete, c.Data.Links.Self, "")
	test.AssertHTTPStatus(suite.T(), http.StatusNoContent, &r)

	// The code and its history survive deactivation
	r = test.Request(suite.T(), http.MethodGet, c.Data.Links.Self, "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.BudgetCodeResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().False(response.Data.Active)
}

func (suite *TestSuiteStandard) TestBudgetCodesForecastUnused() {
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{})

	r := test.Request(suite.T(), http.MethodGet, c.Data.Links.Forecast, "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.ForecastResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Require().NotNil(response.Data)
	suite.Assert().Equal(models.ForecastUnused, response.Data.Status)
}

func (suite *TestSuiteStandard) TestBudgetCodesUtilization() {
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{})

	r := test.Request(suite.T(), http.MethodGet, c.Data.Links.Utilization, "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.UtilizationResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Require().NotNil(response.Data)
	suite.Assert().True(response.Data.Used.IsZero())
	suite.Assert().True(response.Data.Remaining.Equal(decimal.NewFromInt(1000000)))
	suite.Assert().Equal("healthy", response.Data.Status)
}

func (suite *TestSuiteStandard) TestBudgetCodesTransactionsEmpty() {
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{})

	r := test.Request(suite.T(), http.MethodGet, c.Data.Links.Transactions, "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.LedgerTransactionListResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Empty(response.Data)
}

func (suite *TestSuiteStandard) TestBudgetRevisionFlow() {
	users := createTestApprovers(suite.T(), "IT")
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{
		Department:  "IT",
		TotalBudget: decimal.NewFromInt(1000000),
	})

	r := test.Request(suite.T(), http.MethodPost, c.Data.Links.Revisions, v1.BudgetRevisionEditable{
		RequestedBudget: decimal.NewFromInt(1500000),
		Reason:          "Scope increase",
	}, requesterHeaders())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var revision v1.BudgetRevisionResponse
	test.DecodeResponse(suite.T(), &r, &revision)
	require.NotNil(suite.T(), revision.Data)
	suite.Assert().Equal("pending", revision.Data.Status)
	suite.Require().Len(revision.Data.Steps, 2)

	decisionURL := fmt.Sprintf("%s/%s/decision", c.Data.Links.Revisions, revision.Data.ID)

	// The head cannot act before finance
	r = test.Request(suite.T(), http.MethodPost, decisionURL, v1.DecisionEditable{Decision: "approve"}, roleHeaders(users[models.RoleHead]))
	test.AssertHTTPStatus(suite.T(), http.StatusForbidden, &r)

	r = test.Request(suite.T(), http.MethodPost, decisionURL, v1.DecisionEditable{Decision: "approve"}, roleHeaders(users[models.RoleFinance]))
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	r = test.Request(suite.T(), http.MethodPost, decisionURL, v1.DecisionEditable{Decision: "approve", Comment: "Signed off"}, roleHeaders(users[models.RoleHead]))
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	test.DecodeResponse(suite.T(), &r, &revision)
	suite.Assert().Equal("approved", revision.Data.Status)

	// The new total budget applies
	r = test.Request(suite.T(), http.MethodGet, c.Data.Links.Self, "")
	var code v1.BudgetCodeResponse
	test.DecodeResponse(suite.T(), &r, &code)
	suite.Assert().True(code.Data.TotalBudget.Equal(decimal.NewFromInt(1500000)))

	// A decided revision rejects further decisions
	r = test.Request(suite.T(), http.MethodPost, decisionURL, v1.DecisionEditable{Decision: "approve"}, roleHeaders(users[models.RoleHead]))
	test.AssertHTTPStatus(suite.T(), http.StatusConflict, &r)
}

func (suite *TestSuiteStandard) TestBudgetRevisionInvalidDecision() {
	users := createTestApprovers(suite.T(), "IT")
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Department: "IT"})

	r := test.Request(suite.T(), http.MethodPost, c.Data.Links.Revisions, v1.BudgetRevisionEditable{
		RequestedBudget: decimal.NewFromInt(2000000),
	}, requesterHeaders())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var revision v1.BudgetRevisionResponse
	test.DecodeResponse(suite.T(), &r, &revision)

	decisionURL := fmt.Sprintf("%s/%s/decision", c.Data.Links.Revisions, revision.Data.ID)

	r = test.Request(suite.T(), http.MethodPost, decisionURL, v1.DecisionEditable{Decision: "maybe"}, roleHeaders(users[models.RoleFinance]))
	test.AssertHTTPStatus(suite.T(), http.StatusBadRequest, &r)
}

func (suite *TestSuiteStandard) TestBudgetRevisionRequiresActor() {
	createTestApprovers(suite.T(), "IT")
	c := createTestBudgetCode(suite.T(), v1.BudgetCodeEditable{Department: "IT"})

	r := test.Request(suite.T(), http.MethodPost, c.Data.Links.Revisions, v1.BudgetRevisionEditable{
		RequestedBudget: decimal.NewFromInt(2000000),
	})
	test.AssertHTTPStatus(suite.T(), http.StatusBadRequest, &r)
}
