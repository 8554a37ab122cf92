package v1_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	v1 "github.com/procureflow/backend/internal/controllers/v1"
	"github.com/procureflow/backend/internal/models"
	"github.com/procureflow/backend/test"
	"github.com/stretchr/testify/assert"
)

func (suite *TestSuiteStandard) TestUsersOptions() {
	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"No user with this ID", uuid.New().String(), http.StatusNotFound},
		{"Not a valid UUID", "NotParseableAsUUID", http.StatusBadRequest},
		{"User exists", createTestUser(suite.T(), v1.UserEditable{Role: models.RoleFinance, Department: "IT"}).Data.ID.String(), http.StatusNoContent},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			path := fmt.Sprintf("%s/%s", "http://example.com/v1/users", tt.id)
			r := test.Request(t, http.MethodOptions, path, "")
			test.AssertHTTPStatus(t, tt.status, &r)

			if tt.status == http.StatusNoContent {
				assert.Equal(t, "GET, PATCH, DELETE", r.Header().Get("allow"))
			}
		})
	}
}

func (suite *TestSuiteStandard) TestUsersCreate() {
	response := createTestUser(suite.T(), v1.UserEditable{
		Name:       "Jane Doe",
		Email:      "jane.doe@example.com",
		Role:       models.RoleFinance,
		Department: "IT",
	})

	data := response.Data
	suite.Require().NotNil(data)

	suite.Assert().Equal("jane.doe@example.com", data.Email)
	suite.Assert().True(data.Active)
	suite.Assert().Equal(fmt.Sprintf("http://example.com/v1/users/%s", data.ID), data.Links.Self)
}

func (suite *TestSuiteStandard) TestUsersCreateDuplicateEmail() {
	createTestUser(suite.T(), v1.UserEditable{Email: "jane.doe@example.com", Role: models.RoleFinance})
	createTestUser(suite.T(), v1.UserEditable{Email: "jane.doe@example.com", Role: models.RoleHead}, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestUsersUpdate() {
	user := createTestUser(suite.T(), v1.UserEditable{Role: models.RoleFinance, Department: "IT"})

	r := test.Request(suite.T(), http.MethodPatch, user.Data.Links.Self, map[string]any{
		"department": "Facilities",
	})
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.UserResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal("Facilities", response.Data.Department)
}

func (suite *TestSuiteStandard) TestUsersDeactivate() {
	user := createTestUser(suite.T(), v1.UserEditable{Role: models.RoleFinance, Department: "IT"})

	r := test.Request(suite.T(), http.MethodDelete, user.Data.Links.Self, "")
	test.AssertHTTPStatus(suite.T(), http.StatusNoContent, &r)

	// Deactivated users are retained for the audit trail
	r = test.Request(suite.T(), http.MethodGet, user.Data.Links.Self, "")
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.UserResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().False(response.Data.Active)
}

func (suite *TestSuiteStandard) TestUsersGetFilter() {
	_ = createTestUser(suite.T(), v1.UserEditable{Email: "finance.it@example.com", Role: models.RoleFinance, Department: "IT"})
	_ = createTestUser(suite.T(), v1.UserEditable{Email: "head.it@example.com", Role: models.RoleHead, Department: "IT"})
	_ = createTestUser(suite.T(), v1.UserEditable{Email: "finance.org@example.com", Role: models.RoleFinance})

	tests := []struct {
		name  string
		query string
		len   int
	}{
		{"No filter", "", 3},
		{"Role", "role=finance", 2},
		{"Department", "department=IT", 2},
		{"Email", "email=head.it@example.com", 1},
		{"Role without match", "role=supervisor", 0},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := test.Request(t, http.MethodGet, fmt.Sprintf("http://example.com/v1/users?%s", tt.query), "")
			test.AssertHTTPStatus(t, http.StatusOK, &r)

			var response v1.UserListResponse
			test.DecodeResponse(t, &r, &response)
			assert.Len(t, response.Data, tt.len)
		})
	}
}
