package v1

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
)

// UserEditable represents all user configurable parameters
type UserEditable struct {
	Name       string `json:"name" example:"Jane Doe"`                       // Display name of the user
	Email      string `json:"email" example:"jane.doe@example.com"`          // Unique email of the user
	Role       string `json:"role" example:"finance"`                        // Role the user holds in approval chains
	Department string `json:"department" example:"IT" default:""`            // Department, empty for organization-wide roles
	Active     bool   `json:"active" example:"true" default:"true"`          // Inactive users are skipped during chain resolution
}

func (editable UserEditable) model() models.User {
	return models.User{
		Name:       editable.Name,
		Email:      editable.Email,
		Role:       editable.Role,
		Department: editable.Department,
		Active:     editable.Active,
	}
}

type UserLinks struct {
	Self string `json:"self" example:"https://example.com/v1/users/3b1ea324-d438-4419-882a-2fc91d71772f"` // The user itself
}

type UserObject struct {
	models.DefaultModel
	UserEditable
	Links UserLinks `json:"links"`
}

func newUser(c *gin.Context, model models.User) UserObject {
	url := httputil.RequestHost(c)

	return UserObject{
		DefaultModel: model.DefaultModel,
		UserEditable: UserEditable{
			Name:       model.Name,
			Email:      model.Email,
			Role:       model.Role,
			Department: model.Department,
			Active:     model.Active,
		},
		Links: UserLinks{
			Self: fmt.Sprintf("%s/v1/users/%s", url, model.ID),
		},
	}
}

type UserListResponse struct {
	Data       []UserObject `json:"data"`                                                          // List of users
	Error      *string      `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination  `json:"pagination"`                                                    // Pagination information
}

type UserResponse struct {
	Data  *UserObject `json:"data"`                                                          // Data for the user
	Error *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type UserQueryFilter struct {
	Email      string `form:"email"`                      // By email
	Role       string `form:"role"`                       // By role
	Department string `form:"department"`                 // By department
	Active     bool   `form:"active"`                     // Is the user active?
	Offset     uint   `form:"offset" filterField:"false"` // The offset of the first user returned. Defaults to 0.
	Limit      int    `form:"limit" filterField:"false"`  // Maximum number of users to return. Defaults to 50.
}

func (f UserQueryFilter) model() models.User {
	return models.User{
		Email:      f.Email,
		Role:       f.Role,
		Department: f.Department,
		Active:     f.Active,
	}
}
