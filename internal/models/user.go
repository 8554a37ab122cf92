package models

import (
	"errors"
	"fmt"
)

// Roles known to the approval policies.
const (
	RoleSupervisor  = "supervisor"
	RoleFinance     = "finance"
	RoleSupplyChain = "supply_chain"
	RoleHead        = "head"
	RoleAdmin       = "admin"
)

// User is a directory entry. The directory only models what the approval
// chains need: who currently holds a role in a department.
type User struct {
	DefaultModel
	Name       string
	Email      string `gorm:"uniqueIndex"`
	Role       string `gorm:"index"`
	Department string `gorm:"index"`
	Active     bool   `gorm:"default:true"`
}

// Identity is a point-in-time snapshot of a directory entry. Approval chains
// freeze identities at construction time, so later directory changes do not
// affect in-flight chains.
type Identity struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// Directory resolves a role within a department to a concrete person.
type Directory interface {
	Resolve(role, department string) (Identity, error)
}

// DBDirectory resolves roles against the users table. A department-specific
// match wins over an organization-wide one.
type DBDirectory struct{}

func (DBDirectory) Resolve(role, department string) (Identity, error) {
	var user User

	err := DB.Where("role = ? AND department = ? AND active = ?", role, department, true).First(&user).Error
	if errors.Is(err, ErrResourceNotFound) {
		// Fall back to an organization-wide holder of the role
		err = DB.Where("role = ? AND department = '' AND active = ?", role, true).First(&user).Error
	}

	if errors.Is(err, ErrResourceNotFound) {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnresolvedRole, role)
	}

	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role,
		Department: user.Department,
	}, nil
}

// Identity returns the identity snapshot for a user.
func (u User) Identity() Identity {
	return Identity{
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
	}
}
