package models

import (
	"errors"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no")

	// Ledger errors
	ErrInvalidAmount          = errors.New("the amount must be positive and below the system ceiling")
	ErrInsufficientFunds      = errors.New("the budget code does not have enough available funds")
	ErrAllocationExceeded     = errors.New("the cumulative disbursements would exceed the reserved amount")
	ErrNoActiveAllocation     = errors.New("there is no active allocation for this request")
	ErrBudgetCodeInactive     = errors.New("the budget code has been deactivated")
	ErrBudgetBelowUsed        = errors.New("the requested total budget is below the amount already used")
	ErrMissingDisbursementID  = errors.New("a disbursement ID must be supplied for every deduction")
	ErrConcurrentModification = errors.New("the resource was changed by a concurrent request, please retry")

	// Approval chain errors
	ErrUnauthorized   = errors.New("you are not the current approver for this request")
	ErrAlreadyDecided = errors.New("this approval has already been decided")
	ErrUnresolvedRole = errors.New("no active directory entry resolves the approver role")

	// Workflow errors
	ErrInvalidTransition = errors.New("this operation is not allowed in the current status")

	// Constraint errors
	ErrBudgetCodeNotUnique    = errors.New("the budget code is already in use")
	ErrUserEmailNotUnique     = errors.New("a user with this email already exists")
	ErrRequestNumberNotUnique = errors.New("the request number is already in use")
)
