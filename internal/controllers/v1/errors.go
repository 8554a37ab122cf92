package v1

import (
	"errors"
	"net/http"

	"github.com/procureflow/backend/internal/models"
)

type httpError struct {
	Error string `json:"error" example:"An ID specified in the query string was not a valid UUID"`
}

// status returns the appropriate HTTP status for an error.
func status(err error) int {
	if errors.Is(err, models.ErrGeneral) {
		return http.StatusInternalServerError
	}

	if errors.Is(err, models.ErrResourceNotFound) {
		return http.StatusNotFound
	}

	if errors.Is(err, models.ErrUnauthorized) {
		return http.StatusForbidden
	}

	if errors.Is(err, models.ErrAlreadyDecided) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrConcurrentModification) {
		return http.StatusConflict
	}

	return http.StatusBadRequest
}

var (
	errActorRequired   = errors.New("the acting user could not be determined from the request")
	errInvalidDecision = errors.New("the decision must be either \"approve\" or \"reject\"")
)

// parseDecision validates the decision string of a request body.
func parseDecision(s string) (models.Decision, error) {
	switch models.Decision(s) {
	case models.DecisionApprove, models.DecisionReject:
		return models.Decision(s), nil
	}

	return "", errInvalidDecision
}
