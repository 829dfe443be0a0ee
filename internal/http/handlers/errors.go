// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., topic_closed, invalid_vote) are reserved for
//     business logic errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Usage:
//   - Handlers select the most specific matching code and pass it to `fail()` along
//     with the corresponding HTTP status and message. Service sentinels are
//     translated in one place by `failService()`.
//   - Clients are expected to branch on these codes for programmatic error handling.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "topic_closed",
//     "message": "topic is not accepting votes"
//   }

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/votehub-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeTopicClosed          = "topic_closed"
	ErrCodeInvalidVote          = "invalid_vote"
	ErrCodeVerificationRequired = "verification_required"
	ErrCodeInvalidLink          = "invalid_link"
	ErrCodeAlreadyReviewed      = "already_reviewed"
	ErrCodeVoteFailed           = "vote_failed"
	ErrCodeResultsFailed        = "results_failed"
	ErrCodeCreateFailed         = "create_failed"
	ErrCodeListFailed           = "list_failed"
	ErrCodeMethodNotAllowed     = "method_not_allowed"
)

// failService maps a service error to a status and code. Errors that are not
// service sentinels become a 500 with fallbackCode.
func failService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrTopicNotFound),
		errors.Is(err, services.ErrVoteNotFound),
		errors.Is(err, services.ErrSuggestionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrVoteTypeNotFound),
		errors.Is(err, services.ErrEmptyTitle),
		errors.Is(err, services.ErrInvalidTopic),
		errors.Is(err, services.ErrInvalidReview):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidVote):
		fail(c, http.StatusBadRequest, ErrCodeInvalidVote, err.Error())
	case errors.Is(err, services.ErrInvalidLink):
		fail(c, http.StatusBadRequest, ErrCodeInvalidLink, err.Error())
	case errors.Is(err, services.ErrTopicClosed):
		fail(c, http.StatusConflict, ErrCodeTopicClosed, err.Error())
	case errors.Is(err, services.ErrSuggestionReviewed):
		fail(c, http.StatusConflict, ErrCodeAlreadyReviewed, err.Error())
	case errors.Is(err, services.ErrDuplicateSuggestion):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrVerificationRequired):
		fail(c, http.StatusForbidden, ErrCodeVerificationRequired, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}
