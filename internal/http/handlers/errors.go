// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants and the translation of
// service-level errors into HTTP responses (via the `fail()` helper in this
// package). The codes give clients a stable, machine-readable taxonomy that
// supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Business rejections carry their own codes (capacity_exceeded,
//     cooldown_not_elapsed, ...) so UIs can branch without string matching.
//   - cooldown_not_elapsed responses additionally carry `remaining_days`;
//     attachment_rejected responses carry `reason`.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yamifit/yamifit-backend/internal/services"
)

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeSessionExpired  = "session_expired"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"

	// Domain-specific:
	ErrCodePlanRequired       = "plan_required"
	ErrCodeCapacityExceeded   = "capacity_exceeded"
	ErrCodeCoachUnavailable   = "coach_unavailable"
	ErrCodeCooldownNotElapsed = "cooldown_not_elapsed"
	ErrCodeNoCoach            = "no_coach"
	ErrCodeAttachmentRejected = "attachment_rejected"
	ErrCodeHistoryUnavailable = "history_unavailable"
	ErrCodeTransient          = "transient"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)

// failService translates a service error into the standard error envelope.
// Unknown errors become 500 internal_error; the raw error text never leaks.
func failService(c *gin.Context, err error) {
	var cooldown *services.CooldownError
	var attachment *services.AttachmentError

	switch {
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not allowed")
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case errors.Is(err, services.ErrPlanRequired):
		fail(c, http.StatusForbidden, ErrCodePlanRequired, "coaching requires the PRO plan")
	case errors.Is(err, services.ErrCoachUnavailable):
		fail(c, http.StatusConflict, ErrCodeCoachUnavailable, "coach is not accepting clients")
	case errors.Is(err, services.ErrCapacityExceeded):
		fail(c, http.StatusConflict, ErrCodeCapacityExceeded, "coach is at capacity")
	case errors.As(err, &cooldown):
		failExtra(c, http.StatusConflict, ErrCodeCooldownNotElapsed, "coach switch is still in cooldown",
			gin.H{"remaining_days": cooldown.RemainingDays})
	case errors.Is(err, services.ErrNoCoach):
		fail(c, http.StatusConflict, ErrCodeNoCoach, "no active assignment with this coach")
	case errors.As(err, &attachment):
		failExtra(c, http.StatusBadRequest, ErrCodeAttachmentRejected, "attachment rejected",
			gin.H{"reason": attachment.Reason})
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrEmptyPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt too long")
	case errors.Is(err, services.ErrAssistantUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeTransient, "assistant unavailable, retry later")
	case errors.Is(err, services.ErrHistoryUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeHistoryUnavailable, "chatbot history unavailable")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
