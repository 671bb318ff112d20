// Package services implements the business logic of the coaching core:
// coach assignment, client↔coach conversations, and the ephemeral chatbot
// log. This file centralizes service-level error values so they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden indicates the principal may not perform the operation on
	// the addressed rows.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the addressed entity does not exist or is not
	// visible to the principal.
	ErrNotFound = errors.New("not found")

	// ErrPlanRequired is returned when coach selection is attempted on a
	// plan that does not include coaching.
	ErrPlanRequired = errors.New("coaching requires the PRO plan")

	// ErrCoachUnavailable is returned when the target coach has switched off
	// their availability flag.
	ErrCoachUnavailable = errors.New("coach is not accepting clients")

	// ErrCapacityExceeded is returned when the target coach is at their
	// client capacity.
	ErrCapacityExceeded = errors.New("coach is at capacity")

	// ErrNoCoach is returned when a client sends a message without an active
	// assignment to the addressed coach.
	ErrNoCoach = errors.New("no active assignment with this coach")

	// ErrEmptyMessage is returned when a chat message carries neither a body
	// nor an attachment.
	ErrEmptyMessage = errors.New("message has no body and no attachment")

	// ErrEmptyPrompt is returned when a chatbot turn contains an empty prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a chatbot turn exceeds the configured
	// content length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrHistoryUnavailable is returned when the chatbot turn could not be
	// persisted after a successful assistant call. The assistant text is
	// still returned to the caller for this request.
	ErrHistoryUnavailable = errors.New("chatbot history unavailable")

	// ErrAssistantUnavailable is returned when the assistant call fails or
	// times out. Nothing is persisted; the turn is safe to retry.
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)

// CooldownError is returned when a coach switch is attempted before the
// cooldown since the previous selection has elapsed. RemainingDays is the
// ceiling of the remaining wait, so it is never zero while still blocked.
type CooldownError struct {
	RemainingDays int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown not elapsed: %d day(s) remaining", e.RemainingDays)
}

// AttachmentError is returned when an attachment fails validation. Reason is
// a short user-facing explanation.
type AttachmentError struct {
	Reason string
}

func (e *AttachmentError) Error() string {
	return "attachment rejected: " + e.Reason
}
