// Handler wiring for the coaching API.
//
// Handlers are transport-thin: they resolve the authenticated principal,
// validate and decode input, call application services, and translate
// results (including service errors) into HTTP responses. All business
// rules live in the services package.
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yamifit/yamifit-backend/internal/auth"
	"github.com/yamifit/yamifit-backend/internal/bus"
	"github.com/yamifit/yamifit-backend/internal/domain"
	"github.com/yamifit/yamifit-backend/internal/services"
	"github.com/yamifit/yamifit-backend/internal/storage"
)

//
// Service contracts (context-aware)
//

// AssignmentService defines the assignment operations consumed by HTTP
// handlers. Implementations must honor the provided context.
type AssignmentService interface {
	// Current returns the client's active assignment.
	Current(ctx context.Context, p domain.Principal, clientID string) (*domain.Assignment, error)
	// ListCoaches returns selectable coaches.
	ListCoaches(ctx context.Context, p domain.Principal) ([]domain.CoachProfile, error)
	// SelectCoach selects or switches the client's coach.
	SelectCoach(ctx context.Context, p domain.Principal, clientID, coachID string) (*services.SelectResult, error)
	// SetAvailability toggles a coach's availability flag.
	SetAvailability(ctx context.Context, p domain.Principal, coachID string, available bool) error
}

// ConversationService defines the chat operations consumed by HTTP handlers.
type ConversationService interface {
	// SendMessageIdempotent appends a message, replaying on a repeated
	// Idempotency-Key.
	SendMessageIdempotent(ctx context.Context, p domain.Principal, withID string, body *string, attachmentKey, idemKey string) (*domain.ChatMessage, bool, error)
	// ListMessages returns a keyset page of the conversation.
	ListMessages(ctx context.Context, p domain.Principal, withID string, before, after *services.MessageCursor, limit int) ([]domain.ChatMessage, error)
	// MarkRead acknowledges counterpart messages up to a target.
	MarkRead(ctx context.Context, p domain.Principal, withID, upToID string) (int64, error)
	// UnreadCounts returns unread totals grouped by counterparty.
	UnreadCounts(ctx context.Context, p domain.Principal) (map[string]int64, error)
	// UploadAttachment validates and stores an attachment.
	UploadAttachment(ctx context.Context, p domain.Principal, filename, contentType string, size int64, r io.Reader) (*storage.ObjectInfo, error)
	// AttachmentURL returns a short-lived download link.
	AttachmentURL(ctx context.Context, p domain.Principal, withID, messageID string) (string, error)
}

// ChatbotService defines the ephemeral chatbot operations consumed by HTTP
// handlers.
type ChatbotService interface {
	// Turn runs one user/assistant exchange.
	Turn(ctx context.Context, p domain.Principal, text string) (*services.TurnResult, error)
	// History returns the currently visible turns.
	History(ctx context.Context, p domain.Principal, userID string) ([]domain.ChatbotMessage, error)
	// Purge clears the user's log.
	Purge(ctx context.Context, p domain.Principal, userID string) (int64, error)
	// Sweep removes expired rows across all users.
	Sweep(ctx context.Context) (int64, error)
}

// Handlers groups the HTTP endpoints for assignments, conversations, the
// chatbot, and the event stream.
type Handlers struct {
	assignSvc AssignmentService
	convSvc   ConversationService
	botSvc    ChatbotService
	hub       *bus.Hub
}

// New constructs a Handlers instance bound to the given services and hub.
func New(assignSvc AssignmentService, convSvc ConversationService, botSvc ChatbotService, hub *bus.Hub) *Handlers {
	return &Handlers{assignSvc: assignSvc, convSvc: convSvc, botSvc: botSvc, hub: hub}
}

// principal extracts the authenticated principal set by the auth middleware.
// Routes are always mounted behind that middleware; a missing principal means
// a wiring bug, answered with 401 rather than a panic.
func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthenticated, "missing credential")
		return domain.Principal{}, false
	}
	return p, true
}
