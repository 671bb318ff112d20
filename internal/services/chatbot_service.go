// Package services – ChatbotService
//
// This file implements ChatbotService, the ephemeral AI-chatbot log. Every
// turn calls the assistant first and persists the user/assistant pair only
// on success, so a failed model call never leaves an orphan user message.
// Messages expire 24 hours after creation; three layers bound retention:
// lazy cleanup on append, the read-time visibility filter, and the periodic
// sweep driven from the server process.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yamifit/yamifit-backend/internal/assistant"
	"github.com/yamifit/yamifit-backend/internal/domain"
	"github.com/yamifit/yamifit-backend/internal/policy"
	"github.com/yamifit/yamifit-backend/internal/repo"
)

// TurnResult is the outcome of one chatbot exchange. AssistantText is always
// set when the assistant succeeded, even if persisting the turn failed and
// UserMsg/AssistantMsg are nil.
type TurnResult struct {
	UserMsg       *domain.ChatbotMessage
	AssistantMsg  *domain.ChatbotMessage
	AssistantText string
}

// ChatbotService owns the ephemeral chatbot conversation log.
type ChatbotService struct {
	DB        *gorm.DB
	Responder assistant.Responder

	// TTL is how long a persisted turn stays visible.
	TTL time.Duration
	// Timeout bounds a single assistant call.
	Timeout time.Duration
	// MaxContentChars caps the user prompt by rune length.
	MaxContentChars int
}

// NewChatbotService constructs a ChatbotService.
func NewChatbotService(db *gorm.DB, r assistant.Responder, ttl, timeout time.Duration, maxChars int) *ChatbotService {
	return &ChatbotService{DB: db, Responder: r, TTL: ttl, Timeout: timeout, MaxContentChars: maxChars}
}

// Turn runs one exchange: validate the prompt, call the assistant against the
// currently visible history, then persist both halves in a single transaction
// that also lazily deletes the user's expired rows. Both halves share a
// created_at; the assistant row orders after the user row by id.
func (s *ChatbotService) Turn(ctx context.Context, p domain.Principal, text string) (*TurnResult, error) {
	tr := otel.Tracer("services/ChatbotService")
	ctx, span := tr.Start(ctx, "Turn",
		trace.WithAttributes(attribute.String("user.id", p.ID)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxContentChars > 0 && utf8.RuneCountInString(text) > s.MaxContentChars {
		return nil, ErrTooLong
	}

	now := time.Now().UTC()
	history, err := repo.ListVisibleChatbotMessages(ctx, s.DB, p.ID, now)
	if err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	reply, err := s.Responder.Reply(actx, history, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	res := &TurnResult{AssistantText: reply}
	expiresAt := now.Add(s.TTL)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.DeleteExpiredChatbotMessagesForUser(ctx, tx, p.ID, now); err != nil {
			return err
		}
		userMsg, err := repo.InsertChatbotMessage(ctx, tx, p.ID, domain.BotRoleUser, text, now, expiresAt)
		if err != nil {
			return err
		}
		botMsg, err := repo.InsertChatbotMessage(ctx, tx, p.ID, domain.BotRoleAssistant, reply, now, expiresAt)
		if err != nil {
			return err
		}
		res.UserMsg, res.AssistantMsg = userMsg, botMsg
		return nil
	})
	if err != nil {
		// The assistant already answered; surface the text anyway.
		return &TurnResult{AssistantText: reply}, ErrHistoryUnavailable
	}
	return res, nil
}

// History returns the user's currently visible turns, oldest first. The
// expiry filter is applied at read time, so a row disappears at exactly its
// expires_at even if no sweep has run.
func (s *ChatbotService) History(ctx context.Context, p domain.Principal, userID string) ([]domain.ChatbotMessage, error) {
	if !policy.CanAccessChatbotLog(p, userID) {
		return nil, ErrForbidden
	}
	return repo.ListVisibleChatbotMessages(ctx, s.DB, userID, time.Now().UTC())
}

// Purge removes the user's entire chatbot log, expired or not.
func (s *ChatbotService) Purge(ctx context.Context, p domain.Principal, userID string) (int64, error) {
	if !policy.CanAccessChatbotLog(p, userID) {
		return 0, ErrForbidden
	}
	return repo.DeleteAllChatbotMessagesForUser(ctx, s.DB, userID)
}

// Sweep deletes every expired row across all users. It is idempotent and
// safe to run concurrently with Turn: the two touch disjoint rows, and the
// read-time filter hides any row a racing sweep is about to remove.
func (s *ChatbotService) Sweep(ctx context.Context) (int64, error) {
	return repo.DeleteExpiredChatbotMessages(ctx, s.DB, time.Now().UTC())
}
