// Package services – ConversationService
//
// This file implements ConversationService, which owns persisted chat
// between clients and coaches: append-only sends with optional attachments,
// keyset pagination, read receipts, and unread counters. Every method opens
// with a row-policy check; sends additionally require an active assignment
// between the two parties so conversations cannot be started out of band.
package services

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yamifit/yamifit-backend/internal/bus"
	"github.com/yamifit/yamifit-backend/internal/domain"
	"github.com/yamifit/yamifit-backend/internal/policy"
	"github.com/yamifit/yamifit-backend/internal/repo"
	"github.com/yamifit/yamifit-backend/internal/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100

	// presignTTL bounds how long an attachment download link stays valid.
	presignTTL = 15 * time.Minute
)

// MessageCursor addresses a position in a pair's message stream for keyset
// pagination. Both fields come from a previously returned message.
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

// ConversationService coordinates chat persistence, attachment validation,
// and realtime notification.
type ConversationService struct {
	DB    *gorm.DB
	Bus   bus.Publisher
	Store storage.ObjectStore

	// MaxAttachmentBytes caps a single attachment's size.
	MaxAttachmentBytes int64
	// MimeAllowlist is the set of accepted attachment content types.
	MimeAllowlist []string
	// IdempotencyTTL bounds how long a send's idempotency record can be
	// replayed. Zero falls back to 24 hours.
	IdempotencyTTL time.Duration
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, b bus.Publisher, store storage.ObjectStore, maxBytes int64, allowlist []string) *ConversationService {
	return &ConversationService{
		DB:                 db,
		Bus:                b,
		Store:              store,
		MaxAttachmentBytes: maxBytes,
		MimeAllowlist:      allowlist,
	}
}

// chatRole maps a principal to the side of the conversation they write on.
func chatRole(p domain.Principal) string {
	if p.Role == domain.RoleCoach {
		return domain.ChatRoleCoach
	}
	return domain.ChatRoleClient
}

func (s *ConversationService) mimeAllowed(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for _, allowed := range s.MimeAllowlist {
		if mime == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// requireAssignment verifies that an active assignment links the sender to
// the counterparty. Clients without one get ErrNoCoach; coaches messaging a
// non-client get ErrForbidden.
func (s *ConversationService) requireAssignment(ctx context.Context, p domain.Principal, withID string) error {
	if chatRole(p) == domain.ChatRoleCoach {
		a, err := repo.GetActiveAssignment(ctx, s.DB, withID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && a.CoachID != p.ID) {
			return ErrForbidden
		}
		return err
	}
	a, err := repo.GetActiveAssignment(ctx, s.DB, p.ID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && a.CoachID != withID) {
		return ErrNoCoach
	}
	return err
}

// SendMessage appends a message from p to their conversation with withID.
// The message needs a body, an attachment, or both. Attachment metadata is
// re-read from the object store and validated again at send time, so a stale
// or forged key can never bind an oversized or disallowed object. Coach
// availability does not gate sending: existing relationships keep working.
//
// A message.created event is published to both members after commit.
func (s *ConversationService) SendMessage(ctx context.Context, p domain.Principal, withID string, body *string, attachmentKey string) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "SendMessage",
		trace.WithAttributes(attribute.String("sender.id", p.ID)),
	)
	defer span.End()

	pair := domain.PairKey(p.ID, withID)
	if withID == "" || withID == p.ID || !policy.CanSendAs(p, pair) {
		return nil, ErrForbidden
	}
	if err := s.requireAssignment(ctx, p, withID); err != nil {
		return nil, err
	}

	if body != nil {
		trimmed := strings.TrimSpace(*body)
		if trimmed == "" {
			body = nil
		} else {
			body = &trimmed
		}
	}

	var att *repo.Attachment
	if attachmentKey != "" {
		info, err := s.Store.Stat(ctx, attachmentKey)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, &AttachmentError{Reason: "unknown attachment key"}
		}
		if err != nil {
			return nil, err
		}
		if !s.mimeAllowed(info.ContentType) {
			return nil, &AttachmentError{Reason: "content type not allowed"}
		}
		if info.Size <= 0 || info.Size > s.MaxAttachmentBytes {
			return nil, &AttachmentError{Reason: "attachment exceeds size limit"}
		}
		att = &repo.Attachment{Key: attachmentKey, Mime: info.ContentType, Bytes: info.Size}
	}
	if body == nil && att == nil {
		return nil, ErrEmptyMessage
	}

	var msg *domain.ChatMessage
	err := retryTransient(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			m, err := repo.CreateChatMessage(ctx, tx, pair, p.ID, chatRole(p), body, att)
			if err != nil {
				return err
			}
			msg = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.Bus != nil {
		a, b, _ := domain.PairMembers(pair)
		s.Bus.Publish(ctx, bus.Event{
			ID:         uuid.NewString(),
			Type:       bus.EventMessageCreated,
			PairKey:    pair,
			At:         msg.CreatedAt,
			Recipients: []string{a, b},
			Message:    msg,
		})
	}
	return msg, nil
}

// SendMessageIdempotent is SendMessage with safe-retry semantics. When
// idemKey is non-empty, a replay with the same (sender, pair, key) tuple
// returns the originally created message without inserting a second row.
// The boolean result reports whether the call was served as a replay.
func (s *ConversationService) SendMessageIdempotent(ctx context.Context, p domain.Principal, withID string, body *string, attachmentKey, idemKey string) (*domain.ChatMessage, bool, error) {
	if idemKey == "" {
		msg, err := s.SendMessage(ctx, p, withID, body, attachmentKey)
		return msg, false, err
	}

	pair := domain.PairKey(p.ID, withID)
	if rec, err := repo.GetIdempotency(ctx, s.DB, p.ID, pair, idemKey, time.Now().UTC()); err == nil {
		msg, err := repo.GetChatMessage(ctx, s.DB, pair, rec.MessageID)
		if err != nil {
			return nil, false, err
		}
		return msg, true, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}

	msg, err := s.SendMessage(ctx, p, withID, body, attachmentKey)
	if err != nil {
		return nil, false, err
	}

	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if _, err := repo.CreateIdempotency(ctx, s.DB, p.ID, pair, idemKey, msg.ID, 201, ttl); err != nil {
		// A concurrent retry won the insert race; our send already
		// committed, so return our row rather than failing the request.
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, false, err
		}
	}
	return msg, false, nil
}

// ListMessages returns a page of the conversation with withID.
//
// With no cursor it returns the newest messages, reverse-chronological.
// A before cursor continues paging into history; an after cursor returns
// older-to-newer messages for reconnect backfill. Pages are stable under
// concurrent inserts: a message older than an observed cursor can never
// appear in a later page.
func (s *ConversationService) ListMessages(ctx context.Context, p domain.Principal, withID string, before, after *MessageCursor, limit int) ([]domain.ChatMessage, error) {
	pair := domain.PairKey(p.ID, withID)
	if !policy.CanAccessPair(p, pair) {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if after != nil {
		return repo.ListMessagesAfter(ctx, s.DB, pair, after.CreatedAt, after.ID, limit)
	}
	var at time.Time
	var id string
	if before != nil {
		at, id = before.CreatedAt, before.ID
	}
	return repo.ListMessagesBefore(ctx, s.DB, pair, at, id, limit)
}

// MarkRead sets read_at on every unread counterpart message up to and
// including upToID, and returns how many rows changed. Replays are no-ops.
// A message.read event with the affected ids is published when anything
// changed.
func (s *ConversationService) MarkRead(ctx context.Context, p domain.Principal, withID, upToID string) (int64, error) {
	pair := domain.PairKey(p.ID, withID)
	if !policy.CanSendAs(p, pair) {
		return 0, ErrForbidden
	}

	target, err := repo.GetChatMessage(ctx, s.DB, pair, upToID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var updated int64
	var ids []string
	err = retryTransient(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			n, changed, err := repo.MarkMessagesRead(ctx, tx, pair, chatRole(p), target.CreatedAt, now)
			if err != nil {
				return err
			}
			updated, ids = n, changed
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	if updated > 0 && s.Bus != nil {
		a, b, _ := domain.PairMembers(pair)
		s.Bus.Publish(ctx, bus.Event{
			ID:             uuid.NewString(),
			Type:           bus.EventMessageRead,
			PairKey:        pair,
			At:             now,
			Recipients:     []string{a, b},
			ReaderID:       p.ID,
			ReadMessageIDs: ids,
		})
	}
	return updated, nil
}

// UnreadCounts returns, per counterparty, how many of their messages to p
// remain unread.
func (s *ConversationService) UnreadCounts(ctx context.Context, p domain.Principal) (map[string]int64, error) {
	return repo.UnreadCounts(ctx, s.DB, p.ID)
}

// UploadAttachment validates and stores an attachment ahead of a message
// send, returning the opaque storage key to pass to SendMessage.
func (s *ConversationService) UploadAttachment(ctx context.Context, p domain.Principal, filename, contentType string, size int64, r io.Reader) (*storage.ObjectInfo, error) {
	if !s.mimeAllowed(contentType) {
		return nil, &AttachmentError{Reason: "content type not allowed"}
	}
	if size <= 0 || size > s.MaxAttachmentBytes {
		return nil, &AttachmentError{Reason: "attachment exceeds size limit"}
	}

	key := "attachments/" + p.ID + "/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	if err := s.Store.Put(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}
	return &storage.ObjectInfo{Key: key, ContentType: contentType, Size: size}, nil
}

// AttachmentURL returns a short-lived download link for a message's
// attachment.
func (s *ConversationService) AttachmentURL(ctx context.Context, p domain.Principal, withID, messageID string) (string, error) {
	pair := domain.PairKey(p.ID, withID)
	if !policy.CanAccessPair(p, pair) {
		return "", ErrForbidden
	}
	msg, err := repo.GetChatMessage(ctx, s.DB, pair, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !msg.HasAttachment() {
		return "", ErrNotFound
	}
	return s.Store.PresignGet(ctx, *msg.AttachmentKey, presignTTL)
}
