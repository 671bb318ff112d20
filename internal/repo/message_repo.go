// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatMessage
// model: monotonic appends, keyset pagination, read receipts, and unread
// counters.
//
// Ordering contract: created_at is strictly monotonic per pair_key. Appends
// run inside the caller's transaction and bump the timestamp to one
// microsecond past the pair's last message whenever the wall clock would tie
// or run backwards, so (created_at, id) yields a total order per pair and
// keyset cursors never skip rows under concurrent inserts.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

// Attachment bundles the validated object-store metadata recorded on a
// message row.
type Attachment struct {
	Key   string
	Mime  string
	Bytes int64
}

// CreateChatMessage appends a message to a pair's conversation. Must be
// called inside a transaction so the last-timestamp read and the insert are
// atomic with respect to other appends on the same pair.
func CreateChatMessage(ctx context.Context, tx *gorm.DB, pairKey, senderID, role string, body *string, att *Attachment) (*domain.ChatMessage, error) {
	now := time.Now().UTC()

	// Bump past the pair's newest message on clock ties or regressions.
	var last struct {
		CreatedAt time.Time
	}
	err := tx.WithContext(ctx).Model(&domain.ChatMessage{}).
		Select("created_at").
		Where("pair_key = ?", pairKey).
		Order("created_at DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return nil, err
	}
	if !last.CreatedAt.IsZero() && !now.After(last.CreatedAt) {
		now = last.CreatedAt.Add(time.Microsecond)
	}

	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		PairKey:   pairKey,
		SenderID:  senderID,
		Role:      role,
		Body:      body,
		CreatedAt: now,
	}
	if att != nil {
		m.AttachmentKey = &att.Key
		m.AttachmentMime = &att.Mime
		m.AttachmentBytes = &att.Bytes
	}
	return m, tx.WithContext(ctx).Create(m).Error
}

// GetChatMessage fetches a message by id within a pair, or ErrNotFound.
func GetChatMessage(ctx context.Context, db *gorm.DB, pairKey, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	err := db.WithContext(ctx).
		Where("pair_key = ? AND id = ?", pairKey, id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessagesBefore returns up to limit messages of a pair strictly older
// than the (createdAt, id) cursor, newest first. A zero cursor time means
// "from the top".
func ListMessagesBefore(ctx context.Context, db *gorm.DB, pairKey string, createdAt time.Time, id string, limit int) ([]domain.ChatMessage, error) {
	q := db.WithContext(ctx).Where("pair_key = ?", pairKey)
	if !createdAt.IsZero() {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}
	var out []domain.ChatMessage
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// ListMessagesAfter returns up to limit messages of a pair strictly newer
// than the (createdAt, id) cursor, oldest first. Used for reconnect backfill.
func ListMessagesAfter(ctx context.Context, db *gorm.DB, pairKey string, createdAt time.Time, id string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("pair_key = ?", pairKey).
		Where("created_at > ? OR (created_at = ? AND id > ?)", createdAt, createdAt, id).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkMessagesRead stamps read_at on all unread messages of the pair sent by
// the counterparty (role != readerRole) no newer than upTo. Returns the rows
// updated and the ids stamped; replays affect zero rows.
func MarkMessagesRead(ctx context.Context, tx *gorm.DB, pairKey, readerRole string, upTo time.Time, now time.Time) (int64, []string, error) {
	var ids []string
	err := tx.WithContext(ctx).Model(&domain.ChatMessage{}).
		Where("pair_key = ? AND role <> ? AND read_at IS NULL AND created_at <= ?", pairKey, readerRole, upTo).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, nil, err
	}
	if len(ids) == 0 {
		return 0, nil, nil
	}
	res := tx.WithContext(ctx).Model(&domain.ChatMessage{}).
		Where("id IN ?", ids).
		Update("read_at", now)
	return res.RowsAffected, ids, res.Error
}

// unreadRow is the scan target for UnreadCounts.
type unreadRow struct {
	SenderID string
	N        int64
}

// UnreadCounts returns, per counterparty principal, the number of messages
// addressed to the given principal that are still unread. Membership is an
// exact match against the two canonical key shapes rather than a LIKE, so a
// principal id containing '%' or '_' can never over-match.
func UnreadCounts(ctx context.Context, db *gorm.DB, principalID string) (map[string]int64, error) {
	var rows []unreadRow
	err := db.WithContext(ctx).Model(&domain.ChatMessage{}).
		Select("sender_id, COUNT(*) AS n").
		Where("read_at IS NULL AND sender_id <> ?", principalID).
		Where("pair_key = (? || ':' || sender_id) OR pair_key = (sender_id || ':' || ?)", principalID, principalID).
		Group("sender_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.N
	}
	return out, nil
}
