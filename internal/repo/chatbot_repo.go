// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ChatbotMessage model: the rolling 24-hour AI-coach history.
//
// Retention is enforced in three layers: callers delete a user's expired rows
// before appending (lazy cleanup), every read filters on expires_at > now
// (exact visibility), and a scheduler runs the global sweep. Each layer is
// independently sufficient to keep user-visible retention within one sweep
// interval.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

// InsertChatbotMessage appends one row to a user's chatbot history. IDs are
// engine-assigned and monotonically increasing, so two rows sharing a
// created_at order by insertion.
func InsertChatbotMessage(ctx context.Context, tx *gorm.DB, userID, role, content string, createdAt, expiresAt time.Time) (*domain.ChatbotMessage, error) {
	m := &domain.ChatbotMessage{
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	return m, tx.WithContext(ctx).Create(m).Error
}

// ListVisibleChatbotMessages returns the user's unexpired history in
// ascending (created_at, id) order. Expiry is evaluated against the supplied
// clock so a row turns invisible at exactly expires_at, sweep or no sweep.
func ListVisibleChatbotMessages(ctx context.Context, db *gorm.DB, userID string, now time.Time) ([]domain.ChatbotMessage, error) {
	var out []domain.ChatbotMessage
	err := db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// DeleteExpiredChatbotMessagesForUser removes the user's expired rows.
// Called opportunistically before each append.
func DeleteExpiredChatbotMessagesForUser(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (int64, error) {
	res := tx.WithContext(ctx).
		Where("user_id = ? AND expires_at <= ?", userID, now).
		Delete(&domain.ChatbotMessage{})
	return res.RowsAffected, res.Error
}

// DeleteAllChatbotMessagesForUser clears the user's entire history
// (user-initiated purge). Returns the number of rows removed.
func DeleteAllChatbotMessagesForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.ChatbotMessage{})
	return res.RowsAffected, res.Error
}

// DeleteExpiredChatbotMessages is the global sweep. Idempotent and safe to
// run concurrently with appends: the two touch disjoint rows, and readers are
// shielded by the visibility filter either way.
func DeleteExpiredChatbotMessages(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ChatbotMessage{})
	return res.RowsAffected, res.Error
}
