package domain

import "time"

// Idempotency records the result of a previously processed message send,
// keyed by (sender_id, pair_key, key). It enables safe retries of
// POST /messages: a replay with the same Idempotency-Key returns the
// originally created message without inserting a second row.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	SenderID  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_sender_pair_key,priority:1"`
	PairKey   string    `gorm:"type:varchar(130);not null;uniqueIndex:ux_sender_pair_key,priority:2"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_sender_pair_key,priority:3"`
	MessageID string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
