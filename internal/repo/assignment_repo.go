// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Assignment
// model. The single-coach rule (at most one active assignment per client) is
// maintained by the service transaction that ends the old row and inserts the
// new one atomically.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

// GetActiveAssignment returns the client's active assignment, or ErrNotFound.
func GetActiveAssignment(ctx context.Context, db *gorm.DB, clientID string) (*domain.Assignment, error) {
	var a domain.Assignment
	err := db.WithContext(ctx).
		Where("client_id = ? AND status = ?", clientID, domain.AssignmentActive).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActiveAssignmentForUpdate is GetActiveAssignment with a row lock held
// for the duration of the surrounding transaction (Postgres only).
func GetActiveAssignmentForUpdate(ctx context.Context, tx *gorm.DB, clientID string) (*domain.Assignment, error) {
	q := tx.WithContext(ctx)
	if IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a domain.Assignment
	err := q.Where("client_id = ? AND status = ?", clientID, domain.AssignmentActive).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAssignment inserts a new active assignment row.
func CreateAssignment(ctx context.Context, tx *gorm.DB, clientID, coachID string, now time.Time) (*domain.Assignment, error) {
	a := &domain.Assignment{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		CoachID:    coachID,
		Status:     domain.AssignmentActive,
		AssignedAt: now,
		CreatedAt:  now,
	}
	return a, tx.WithContext(ctx).Create(a).Error
}

// EndAssignment transitions an active assignment to ended. The status guard
// makes the transition idempotent under replays; a false return means the row
// was not active anymore.
func EndAssignment(ctx context.Context, tx *gorm.DB, assignmentID string, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&domain.Assignment{}).
		Where("id = ? AND status = ?", assignmentID, domain.AssignmentActive).
		Updates(map[string]any{"status": domain.AssignmentEnded, "ended_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountActiveAssignmentsForCoach returns the number of active assignments
// held by a coach. Used by tests and consistency checks against
// CoachProfile.ActiveClients.
func CountActiveAssignmentsForCoach(ctx context.Context, db *gorm.DB, coachID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Assignment{}).
		Where("coach_id = ? AND status = ?", coachID, domain.AssignmentActive).
		Count(&n).Error
	return n, err
}
