// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CoachProfile model, including the guarded counter updates that keep
// active_clients inside [0, max_clients] under concurrent selections.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

// CreateCoachProfile inserts a profile row for a coach principal.
func CreateCoachProfile(ctx context.Context, db *gorm.DB, coachID, displayName string, maxClients int) (*domain.CoachProfile, error) {
	c := &domain.CoachProfile{
		CoachID:     coachID,
		DisplayName: displayName,
		IsAvailable: true,
		MaxClients:  maxClients,
		CreatedAt:   time.Now().UTC(),
	}
	return c, db.WithContext(ctx).Create(c).Error
}

// GetCoachProfile fetches a coach profile by id, or ErrNotFound.
func GetCoachProfile(ctx context.Context, db *gorm.DB, coachID string) (*domain.CoachProfile, error) {
	var c domain.CoachProfile
	err := db.WithContext(ctx).Where("coach_id = ?", coachID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCoachProfileForUpdate fetches a coach profile holding a row lock for the
// duration of the surrounding transaction. The FOR UPDATE clause is emitted
// only on Postgres; SQLite serializes writers at the connection level.
func GetCoachProfileForUpdate(ctx context.Context, tx *gorm.DB, coachID string) (*domain.CoachProfile, error) {
	q := tx.WithContext(ctx)
	if IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c domain.CoachProfile
	err := q.Where("coach_id = ?", coachID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListAvailableCoaches returns coaches with spare capacity and the
// availability flag set, ordered (is_available desc, active_clients asc,
// coach_id asc) for a deterministic picker.
func ListAvailableCoaches(ctx context.Context, db *gorm.DB) ([]domain.CoachProfile, error) {
	var out []domain.CoachProfile
	err := db.WithContext(ctx).
		Where("is_available = ? AND active_clients < max_clients", true).
		Order("is_available DESC, active_clients ASC, coach_id ASC").
		Find(&out).Error
	return out, err
}

// IncrementActiveClients bumps active_clients by one, guarded by the capacity
// limit. The WHERE clause makes the check-and-increment a single atomic
// statement on every engine; a false return means the coach was already full.
func IncrementActiveClients(ctx context.Context, tx *gorm.DB, coachID string) (bool, error) {
	res := tx.WithContext(ctx).Model(&domain.CoachProfile{}).
		Where("coach_id = ? AND active_clients < max_clients", coachID).
		UpdateColumn("active_clients", gorm.Expr("active_clients + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementActiveClients lowers active_clients by one, floored at zero.
func DecrementActiveClients(ctx context.Context, tx *gorm.DB, coachID string) error {
	return tx.WithContext(ctx).Model(&domain.CoachProfile{}).
		Where("coach_id = ? AND active_clients > 0", coachID).
		UpdateColumn("active_clients", gorm.Expr("active_clients - 1")).Error
}

// SetCoachAvailability flips the coach-controlled availability flag.
// Returns ErrNotFound when no such profile exists.
func SetCoachAvailability(ctx context.Context, db *gorm.DB, coachID string, available bool) error {
	res := db.WithContext(ctx).Model(&domain.CoachProfile{}).
		Where("coach_id = ?", coachID).
		Update("is_available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
