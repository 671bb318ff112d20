// Package services – AssignmentService
//
// This file implements AssignmentService, which owns the client↔coach
// assignment lifecycle: listing selectable coaches, reporting the current
// assignment, and the selectCoach transition with its capacity and cooldown
// rules. The transition runs in a single transaction so the capacity
// invariant (active_clients ≤ max_clients) holds under concurrent selection.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// client/coach identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yamifit/yamifit-backend/internal/bus"
	"github.com/yamifit/yamifit-backend/internal/domain"
	"github.com/yamifit/yamifit-backend/internal/policy"
	"github.com/yamifit/yamifit-backend/internal/repo"
)

// errConcurrentTransition signals that another request transitioned the same
// assignment between our read and write. The whole transaction is retried.
var errConcurrentTransition = errors.New("concurrent assignment transition")

// isTransientDBError reports whether a storage failure is worth retrying.
// The selection transaction commits wholly or not at all, so a retry is safe.
func isTransientDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errConcurrentTransition) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "bad connection")
}

// retryTransient runs op, retrying briefly on transient storage failures.
func retryTransient(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if isTransientDBError(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	return err
}

// SelectResult is the outcome of a coach selection.
type SelectResult struct {
	// Assignment is the active assignment after the call.
	Assignment *domain.Assignment
	// EndedPrevious is the previous assignment when the call switched
	// coaches; nil for a first selection or an idempotent re-select.
	EndedPrevious *domain.Assignment
	// NoOp is true when the client re-selected their current coach.
	NoOp bool
}

// AssignmentService coordinates assignment reads and the selectCoach
// transition.
type AssignmentService struct {
	DB  *gorm.DB
	Bus bus.Publisher

	// CooldownDays is the minimum whole days between two successful
	// selections of different coaches by the same client.
	CooldownDays int
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(db *gorm.DB, b bus.Publisher, cooldownDays int) *AssignmentService {
	return &AssignmentService{DB: db, Bus: b, CooldownDays: cooldownDays}
}

// Current returns the client's active assignment. Callable by the client,
// their coach, or an admin; everyone else gets ErrForbidden without learning
// whether an assignment exists.
func (s *AssignmentService) Current(ctx context.Context, p domain.Principal, clientID string) (*domain.Assignment, error) {
	a, err := repo.GetActiveAssignment(ctx, s.DB, clientID)
	if errors.Is(err, repo.ErrNotFound) {
		if !policy.CanWriteAssignment(p, clientID) {
			return nil, ErrForbidden
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !policy.CanReadAssignment(p, *a) {
		return nil, ErrForbidden
	}
	return a, nil
}

// ListCoaches returns selectable coaches: available and below capacity,
// ordered for a deterministic UI.
func (s *AssignmentService) ListCoaches(ctx context.Context, p domain.Principal) ([]domain.CoachProfile, error) {
	if !policy.CanReadCoachProfile(p) {
		return nil, ErrForbidden
	}
	return repo.ListAvailableCoaches(ctx, s.DB)
}

// SetAvailability toggles a coach's availability flag. An unavailable coach
// receives no new clients; existing conversations are unaffected.
func (s *AssignmentService) SetAvailability(ctx context.Context, p domain.Principal, coachID string, available bool) error {
	profile, err := repo.GetCoachProfile(ctx, s.DB, coachID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !policy.CanWriteCoachProfile(p, *profile) {
		return ErrForbidden
	}
	return repo.SetCoachAvailability(ctx, s.DB, coachID, available)
}

// SelectCoach selects or switches the client's coach.
//
// The whole transition runs in one transaction: availability gate, idempotent
// no-op on the current coach, cooldown check (floor of elapsed days), atomic
// end+decrement of the previous assignment, and a guarded capacity increment
// on the target. The guard is a conditional UPDATE whose zero-rows result
// means the coach filled up concurrently, so active_clients can never exceed
// max_clients regardless of interleaving. On Postgres the coach row is
// additionally locked FOR UPDATE.
//
// An assignment.changed event is published only after commit.
func (s *AssignmentService) SelectCoach(ctx context.Context, p domain.Principal, clientID, coachID string) (*SelectResult, error) {
	tr := otel.Tracer("services/AssignmentService")
	ctx, span := tr.Start(ctx, "SelectCoach",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.String("coach.id", coachID),
		),
	)
	defer span.End()

	if !policy.CanWriteAssignment(p, clientID) {
		return nil, ErrForbidden
	}
	if !p.IsAdmin() && p.Plan != domain.PlanPro {
		return nil, ErrPlanRequired
	}

	var res SelectResult
	err := retryTransient(ctx, func() error {
		res = SelectResult{}
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()

			target, err := repo.GetCoachProfileForUpdate(ctx, tx, coachID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}

			existing, err := repo.GetActiveAssignmentForUpdate(ctx, tx, clientID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return err
			}

			// Re-selecting the current coach is a no-op and must not
			// restart the cooldown, even if the coach has since become
			// unavailable or full.
			if existing != nil && existing.CoachID == coachID {
				res = SelectResult{Assignment: existing, NoOp: true}
				return nil
			}

			if !target.IsAvailable {
				return ErrCoachUnavailable
			}

			if existing != nil {
				elapsedDays := int(now.Sub(existing.AssignedAt).Hours() / 24)
				if elapsedDays < s.CooldownDays {
					return &CooldownError{RemainingDays: s.CooldownDays - elapsedDays}
				}

				ended, err := repo.EndAssignment(ctx, tx, existing.ID, now)
				if err != nil {
					return err
				}
				if !ended {
					return errConcurrentTransition
				}
				if err := repo.DecrementActiveClients(ctx, tx, existing.CoachID); err != nil {
					return err
				}
				prev := *existing
				prev.Status = domain.AssignmentEnded
				prev.EndedAt = &now
				res.EndedPrevious = &prev
			}

			ok, err := repo.IncrementActiveClients(ctx, tx, coachID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrCapacityExceeded
			}

			a, err := repo.CreateAssignment(ctx, tx, clientID, coachID, now)
			if err != nil {
				return err
			}
			res.Assignment = a
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if !res.NoOp {
		s.publishChanged(ctx, res)
	}
	return &res, nil
}

func (s *AssignmentService) publishChanged(ctx context.Context, res SelectResult) {
	if s.Bus == nil || res.Assignment == nil {
		return
	}
	recipients := []string{res.Assignment.ClientID, res.Assignment.CoachID}
	if res.EndedPrevious != nil {
		recipients = append(recipients, res.EndedPrevious.CoachID)
	}
	s.Bus.Publish(ctx, bus.Event{
		ID:              uuid.NewString(),
		Type:            bus.EventAssignmentChanged,
		At:              time.Now().UTC(),
		Recipients:      recipients,
		Assignment:      res.Assignment,
		EndedAssignment: res.EndedPrevious,
	})
}
