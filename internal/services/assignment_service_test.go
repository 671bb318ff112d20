package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yamifit/yamifit-backend/internal/bus"
	"github.com/yamifit/yamifit-backend/internal/domain"
	"github.com/yamifit/yamifit-backend/internal/repo"
)

func TestSelectCoach_FirstSelection(t *testing.T) {
	db := newServiceDB(t)
	pub := &capturePublisher{}
	svc := NewAssignmentService(db, pub, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)

	res, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c1")
	if err != nil {
		t.Fatalf("SelectCoach: %v", err)
	}
	if res.Assignment == nil || res.Assignment.CoachID != "c1" || res.EndedPrevious != nil || res.NoOp {
		t.Fatalf("unexpected result: %+v", res)
	}

	c, _ := repo.GetCoachProfile(ctx, db, "c1")
	if c.ActiveClients != 1 {
		t.Fatalf("active_clients = %d, want 1", c.ActiveClients)
	}

	ev := pub.last(t)
	if ev.Type != bus.EventAssignmentChanged || ev.Assignment == nil || ev.Assignment.ID != res.Assignment.ID {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(ev.Recipients) != 2 {
		t.Fatalf("recipients = %v, want client and coach", ev.Recipients)
	}
}

func TestSelectCoach_PlanGate(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)

	seedCoach(t, db, "c1", 10, 0, true)

	if _, err := svc.SelectCoach(context.Background(), clientBasic, clientBasic.ID, "c1"); !errors.Is(err, ErrPlanRequired) {
		t.Fatalf("expected ErrPlanRequired, got %v", err)
	}
}

func TestSelectCoach_ForbiddenForOtherClient(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)

	seedCoach(t, db, "c1", 10, 0, true)

	if _, err := svc.SelectCoach(context.Background(), clientPro, "someone-else", "c1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSelectCoach_UnknownAndUnavailableCoach(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)
	ctx := context.Background()

	if _, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	seedCoach(t, db, "c_off", 10, 0, false)
	if _, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c_off"); !errors.Is(err, ErrCoachUnavailable) {
		t.Fatalf("expected ErrCoachUnavailable, got %v", err)
	}
}

func TestSelectCoach_CapacityExceeded(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)

	seedCoach(t, db, "c_full", 3, 3, true)

	if _, err := svc.SelectCoach(context.Background(), clientPro, clientPro.ID, "c_full"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if _, err := repo.GetActiveAssignment(context.Background(), db, clientPro.ID); err != repo.ErrNotFound {
		t.Fatalf("rejected selection left an assignment behind: %v", err)
	}
}

func TestSelectCoach_NoOpOnSameCoach(t *testing.T) {
	db := newServiceDB(t)
	pub := &capturePublisher{}
	svc := NewAssignmentService(db, pub, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)
	first, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c1")
	if err != nil {
		t.Fatalf("first select: %v", err)
	}

	// The coach going unavailable or full never breaks the existing
	// relationship: re-select stays a no-op.
	if err := repo.SetCoachAvailability(ctx, db, "c1", false); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	published := len(pub.all())

	again, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c1")
	if err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if !again.NoOp || again.Assignment.ID != first.Assignment.ID {
		t.Fatalf("expected idempotent no-op, got %+v", again)
	}
	if !again.Assignment.AssignedAt.Equal(first.Assignment.AssignedAt) {
		t.Fatalf("no-op restarted the cooldown: %v vs %v", again.Assignment.AssignedAt, first.Assignment.AssignedAt)
	}
	if len(pub.all()) != published {
		t.Fatalf("no-op re-select published an event")
	}

	c, _ := repo.GetCoachProfile(ctx, db, "c1")
	if c.ActiveClients != 1 {
		t.Fatalf("active_clients = %d, want 1", c.ActiveClients)
	}
}

func TestSelectCoach_CooldownBlocksSwitch(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)
	seedCoach(t, db, "c2", 10, 0, true)

	if _, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c1"); err != nil {
		t.Fatalf("first select: %v", err)
	}
	// Age the assignment to 2 days.
	backdated := time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Model(&domain.Assignment{}).
		Where("client_id = ? AND status = ?", clientPro.ID, domain.AssignmentActive).
		Update("assigned_at", backdated).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	_, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c2")
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("expected CooldownError, got %v", err)
	}
	if cd.RemainingDays != 3 {
		t.Fatalf("remaining_days = %d, want 3", cd.RemainingDays)
	}

	// No state change on rejection.
	a, err := repo.GetActiveAssignment(ctx, db, clientPro.ID)
	if err != nil || a.CoachID != "c1" {
		t.Fatalf("assignment changed on rejected switch: %+v %v", a, err)
	}
}

func TestSelectCoach_SwitchAfterCooldown(t *testing.T) {
	db := newServiceDB(t)
	pub := &capturePublisher{}
	svc := NewAssignmentService(db, pub, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)
	seedCoach(t, db, "c2", 10, 0, true)

	first, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c1")
	if err != nil {
		t.Fatalf("first select: %v", err)
	}
	backdated := time.Now().UTC().Add(-6 * 24 * time.Hour)
	if err := db.Model(&domain.Assignment{}).
		Where("id = ?", first.Assignment.ID).
		Update("assigned_at", backdated).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	res, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c2")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if res.Assignment.CoachID != "c2" {
		t.Fatalf("unexpected new assignment: %+v", res.Assignment)
	}
	if res.EndedPrevious == nil || res.EndedPrevious.CoachID != "c1" || res.EndedPrevious.Status != domain.AssignmentEnded {
		t.Fatalf("unexpected ended previous: %+v", res.EndedPrevious)
	}

	c1, _ := repo.GetCoachProfile(ctx, db, "c1")
	c2, _ := repo.GetCoachProfile(ctx, db, "c2")
	if c1.ActiveClients != 0 || c2.ActiveClients != 1 {
		t.Fatalf("counters: c1=%d c2=%d, want 0/1", c1.ActiveClients, c2.ActiveClients)
	}

	// Only the new assignment is active.
	n, err := repo.CountActiveAssignmentsForCoach(ctx, db, "c1")
	if err != nil || n != 0 {
		t.Fatalf("c1 still has %d active assignments", n)
	}

	ev := pub.last(t)
	if ev.Type != bus.EventAssignmentChanged || ev.EndedAssignment == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(ev.Recipients) != 3 {
		t.Fatalf("recipients = %v, want client plus both coaches", ev.Recipients)
	}
}

func TestSelectCoach_SwitchBlockedWhenTargetFull(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)
	seedCoach(t, db, "c_full", 2, 2, true)

	first, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c1")
	if err != nil {
		t.Fatalf("first select: %v", err)
	}
	backdated := time.Now().UTC().Add(-6 * 24 * time.Hour)
	if err := db.Model(&domain.Assignment{}).
		Where("id = ?", first.Assignment.ID).
		Update("assigned_at", backdated).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if _, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c_full"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// The rejection rolled the whole transition back: still with c1.
	a, err := repo.GetActiveAssignment(ctx, db, clientPro.ID)
	if err != nil || a.CoachID != "c1" {
		t.Fatalf("previous assignment lost on rejected switch: %+v %v", a, err)
	}
	c1, _ := repo.GetCoachProfile(ctx, db, "c1")
	if c1.ActiveClients != 1 {
		t.Fatalf("c1 active_clients = %d, want 1", c1.ActiveClients)
	}
}

func TestCurrent_PolicyAndVisibility(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)
	if _, err := svc.SelectCoach(ctx, clientPro, clientPro.ID, "c1"); err != nil {
		t.Fatalf("select: %v", err)
	}

	for _, p := range []domain.Principal{clientPro, coachOne, adminUser} {
		if _, err := svc.Current(ctx, p, clientPro.ID); err != nil {
			t.Fatalf("Current as %s: %v", p.ID, err)
		}
	}
	if _, err := svc.Current(ctx, clientBasic, clientPro.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	// Strangers cannot distinguish "no assignment" from "not yours".
	if _, err := svc.Current(ctx, clientBasic, "unassigned"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Current(ctx, adminUser, "unassigned"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for admin, got %v", err)
	}
}

func TestListCoaches_RequiresPrincipal(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)
	seedCoach(t, db, "c_off", 10, 0, false)

	list, err := svc.ListCoaches(ctx, clientBasic)
	if err != nil {
		t.Fatalf("ListCoaches: %v", err)
	}
	if len(list) != 1 || list[0].CoachID != "c1" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if _, err := svc.ListCoaches(ctx, domain.Principal{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for empty principal, got %v", err)
	}
}

func TestSetAvailability_Policy(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssignmentService(db, &capturePublisher{}, 5)
	ctx := context.Background()

	seedCoach(t, db, "c1", 10, 0, true)

	if err := svc.SetAvailability(ctx, clientPro, "c1", false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	if err := svc.SetAvailability(ctx, coachOne, "c1", false); err != nil {
		t.Fatalf("owner toggle: %v", err)
	}
	c, _ := repo.GetCoachProfile(ctx, db, "c1")
	if c.IsAvailable {
		t.Fatalf("availability not cleared")
	}
	if err := svc.SetAvailability(ctx, adminUser, "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
