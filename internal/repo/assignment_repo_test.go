package repo

import (
	"context"
	"testing"
	"time"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

func TestCreateAndGetActiveAssignment(t *testing.T) {
	db := newRepoDB(t, &domain.Assignment{})
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := CreateAssignment(ctx, db, "u1", "c1", now)
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if a.Status != domain.AssignmentActive || a.AssignedAt != now {
		t.Fatalf("unexpected assignment: %+v", a)
	}

	got, err := GetActiveAssignment(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetActiveAssignment: %v", err)
	}
	if got.ID != a.ID || got.CoachID != "c1" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	if _, err := GetActiveAssignment(ctx, db, "u2"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unassigned client, got %v", err)
	}
}

func TestEndAssignment_IdempotentGuard(t *testing.T) {
	db := newRepoDB(t, &domain.Assignment{})
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := CreateAssignment(ctx, db, "u1", "c1", now)
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	endedAt := now.Add(time.Hour)
	ok, err := EndAssignment(ctx, db, a.ID, endedAt)
	if err != nil || !ok {
		t.Fatalf("first end: ok=%v err=%v", ok, err)
	}
	// Replay ends nothing.
	ok, err = EndAssignment(ctx, db, a.ID, endedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("second end: %v", err)
	}
	if ok {
		t.Fatalf("expected replayed end to affect zero rows")
	}

	var got domain.Assignment
	if err := db.First(&got, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != domain.AssignmentEnded || got.EndedAt == nil {
		t.Fatalf("unexpected ended row: %+v", got)
	}
	if d := got.EndedAt.Sub(endedAt); d < -time.Second || d > time.Second {
		t.Fatalf("ended_at drifted: %v vs %v", got.EndedAt, endedAt)
	}
	if _, err := GetActiveAssignment(ctx, db, "u1"); err != ErrNotFound {
		t.Fatalf("ended assignment still visible as active: %v", err)
	}
}

func TestCountActiveAssignmentsForCoach(t *testing.T) {
	db := newRepoDB(t, &domain.Assignment{})
	ctx := context.Background()
	now := time.Now().UTC()

	for _, client := range []string{"u1", "u2", "u3"} {
		if _, err := CreateAssignment(ctx, db, client, "c1", now); err != nil {
			t.Fatalf("seed %s: %v", client, err)
		}
	}
	a, _ := GetActiveAssignment(ctx, db, "u3")
	if _, err := EndAssignment(ctx, db, a.ID, now); err != nil {
		t.Fatalf("end: %v", err)
	}

	n, err := CountActiveAssignmentsForCoach(ctx, db, "c1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}
