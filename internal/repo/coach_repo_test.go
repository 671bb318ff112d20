package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

func TestCreateAndGetCoachProfile(t *testing.T) {
	db := newRepoDB(t, &domain.CoachProfile{})
	ctx := context.Background()

	c, err := CreateCoachProfile(ctx, db, "coach_A", "Coach A", 10)
	if err != nil {
		t.Fatalf("CreateCoachProfile: %v", err)
	}
	if !c.IsAvailable || c.MaxClients != 10 || c.ActiveClients != 0 {
		t.Fatalf("unexpected profile defaults: %+v", c)
	}

	got, err := GetCoachProfile(ctx, db, "coach_A")
	if err != nil {
		t.Fatalf("GetCoachProfile: %v", err)
	}
	if got.DisplayName != "Coach A" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	if _, err := GetCoachProfile(ctx, db, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateCoachProfile_UnavailableRoundTrip(t *testing.T) {
	db := newRepoDB(t, &domain.CoachProfile{})
	ctx := context.Background()

	// A false flag must survive the insert; a column default would
	// silently flip it back to true.
	if err := db.Create(&domain.CoachProfile{CoachID: "c_off", IsAvailable: false, MaxClients: 10}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	c, err := GetCoachProfile(ctx, db, "c_off")
	if err != nil {
		t.Fatalf("GetCoachProfile: %v", err)
	}
	if c.IsAvailable {
		t.Fatalf("inserted IsAvailable=false but stored true")
	}
}

func TestListAvailableCoaches_FiltersAndOrder(t *testing.T) {
	db := newRepoDB(t, &domain.CoachProfile{})
	ctx := context.Background()

	seed := []domain.CoachProfile{
		{CoachID: "c_full", IsAvailable: true, MaxClients: 2, ActiveClients: 2},  // at capacity: hidden
		{CoachID: "c_off", IsAvailable: false, MaxClients: 10, ActiveClients: 0}, // unavailable: hidden
		{CoachID: "c_busy", IsAvailable: true, MaxClients: 10, ActiveClients: 7},
		{CoachID: "c_b", IsAvailable: true, MaxClients: 10, ActiveClients: 1},
		{CoachID: "c_a", IsAvailable: true, MaxClients: 10, ActiveClients: 1},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", seed[i].CoachID, err)
		}
	}

	list, err := ListAvailableCoaches(ctx, db)
	if err != nil {
		t.Fatalf("ListAvailableCoaches: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 coaches, got %d: %+v", len(list), list)
	}
	// active_clients asc, then coach_id asc for ties.
	if list[0].CoachID != "c_a" || list[1].CoachID != "c_b" || list[2].CoachID != "c_busy" {
		t.Fatalf("unexpected order: %s %s %s", list[0].CoachID, list[1].CoachID, list[2].CoachID)
	}
}

func TestIncrementActiveClients_GuardStopsAtCapacity(t *testing.T) {
	db := newRepoDB(t, &domain.CoachProfile{})
	ctx := context.Background()

	if err := db.Create(&domain.CoachProfile{CoachID: "c1", IsAvailable: true, MaxClients: 2}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := IncrementActiveClients(ctx, db, "c1")
		if err != nil || !ok {
			t.Fatalf("increment %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := IncrementActiveClients(ctx, db, "c1")
	if err != nil {
		t.Fatalf("increment past cap: %v", err)
	}
	if ok {
		t.Fatalf("expected guard to reject increment at capacity")
	}

	c, _ := GetCoachProfile(ctx, db, "c1")
	if c.ActiveClients != 2 {
		t.Fatalf("active_clients = %d, want 2", c.ActiveClients)
	}
}

func TestIncrementActiveClients_ConcurrentNeverExceedsCapacity(t *testing.T) {
	db := newRepoDB(t, &domain.CoachProfile{})
	ctx := context.Background()

	if err := db.Create(&domain.CoachProfile{CoachID: "cX", IsAvailable: true, MaxClients: 10, ActiveClients: 9}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := IncrementActiveClients(ctx, db, "cX")
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	if results[0] == results[1] {
		t.Fatalf("exactly one concurrent increment must win, got %v", results)
	}
	c, _ := GetCoachProfile(ctx, db, "cX")
	if c.ActiveClients != 10 {
		t.Fatalf("active_clients = %d, want 10", c.ActiveClients)
	}
}

func TestDecrementActiveClients_FloorsAtZero(t *testing.T) {
	db := newRepoDB(t, &domain.CoachProfile{})
	ctx := context.Background()

	if err := db.Create(&domain.CoachProfile{CoachID: "c1", IsAvailable: true, MaxClients: 10, ActiveClients: 1}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := DecrementActiveClients(ctx, db, "c1"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := DecrementActiveClients(ctx, db, "c1"); err != nil {
		t.Fatalf("decrement at zero: %v", err)
	}
	c, _ := GetCoachProfile(ctx, db, "c1")
	if c.ActiveClients != 0 {
		t.Fatalf("active_clients = %d, want 0", c.ActiveClients)
	}
}

func TestSetCoachAvailability(t *testing.T) {
	db := newRepoDB(t, &domain.CoachProfile{})
	ctx := context.Background()

	if err := db.Create(&domain.CoachProfile{CoachID: "c1", IsAvailable: true, MaxClients: 10}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SetCoachAvailability(ctx, db, "c1", false); err != nil {
		t.Fatalf("SetCoachAvailability: %v", err)
	}
	c, _ := GetCoachProfile(ctx, db, "c1")
	if c.IsAvailable {
		t.Fatalf("availability not cleared")
	}
	if err := SetCoachAvailability(ctx, db, "ghost", true); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for ghost, got %v", err)
	}
}
