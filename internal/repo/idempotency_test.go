package repo

import (
	"context"
	"testing"
	"time"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

func TestIdempotency_CreateGetRoundTrip(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()
	pair := domain.PairKey("u1", "c1")

	rec, err := CreateIdempotency(ctx, db, "u1", pair, "k-1", "msg-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.MessageID != "msg-1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", pair, "k-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.MessageID != "msg-1" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestIdempotency_DuplicateTuple(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()
	pair := domain.PairKey("u1", "c1")

	if _, err := CreateIdempotency(ctx, db, "u1", pair, "k-1", "msg-1", 201, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", pair, "k-1", "msg-2", 201, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same key is fine for a different sender or pair.
	if _, err := CreateIdempotency(ctx, db, "c1", pair, "k-1", "msg-3", 201, time.Hour); err != nil {
		t.Fatalf("other sender: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", domain.PairKey("u1", "c2"), "k-1", "msg-4", 201, time.Hour); err != nil {
		t.Fatalf("other pair: %v", err)
	}
}

func TestIdempotency_ExpiredRecordInvisible(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()
	pair := domain.PairKey("u1", "c1")

	rec, err := CreateIdempotency(ctx, db, "u1", pair, "k-1", "msg-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", pair, "k-1", rec.ExpiresAt); err != ErrNotFound {
		t.Fatalf("expected expired record to be invisible, got %v", err)
	}
}

func TestIdempotency_BlankPairKeyNotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	if _, err := GetIdempotency(context.Background(), db, "u1", "  ", "k", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for blank pair key, got %v", err)
	}
}
