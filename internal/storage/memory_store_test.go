package storage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore_PutStatRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "att/u1/a.png", strings.NewReader("pngbytes"), 8, "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	info, err := s.Stat(ctx, "att/u1/a.png")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.ContentType != "image/png" || info.Size != 8 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestMemoryStore_StatMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Stat(context.Background(), "ghost"); err != ErrObjectNotFound {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryStore_PresignAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "k", strings.NewReader("x"), 1, "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	url, err := s.PresignGet(ctx, "k", time.Minute)
	if err != nil || url == "" {
		t.Fatalf("PresignGet: %q %v", url, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Stat(ctx, "k"); err != ErrObjectNotFound {
		t.Fatalf("object survived delete: %v", err)
	}
	// Deleting again is a no-op.
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}
