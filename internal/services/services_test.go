package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yamifit/yamifit-backend/internal/bus"
	"github.com/yamifit/yamifit-backend/internal/domain"
	"github.com/yamifit/yamifit-backend/internal/repo"
)

// Shared principals used across the service tests.
var (
	clientPro   = domain.Principal{ID: "u1", Role: domain.RoleUser, Plan: domain.PlanPro}
	clientBasic = domain.Principal{ID: "u2", Role: domain.RoleUser, Plan: domain.PlanBasic}
	coachOne    = domain.Principal{ID: "c1", Role: domain.RoleCoach, Plan: domain.PlanPro}
	adminUser   = domain.Principal{ID: "adm", Role: domain.RoleAdmin, Plan: domain.PlanPro}
)

// newServiceDB opens a throwaway SQLite database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA busy_timeout=5000;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// capturePublisher records published bus events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (c *capturePublisher) Publish(_ context.Context, ev bus.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *capturePublisher) all() []bus.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bus.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *capturePublisher) last(t *testing.T) bus.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		t.Fatalf("no bus events published")
	}
	return c.events[len(c.events)-1]
}

func seedCoach(t *testing.T, db *gorm.DB, coachID string, maxClients, active int, available bool) {
	t.Helper()
	profile := domain.CoachProfile{
		CoachID:       coachID,
		DisplayName:   "Coach " + coachID,
		IsAvailable:   available,
		MaxClients:    maxClients,
		ActiveClients: active,
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("seed coach %s: %v", coachID, err)
	}
}
