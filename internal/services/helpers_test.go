package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/events"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

// newTestDB opens a private in-memory database with the full schema. One
// connection keeps every statement on the same SQLite handle.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role domain.Role, approved bool) *domain.User {
	t.Helper()
	u := &domain.User{Name: name, Email: strings.ToLower(name) + "@example.com", Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	// Approved has a DB default; write it explicitly so false sticks.
	if err := db.Model(u).Update("approved", approved).Error; err != nil {
		t.Fatalf("seed user approval: %v", err)
	}
	u.Approved = approved
	return u
}

func seedListing(t *testing.T, db *gorm.DB, p domain.Property) *domain.Property {
	t.Helper()
	if p.Title == "" {
		p.Title = "Casa"
	}
	if err := repo.CreateProperty(context.Background(), db, &p); err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return &p
}

func seedFavorite(t *testing.T, db *gorm.DB, userID, propertyID uint) {
	t.Helper()
	if err := repo.AddFavorite(context.Background(), db, userID, propertyID); err != nil {
		t.Fatalf("seed favorite: %v", err)
	}
}

func seedToken(t *testing.T, db *gorm.DB, userID uint, token string) {
	t.Helper()
	if err := repo.UpsertDeviceToken(context.Background(), db, userID, token, "android"); err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func countNotifications(t *testing.T, db *gorm.DB, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(&domain.Notification{})
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return n
}

func f64(v float64) *float64 { return &v }
func uptr(v uint) *uint       { return &v }
func sptr(v string) *string   { return &v }

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder is an events.Publisher that keeps what it was given.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last(t events.Type) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}
