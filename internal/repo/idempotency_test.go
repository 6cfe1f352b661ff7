package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-study-assistant/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique in-memory database per test to avoid schema leakage across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetIdempotency_BlankScopeOrKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	if rec, err := GetIdempotency(context.Background(), db, "c1", "   ", "k1", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank scope, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "c1", "questions", "", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestIdempotency_CreateGetExpireDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "c1", "questions", "k1", "q1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.ResourceID != "q1" || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "c1", "questions", "k1", time.Now().UTC())
	if err != nil || got.ResourceID != "q1" || got.Status != 201 {
		t.Fatalf("GetIdempotency = (%+v, %v)", got, err)
	}

	// different client does not see it
	if _, err := GetIdempotency(ctx, db, "c2", "questions", "k1", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for another client, got %v", err)
	}

	// expired from the point of view of a later clock
	if _, err := GetIdempotency(ctx, db, "c1", "questions", "k1", time.Now().UTC().Add(2*time.Hour)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "c1", "questions", "k1", "q2", 201, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "c1", "s", "new", "r2", 201, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "c1", "s", "old", "r1", 201, time.Millisecond); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, time.Now().UTC().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("purge = (%d, %v), want (1, nil)", n, err)
	}
}

func TestCreateIdempotency_PurgesExpiredOnWrite(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "c1", "questions", "k1", "q1", 201, time.Millisecond); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "c1", "questions", "other", "q9", 201, time.Millisecond); err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	// The expired key is reusable and the stale row for "other" is gone too.
	rec, err := CreateIdempotency(ctx, db, "c1", "questions", "k1", "q2", 201, time.Hour)
	if err != nil || rec.ResourceID != "q2" {
		t.Fatalf("re-create after TTL = (%+v, %v)", rec, err)
	}
	var n int64
	if err := db.Model(&domain.Idempotency{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("rows after write = (%d, %v), want 1", n, err)
	}
}

func TestGormIdempotency_Adapter(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	s := GormIdempotency{DB: db}
	ctx := context.Background()
	if _, err := s.Create(ctx, "c1", "questions", "k", "q1", 201, time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, err := s.Get(ctx, "c1", "questions", "k", time.Now().UTC())
	if err != nil || rec.ResourceID != "q1" {
		t.Fatalf("Get = (%+v, %v)", rec, err)
	}
}
