package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

func TestInsertNotifications_Batches(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	if n, err := InsertNotifications(ctx, db, nil, 0); err != nil || n != 0 {
		t.Fatalf("empty insert = %d, %v", n, err)
	}

	now := time.Now().UTC()
	rows := make([]domain.Notification, 0, 7)
	for i := 1; i <= 7; i++ {
		rows = append(rows, domain.Notification{
			Message: "m", RelatedEntityType: domain.EntityProperty, RelatedEntityID: 1,
			RecipientID: uptr(uint(i)), CreatedAt: now,
		})
	}
	n, err := InsertNotifications(ctx, db, rows, 3)
	if err != nil {
		t.Fatalf("InsertNotifications: %v", err)
	}
	if n != 7 {
		t.Fatalf("rows affected = %d; want 7", n)
	}
	var total int64
	db.Model(&domain.Notification{}).Count(&total)
	if total != 7 {
		t.Fatalf("persisted %d rows; want 7", total)
	}
}

func TestRecentlyNotified_PrefixEntityAndWindow(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := []domain.Notification{
		// inside window, matching prefix, same property
		{Message: "Preço reduzido: Casa", RelatedEntityType: domain.EntityProperty, RelatedEntityID: 42, RecipientID: uptr(1), CreatedAt: now.Add(-time.Hour)},
		// ascii prefix variant
		{Message: "Preco reduzido: Casa", RelatedEntityType: domain.EntityProperty, RelatedEntityID: 42, RecipientID: uptr(2), CreatedAt: now.Add(-2 * time.Hour)},
		// outside window
		{Message: "Preço reduzido: Casa", RelatedEntityType: domain.EntityProperty, RelatedEntityID: 42, RecipientID: uptr(3), CreatedAt: now.Add(-7 * time.Hour)},
		// other property
		{Message: "Preço reduzido: Outra", RelatedEntityType: domain.EntityProperty, RelatedEntityID: 43, RecipientID: uptr(4), CreatedAt: now.Add(-time.Hour)},
		// other message
		{Message: "Imóvel aprovado", RelatedEntityType: domain.EntityProperty, RelatedEntityID: 42, RecipientID: uptr(5), CreatedAt: now.Add(-time.Hour)},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := RecentlyNotified(ctx, db, []uint{1, 2, 3, 4, 5, 6}, domain.EntityProperty, 42,
		[]string{"Preço reduzido", "Preco reduzido"}, now.Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("RecentlyNotified: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v; want recipients 1 and 2", got)
	}
	for _, id := range []uint{1, 2} {
		if _, ok := got[id]; !ok {
			t.Fatalf("recipient %d missing from %v", id, got)
		}
	}

	empty, err := RecentlyNotified(ctx, db, nil, domain.EntityProperty, 42, []string{"Preço reduzido"}, now)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty recipients = %v, %v", empty, err)
	}
}

func TestListNotificationsPage_AndMarkRead(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var rows []domain.Notification
	for i := 0; i < 5; i++ {
		rows = append(rows, domain.Notification{
			Message: "n", RelatedEntityType: domain.EntityProperty, RelatedEntityID: uint(i + 1),
			RecipientID: uptr(9), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	rows = append(rows, domain.Notification{Message: "admins", RelatedEntityType: domain.EntityProperty, RelatedEntityID: 1, CreatedAt: base.Add(time.Hour)})
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	total, err := CountNotifications(ctx, db, 9, false)
	if err != nil || total != 5 {
		t.Fatalf("CountNotifications = %d, %v; want 5", total, err)
	}
	page, err := ListNotificationsPage(ctx, db, 9, false, 0, 2)
	if err != nil {
		t.Fatalf("ListNotificationsPage: %v", err)
	}
	if len(page) != 2 || page[0].RelatedEntityID != 5 || page[1].RelatedEntityID != 4 {
		t.Fatalf("expected newest-first page [5,4], got %+v", page)
	}

	withBroadcast, err := ListNotificationsPage(ctx, db, 9, true, 0, 10)
	if err != nil || len(withBroadcast) != 6 || withBroadcast[0].RecipientID != nil {
		t.Fatalf("broadcast listing wrong: len=%d err=%v", len(withBroadcast), err)
	}

	if err := MarkNotificationRead(ctx, db, page[0].ID, 9); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if err := MarkNotificationRead(ctx, db, page[0].ID, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign recipient must get ErrNotFound, got %v", err)
	}
}

func TestChunkIDs(t *testing.T) {
	got := chunkIDs([]uint{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Fatalf("unexpected chunks: %v", got)
	}
	if got := chunkIDs(nil, 2); len(got) != 0 {
		t.Fatalf("nil input must give no chunks, got %v", got)
	}
}
