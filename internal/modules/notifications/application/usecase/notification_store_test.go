package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtsync/internal/modules/notifications/domain"
	"courtsync/internal/modules/notifications/repository"
)

func TestAppendAssignsIDAndJournals(t *testing.T) {
	repo := repository.NewMock()
	store := NewNotificationStore(repo, 10)

	saved := store.Append(context.Background(), domain.Notification{ClubID: "club-1", Title: "payment failed"})
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}
	if saved.CreatedAt.IsZero() {
		t.Fatal("expected creation timestamp")
	}

	journaled, err := repo.Recent(context.Background(), "club-1", 10)
	if err != nil {
		t.Fatalf("journal read failed: %v", err)
	}
	if len(journaled) != 1 || journaled[0].ID != saved.ID {
		t.Fatalf("notification not journaled: %+v", journaled)
	}
}

func TestAppendSurvivesJournalFailure(t *testing.T) {
	repo := repository.NewMock()
	repo.FailSavesWith(errors.New("disk full"))
	store := NewNotificationStore(repo, 10)

	store.Append(context.Background(), domain.Notification{ClubID: "club-1", Title: "lock expired"})
	if store.Len() != 1 {
		t.Fatalf("in-memory window must keep the entry, got %d", store.Len())
	}
}

func TestRetentionBounded(t *testing.T) {
	store := NewNotificationStore(repository.NewMock(), 3)
	for i := 0; i < 5; i++ {
		store.Append(context.Background(), domain.Notification{ClubID: "club-1", Title: "n"})
	}
	if store.Len() != 3 {
		t.Fatalf("retention not enforced, got %d", store.Len())
	}
}

func TestRecentNewestFirst(t *testing.T) {
	store := NewNotificationStore(repository.NewMock(), 10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Append(context.Background(), domain.Notification{ID: "n-1", ClubID: "club-1", Title: "first", CreatedAt: base})
	store.Append(context.Background(), domain.Notification{ID: "n-2", ClubID: "club-1", Title: "second", CreatedAt: base.Add(time.Minute)})

	got := store.Recent(2)
	if len(got) != 2 || got[0].ID != "n-2" || got[1].ID != "n-1" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestWarmBackfillsWindow(t *testing.T) {
	repo := repository.NewMock()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.Save(context.Background(), domain.Notification{ID: "n-1", ClubID: "club-1", Title: "old", CreatedAt: base})
	repo.Save(context.Background(), domain.Notification{ID: "n-2", ClubID: "club-1", Title: "new", CreatedAt: base.Add(time.Hour)})

	store := NewNotificationStore(repo, 10)
	if err := store.Warm(context.Background(), "club-1"); err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	got := store.Recent(10)
	if len(got) != 2 || got[0].ID != "n-2" {
		t.Fatalf("backfill order wrong: %+v", got)
	}
}
