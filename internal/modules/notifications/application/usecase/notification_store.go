package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"courtsync/internal/modules/notifications/domain"
	"courtsync/internal/modules/notifications/repository"
)

const defaultRetention = 200

// NotificationStore keeps a bounded in-memory window of admin notifications
// and writes each one through to the journal. Reads never hit the journal
// except at cold start.
type NotificationStore struct {
	mu        sync.Mutex
	repo      repository.NotificationRepository
	retention int
	items     []domain.Notification
}

func NewNotificationStore(repo repository.NotificationRepository, retention int) *NotificationStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &NotificationStore{repo: repo, retention: retention}
}

// Warm backfills the in-memory window from the journal.
func (s *NotificationStore) Warm(ctx context.Context, clubID string) error {
	recent, err := s.repo.Recent(ctx, clubID, s.retention)
	if err != nil {
		return err
	}
	// Journal returns newest-first; the window is oldest-first.
	s.mu.Lock()
	s.items = s.items[:0]
	for i := len(recent) - 1; i >= 0; i-- {
		s.items = append(s.items, recent[i])
	}
	s.mu.Unlock()
	return nil
}

// Append assigns the notification an id when it arrives without one, stamps
// the time, appends it to the window and journals it. A journal failure does
// not drop the in-memory entry.
func (s *NotificationStore) Append(ctx context.Context, n domain.Notification) domain.Notification {
	if strings.TrimSpace(n.ID) == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.items = append(s.items, n)
	if overflow := len(s.items) - s.retention; overflow > 0 {
		s.items = append(s.items[:0:0], s.items[overflow:]...)
	}
	s.mu.Unlock()

	if err := s.repo.Save(ctx, n); err != nil {
		slog.Warn("notification journal write failed", slog.String("id", n.ID), slog.String("clubId", n.ClubID), slog.Any("error", err))
	}
	return n
}

// Recent returns up to limit notifications, newest first.
func (s *NotificationStore) Recent(limit int) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.items) {
		limit = len(s.items)
	}
	out := make([]domain.Notification, 0, limit)
	for i := len(s.items) - 1; i >= len(s.items)-limit; i-- {
		out = append(out, s.items[i])
	}
	return out
}

func (s *NotificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
