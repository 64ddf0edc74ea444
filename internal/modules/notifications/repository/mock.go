package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"courtsync/internal/modules/notifications/domain"
)

// MockRepository is an in-memory NotificationRepository for tests and for
// running the gateway without a data directory.
type MockRepository struct {
	mu      sync.Mutex
	items   map[string]domain.Notification
	saveErr error
}

func NewMock() *MockRepository {
	return &MockRepository{items: make(map[string]domain.Notification)}
}

// FailSavesWith makes every subsequent Save return err.
func (m *MockRepository) FailSavesWith(err error) {
	m.mu.Lock()
	m.saveErr = err
	m.mu.Unlock()
}

func (m *MockRepository) Save(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[n.ID] = n
	return nil
}

func (m *MockRepository) Recent(_ context.Context, clubID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]domain.Notification, 0, len(m.items))
	for _, n := range m.items {
		if clubID == "" || n.ClubID == clubID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, n := range m.items {
		if n.CreatedAt.Before(before) {
			delete(m.items, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MockRepository) Close() error { return nil }

var _ NotificationRepository = (*MockRepository)(nil)
