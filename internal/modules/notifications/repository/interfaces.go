package repository

import (
	"context"
	"time"

	"courtsync/internal/modules/notifications/domain"
)

// NotificationRepository persists the admin notification journal so it
// survives gateway restarts. The in-memory store is the read path; the
// repository is write-behind plus cold-start backfill.
type NotificationRepository interface {
	Save(ctx context.Context, n domain.Notification) error
	Recent(ctx context.Context, clubID string, limit int) ([]domain.Notification, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
