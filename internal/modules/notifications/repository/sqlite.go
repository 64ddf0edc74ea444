package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"courtsync/internal/modules/notifications/domain"
)

// SQLiteRepository stores notifications in a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open notification db: %w", err)
	}
	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewWithDB wraps an already opened handle; tests use it with go-sqlmock.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) migrate() error {
	schema := `CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL,
		level TEXT,
		title TEXT NOT NULL,
		body TEXT,
		created_at DATETIME NOT NULL
	)`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate notifications: %w", err)
	}
	if _, err := r.db.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_club_created ON notifications(club_id, created_at)`); err != nil {
		return fmt.Errorf("index notifications: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Save(ctx context.Context, n domain.Notification) error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("notification id required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO notifications (id, club_id, level, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.ClubID, n.Level, n.Title, n.Body, n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Recent(ctx context.Context, clubID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, club_id, level, title, body, created_at FROM notifications WHERE club_id = ? ORDER BY created_at DESC LIMIT ?`,
		clubID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.ClubID, &n.Level, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

var _ NotificationRepository = (*SQLiteRepository)(nil)
