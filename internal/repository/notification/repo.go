// Package notification stores pull-delivered notification records.
package notification

import (
	"context"
	"fmt"
	"time"

	domnotif "github.com/kailas-cloud/bbs/internal/domain/notification"
	"github.com/kailas-cloud/bbs/internal/repository/sqlite"
)

// Repo implements the notification store over SQLite.
type Repo struct {
	store *sqlite.Store
}

// New creates a notification repository.
func New(store *sqlite.Store) *Repo {
	return &Repo{store: store}
}

// Create persists a notification record.
func (r *Repo) Create(ctx context.Context, n domnotif.Notification) error {
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO notifications (id, recipient, kind, post_id, from_name, message, created_at, read)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		n.ID, n.Recipient, string(n.Kind), n.PostID, n.From, n.Message, n.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Unread returns the recipient's unread notifications, newest first.
func (r *Repo) Unread(ctx context.Context, fingerprint string) ([]domnotif.Notification, error) {
	rows, err := r.store.DB().QueryContext(ctx, `
		SELECT id, recipient, kind, COALESCE(post_id, ''), COALESCE(from_name, ''), message, created_at, read
		FROM notifications
		WHERE recipient = ? AND read = 0
		ORDER BY created_at DESC, id ASC`,
		fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("query unread notifications: %w", err)
	}
	defer rows.Close()

	var notifs []domnotif.Notification
	for rows.Next() {
		var (
			n            domnotif.Notification
			kind         string
			createdNanos int64
			read         int
		)
		if err := rows.Scan(&n.ID, &n.Recipient, &kind, &n.PostID, &n.From,
			&n.Message, &createdNanos, &read); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = domnotif.Kind(kind)
		n.CreatedAt = time.Unix(0, createdNanos).UTC()
		n.Read = read != 0
		notifs = append(notifs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifs, nil
}

// CountUnread returns the recipient's unread notification count.
func (r *Repo) CountUnread(ctx context.Context, fingerprint string) (int, error) {
	var n int
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient = ? AND read = 0`,
		fingerprint).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkAllRead flips the read flag on all of the recipient's notifications.
func (r *Repo) MarkAllRead(ctx context.Context, fingerprint string) error {
	_, err := r.store.DB().ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE recipient = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
