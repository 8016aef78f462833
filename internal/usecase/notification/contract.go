package notification

import (
	"context"

	domnotif "github.com/kailas-cloud/bbs/internal/domain/notification"
)

// Repository defines the storage contract for notifications.
type Repository interface {
	Unread(ctx context.Context, fingerprint string) ([]domnotif.Notification, error)
	CountUnread(ctx context.Context, fingerprint string) (int, error)
	MarkAllRead(ctx context.Context, fingerprint string) error
}
