// Package notification is the pull-only read side of derived notifications:
// recipients list their unread set and acknowledge it, nothing is pushed.
package notification

import (
	"context"
	"fmt"

	domnotif "github.com/kailas-cloud/bbs/internal/domain/notification"
)

// Service serves the notification inbox.
type Service struct {
	repo Repository
}

// New creates a notification service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Unread returns the recipient's unread notifications, newest first.
func (s *Service) Unread(ctx context.Context, fingerprint string) ([]domnotif.Notification, error) {
	ns, err := s.repo.Unread(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	return ns, nil
}

// UnreadCount returns the size of the unread set.
func (s *Service) UnreadCount(ctx context.Context, fingerprint string) (int, error) {
	n, err := s.repo.CountUnread(ctx, fingerprint)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead acknowledges the recipient's whole unread set.
func (s *Service) MarkRead(ctx context.Context, fingerprint string) error {
	if err := s.repo.MarkAllRead(ctx, fingerprint); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
