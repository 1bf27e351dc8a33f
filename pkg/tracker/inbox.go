package tracker

import (
	"context"
	"fmt"

	"taskhub/pkg/apperr"
	"taskhub/pkg/audit"
	"taskhub/pkg/notification"
)

// Inbox returns the actor's notifications, newest first.
func (s *Service) Inbox(ctx context.Context, a Actor, q notification.Query) ([]notification.Notification, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	return s.repos.Notifications.ForUser(ctx, a.UserID, q)
}

// UnreadCount returns the actor's unread badge count.
func (s *Service) UnreadCount(ctx context.Context, a Actor) (int, error) {
	return s.repos.Notifications.UnreadCount(ctx, a.UserID)
}

// MarkRead marks one of the actor's notifications read and tells their
// other streams.
func (s *Service) MarkRead(ctx context.Context, a Actor, id string) (*notification.Notification, error) {
	n, err := s.repos.Notifications.MarkRead(ctx, a.UserID, id)
	if err != nil {
		return nil, err
	}
	s.pushRead(ctx, a.UserID, map[string]any{"id": n.ID})
	return n, nil
}

// MarkAllRead marks every unread notification of the actor read.
func (s *Service) MarkAllRead(ctx context.Context, a Actor) (int, error) {
	n, err := s.repos.Notifications.MarkAllRead(ctx, a.UserID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.pushRead(ctx, a.UserID, map[string]any{"all": true, "count": n})
	}
	return n, nil
}

func (s *Service) pushRead(ctx context.Context, userID int64, payload map[string]any) {
	if err := s.pusher.SendToUser(ctx, userID, EventNotificationRead, payload); err != nil {
		s.log.Warn("tracker: read push failed", "user_id", userID, "err", err)
	}
}

// AuditLog returns recent audit entries. Admins see everything, others
// only their own.
func (s *Service) AuditLog(ctx context.Context, a Actor, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if a.IsAdmin() {
		return s.repos.Audit.Recent(ctx, limit)
	}
	return s.repos.Audit.ByUser(ctx, a.UserID, limit)
}

// VerifyAudit checks the whole chain. Admin only.
func (s *Service) VerifyAudit(ctx context.Context, a Actor) (int, error) {
	if !a.IsAdmin() {
		return 0, fmt.Errorf("%w: audit verification requires admin", apperr.ErrForbidden)
	}
	chain, err := s.repos.Audit.Chain(ctx)
	if err != nil {
		return 0, err
	}
	return len(chain), audit.Verify(chain)
}
