// Package tracker is the application service. Each mutating operation runs
// its writes and audit entry in one unit of work, then fans out
// notifications and dashboard pushes after the commit.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskhub/pkg/apperr"
	"taskhub/pkg/dependency"
	"taskhub/pkg/notification"
	"taskhub/pkg/project"
	"taskhub/pkg/push"
	"taskhub/pkg/store"
	"taskhub/pkg/user"
)

// Push event names.
const (
	EventDashboardRefresh = "dashboard.refresh"
	EventNotificationRead = "notification.read"
)

// Actor is the authenticated caller. The service trusts it as given.
type Actor struct {
	UserID int64
	Role   string
	IP     string
}

// IsAdmin reports whether the actor bypasses membership checks.
func (a Actor) IsAdmin() bool { return a.Role == user.RoleAdmin }

// Service implements every use case on top of a unit of work.
type Service struct {
	uow      store.UnitOfWork
	repos    store.Repos
	notifier *notification.Notifier
	pusher   notification.Pusher
	validate *dependency.Validator

	enforceCompletion bool
	log               *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithCompletionGate refuses moves to completed while prerequisites are open.
func WithCompletionGate(enforce bool) Option {
	return func(s *Service) { s.enforceCompletion = enforce }
}

// New creates a Service. repos is used for reads and for notification
// fan-out outside of any unit of work.
func New(uow store.UnitOfWork, repos store.Repos, notifier *notification.Notifier, pusher notification.Pusher, opts ...Option) *Service {
	s := &Service{
		uow:               uow,
		repos:             repos,
		notifier:          notifier,
		pusher:            pusher,
		validate:          dependency.NewValidator(repos.Dependencies, repos.Tasks),
		enforceCompletion: true,
		log:               slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validator returns the read-side dependency validator.
func (s *Service) Validator() *dependency.Validator { return s.validate }

// access returns the project if a may work in it: admins always, everyone
// else only as an active member.
func access(ctx context.Context, r store.Repos, a Actor, projectID int64) (*project.Project, error) {
	p, err := r.Projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if a.IsAdmin() {
		return p, nil
	}
	m, err := r.Projects.Member(ctx, projectID, a.UserID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && !m.Active) {
		return nil, fmt.Errorf("%w: user %d is not a member of project %d", apperr.ErrForbidden, a.UserID, projectID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// requireActiveMember rejects assigning work to someone outside the project.
func requireActiveMember(ctx context.Context, r store.Repos, projectID, userID int64) error {
	m, err := r.Projects.Member(ctx, projectID, userID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && !m.Active) {
		return fmt.Errorf("%w: user %d is not an active member of project %d", apperr.ErrValidation, userID, projectID)
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrValidation, fmt.Sprintf(format, args...))
}

// notified logs a fan-out failure. The triggering operation has already
// committed and must still succeed.
func (s *Service) notified(op string, created []notification.Notification, err error) {
	if err != nil {
		s.log.Warn("tracker: notification fan-out failed", "op", op, "created", len(created), "err", err)
	}
}

// groupLeaver is implemented by pushers that track group membership.
type groupLeaver interface {
	Leave(userID int64, group string)
}

// refresh tells everyone watching a project's dashboard to reload.
func (s *Service) refresh(ctx context.Context, projectID int64, reason string, taskID int64) {
	payload := map[string]any{"project_id": projectID, "reason": reason}
	if taskID != 0 {
		payload["task_id"] = taskID
	}
	if err := s.pusher.SendToGroup(ctx, push.ProjectGroup(projectID), EventDashboardRefresh, payload); err != nil {
		s.log.Warn("tracker: dashboard refresh failed", "project_id", projectID, "err", err)
	}
}
