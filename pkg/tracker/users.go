package tracker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"taskhub/pkg/apperr"
	"taskhub/pkg/user"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,38}$`)

// NewUser is the input to CreateUser.
type NewUser struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// RegisterUser creates a user without an authorization check. It backs the
// CLI and bootstrapping.
func (s *Service) RegisterUser(ctx context.Context, in NewUser) (*user.User, error) {
	name := strings.TrimSpace(in.Username)
	if !usernameRe.MatchString(name) {
		return nil, invalid("invalid username %q", in.Username)
	}
	switch in.Role {
	case "":
		in.Role = user.RoleMember
	case user.RoleAdmin, user.RoleMember:
	default:
		return nil, invalid("unknown role %q", in.Role)
	}
	u, err := s.repos.Users.Create(ctx, &user.User{
		Username:    name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Email:       strings.TrimSpace(in.Email),
		Role:        in.Role,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("tracker: user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// CreateUser creates a user. Admin only.
func (s *Service) CreateUser(ctx context.Context, a Actor, in NewUser) (*user.User, error) {
	if !a.IsAdmin() {
		return nil, fmt.Errorf("%w: creating users requires admin", apperr.ErrForbidden)
	}
	return s.RegisterUser(ctx, in)
}

// Me returns the actor's own user record.
func (s *Service) Me(ctx context.Context, a Actor) (*user.User, error) {
	return s.repos.Users.Get(ctx, a.UserID)
}

// Users lists every user.
func (s *Service) Users(ctx context.Context) ([]user.User, error) {
	return s.repos.Users.List(ctx)
}
