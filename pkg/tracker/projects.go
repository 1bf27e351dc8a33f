package tracker

import (
	"context"
	"fmt"
	"strings"

	"taskhub/pkg/apperr"
	"taskhub/pkg/audit"
	"taskhub/pkg/project"
	"taskhub/pkg/push"
	"taskhub/pkg/store"
)

// NewProject is the input to CreateProject.
type NewProject struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MemberIDs   []int64 `json:"member_ids"`
}

// CreateProject creates a project owned by the actor and adds the initial
// members.
func (s *Service) CreateProject(ctx context.Context, a Actor, in NewProject) (*project.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("project name is required")
	}

	var p *project.Project
	memberIDs := []int64{a.UserID}
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		var err error
		p, err = r.Projects.Create(ctx, &project.Project{Name: name, Description: in.Description, CreatorID: a.UserID})
		if err != nil {
			return err
		}
		if _, err := r.Projects.UpsertMember(ctx, &project.Member{ProjectID: p.ID, UserID: a.UserID, Role: project.RoleOwner}); err != nil {
			return err
		}
		seen := map[int64]bool{a.UserID: true}
		for _, id := range in.MemberIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, err := r.Projects.UpsertMember(ctx, &project.Member{ProjectID: p.ID, UserID: id, Role: project.RoleMember}); err != nil {
				return err
			}
			memberIDs = append(memberIDs, id)
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionProjectCreated,
			fmt.Sprintf("project %d %q", p.ID, p.Name), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tracker: project created", "project_id", p.ID, "user_id", a.UserID)
	created, err := s.notifier.NotifyProjectCreated(ctx, p, memberIDs)
	s.notified("project_created", created, err)
	return p, nil
}

// UpdateProject applies u to a project the actor works in.
func (s *Service) UpdateProject(ctx context.Context, a Actor, id int64, u project.Update) (*project.Project, error) {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, invalid("project name cannot be empty")
		}
		u.Name = &name
	}

	var p *project.Project
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		if _, err := access(ctx, r, a, id); err != nil {
			return err
		}
		var err error
		if p, err = r.Projects.Update(ctx, id, u); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionProjectUpdated,
			fmt.Sprintf("project %d %q", p.ID, p.Name), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	created, err := s.notifier.NotifyProjectUpdated(ctx, p, a.UserID)
	s.notified("project_updated", created, err)
	s.refresh(ctx, p.ID, "project_updated", 0)
	return p, nil
}

// GetProject returns a project the actor works in.
func (s *Service) GetProject(ctx context.Context, a Actor, id int64) (*project.Project, error) {
	return access(ctx, s.repos, a, id)
}

// ListProjects returns the projects where the actor is an active member.
func (s *Service) ListProjects(ctx context.Context, a Actor) ([]project.Project, error) {
	return s.repos.Projects.ForUser(ctx, a.UserID)
}

// Members returns a project's active members.
func (s *Service) Members(ctx context.Context, a Actor, projectID int64) ([]project.Member, error) {
	if _, err := access(ctx, s.repos, a, projectID); err != nil {
		return nil, err
	}
	return s.repos.Projects.ActiveMembers(ctx, projectID)
}

// AddMember adds userID to the project, re-activating a removed membership.
func (s *Service) AddMember(ctx context.Context, a Actor, projectID, userID int64, role string) (*project.Member, error) {
	switch role {
	case "":
		role = project.RoleMember
	case project.RoleMember, project.RoleOwner:
	default:
		return nil, invalid("unknown member role %q", role)
	}

	var m *project.Member
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		if _, err := access(ctx, r, a, projectID); err != nil {
			return err
		}
		if _, err := r.Users.Get(ctx, userID); err != nil {
			return err
		}
		var err error
		if m, err = r.Projects.UpsertMember(ctx, &project.Member{ProjectID: projectID, UserID: userID, Role: role}); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionMemberAdded,
			fmt.Sprintf("project %d user %d as %s", projectID, userID, role), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, projectID, "member_added", 0)
	return m, nil
}

// RemoveMember soft-removes userID. The project creator cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, a Actor, projectID, userID int64) error {
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		p, err := access(ctx, r, a, projectID)
		if err != nil {
			return err
		}
		if p.CreatorID == userID {
			return fmt.Errorf("%w: the creator of project %d cannot be removed", apperr.ErrInvalidOperation, projectID)
		}
		if err := r.Projects.DeactivateMember(ctx, projectID, userID); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionMemberRemoved,
			fmt.Sprintf("project %d user %d", projectID, userID), a.IP)
		return err
	})
	if err != nil {
		return err
	}
	if l, ok := s.pusher.(groupLeaver); ok {
		l.Leave(userID, push.ProjectGroup(projectID))
	}
	s.refresh(ctx, projectID, "member_removed", 0)
	return nil
}
