package project

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/db"
)

const projectColumns = `id, name, description, creator_id, archived, created_at, updated_at`

// PgStore is a PostgreSQL-backed project store.
type PgStore struct {
	q db.Querier
}

// NewPgStore creates a PgStore over a pool or a transaction.
func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

// EnsureTable creates the projects and project_members tables if they don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS projects (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			creator_id  BIGINT NOT NULL REFERENCES users(id),
			archived    BOOLEAN NOT NULL DEFAULT false,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS project_members (
			project_id BIGINT NOT NULL REFERENCES projects(id),
			user_id    BIGINT NOT NULL REFERENCES users(id),
			role       TEXT NOT NULL DEFAULT 'member',
			active     BOOLEAN NOT NULL DEFAULT true,
			joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (project_id, user_id)
		)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_project_members_user ON project_members(user_id) WHERE active`)
	return err
}

// Create inserts a new project.
func (s *PgStore) Create(ctx context.Context, p *Project) (*Project, error) {
	now := time.Now().Truncate(time.Microsecond)
	p.CreatedAt = now
	p.UpdatedAt = now
	err := s.q.QueryRow(ctx, `
		INSERT INTO projects (name, description, creator_id, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.Name, p.Description, p.CreatorID, p.Archived, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return nil, db.Classify("create project", err)
	}
	return p, nil
}

// Get retrieves a project by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := s.q.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatorID, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("get project %d", id), err)
	}
	return &p, nil
}

// Update applies the non-nil fields of u.
func (s *PgStore) Update(ctx context.Context, id int64, u Update) (*Project, error) {
	now := time.Now().Truncate(time.Microsecond)

	setClauses := "updated_at = $1"
	args := []any{now}
	add := func(col string, v any) {
		args = append(args, v)
		setClauses += fmt.Sprintf(", %s = $%d", col, len(args))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Archived != nil {
		add("archived", *u.Archived)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d RETURNING %s", setClauses, len(args), projectColumns)

	var p Project
	err := s.q.QueryRow(ctx, query, args...).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatorID, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("update project %d", id), err)
	}
	return &p, nil
}

// ForUser returns projects where userID is an active member.
func (s *PgStore) ForUser(ctx context.Context, userID int64) ([]Project, error) {
	rows, err := s.q.Query(ctx, `
		SELECT p.id, p.name, p.description, p.creator_id, p.archived, p.created_at, p.updated_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = $1 AND m.active
		ORDER BY p.id`, userID)
	if err != nil {
		return nil, db.Classify("projects for user", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatorID, &p.Archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, db.Classify("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("project rows", err)
	}
	return projects, nil
}

// UpsertMember inserts the membership or re-activates it.
func (s *PgStore) UpsertMember(ctx context.Context, m *Member) (*Member, error) {
	if m.Role == "" {
		m.Role = RoleMember
	}
	m.Active = true
	m.JoinedAt = time.Now().Truncate(time.Microsecond)
	err := s.q.QueryRow(ctx, `
		INSERT INTO project_members (project_id, user_id, role, active, joined_at)
		VALUES ($1, $2, $3, true, $4)
		ON CONFLICT (project_id, user_id)
		DO UPDATE SET active = true, role = EXCLUDED.role, joined_at = EXCLUDED.joined_at
		RETURNING joined_at`,
		m.ProjectID, m.UserID, m.Role, m.JoinedAt).Scan(&m.JoinedAt)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("add member %d to project %d", m.UserID, m.ProjectID), err)
	}
	return m, nil
}

// Member returns a membership row.
func (s *PgStore) Member(ctx context.Context, projectID, userID int64) (*Member, error) {
	var m Member
	err := s.q.QueryRow(ctx, `
		SELECT project_id, user_id, role, active, joined_at
		FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID).
		Scan(&m.ProjectID, &m.UserID, &m.Role, &m.Active, &m.JoinedAt)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("member %d of project %d", userID, projectID), err)
	}
	return &m, nil
}

// DeactivateMember soft-removes a membership.
func (s *PgStore) DeactivateMember(ctx context.Context, projectID, userID int64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE project_members SET active = false
		WHERE project_id = $1 AND user_id = $2 AND active`, projectID, userID)
	if err != nil {
		return db.Classify("deactivate member", err)
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(fmt.Sprintf("deactivate member %d of project %d", userID, projectID), errNoActiveMember)
	}
	return nil
}

// ActiveMembers returns the active membership of a project.
func (s *PgStore) ActiveMembers(ctx context.Context, projectID int64) ([]Member, error) {
	rows, err := s.q.Query(ctx, `
		SELECT project_id, user_id, role, active, joined_at
		FROM project_members WHERE project_id = $1 AND active
		ORDER BY user_id`, projectID)
	if err != nil {
		return nil, db.Classify("active members", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.Active, &m.JoinedAt); err != nil {
			return nil, db.Classify("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("member rows", err)
	}
	return members, nil
}
