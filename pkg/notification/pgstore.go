package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskhub/internal/db"
)

const notificationColumns = `id, user_id, type, title, message, task_id, project_id, read, created_at, read_at`

// PgStore is a PostgreSQL-backed notification store.
type PgStore struct {
	q db.Querier
}

// NewPgStore creates a PgStore over a pool or a transaction.
func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

// EnsureTable creates the notifications table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    BIGINT NOT NULL REFERENCES users(id),
			type       TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			message    TEXT NOT NULL DEFAULT '',
			task_id    BIGINT REFERENCES tasks(id),
			project_id BIGINT REFERENCES projects(id),
			read       BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			read_at    TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id) WHERE NOT read`)
	return err
}

// Create inserts a notification, assigning its ID and timestamp.
func (s *PgStore) Create(ctx context.Context, n *Notification) (*Notification, error) {
	n.ID = uuid.Must(uuid.NewV7()).String()
	n.CreatedAt = time.Now().Truncate(time.Microsecond)
	_, err := s.q.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, task_id, project_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.TaskID, n.ProjectID, n.CreatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("create %s notification for user %d", n.Type, n.UserID), err)
	}
	return n, nil
}

// ForUser returns userID's notifications, newest first.
func (s *PgStore) ForUser(ctx context.Context, userID int64, q Query) ([]Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if q.UnreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if q.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, q.Limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify("list notifications", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, db.Classify("scan notification", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("notification rows", err)
	}
	return out, nil
}

// UnreadCount returns the number of unread notifications for userID.
func (s *PgStore) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	return n, db.Classify("unread count", err)
}

// MarkRead flips a notification to read.
func (s *PgStore) MarkRead(ctx context.Context, userID int64, id string) (*Notification, error) {
	now := time.Now().Truncate(time.Microsecond)
	n, err := scanNotification(s.q.QueryRow(ctx, `
		UPDATE notifications SET read = true, read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND user_id = $3
		RETURNING `+notificationColumns, now, id, userID))
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("mark notification %s read", id), err)
	}
	return n, nil
}

// MarkAllRead flips every unread notification of userID.
func (s *PgStore) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	tag, err := s.q.Exec(ctx, `UPDATE notifications SET read = true, read_at = $1 WHERE user_id = $2 AND NOT read`,
		time.Now().Truncate(time.Microsecond), userID)
	if err != nil {
		return 0, db.Classify("mark all read", err)
	}
	return int(tag.RowsAffected()), nil
}

// ExistsSince reports whether a matching notification was created at or after since.
func (s *PgStore) ExistsSince(ctx context.Context, userID, taskID int64, typ Type, since time.Time) (bool, error) {
	var ok bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND task_id = $2 AND type = $3 AND created_at >= $4
		)`, userID, taskID, string(typ), since).Scan(&ok)
	if err != nil {
		return false, db.Classify("notification exists", err)
	}
	return ok, nil
}

func scanNotification(row interface{ Scan(dest ...any) error }) (*Notification, error) {
	var n Notification
	var typ string
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.TaskID, &n.ProjectID, &n.Read, &n.CreatedAt, &n.ReadAt); err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	return &n, nil
}

