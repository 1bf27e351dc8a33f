package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQuerier stands in for a transaction and remembers the order of
// statements Append issues.
type recordingQuerier struct {
	statements []string
	head       string
	lockedAt   time.Time
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.statements = append(q.statements, strings.TrimSpace(sql))
	switch {
	case strings.Contains(sql, "pg_advisory_xact_lock"):
		q.lockedAt = time.Now().Truncate(time.Microsecond)
	case strings.Contains(sql, "INSERT INTO audit_log"):
		q.head = args[6].(string)
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (q *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.statements = append(q.statements, strings.TrimSpace(sql))
	return headRow{hash: q.head}
}

type headRow struct{ hash string }

func (r headRow) Scan(dest ...any) error {
	if r.hash == "" {
		return pgx.ErrNoRows
	}
	*dest[0].(*string) = r.hash
	return nil
}

func TestPgAppendLocksBeforeReadingHead(t *testing.T) {
	ctx := context.Background()
	q := &recordingQuerier{}
	s := NewPgStore(q)

	first, err := s.Append(ctx, &Entry{UserID: 1, Action: ActionTaskCreated, Details: "task 1"})
	require.NoError(t, err)
	assert.Empty(t, first.PrevHash)
	assert.False(t, first.Timestamp.Before(q.lockedAt), "timestamp must be taken after the lock")

	require.Len(t, q.statements, 3)
	assert.Contains(t, q.statements[0], "pg_advisory_xact_lock")
	assert.Contains(t, q.statements[1], "ORDER BY seq DESC LIMIT 1")
	assert.Contains(t, q.statements[2], "INSERT INTO audit_log")

	second, err := s.Append(ctx, &Entry{UserID: 1, Action: ActionTaskUpdated, Details: "task 1"})
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PrevHash)
	assert.NoError(t, Verify([]Entry{*first, *second}))
}
