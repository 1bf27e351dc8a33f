package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"taskhub/internal/db"
)

const entryColumns = `id, user_id, action, details, ip_address, timestamp, hash, prev_hash`

// chainLockKey is the advisory lock id that serialises appends.
const chainLockKey int64 = 0x7461736b61756474 // "taskaudt"

// PgStore is a PostgreSQL-backed audit store with hash-chained integrity.
type PgStore struct {
	q db.Querier
}

// NewPgStore creates a PgStore over a pool or a transaction.
func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

// EnsureTable creates the audit_log table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			id         TEXT PRIMARY KEY,
			user_id    BIGINT NOT NULL,
			action     TEXT NOT NULL,
			details    TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			timestamp  TIMESTAMPTZ NOT NULL,
			hash       TEXT NOT NULL,
			prev_hash  TEXT NOT NULL DEFAULT '',
			seq        BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE
		)`)
	if err != nil {
		return err
	}
	// tables created before seq existed
	_, err = s.q.Exec(ctx, `ALTER TABLE audit_log ADD COLUMN IF NOT EXISTS seq BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_log(user_id, seq)`)
	return err
}

// Append stores a new entry, computing the hash chain. It must run inside a
// transaction: the advisory lock it takes is held until commit, so appends
// queue behind each other and seq order is chain order. ID and Timestamp
// are assigned once the lock is held.
func (s *PgStore) Append(ctx context.Context, e *Entry) (*Entry, error) {
	if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
		return nil, db.Classify("lock audit chain", err)
	}

	var prevHash string
	err := s.q.QueryRow(ctx, `SELECT hash FROM audit_log ORDER BY seq DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, db.Classify("read audit chain head", err)
	}

	e.ID = uuid.Must(uuid.NewV7()).String()
	e.Timestamp = time.Now().Truncate(time.Microsecond)
	Seal(e, prevHash)

	_, err = s.q.Exec(ctx, `
		INSERT INTO audit_log (id, user_id, action, details, ip_address, timestamp, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.Action, e.Details, e.IPAddress, e.Timestamp, e.Hash, e.PrevHash)
	if err != nil {
		return nil, db.Classify("insert audit entry", err)
	}
	return e, nil
}

// Recent returns the newest entries first.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.scanMany(ctx, `SELECT `+entryColumns+` FROM audit_log ORDER BY seq DESC LIMIT $1`, limit)
}

// ByUser returns a user's newest entries first.
func (s *PgStore) ByUser(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	return s.scanMany(ctx, `SELECT `+entryColumns+` FROM audit_log WHERE user_id = $1 ORDER BY seq DESC LIMIT $2`, userID, limit)
}

// Chain returns every entry in append order.
func (s *PgStore) Chain(ctx context.Context) ([]Entry, error) {
	return s.scanMany(ctx, `SELECT `+entryColumns+` FROM audit_log ORDER BY seq ASC`)
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify("query audit log", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Details, &e.IPAddress, &e.Timestamp, &e.Hash, &e.PrevHash); err != nil {
			return nil, db.Classify("scan audit entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit rows: %w", err)
	}
	return entries, nil
}
