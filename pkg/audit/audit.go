// Package audit is the append-only, hash-chained record of significant
// mutations.
package audit

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Actions recorded by the service layer.
const (
	ActionProjectCreated    = "project.created"
	ActionProjectUpdated    = "project.updated"
	ActionMemberAdded       = "member.added"
	ActionMemberRemoved     = "member.removed"
	ActionTaskCreated       = "task.created"
	ActionTaskUpdated       = "task.updated"
	ActionTaskStatusChanged = "task.status_changed"
	ActionTaskAssigned      = "task.assigned"
	ActionTaskDeleted       = "task.deleted"
	ActionDependencyAdded   = "dependency.added"
	ActionDependencyRemoved = "dependency.removed"
	ActionCommentAdded      = "comment.added"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        string    `json:"id"` // UUID v7 (time-ordered)
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string    `json:"prev_hash"` // hash chain link
}

// ErrBrokenChain is returned by Verify for a tampered or misordered chain.
var ErrBrokenChain = errors.New("audit chain broken")

// Store is the contract for audit persistence. There is no update or delete.
type Store interface {
	// Append assigns ID, Timestamp, PrevHash and Hash, then stores e.
	Append(ctx context.Context, e *Entry) (*Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
	ByUser(ctx context.Context, userID int64, limit int) ([]Entry, error)
	// Chain returns every entry oldest first.
	Chain(ctx context.Context) ([]Entry, error)
	EnsureTable(ctx context.Context) error
}

// Record appends an audit entry. A failure is returned to the caller: a
// lost audit trail fails the request.
func Record(ctx context.Context, s Store, userID int64, action, details, ip string) (*Entry, error) {
	e, err := s.Append(ctx, &Entry{UserID: userID, Action: action, Details: details, IPAddress: ip})
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", action, err)
	}
	return e, nil
}

// Seal links e to prevHash and computes its hash. ID and Timestamp must be set.
func Seal(e *Entry, prevHash string) {
	e.PrevHash = prevHash
	e.Hash = computeHash(e)
}

// Verify walks entries in chain order and reports the first broken link.
func Verify(entries []Entry) error {
	prevHash := ""
	for i := range entries {
		e := &entries[i]
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: entry %d (%s): prev_hash mismatch: got %s, want %s", ErrBrokenChain, i, e.ID, e.PrevHash, prevHash)
		}
		if want := computeHash(e); e.Hash != want {
			return fmt.Errorf("%w: entry %d (%s): hash mismatch: got %s, want %s", ErrBrokenChain, i, e.ID, e.Hash, want)
		}
		prevHash = e.Hash
	}
	return nil
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(e *Entry) string {
	data := strings.Join([]string{
		e.PrevHash,
		e.ID,
		fmt.Sprint(e.UserID),
		e.Action,
		e.Details,
		e.IPAddress,
		fmt.Sprint(e.Timestamp.UnixNano()),
	}, "|")
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}
