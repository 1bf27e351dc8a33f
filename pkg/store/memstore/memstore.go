// Package memstore keeps every store in process memory. It backs the
// "memory" storage mode and the test suites.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"taskhub/pkg/audit"
	"taskhub/pkg/comment"
	"taskhub/pkg/dependency"
	"taskhub/pkg/notification"
	"taskhub/pkg/project"
	"taskhub/pkg/store"
	"taskhub/pkg/task"
	"taskhub/pkg/user"
)

type memberKey struct{ projectID, userID int64 }

type depKey struct{ taskID, blockingID int64 }

type data struct {
	users    map[int64]user.User
	projects map[int64]project.Project
	members  map[memberKey]project.Member
	tasks    map[int64]task.Task
	comments map[int64]comment.Comment
	deps     map[depKey]dependency.Dependency
	notes    []notification.Notification
	audit    []audit.Entry
	nextID   int64
}

func (d *data) clone() data {
	return data{
		users:    maps.Clone(d.users),
		projects: maps.Clone(d.projects),
		members:  maps.Clone(d.members),
		tasks:    maps.Clone(d.tasks),
		comments: maps.Clone(d.comments),
		deps:     maps.Clone(d.deps),
		notes:    slices.Clone(d.notes),
		audit:    slices.Clone(d.audit),
		nextID:   d.nextID,
	}
}

// DB holds all in-memory state.
type DB struct {
	txMu sync.Mutex // serialises units of work

	mu    sync.RWMutex
	d     data
	fails map[string]error
	now   func() time.Time
}

// New creates an empty DB.
func New() *DB {
	return &DB{
		d: data{
			users:    make(map[int64]user.User),
			projects: make(map[int64]project.Project),
			members:  make(map[memberKey]project.Member),
			tasks:    make(map[int64]task.Task),
			comments: make(map[int64]comment.Comment),
			deps:     make(map[depKey]dependency.Dependency),
		},
		fails: make(map[string]error),
		now:   time.Now,
	}
}

// SetClock replaces the clock used for timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	db.now = now
	db.mu.Unlock()
}

// Fail makes every later call to op return err until cleared with a nil
// err. op is "<store>.<Method>", e.g. "audit.Append".
func (db *DB) Fail(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.fails, op)
		return
	}
	db.fails[op] = err
}

// failure must be called with db.mu held.
func (db *DB) failure(op string) error {
	return db.fails[op]
}

// id must be called with db.mu held for writing.
func (db *DB) id() int64 {
	db.d.nextID++
	return db.d.nextID
}

// view is the handle stores write through. Outside a unit of work every
// write waits for the running unit to finish, so a rollback never discards
// it.
type view struct {
	*DB
	inUnit bool
}

// lock takes the write lock and returns its release.
func (v view) lock() func() {
	if !v.inUnit {
		v.txMu.Lock()
	}
	v.mu.Lock()
	return func() {
		v.mu.Unlock()
		if !v.inUnit {
			v.txMu.Unlock()
		}
	}
}

// Repos returns stores backed by db outside any unit of work. Writes made
// through them must not happen inside Do.
func (db *DB) Repos() store.Repos { return db.repos(false) }

func (db *DB) repos(inUnit bool) store.Repos {
	v := view{DB: db, inUnit: inUnit}
	return store.Repos{
		Users:         &Users{db: v},
		Projects:      &Projects{db: v},
		Tasks:         &Tasks{db: v},
		Comments:      &Comments{db: v},
		Dependencies:  &Dependencies{db: v},
		Notifications: &Notifications{db: v},
		Audit:         &Audit{db: v},
	}
}

// Do runs fn as one unit of work: units are serialised against each other
// and against writes made through Repos, and every change fn made is
// discarded when it returns an error. Reads through Repos do not wait and
// may observe a running unit's changes.
func (db *DB) Do(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.d.clone()
	db.mu.RUnlock()

	if err := fn(ctx, db.repos(true)); err != nil {
		db.mu.Lock()
		db.d = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

// Notifications returns every stored notification in creation order.
func (db *DB) Notifications() []notification.Notification {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.d.notes)
}

// AuditEntries returns the audit chain in creation order.
func (db *DB) AuditEntries() []audit.Entry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.d.audit)
}

var _ store.UnitOfWork = (*DB)(nil)
