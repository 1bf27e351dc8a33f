// Package push delivers best-effort real-time messages to connected users.
//
// Nothing here is durable: a message sent while a user has no open stream
// is simply not delivered.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// ProjectGroup is the group every active member of a project joins for
// dashboard refreshes.
func ProjectGroup(projectID int64) string {
	return fmt.Sprintf("project:%d", projectID)
}

// Subscription is one open stream. Receive from C until it is closed.
type Subscription struct {
	C <-chan cloudevents.Event

	ch     chan cloudevents.Event
	userID int64
	groups []string
}

// UserID returns the subscribed user.
func (s *Subscription) UserID() int64 { return s.userID }

// Hub fans messages out to per-user and per-group subscribers.
type Hub struct {
	mu     sync.RWMutex
	users  map[int64]map[*Subscription]struct{}
	groups map[string]map[*Subscription]struct{}

	source string
	buffer int
	log    *slog.Logger
	onDrop func(event string)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) HubOption {
	return func(h *Hub) { h.buffer = n }
}

// WithSource sets the CloudEvents source attribute.
func WithSource(source string) HubOption {
	return func(h *Hub) { h.source = source }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.log = l }
}

// WithDropHook is called for every message dropped because a subscriber
// was behind.
func WithDropHook(fn func(event string)) HubOption {
	return func(h *Hub) { h.onDrop = fn }
}

// NewHub creates a Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		users:  make(map[int64]map[*Subscription]struct{}),
		groups: make(map[string]map[*Subscription]struct{}),
		source: "/taskhub",
		buffer: 64,
		log:    slog.Default(),
		onDrop: func(string) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe opens a stream for userID that also receives the given groups.
func (h *Hub) Subscribe(userID int64, groups ...string) *Subscription {
	ch := make(chan cloudevents.Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, userID: userID, groups: groups}

	h.mu.Lock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Subscription]struct{})
	}
	h.users[userID][s] = struct{}{}
	for _, g := range groups {
		if h.groups[g] == nil {
			h.groups[g] = make(map[*Subscription]struct{})
		}
		h.groups[g][s] = struct{}{}
	}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.users[s.userID]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.users, s.userID)
	}
	for _, g := range s.groups {
		delete(h.groups[g], s)
		if len(h.groups[g]) == 0 {
			delete(h.groups, g)
		}
	}
	close(s.ch)
}

// Leave drops group from every stream userID has open. The streams stay
// open for the user's own messages and other groups.
func (h *Hub) Leave(userID int64, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.users[userID] {
		if _, ok := h.groups[group][s]; !ok {
			continue
		}
		delete(h.groups[group], s)
		s.groups = slices.DeleteFunc(s.groups, func(g string) bool { return g == group })
	}
	if len(h.groups[group]) == 0 {
		delete(h.groups, group)
	}
}

// SendToUser delivers to every stream userID has open.
func (h *Hub) SendToUser(_ context.Context, userID int64, event string, payload any) error {
	e, err := NewEvent(h.source, event, payload)
	if err != nil {
		return err
	}
	e.SetSubject(fmt.Sprintf("user:%d", userID))

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.broadcast(h.users[userID], e)
	return nil
}

// SendToGroup delivers to every stream joined to group.
func (h *Hub) SendToGroup(_ context.Context, group string, event string, payload any) error {
	e, err := NewEvent(h.source, event, payload)
	if err != nil {
		return err
	}
	e.SetSubject(group)

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.broadcast(h.groups[group], e)
	return nil
}

// Connections returns the number of open streams.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.users {
		n += len(subs)
	}
	return n
}

// broadcast must be called with h.mu held for reading.
func (h *Hub) broadcast(subs map[*Subscription]struct{}, e cloudevents.Event) {
	for s := range subs {
		select {
		case s.ch <- e:
		default:
			// subscriber is behind; drop to avoid blocking the sender
			h.onDrop(e.Type())
			h.log.Debug("push: dropped message for slow subscriber", "user_id", s.userID, "type", e.Type())
		}
	}
}
