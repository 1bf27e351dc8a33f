package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"taskhub/pkg/push"
)

// handleStream serves the caller's push channel as server-sent events. Each
// project query parameter the caller may access adds that project's
// dashboard group.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := actor(r)

	var groups []string
	for _, raw := range r.URL.Query()["project"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid project "+raw)
			return
		}
		if _, err := s.svc.GetProject(ctx, a, id); err != nil {
			s.fail(w, r, err)
			return
		}
		groups = append(groups, push.ProjectGroup(id))
	}

	rc := http.NewResponseController(w)
	// streams outlive the server write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.log.Warn("api: clear stream deadline", "err", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		s.log.Warn("api: streaming not supported", "err", err)
		return
	}

	sub := s.hub.Subscribe(a.UserID, groups...)
	defer s.hub.Unsubscribe(sub)
	s.log.Info("api: stream opened", "user_id", a.UserID, "groups", len(groups))

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("api: stream closed", "user_id", a.UserID)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.log.Warn("api: encode stream event", "type", e.Type(), "err", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID(), e.Type(), data)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
