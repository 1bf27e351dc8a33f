package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskhub/pkg/notification"
)

func (s *Server) handleNotificationList(w http.ResponseWriter, r *http.Request) {
	q := notification.Query{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      queryInt(r, "limit", 50),
	}
	notes, err := s.svc.Inbox(r.Context(), actor(r), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, notes)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.UnreadCount(r.Context(), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]int{"unread": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.MarkRead(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, n)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.MarkAllRead(r.Context(), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]int{"marked": n})
}
