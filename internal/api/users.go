package api

import (
	"errors"
	"net/http"

	"taskhub/pkg/audit"
	"taskhub/pkg/tracker"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Me(r.Context(), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, u)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, users)
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var in tracker.NewUser
	if !decode(w, r, &in) {
		return
	}
	u, err := s.svc.CreateUser(r.Context(), actor(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, u)
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.AuditLog(r.Context(), actor(r), queryInt(r, "limit", 100))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, entries)
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.VerifyAudit(r.Context(), actor(r))
	if err != nil {
		if errors.Is(err, audit.ErrBrokenChain) {
			writeJSON(w, http.StatusOK, envelope{Success: false, Message: err.Error(), Data: map[string]int{"entries": n}})
			return
		}
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"entries": n, "valid": true})
}
