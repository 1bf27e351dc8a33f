// Package api is the HTTP surface: a chi router over tracker.Service with
// bearer-token identity, JSON envelopes and a server-sent event stream.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taskhub/pkg/apperr"
	"taskhub/pkg/push"
	"taskhub/pkg/tracker"
)

// Server is the HTTP API server.
type Server struct {
	svc     *tracker.Service
	hub     *push.Hub
	auth    *Authenticator
	metrics http.Handler
	log     *slog.Logger

	heartbeat time.Duration
	started   time.Time
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHeartbeat sets the stream keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) { s.heartbeat = d }
}

// New creates a new Server.
func New(svc *tracker.Service, hub *push.Hub, auth *Authenticator, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		hub:       hub,
		auth:      auth,
		log:       slog.Default(),
		heartbeat: 15 * time.Second,
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// System
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/status", s.handleStatus)
		r.Get("/me", s.handleMe)
		r.Get("/users", s.handleUserList)
		r.Post("/users", s.handleUserCreate)

		// Projects
		r.Get("/projects", s.handleProjectList)
		r.Post("/projects", s.handleProjectCreate)
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", s.handleProjectGet)
			r.Patch("/", s.handleProjectUpdate)
			r.Get("/members", s.handleMemberList)
			r.Post("/members", s.handleMemberAdd)
			r.Delete("/members/{userID}", s.handleMemberRemove)
			r.Get("/tasks", s.handleTaskList)
			r.Post("/tasks", s.handleTaskCreate)
		})

		// Tasks
		r.Route("/tasks/{id}", func(r chi.Router) {
			r.Get("/", s.handleTaskGet)
			r.Patch("/", s.handleTaskUpdate)
			r.Delete("/", s.handleTaskDelete)
			r.Put("/status", s.handleTaskStatus)
			r.Put("/assignee", s.handleTaskAssign)
			r.Get("/dependencies", s.handleDependencyList)
			r.Post("/dependencies", s.handleDependencyAdd)
			r.Delete("/dependencies/{blockingID}", s.handleDependencyRemove)
			r.Get("/can-complete", s.handleCanComplete)
			r.Get("/comments", s.handleCommentList)
			r.Post("/comments", s.handleCommentCreate)
		})

		// Notifications
		r.Get("/notifications", s.handleNotificationList)
		r.Get("/notifications/unread-count", s.handleUnreadCount)
		r.Post("/notifications/read-all", s.handleMarkAllRead)
		r.Post("/notifications/{id}/read", s.handleMarkRead)

		// Audit
		r.Get("/audit", s.handleAuditList)
		r.Get("/audit/verify", s.handleAuditVerify)

		r.Get("/stream", s.handleStream)
	})

	s.router = r
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: write json", "err", err)
	}
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: true, Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// fail maps err onto its HTTP status. Internal failures are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("api: request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// pathID parses the int64 URL parameter name, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"tasks":       st.Tasks,
		"open_tasks":  st.OpenTasks,
		"connections": s.hub.Connections(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
	})
}
