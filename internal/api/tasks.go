package api

import (
	"net/http"

	"taskhub/pkg/task"
	"taskhub/pkg/tracker"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f := task.Filter{
		Status: task.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 0),
	}
	f.AssigneeID = int64(queryInt(r, "assignee", 0))
	tasks, err := s.svc.ListTasks(r.Context(), actor(r), projectID, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in tracker.NewTask
	if !decode(w, r, &in) {
		return
	}
	t, err := s.svc.CreateTask(r.Context(), actor(r), projectID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, t)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := s.svc.GetTask(r.Context(), actor(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, t)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var u task.Update
	if !decode(w, r, &u) {
		return
	}
	t, err := s.svc.UpdateTask(r.Context(), actor(r), id, u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteTask(r.Context(), actor(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "task deleted")
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status task.Status `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := s.svc.UpdateTaskStatus(r.Context(), actor(r), id, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, t)
}

func (s *Server) handleTaskAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		AssigneeID *int64 `json:"assignee_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := s.svc.AssignTask(r.Context(), actor(r), id, req.AssigneeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, t)
}

func (s *Server) handleDependencyList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	deps, err := s.svc.Dependencies(r.Context(), actor(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, deps)
}

func (s *Server) handleDependencyAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		BlockingTaskID int64 `json:"blocking_task_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.BlockingTaskID <= 0 {
		writeError(w, http.StatusBadRequest, "blocking_task_id is required")
		return
	}
	d, err := s.svc.AddDependency(r.Context(), actor(r), id, req.BlockingTaskID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, d)
}

func (s *Server) handleDependencyRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	blockingID, ok := pathID(w, r, "blockingID")
	if !ok {
		return
	}
	if err := s.svc.RemoveDependency(r.Context(), actor(r), id, blockingID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "dependency removed")
}

func (s *Server) handleCanComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rd, err := s.svc.CanComplete(r.Context(), actor(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, rd)
}

func (s *Server) handleCommentList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	comments, err := s.svc.Comments(r.Context(), actor(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, comments)
}

func (s *Server) handleCommentCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := s.svc.AddComment(r.Context(), actor(r), id, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, c)
}
