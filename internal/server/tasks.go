package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"manageease/internal/apperr"
	"manageease/internal/tasks"
)

// optionalTime distinguishes an absent field from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		o.Value = nil
		return nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain calendar dates.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

type createTaskRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    string       `json:"priority"`
	Status      string       `json:"status"`
	DueDate     optionalTime `json:"dueDate"`
	Tags        []string     `json:"tags"`
	AssigneeID  string       `json:"assigneeId"`
}

type updateTaskRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Priority    *string      `json:"priority"`
	Status      *string      `json:"status"`
	DueDate     optionalTime `json:"dueDate"`
	Tags        *[]string    `json:"tags"`
	AssigneeID  *string      `json:"assigneeId"`
}

func (r updateTaskRequest) patch() tasks.Patch {
	p := tasks.Patch{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		Tags:        r.Tags,
		AssigneeID:  r.AssigneeID,
	}
	if r.DueDate.Set {
		if r.DueDate.Value == nil {
			p.ClearDueDate = true
		} else {
			p.DueDate = r.DueDate.Value
		}
	}
	return p
}

type statusRequest struct {
	Status string `json:"status"`
}

// handleListTasks returns the requester's tasks filtered by the query string.
func (s *Server) handleListTasks(c *gin.Context) {
	list, err := s.tasks.List(c.Request.Context(), requester(c), tasks.Filter{
		View:     c.Query("view"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": list, "count": len(list)}, "")
}

// handleGetTask returns one task the requester can see.
func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.tasks.Get(c.Request.Context(), requester(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task}, "")
}

// handleCreateTask creates a task owned by the requester.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.tasks.Create(c.Request.Context(), requester(c), tasks.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate.Value,
		Tags:        req.Tags,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task}, "Task created successfully")
}

// handleUpdateTask applies a partial update; a null dueDate clears it.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.tasks.Update(c.Request.Context(), requester(c), c.Param("id"), req.patch())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task}, "Task updated successfully")
}

// handleChangeTaskStatus moves a task between active and completed.
func (s *Server) handleChangeTaskStatus(c *gin.Context) {
	var req statusRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		s.respondError(c, apperr.Validation(map[string]string{"status": "status is required"}))
		return
	}
	task, err := s.tasks.ChangeStatus(c.Request.Context(), requester(c), c.Param("id"), req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task}, "Task status updated successfully")
}

// handleDeleteTask removes a task created by the requester.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.tasks.Delete(c.Request.Context(), requester(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, nil, "Task deleted successfully")
}
