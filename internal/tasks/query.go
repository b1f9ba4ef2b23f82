package tasks

import (
	"strings"

	"manageease/internal/apperr"
	"manageease/internal/models"
	"manageease/internal/validate"
)

// Filter is the list request as received from the caller. "all" or an
// empty value disables a filter.
type Filter struct {
	View     string
	Status   string
	Priority string
	Search   string
}

const filterAll = "all"

// BuildQuery derives the store query for r's task list. Every query is
// confined to tasks r created or is assigned to; search narrows that scope
// and never widens it.
func BuildQuery(r models.Requester, f Filter) (models.TaskQuery, error) {
	if r.UserID == "" {
		return models.TaskQuery{}, apperr.New(apperr.ErrUnauthenticated, "authentication required")
	}

	q := models.TaskQuery{RequesterID: r.UserID}
	fields := validate.Fields{}

	switch strings.TrimSpace(f.View) {
	case "", filterAll:
		q.Scope = models.ScopeInvolved
	case string(models.ScopeAssigned):
		q.Scope = models.ScopeAssigned
	case string(models.ScopeCreated):
		q.Scope = models.ScopeCreated
	default:
		fields.Add("view", "view must be one of: all, assigned, created")
	}

	if s := strings.TrimSpace(f.Status); s != "" && s != filterAll {
		if _, ok := models.ValidTaskStatuses[models.TaskStatus(s)]; ok {
			q.Status = models.TaskStatus(s)
		} else {
			fields.Add("status", "status must be one of: all, active, completed")
		}
	}

	if p := strings.TrimSpace(f.Priority); p != "" && p != filterAll {
		if _, ok := models.ValidPriorities[models.Priority(p)]; ok {
			q.Priority = models.Priority(p)
		} else {
			fields.Add("priority", "priority must be one of: all, low, medium, high")
		}
	}

	if err := fields.Err(); err != nil {
		return models.TaskQuery{}, err
	}

	q.Search = strings.ToLower(strings.TrimSpace(f.Search))
	return q, nil
}

// Matches reports whether t satisfies q. It is the in-memory equivalent of
// the WHERE clause the SQLite store generates.
func Matches(q models.TaskQuery, t models.Task) bool {
	switch q.Scope {
	case models.ScopeAssigned:
		if t.AssigneeID != q.RequesterID {
			return false
		}
	case models.ScopeCreated:
		if t.CreatorID != q.RequesterID {
			return false
		}
	default:
		if t.CreatorID != q.RequesterID && t.AssigneeID != q.RequesterID {
			return false
		}
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Priority != "" && t.Priority != q.Priority {
		return false
	}
	if q.Search != "" {
		return strings.Contains(strings.ToLower(t.Title), q.Search) ||
			strings.Contains(strings.ToLower(t.Description), q.Search)
	}
	return true
}
