// Package policy decides what a requester may do with a task. Everything
// here is a pure function of its arguments.
package policy

import (
	"manageease/internal/apperr"
	"manageease/internal/models"
)

// Action is an operation a requester can attempt on a task.
type Action string

const (
	ActionView         Action = "view"
	ActionEditDetails  Action = "editDetails"
	ActionReassign     Action = "reassign"
	ActionChangeStatus Action = "changeStatus"
	ActionDelete       Action = "delete"
)

// CanPerform returns nil when r may perform a on t.
//
// Requesters outside the task's view scope always get ErrNotFound so that a
// task's existence is never revealed to them. Inside the scope, an action
// that their relationship to the task does not permit yields ErrForbidden.
func CanPerform(r models.Requester, t models.Task, a Action) error {
	if !InScope(r, t) {
		return apperr.New(apperr.ErrNotFound, "task not found")
	}

	isCreator := r.UserID == t.CreatorID
	isAssignee := r.UserID == t.AssigneeID

	switch a {
	case ActionView:
		return nil
	case ActionEditDetails:
		if isCreator {
			return nil
		}
		return apperr.New(apperr.ErrForbidden, "only the task creator can edit task details")
	case ActionReassign:
		if isCreator {
			return nil
		}
		return apperr.New(apperr.ErrForbidden, "only the task creator can change the assignee")
	case ActionChangeStatus:
		if isAssignee {
			return nil
		}
		return apperr.New(apperr.ErrForbidden, "only the assignee can change the task status")
	case ActionDelete:
		if isCreator {
			return nil
		}
		return apperr.New(apperr.ErrForbidden, "only the task creator can delete the task")
	default:
		return apperr.New(apperr.ErrForbidden, "unknown action")
	}
}

// InScope reports whether t is visible to r: r created it or is assigned to it.
func InScope(r models.Requester, t models.Task) bool {
	if r.UserID == "" || !r.IsActive {
		return false
	}
	return r.UserID == t.CreatorID || r.UserID == t.AssigneeID
}

// CheckAssignee validates a prospective assignee looked up by the caller.
// A nil user means the lookup found nothing.
func CheckAssignee(candidate *models.User) error {
	if candidate == nil {
		return apperr.New(apperr.ErrInvalidAssignee, "assigned user not found")
	}
	if !candidate.IsActive {
		return apperr.New(apperr.ErrInvalidAssignee, "assigned user is not active")
	}
	return nil
}

// CheckStatus parses s as a task status.
func CheckStatus(s string) (models.TaskStatus, error) {
	status := models.TaskStatus(s)
	if _, ok := models.ValidTaskStatuses[status]; !ok {
		return "", apperr.New(apperr.ErrInvalidStatus, "invalid status, must be active or completed")
	}
	return status, nil
}
