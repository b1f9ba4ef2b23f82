package tasks

import (
	"time"

	"manageease/internal/models"
)

// ApplyCreateDefaults fills the fields a new task derives from its creator
// and the creation time.
func ApplyCreateDefaults(t models.Task, creatorID string, now time.Time) models.Task {
	t.CreatorID = creatorID
	if t.AssigneeID == "" {
		t.AssigneeID = creatorID
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.Status == "" {
		t.Status = models.StatusActive
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	t.CompletedAt = nil
	if t.Status == models.StatusCompleted {
		completed := now
		t.CompletedAt = &completed
	}
	return t
}

// ApplyStatusChange moves t to status and keeps CompletedAt consistent with
// it: set on entering completed, cleared on leaving it. Setting the current
// status returns t untouched.
func ApplyStatusChange(t models.Task, status models.TaskStatus, now time.Time) models.Task {
	if t.Status == status {
		return t
	}
	t.Status = status
	if status == models.StatusCompleted {
		if t.CompletedAt == nil {
			completed := now
			t.CompletedAt = &completed
		}
		return t
	}
	t.CompletedAt = nil
	return t
}
