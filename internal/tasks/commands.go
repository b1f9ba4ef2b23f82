package tasks

import (
	"slices"
	"strings"
	"time"

	"manageease/internal/models"
	"manageease/internal/policy"
	"manageease/internal/validate"
)

// CreateInput carries the fields of a new task.
type CreateInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=1000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      string     `json:"status" validate:"omitempty,oneof=active completed"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        []string   `json:"tags" validate:"max=20,dive,max=30"`
	AssigneeID  string     `json:"assigneeId"`
}

func (in *CreateInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssigneeID = strings.TrimSpace(in.AssigneeID)
	in.Tags = normalizeTags(in.Tags)
}

func (in CreateInput) task() models.Task {
	return models.Task{
		Title:       in.Title,
		Description: in.Description,
		Priority:    models.Priority(in.Priority),
		Status:      models.TaskStatus(in.Status),
		DueDate:     in.DueDate,
		Tags:        in.Tags,
		AssigneeID:  in.AssigneeID,
	}
}

// Patch is a partial update. Nil fields are left as they are; ClearDueDate
// removes the due date.
type Patch struct {
	Title        *string
	Description  *string
	Priority     *string
	DueDate      *time.Time
	ClearDueDate bool
	Tags         *[]string
	AssigneeID   *string
	Status       *string
}

func (p *Patch) normalize() {
	if p.Title != nil {
		s := strings.TrimSpace(*p.Title)
		p.Title = &s
	}
	if p.Description != nil {
		s := strings.TrimSpace(*p.Description)
		p.Description = &s
	}
	if p.AssigneeID != nil {
		s := strings.TrimSpace(*p.AssigneeID)
		p.AssigneeID = &s
	}
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		p.Tags = &tags
	}
}

// check validates the supplied fields only. A bad status is reported as
// ErrInvalidStatus rather than a generic validation failure.
func (p Patch) check() error {
	fields := validate.Fields{}
	if p.Title != nil {
		fields.Check("title", *p.Title, "required,max=200")
	}
	if p.Description != nil {
		fields.Check("description", *p.Description, "max=1000")
	}
	if p.Priority != nil {
		fields.Check("priority", *p.Priority, "oneof=low medium high")
	}
	if p.Tags != nil {
		fields.Check("tags", *p.Tags, "max=20,dive,max=30")
	}
	if p.AssigneeID != nil {
		fields.Check("assigneeId", *p.AssigneeID, "required")
	}
	if p.DueDate != nil && p.ClearDueDate {
		fields.Add("dueDate", "dueDate cannot be both set and cleared")
	}
	if err := fields.Err(); err != nil {
		return err
	}
	if p.Status != nil {
		if _, err := policy.CheckStatus(*p.Status); err != nil {
			return err
		}
	}
	return nil
}

func (p Patch) touchesDetails() bool {
	return p.Title != nil || p.Description != nil || p.Priority != nil ||
		p.DueDate != nil || p.ClearDueDate || p.Tags != nil
}

// apply returns t with the detail and assignee fields of p applied. Status is
// handled separately by ApplyStatusChange.
func (p Patch) apply(t models.Task) models.Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = models.Priority(*p.Priority)
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.AssigneeID != nil {
		t.AssigneeID = *p.AssigneeID
	}
	return t
}

func normalizeTags(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, tag := range in {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// changes lists the columns that differ between before and after, keyed the
// way the task store expects.
func changes(before, after models.Task) map[string]any {
	out := map[string]any{}
	if before.Title != after.Title {
		out["title"] = after.Title
	}
	if before.Description != after.Description {
		out["description"] = after.Description
	}
	if before.Priority != after.Priority {
		out["priority"] = string(after.Priority)
	}
	if !sameTime(before.DueDate, after.DueDate) {
		out["due_date"] = after.DueDate
	}
	if !slices.Equal(before.Tags, after.Tags) {
		out["tags"] = after.Tags
	}
	if before.AssigneeID != after.AssigneeID {
		out["assignee_id"] = after.AssigneeID
	}
	if before.Status != after.Status {
		out["status"] = string(after.Status)
	}
	if !sameTime(before.CompletedAt, after.CompletedAt) {
		out["completed_at"] = after.CompletedAt
	}
	return out
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
