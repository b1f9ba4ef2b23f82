package models

import "time"

// User is an account that can create tasks and be assigned to them.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Ref returns the compact form embedded in task payloads.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

// UserRef is the public identity of a user nested inside other payloads.
type UserRef struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities enumerates the accepted priority values.
var ValidPriorities = map[Priority]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
}

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	StatusActive    TaskStatus = "active"
	StatusCompleted TaskStatus = "completed"
)

// ValidTaskStatuses enumerates the statuses a task can be in.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	StatusActive:    {},
	StatusCompleted: {},
}

// Task is a unit of work owned by its creator and executed by its assignee.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatorID   string     `json:"creatorId"`
	AssigneeID  string     `json:"assigneeId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskView is the outward representation of a task with both owners resolved.
type TaskView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Creator     UserRef    `json:"creator"`
	Assignee    UserRef    `json:"assignee"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTaskView joins a task with its creator and assignee records.
func NewTaskView(t Task, creator, assignee User) TaskView {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		DueDate:     t.DueDate,
		Tags:        tags,
		CompletedAt: t.CompletedAt,
		Creator:     creator.Ref(),
		Assignee:    assignee.Ref(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Requester is the authenticated identity behind a request.
type Requester struct {
	UserID   string
	IsActive bool
}

// TaskScope restricts a task query to one side of the ownership relation.
type TaskScope string

const (
	ScopeInvolved TaskScope = "involved"
	ScopeAssigned TaskScope = "assigned"
	ScopeCreated  TaskScope = "created"
)

// TaskQuery is the store-level filter produced from a list request.
// Empty Status, Priority and Search mean no restriction on that column.
type TaskQuery struct {
	Scope       TaskScope
	RequesterID string
	Status      TaskStatus
	Priority    Priority
	Search      string
}

// TaskCounts summarises the tasks assigned to a user.
type TaskCounts struct {
	Completed int `json:"tasksCompleted"`
	Active    int `json:"activeTasks"`
}
