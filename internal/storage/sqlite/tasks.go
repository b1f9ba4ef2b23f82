package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"manageease/internal/apperr"
	"manageease/internal/models"
)

const taskColumns = `id, title, description, priority, status, due_date, tags, completed_at, creator_id, assignee_id, created_at, updated_at`

var taskColumnsWritable = map[string]struct{}{
	"title":        {},
	"description":  {},
	"priority":     {},
	"status":       {},
	"due_date":     {},
	"tags":         {},
	"completed_at": {},
	"assignee_id":  {},
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t         models.Task
		priority  string
		status    string
		tags      string
		due       sql.NullTime
		completed sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &due, &tags,
		&completed, &t.CreatorID, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.Priority = models.Priority(priority)
	t.Status = models.TaskStatus(status)
	t.DueDate = nullTimePtr(due)
	t.CompletedAt = nullTimePtr(completed)

	t.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			return models.Task{}, fmt.Errorf("decode tags of task %s: %w", t.ID, err)
		}
	}
	return t, nil
}

// FindTasks returns the tasks matching q, newest first.
func (s *Store) FindTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)

	switch q.Scope {
	case models.ScopeAssigned:
		where = append(where, "assignee_id = ?")
		args = append(args, q.RequesterID)
	case models.ScopeCreated:
		where = append(where, "creator_id = ?")
		args = append(args, q.RequesterID)
	default:
		where = append(where, "(creator_id = ? OR assignee_id = ?)")
		args = append(args, q.RequesterID, q.RequesterID)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(q.Priority))
	}
	if search := strings.ToLower(q.Search); search != "" {
		where = append(where, "(instr(go_lower(title), ?) > 0 OR instr(go_lower(description), ?) > 0)")
		args = append(args, search, search)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	list := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// GetTask fetches a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, apperr.New(apperr.ErrNotFound, "task not found")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// InsertTask stores a fully populated task.
func (s *Store) InsertTask(ctx context.Context, t models.Task) (models.Task, error) {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return models.Task{}, err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Priority), string(t.Status), utcPtr(t.DueDate), tags,
		utcPtr(t.CompletedAt), t.CreatorID, t.AssigneeID, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Task{}, apperr.New(apperr.ErrInvalidAssignee, "assigned user not found")
		}
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, t.ID)
}

// UpdateTask writes the given columns and bumps updated_at. Time values may
// be *time.Time, with nil stored as NULL; tags are a []string.
func (s *Store) UpdateTask(ctx context.Context, id string, changes map[string]any) (models.Task, error) {
	if len(changes) == 0 {
		return s.GetTask(ctx, id)
	}

	cols := make([]string, 0, len(changes))
	for col := range changes {
		if _, ok := taskColumnsWritable[col]; !ok {
			return models.Task{}, fmt.Errorf("update task: column %q is not writable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		v, err := taskValue(col, changes[col])
		if err != nil {
			return models.Task{}, err
		}
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Task{}, apperr.New(apperr.ErrInvalidAssignee, "assigned user not found")
		}
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, err
	}
	if affected == 0 {
		return models.Task{}, apperr.New(apperr.ErrNotFound, "task not found")
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.New(apperr.ErrNotFound, "task not found")
	}
	return nil
}

func taskValue(col string, v any) (any, error) {
	switch val := v.(type) {
	case *time.Time:
		return utcPtr(val), nil
	case time.Time:
		return val.UTC(), nil
	case []string:
		if col != "tags" {
			return nil, fmt.Errorf("update task: unexpected list for %s", col)
		}
		return encodeTags(val)
	default:
		return v, nil
	}
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(raw), nil
}

// utcPtr converts to a driver value, mapping nil to NULL.
func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
