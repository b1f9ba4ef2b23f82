// Package tasks implements task listing, creation and mutation on top of the
// authorization rules in package policy.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"manageease/internal/apperr"
	"manageease/internal/models"
	"manageease/internal/policy"
	"manageease/internal/validate"
)

// Store is the task persistence the service needs.
type Store interface {
	FindTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	InsertTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, id string, changes map[string]any) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Directory resolves users referenced by tasks.
type Directory interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUsersByID(ctx context.Context, ids []string) (map[string]models.User, error)
}

// Service coordinates the store, the policy and the lifecycle rules.
type Service struct {
	store  Store
	users  Directory
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService builds a task service.
func NewService(store Store, users Directory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// List returns the tasks in r's view scope matching f, newest first.
func (s *Service) List(ctx context.Context, r models.Requester, f Filter) ([]models.TaskView, error) {
	q, err := BuildQuery(r, f)
	if err != nil {
		return nil, err
	}
	list, err := s.store.FindTasks(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list...)
}

// Get returns a single task. Tasks outside r's scope are reported as absent.
func (s *Service) Get(ctx context.Context, r models.Requester, id string) (models.TaskView, error) {
	t, err := s.locate(ctx, r, id, policy.ActionView)
	if err != nil {
		return models.TaskView{}, err
	}
	return s.view(ctx, t)
}

// Create stores a new task owned by r.
func (s *Service) Create(ctx context.Context, r models.Requester, in CreateInput) (models.TaskView, error) {
	if r.UserID == "" || !r.IsActive {
		return models.TaskView{}, apperr.New(apperr.ErrUnauthenticated, "authentication required")
	}
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return models.TaskView{}, err
	}
	if in.AssigneeID != "" && in.AssigneeID != r.UserID {
		if err := s.checkAssignee(ctx, in.AssigneeID); err != nil {
			return models.TaskView{}, err
		}
	}

	t := ApplyCreateDefaults(in.task(), r.UserID, s.now())
	t.ID = s.newID()

	created, err := s.store.InsertTask(ctx, t)
	if err != nil {
		return models.TaskView{}, err
	}
	s.logger.Info("task created", slog.String("task", created.ID), slog.String("creator", created.CreatorID), slog.String("assignee", created.AssigneeID))
	return s.view(ctx, created)
}

// Update applies a partial update. Each part of the patch is authorized on
// its own: details and assignee need the creator, status needs the
// assignee. A patch that changes nothing is not written.
func (s *Service) Update(ctx context.Context, r models.Requester, id string, p Patch) (models.TaskView, error) {
	p.normalize()
	if err := p.check(); err != nil {
		return models.TaskView{}, err
	}

	current, err := s.locate(ctx, r, id, policy.ActionView)
	if err != nil {
		return models.TaskView{}, err
	}

	if p.touchesDetails() {
		if err := policy.CanPerform(r, current, policy.ActionEditDetails); err != nil {
			return models.TaskView{}, err
		}
	}
	if p.AssigneeID != nil {
		if err := policy.CanPerform(r, current, policy.ActionReassign); err != nil {
			return models.TaskView{}, err
		}
		if *p.AssigneeID != current.AssigneeID {
			if err := s.checkAssignee(ctx, *p.AssigneeID); err != nil {
				return models.TaskView{}, err
			}
		}
	}
	if p.Status != nil {
		if err := policy.CanPerform(r, current, policy.ActionChangeStatus); err != nil {
			return models.TaskView{}, err
		}
	}

	next := p.apply(current)
	if p.Status != nil {
		next = ApplyStatusChange(next, models.TaskStatus(*p.Status), s.now())
	}
	return s.write(ctx, current, next)
}

// ChangeStatus sets the status of a task r is assigned to. Anyone else gets
// the same answer as for a missing task.
func (s *Service) ChangeStatus(ctx context.Context, r models.Requester, id, status string) (models.TaskView, error) {
	next, err := policy.CheckStatus(status)
	if err != nil {
		return models.TaskView{}, err
	}
	current, err := s.locate(ctx, r, id, policy.ActionChangeStatus)
	if err != nil {
		return models.TaskView{}, err
	}
	return s.write(ctx, current, ApplyStatusChange(current, next, s.now()))
}

// Delete removes a task r created. Anyone else gets the same answer as for a
// missing task.
func (s *Service) Delete(ctx context.Context, r models.Requester, id string) error {
	t, err := s.locate(ctx, r, id, policy.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, t.ID); err != nil {
		return err
	}
	s.logger.Info("task deleted", slog.String("task", t.ID), slog.String("by", r.UserID))
	return nil
}

// locate loads a task on behalf of r and checks action. Ownership-gated
// lookups deny exactly like a missing row.
func (s *Service) locate(ctx context.Context, r models.Requester, id string, action policy.Action) (models.Task, error) {
	if r.UserID == "" {
		return models.Task{}, apperr.New(apperr.ErrUnauthenticated, "authentication required")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := policy.CanPerform(r, t, action); err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			return models.Task{}, apperr.New(apperr.ErrNotFound, "task not found")
		}
		return models.Task{}, err
	}
	return t, nil
}

func (s *Service) write(ctx context.Context, current, next models.Task) (models.TaskView, error) {
	diff := changes(current, next)
	if len(diff) == 0 {
		return s.view(ctx, current)
	}
	updated, err := s.store.UpdateTask(ctx, current.ID, diff)
	if err != nil {
		return models.TaskView{}, err
	}
	return s.view(ctx, updated)
}

func (s *Service) checkAssignee(ctx context.Context, id string) error {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return policy.CheckAssignee(nil)
	}
	if err != nil {
		return err
	}
	return policy.CheckAssignee(&u)
}

func (s *Service) view(ctx context.Context, t models.Task) (models.TaskView, error) {
	views, err := s.views(ctx, t)
	if err != nil {
		return models.TaskView{}, err
	}
	return views[0], nil
}

func (s *Service) views(ctx context.Context, list ...models.Task) ([]models.TaskView, error) {
	out := make([]models.TaskView, 0, len(list))
	if len(list) == 0 {
		return out, nil
	}

	ids := make([]string, 0, 2*len(list))
	for _, t := range list {
		ids = append(ids, t.CreatorID, t.AssigneeID)
	}
	people, err := s.users.GetUsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range list {
		creator, ok := people[t.CreatorID]
		if !ok {
			creator = models.User{ID: t.CreatorID}
		}
		assignee, ok := people[t.AssigneeID]
		if !ok {
			assignee = models.User{ID: t.AssigneeID}
		}
		out = append(out, models.NewTaskView(t, creator, assignee))
	}
	return out, nil
}
