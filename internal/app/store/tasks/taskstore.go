// internal/app/store/tasks/taskstore.go
package taskstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crewtask/crewtask/internal/app/docstore"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// Store is the task store over the tasks collection.
type Store struct {
	c   docstore.Collection
	log *zap.Logger
}

var (
	ErrEmptyTitle  = errors.New("task title must not be empty")
	ErrNoTeam      = errors.New("task must reference a team")
	ErrNoAssignee  = errors.New("task must reference an assignee")
	ErrBadStatus   = errors.New(`status must be "todo"|"in_progress"|"done"`)
	ErrBadPriority = errors.New(`priority must be "low"|"medium"|"high"`)
)

func New(db docstore.Store, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("tasks"), log: logger}
}

// Create inserts a task with a generated id. Title, team, and assignee
// are mandatory for a well-formed task.
func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, ErrEmptyTitle
	}
	if t.TeamID == "" {
		return models.Task{}, ErrNoTeam
	}
	if t.AssigneeID == "" {
		return models.Task{}, ErrNoAssignee
	}
	t.ApplyDefaults()
	if !models.ValidStatus(t.Status) {
		return models.Task{}, ErrBadStatus
	}
	if !models.ValidPriority(t.Priority) {
		return models.Task{}, ErrBadPriority
	}
	t.ID = s.c.NewID()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.c.Set(ctx, t.ID, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// GetByID loads a task. Returns docstore.ErrNotFound for an unknown id.
func (s *Store) GetByID(ctx context.Context, id string) (models.Task, error) {
	var t models.Task
	if err := s.c.Get(ctx, id, &t); err != nil {
		return models.Task{}, err
	}
	t.ApplyDefaults()
	return t, nil
}

// Update writes the given fields onto an existing task and bumps
// updated_at.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	set := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		set[k] = v
	}
	set["updated_at"] = time.Now().UTC()
	return s.c.Update(ctx, id, set)
}

// UpdateStatus changes a task's status.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	if !models.ValidStatus(status) {
		return ErrBadStatus
	}
	return s.Update(ctx, id, map[string]any{"status": status})
}

// Assign changes a task's assignee.
func (s *Store) Assign(ctx context.Context, id, assigneeID string) error {
	return s.Update(ctx, id, map[string]any{"assignee_id": assigneeID})
}

// ListByTeam returns tasks carrying the given team id.
func (s *Store) ListByTeam(ctx context.Context, teamID string) ([]models.Task, error) {
	return s.query(ctx, docstore.Eq("team_id", teamID))
}

// ListByAssignee returns tasks assigned to the given user.
func (s *Store) ListByAssignee(ctx context.Context, userID string) ([]models.Task, error) {
	return s.query(ctx, docstore.Eq("assignee_id", userID))
}

// ListAll returns every task.
func (s *Store) ListAll(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.c.List(ctx, &tasks); err != nil {
		return nil, err
	}
	applyDefaults(tasks)
	return tasks, nil
}

// ListByTeamIDs returns tasks carrying any of the given team ids. The
// backing set-membership filter caps out at docstore.MaxInValues ids,
// so larger inputs are chunked; if the backend still rejects the
// batched form, it degrades to one query per id.
func (s *Store) ListByTeamIDs(ctx context.Context, teamIDs []string) ([]models.Task, error) {
	if len(teamIDs) == 0 {
		return []models.Task{}, nil
	}
	var out []models.Task
	for start := 0; start < len(teamIDs); start += docstore.MaxInValues {
		end := start + docstore.MaxInValues
		if end > len(teamIDs) {
			end = len(teamIDs)
		}
		chunk, err := s.query(ctx, docstore.In("team_id", teamIDs[start:end]))
		if err != nil {
			if errors.Is(err, docstore.ErrUnsupportedFilter) {
				s.log.Warn("batched team query rejected, falling back to per-team queries",
					zap.Int("team_count", len(teamIDs)), zap.Error(err))
				return s.listByTeamIDsSequential(ctx, teamIDs)
			}
			return nil, err
		}
		out = append(out, chunk...)
	}
	if out == nil {
		out = []models.Task{}
	}
	return out, nil
}

func (s *Store) listByTeamIDsSequential(ctx context.Context, teamIDs []string) ([]models.Task, error) {
	out := []models.Task{}
	for _, id := range teamIDs {
		tasks, err := s.ListByTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, filters ...docstore.Filter) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.c.Query(ctx, &tasks, filters...); err != nil {
		return nil, err
	}
	applyDefaults(tasks)
	return tasks, nil
}

func applyDefaults(tasks []models.Task) {
	for i := range tasks {
		tasks[i].ApplyDefaults()
	}
}
