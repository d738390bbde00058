package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcus/trellis/internal/deps"
	"github.com/marcus/trellis/internal/store"
	"github.com/marcus/trellis/internal/tasks"
)

// CreateList creates a list.
func (s *Service) CreateList(ctx context.Context, name string) (tasks.List, error) {
	l, err := s.store.CreateList(ctx, tasks.List{Name: strings.TrimSpace(name)})
	if err != nil {
		return tasks.List{}, err
	}
	s.log.Info().Str("list", l.ID).Str("name", l.Name).Msg("list created")
	return l, nil
}

// Lists returns every list.
func (s *Service) Lists(ctx context.Context) ([]tasks.List, error) {
	return s.store.Lists(ctx)
}

// CreateStatus adds a workflow status to a list.
func (s *Service) CreateStatus(ctx context.Context, listID, name string, position int) (tasks.Status, error) {
	return s.store.CreateStatus(ctx, tasks.Status{ListID: listID, Name: strings.TrimSpace(name), Position: position})
}

// Statuses returns the statuses of a list.
func (s *Service) Statuses(ctx context.Context, listID string) ([]tasks.Status, error) {
	return s.store.Statuses(ctx, listID)
}

// CreatePriority adds a priority level. Lower positions sort first.
func (s *Service) CreatePriority(ctx context.Context, name string, position int) (tasks.Priority, error) {
	return s.store.CreatePriority(ctx, tasks.Priority{Name: strings.TrimSpace(name), Position: position})
}

// CreateUser adds a user.
func (s *Service) CreateUser(ctx context.Context, name string) (tasks.User, error) {
	return s.store.CreateUser(ctx, tasks.User{Name: strings.TrimSpace(name)})
}

// CreateTag adds a tag.
func (s *Service) CreateTag(ctx context.Context, name string) (tasks.Tag, error) {
	return s.store.CreateTag(ctx, tasks.Tag{Name: strings.TrimSpace(name)})
}

// NewTask describes a task to create. A nil OrderPosition appends the task
// to the end of its list.
type NewTask struct {
	ListID        string
	Title         string
	Description   string
	StatusID      string
	PriorityID    string
	DueDate       *tasks.Date
	OrderPosition *int
	AssigneeIDs   []string
	TagIDs        []string
}

// CreateTask creates a task.
func (s *Service) CreateTask(ctx context.Context, n NewTask) (tasks.Task, error) {
	var position int
	if n.OrderPosition != nil {
		position = *n.OrderPosition
	} else {
		next, err := s.store.NextOrderPosition(ctx, n.ListID)
		if err != nil {
			return tasks.Task{}, err
		}
		position = next
	}
	t, err := s.store.CreateTask(ctx, tasks.Task{
		ListID:        n.ListID,
		Title:         strings.TrimSpace(n.Title),
		Description:   n.Description,
		StatusID:      tasks.StringPtr(n.StatusID),
		PriorityID:    tasks.StringPtr(n.PriorityID),
		DueDate:       n.DueDate,
		OrderPosition: position,
		AssigneeIDs:   n.AssigneeIDs,
		TagIDs:        n.TagIDs,
	})
	if err != nil {
		return tasks.Task{}, err
	}
	s.log.Info().Str("task", t.ID).Str("list", t.ListID).Msg("task created")
	return t, nil
}

// GetTask loads a task.
func (s *Service) GetTask(ctx context.Context, id string) (tasks.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ArchiveTask sets the archived flag of a task.
func (s *Service) ArchiveTask(ctx context.Context, id string, archived bool) error {
	if err := s.store.SetArchived(ctx, id, archived); err != nil {
		return err
	}
	s.log.Info().Str("task", id).Bool("archived", archived).Msg("task archive flag set")
	return nil
}

// AssignTask adds a user to a task's assignees.
func (s *Service) AssignTask(ctx context.Context, taskID, userID string) error {
	return s.store.AddAssignee(ctx, taskID, userID)
}

// UnassignTask removes a user from a task's assignees.
func (s *Service) UnassignTask(ctx context.Context, taskID, userID string) error {
	return s.store.RemoveAssignee(ctx, taskID, userID)
}

// TagTask adds a tag to a task.
func (s *Service) TagTask(ctx context.Context, taskID, tagID string) error {
	return s.store.AddTag(ctx, taskID, tagID)
}

// UntagTask removes a tag from a task.
func (s *Service) UntagTask(ctx context.Context, taskID, tagID string) error {
	return s.store.RemoveTag(ctx, taskID, tagID)
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	store.ImportResult
	Dependencies int `json:"dependencies"`
}

// Import loads a seed document. Entities are written in one transaction;
// dependencies are then created one by one through the cycle check.
func (s *Service) Import(ctx context.Context, seed *store.Seed) (ImportResult, error) {
	res, err := s.store.Import(ctx, seed)
	if err != nil {
		return ImportResult{}, err
	}
	out := ImportResult{ImportResult: res}
	for _, d := range seed.Dependencies {
		t, err := deps.ParseType(d.Type)
		if err != nil {
			return out, err
		}
		if _, err := s.deps.Create(ctx, d.Task, d.DependsOn, t); err != nil {
			return out, fmt.Errorf("importing dependency %s -> %s: %w", d.Task, d.DependsOn, err)
		}
		out.Dependencies++
	}
	return out, nil
}
