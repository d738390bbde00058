// Package service is the entry point of the task query and dependency
// engine. It wires the filter compiler, sort planner, custom field registry
// and dependency manager to the task store.
package service

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/config"
	"github.com/marcus/trellis/internal/customfields"
	"github.com/marcus/trellis/internal/deps"
	"github.com/marcus/trellis/internal/filter"
	"github.com/marcus/trellis/internal/logging"
	"github.com/marcus/trellis/internal/sortplan"
	"github.com/marcus/trellis/internal/store"
	"github.com/marcus/trellis/internal/tasks"
)

// Service exposes the engine operations.
type Service struct {
	store    *store.Store
	cfg      *config.Config
	fields   *customfields.Registry
	compiler *filter.Compiler
	planner  *sortplan.Planner
	deps     *deps.Manager
	log      *logging.Logger
}

// New wires a service over st. cfg supplies query limits; nil uses defaults.
// locker serializes dependency mutations and may be nil for single-caller use.
func New(st *store.Store, cfg *config.Config, locker deps.Locker) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	registry := customfields.NewRegistry(st)
	return &Service{
		store:    st,
		cfg:      cfg,
		fields:   registry,
		compiler: filter.NewCompiler(registry, filter.WithMaxDepth(cfg.Query.MaxFilterDepth)),
		planner:  sortplan.New(registry),
		deps:     deps.NewManager(st, locker),
		log:      logging.Component("service"),
	}
}

// Page selects a window of results. Zero Limit uses the configured default.
type Page struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// FilterRequest selects tasks by filter tree.
type FilterRequest struct {
	// ListID scopes the query; empty queries every list.
	ListID          string
	Filter          *filter.Group
	IncludeArchived bool
	Sort            sortplan.Spec
	Page            Page
}

// SearchRequest selects tasks by substring of title or description.
type SearchRequest struct {
	Query           string
	ListID          string
	IncludeArchived bool
	Sort            sortplan.Spec
	Page            Page
}

// FilterTasks returns the tasks matching req in sort order. All validation
// happens before the task query runs.
func (s *Service) FilterTasks(ctx context.Context, req FilterRequest) ([]tasks.Task, error) {
	if err := s.checkList(ctx, req.ListID); err != nil {
		return nil, err
	}
	where, err := s.compiler.Compile(ctx, req.Filter, filter.Scope{ListID: req.ListID, IncludeArchived: req.IncludeArchived})
	if err != nil {
		return nil, err
	}
	return s.find(ctx, where, req.ListID, req.Sort, req.Page)
}

// SearchTasks returns tasks whose title or description contains req.Query.
func (s *Service) SearchTasks(ctx context.Context, req SearchRequest) ([]tasks.Task, error) {
	if err := s.checkList(ctx, req.ListID); err != nil {
		return nil, err
	}
	match, err := filter.Search(req.Query)
	if err != nil {
		return nil, err
	}
	scope, err := s.compiler.Compile(ctx, nil, filter.Scope{ListID: req.ListID, IncludeArchived: req.IncludeArchived})
	if err != nil {
		return nil, err
	}
	return s.find(ctx, sq.And{scope, match}, req.ListID, req.Sort, req.Page)
}

func (s *Service) find(ctx context.Context, where sq.Sqlizer, listID string, spec sortplan.Spec, page Page) ([]tasks.Task, error) {
	plan, err := s.planner.Plan(ctx, spec, listID)
	if err != nil {
		return nil, err
	}
	if page.Limit < 0 || page.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}

	orderBy := make([]sq.Sqlizer, len(plan.Keys))
	for i, k := range plan.Keys {
		orderBy[i] = k
	}
	found, err := s.store.FindTasks(ctx, store.TaskQuery{
		Where:   where,
		OrderBy: orderBy,
		Limit:   uint64(s.cfg.ClampLimit(page.Limit)),
		Offset:  uint64(page.Offset),
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []tasks.Task{}
	}
	return found, nil
}

func (s *Service) checkList(ctx context.Context, listID string) error {
	if listID == "" {
		return nil
	}
	_, err := s.store.GetList(ctx, listID)
	return err
}

// CreateDependency records a dependency between two tasks after checking it
// keeps the graph acyclic.
func (s *Service) CreateDependency(ctx context.Context, taskID, dependsOnTaskID string, t deps.Type) (deps.Edge, error) {
	return s.deps.Create(ctx, taskID, dependsOnTaskID, t)
}

// RemoveDependency deletes a dependency edge.
func (s *Service) RemoveDependency(ctx context.Context, edgeID string) error {
	return s.deps.Remove(ctx, edgeID)
}

// Dependencies returns what a task is blocked by and what it blocks.
func (s *Service) Dependencies(ctx context.Context, taskID string) (deps.View, error) {
	return s.deps.Dependencies(ctx, taskID)
}

// CreateCustomFieldValue sets the first value of a field on a task.
func (s *Service) CreateCustomFieldValue(ctx context.Context, taskID, fieldID string, raw any) (customfields.StoredValue, error) {
	listID, err := s.store.TaskListID(ctx, taskID)
	if err != nil {
		return customfields.StoredValue{}, err
	}
	f, err := s.fields.Resolve(ctx, fieldID, listID)
	if err != nil {
		return customfields.StoredValue{}, err
	}
	v, err := customfields.Validate(raw, f)
	if err != nil {
		return customfields.StoredValue{}, err
	}
	sv, err := s.store.InsertValue(ctx, taskID, f.ID, v)
	if err != nil {
		return customfields.StoredValue{}, err
	}
	s.log.Info().Str("task", taskID).Str("field", f.ID).Str("value", v.String()).Msg("custom field value created")
	return sv, nil
}

// UpdateCustomFieldValue replaces a stored value. An invalid value leaves the
// stored one unchanged.
func (s *Service) UpdateCustomFieldValue(ctx context.Context, valueID string, raw any) (customfields.StoredValue, error) {
	current, err := s.store.GetValue(ctx, valueID)
	if err != nil {
		return customfields.StoredValue{}, err
	}
	f, v, err := s.fields.Validate(ctx, current.FieldID, raw)
	if err != nil {
		return customfields.StoredValue{}, err
	}
	sv, err := s.store.UpdateValue(ctx, valueID, v)
	if err != nil {
		return customfields.StoredValue{}, err
	}
	s.log.Info().Str("value_id", valueID).Str("field", f.ID).Str("value", v.String()).Msg("custom field value updated")
	return sv, nil
}

// GetCustomFieldValue loads a stored value.
func (s *Service) GetCustomFieldValue(ctx context.Context, valueID string) (customfields.StoredValue, error) {
	return s.store.GetValue(ctx, valueID)
}

// TaskValues returns every custom field value set on a task.
func (s *Service) TaskValues(ctx context.Context, taskID string) ([]customfields.StoredValue, error) {
	if _, err := s.store.TaskListID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ValuesOf(ctx, taskID)
}

// DeleteCustomFieldValue removes a stored value.
func (s *Service) DeleteCustomFieldValue(ctx context.Context, valueID string) error {
	if err := s.store.DeleteValue(ctx, valueID); err != nil {
		return err
	}
	s.log.Info().Str("value_id", valueID).Msg("custom field value deleted")
	return nil
}

// CreateCustomField defines a typed field on a list.
func (s *Service) CreateCustomField(ctx context.Context, f customfields.Field) (customfields.Field, error) {
	f.Name = strings.TrimSpace(f.Name)
	return s.store.CreateCustomField(ctx, f)
}

// CustomFields lists the fields of a list.
func (s *Service) CustomFields(ctx context.Context, listID string) ([]customfields.Field, error) {
	if _, err := s.store.GetList(ctx, listID); err != nil {
		return nil, err
	}
	return s.store.CustomFields(ctx, listID)
}
