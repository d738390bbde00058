// Package deps manages the task dependency graph. Every insertion is checked
// for self-dependency, duplicates and cycles before it is written.
package deps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/logging"
)

// Type is the declared kind of a dependency edge.
type Type string

const (
	// BlockedBy on (task, dependsOn) means task depends on dependsOn.
	BlockedBy Type = "blocked_by"
	// Blocks on (task, dependsOn) means dependsOn depends on task.
	Blocks Type = "blocks"
)

// ParseType validates an edge type name.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case BlockedBy, Blocks:
		return t, nil
	case "blocked-by", "blockedby":
		return BlockedBy, nil
	}
	return "", apperr.Validation("unknown dependency type %q (want blocks or blocked_by)", s)
}

// Normalize returns (dependent, dependency): dependent cannot start until
// dependency is done.
func Normalize(taskID, dependsOnTaskID string, t Type) (dependent, dependency string) {
	if t == Blocks {
		return dependsOnTaskID, taskID
	}
	return taskID, dependsOnTaskID
}

// Edge is a stored dependency as declared, with its normalized direction.
type Edge struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	DependsOnTaskID string    `json:"depends_on_task_id"`
	Type            Type      `json:"type"`
	DependentID     string    `json:"dependent_id"`
	DependencyID    string    `json:"dependency_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEdge builds an unsaved edge with a fresh id.
func NewEdge(taskID, dependsOnTaskID string, t Type) Edge {
	dependent, dependency := Normalize(taskID, dependsOnTaskID, t)
	return Edge{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		DependsOnTaskID: dependsOnTaskID,
		Type:            t,
		DependentID:     dependent,
		DependencyID:    dependency,
		CreatedAt:       time.Now().UTC(),
	}
}

// Tx is the edge view available inside one store transaction.
type Tx interface {
	// EdgeExists reports whether the exact declared triple is stored.
	EdgeExists(ctx context.Context, taskID, dependsOnTaskID string, t Type) (bool, error)
	// PairExists reports whether any edge normalizes to (dependent, dependency).
	PairExists(ctx context.Context, dependentID, dependencyID string) (bool, error)
	// DependenciesOf returns the tasks taskID directly depends on.
	DependenciesOf(ctx context.Context, taskID string) ([]string, error)
	InsertEdge(ctx context.Context, e Edge) error
}

// Store is the persistence the manager needs.
type Store interface {
	// TaskListID returns the list owning taskID, or a not-found error.
	TaskListID(ctx context.Context, taskID string) (string, error)
	InDependencyTx(ctx context.Context, fn func(Tx) error) error
	GetEdge(ctx context.Context, id string) (Edge, error)
	DeleteEdge(ctx context.Context, id string) error
	EdgesOf(ctx context.Context, taskID string) ([]Edge, error)
}

// Locker serializes mutations per key.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// Manager validates and applies dependency mutations.
type Manager struct {
	store  Store
	locker Locker
	log    *logging.Logger
}

// NewManager creates a manager. locker may be nil when a single caller owns
// the database.
func NewManager(store Store, locker Locker) *Manager {
	return &Manager{store: store, locker: locker, log: logging.Component("deps")}
}

// Create records that one task depends on another. See Type for direction.
func (m *Manager) Create(ctx context.Context, taskID, dependsOnTaskID string, t Type) (Edge, error) {
	t, err := ParseType(string(t))
	if err != nil {
		return Edge{}, err
	}
	if taskID == "" || dependsOnTaskID == "" {
		return Edge{}, apperr.Validation("both task ids are required")
	}
	if taskID == dependsOnTaskID {
		return Edge{}, apperr.ValidationWith(apperr.ErrSelfDependency, "task %s cannot depend on itself", taskID)
	}

	listA, err := m.store.TaskListID(ctx, taskID)
	if err != nil {
		return Edge{}, err
	}
	listB, err := m.store.TaskListID(ctx, dependsOnTaskID)
	if err != nil {
		return Edge{}, err
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, listA, listB)
		if err != nil {
			return Edge{}, err
		}
		defer unlock()
	}

	// The list locks serialize writers touching a shared list. Edges between
	// unrelated lists rely on the store transaction: one connection per process,
	// and SQLite's single WAL writer rejects a commit whose read snapshot went
	// stale, so a concurrent cycle fails instead of landing.
	edge := NewEdge(taskID, dependsOnTaskID, t)
	err = m.store.InDependencyTx(ctx, func(tx Tx) error {
		exists, err := tx.EdgeExists(ctx, taskID, dependsOnTaskID, t)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ValidationWith(apperr.ErrDuplicateEdge, "dependency %s %s %s already exists", taskID, t, dependsOnTaskID)
		}
		exists, err = tx.PairExists(ctx, edge.DependentID, edge.DependencyID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ValidationWith(apperr.ErrDuplicateEdge, "task %s already depends on %s", edge.DependentID, edge.DependencyID)
		}

		cycle, err := Reachable(ctx, edge.DependencyID, edge.DependentID, tx.DependenciesOf)
		if err != nil {
			return err
		}
		if cycle {
			return apperr.ValidationWith(apperr.ErrCycle, "task %s depending on %s would create a cycle", edge.DependentID, edge.DependencyID)
		}
		return tx.InsertEdge(ctx, edge)
	})
	if err != nil {
		m.log.Debug().Err(err).Str("task", taskID).Str("depends_on", dependsOnTaskID).Str("type", string(t)).Msg("dependency rejected")
		return Edge{}, err
	}

	m.log.Info().
		Str("edge", edge.ID).
		Str("dependent", edge.DependentID).
		Str("dependency", edge.DependencyID).
		Msg("dependency created")
	return edge, nil
}

// Remove deletes an edge by id.
func (m *Manager) Remove(ctx context.Context, edgeID string) error {
	edge, err := m.store.GetEdge(ctx, edgeID)
	if err != nil {
		return err
	}
	if err := m.store.DeleteEdge(ctx, edgeID); err != nil {
		return err
	}
	m.log.Info().Str("edge", edge.ID).Str("dependent", edge.DependentID).Str("dependency", edge.DependencyID).Msg("dependency removed")
	return nil
}

// View is the derived dependency picture of one task.
type View struct {
	TaskID string `json:"task_id"`
	// BlockedBy holds edges to tasks this task depends on.
	BlockedBy []Edge `json:"blocked_by"`
	// Blocking holds edges from tasks that depend on this task.
	Blocking []Edge `json:"blocking"`
}

// Dependencies returns both directions of taskID's dependencies.
func (m *Manager) Dependencies(ctx context.Context, taskID string) (View, error) {
	if _, err := m.store.TaskListID(ctx, taskID); err != nil {
		return View{}, err
	}
	edges, err := m.store.EdgesOf(ctx, taskID)
	if err != nil {
		return View{}, err
	}
	v := View{TaskID: taskID, BlockedBy: []Edge{}, Blocking: []Edge{}}
	for _, e := range edges {
		switch taskID {
		case e.DependentID:
			v.BlockedBy = append(v.BlockedBy, e)
		case e.DependencyID:
			v.Blocking = append(v.Blocking, e)
		}
	}
	return v, nil
}

// Reachable reports whether to can be reached from from by following next.
// It runs a breadth-first search and visits each task once.
func Reachable(ctx context.Context, from, to string, next func(context.Context, string) ([]string, error)) (bool, error) {
	if from == to {
		return true, nil
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		current := queue[0]
		queue = queue[1:]

		neighbors, err := next(ctx, current)
		if err != nil {
			return false, fmt.Errorf("loading dependencies of %s: %w", current, err)
		}
		for _, n := range neighbors {
			if n == to {
				return true, nil
			}
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false, nil
}
