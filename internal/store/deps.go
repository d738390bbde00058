package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/marcus/trellis/internal/deps"
)

var edgeColumns = []string{"id", "task_id", "depends_on_task_id", "type", "dependent_id", "dependency_id", "created_at"}

func scanEdge(scan func(dest ...any) error) (deps.Edge, error) {
	var e deps.Edge
	err := scan(&e.ID, &e.TaskID, &e.DependsOnTaskID, &e.Type, &e.DependentID, &e.DependencyID, &e.CreatedAt)
	return e, err
}

// InDependencyTx runs fn against the edge table inside one transaction.
func (s *Store) InDependencyTx(ctx context.Context, fn func(deps.Tx) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&edgeTx{s: s, tx: tx})
	})
}

// GetEdge loads an edge by id.
func (s *Store) GetEdge(ctx context.Context, id string) (deps.Edge, error) {
	row, err := s.queryRow(ctx, s.db.SQL(), s.sb.Select(edgeColumns...).From("task_dependencies").Where("id = ?", id))
	if err != nil {
		return deps.Edge{}, err
	}
	e, err := scanEdge(row.Scan)
	if err != nil {
		return deps.Edge{}, notFound(err, "dependency", id)
	}
	return e, nil
}

// DeleteEdge removes an edge by id.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db.SQL(), s.sb.Delete("task_dependencies").Where("id = ?", id))
	if err != nil {
		return fmt.Errorf("deleting dependency %s: %w", id, err)
	}
	return requireRow(res, "dependency", id)
}

// EdgesOf returns every edge touching a task in either direction.
func (s *Store) EdgesOf(ctx context.Context, taskID string) ([]deps.Edge, error) {
	rows, err := s.query(ctx, s.db.SQL(), s.sb.Select(edgeColumns...).From("task_dependencies").
		Where(sq.Or{sq.Eq{"dependent_id": taskID}, sq.Eq{"dependency_id": taskID}}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("querying dependencies of %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []deps.Edge
	for rows.Next() {
		e, err := scanEdge(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type edgeTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *edgeTx) EdgeExists(ctx context.Context, taskID, dependsOnTaskID string, typ deps.Type) (bool, error) {
	return t.s.exists(ctx, t.tx, t.s.sb.Select("1").From("task_dependencies").
		Where(sq.Eq{"task_id": taskID, "depends_on_task_id": dependsOnTaskID, "type": string(typ)}))
}

func (t *edgeTx) PairExists(ctx context.Context, dependentID, dependencyID string) (bool, error) {
	return t.s.exists(ctx, t.tx, t.s.sb.Select("1").From("task_dependencies").
		Where(sq.Eq{"dependent_id": dependentID, "dependency_id": dependencyID}))
}

func (t *edgeTx) DependenciesOf(ctx context.Context, taskID string) ([]string, error) {
	rows, err := t.s.query(ctx, t.tx, t.s.sb.Select("dependency_id").From("task_dependencies").
		Where("dependent_id = ?", taskID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *edgeTx) InsertEdge(ctx context.Context, e deps.Edge) error {
	_, err := t.s.exec(ctx, t.tx, t.s.sb.Insert("task_dependencies").
		Columns(edgeColumns...).
		Values(e.ID, e.TaskID, e.DependsOnTaskID, string(e.Type), e.DependentID, e.DependencyID, e.CreatedAt))
	return constraintError(err, "storing dependency %s", e.ID)
}
