package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/filter"
	"github.com/marcus/trellis/internal/tasks"
)

var taskColumns = []string{
	col("id"), col("list_id"), col("title"), col("description"), col("status_id"),
	col("priority_id"), col("due_date"), col("order_position"), col("archived"),
	col("created_at"), col("updated_at"),
}

func col(name string) string {
	return filter.Alias + "." + name
}

func (s *Store) selectTasks() sq.SelectBuilder {
	return s.sb.Select(taskColumns...).From("tasks " + filter.Alias)
}

func scanTask(scan func(dest ...any) error) (tasks.Task, error) {
	var (
		t                tasks.Task
		status, priority sql.NullString
		due              sql.NullString
		archived         int
	)
	err := scan(&t.ID, &t.ListID, &t.Title, &t.Description, &status, &priority,
		&due, &t.OrderPosition, &archived, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return tasks.Task{}, err
	}
	if status.Valid {
		t.StatusID = &status.String
	}
	if priority.Valid {
		t.PriorityID = &priority.String
	}
	if due.Valid {
		d, err := tasks.ParseDate(due.String)
		if err != nil {
			return tasks.Task{}, fmt.Errorf("task %s due date: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	t.Archived = archived != 0
	return t, nil
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func dueValue(d *tasks.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateTask inserts a task with its assignees and tags.
func (s *Store) CreateTask(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return tasks.Task{}, apperr.Validation("task title is required")
	}
	if _, err := s.GetList(ctx, t.ListID); err != nil {
		return tasks.Task{}, err
	}
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if t.StatusID != nil {
			ok, err := s.exists(ctx, tx, s.sb.Select("1").From("statuses").
				Where(sq.Eq{"id": *t.StatusID, "list_id": t.ListID}))
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Validation("status %s does not belong to list %s", *t.StatusID, t.ListID)
			}
		}
		_, err := s.exec(ctx, tx, s.sb.Insert("tasks").
			Columns("id", "list_id", "title", "description", "status_id", "priority_id",
				"due_date", "order_position", "archived", "created_at", "updated_at").
			Values(t.ID, t.ListID, t.Title, t.Description, nullable(t.StatusID), nullable(t.PriorityID),
				dueValue(t.DueDate), t.OrderPosition, boolInt(t.Archived), t.CreatedAt, t.UpdatedAt))
		if err != nil {
			return constraintError(err, "creating task %q", t.Title)
		}
		for _, userID := range t.AssigneeIDs {
			if _, err := s.exec(ctx, tx, s.sb.Insert("task_assignees").Columns("task_id", "user_id").Values(t.ID, userID)); err != nil {
				return constraintError(err, "assigning user %s", userID)
			}
		}
		for _, tagID := range t.TagIDs {
			if _, err := s.exec(ctx, tx, s.sb.Insert("task_tags").Columns("task_id", "tag_id").Values(t.ID, tagID)); err != nil {
				return constraintError(err, "tagging with %s", tagID)
			}
		}
		return nil
	})
	if err != nil {
		return tasks.Task{}, err
	}
	s.log.Debug().Str("task", t.ID).Str("list", t.ListID).Msg("task created")
	return s.GetTask(ctx, t.ID)
}

// NextOrderPosition returns one past the highest order position in a list.
func (s *Store) NextOrderPosition(ctx context.Context, listID string) (int, error) {
	row, err := s.queryRow(ctx, s.db.SQL(), s.sb.Select("COALESCE(MAX(order_position) + 1, 0)").
		From("tasks").Where("list_id = ?", listID))
	if err != nil {
		return 0, err
	}
	var next int
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("next order position: %w", err)
	}
	return next, nil
}

// GetTask loads a task with its assignees and tags.
func (s *Store) GetTask(ctx context.Context, id string) (tasks.Task, error) {
	row, err := s.queryRow(ctx, s.db.SQL(), s.selectTasks().Where(sq.Eq{col("id"): id}))
	if err != nil {
		return tasks.Task{}, err
	}
	t, err := scanTask(row.Scan)
	if err != nil {
		return tasks.Task{}, notFound(err, "task", id)
	}
	out := []tasks.Task{t}
	if err := s.loadRelations(ctx, out); err != nil {
		return tasks.Task{}, err
	}
	return out[0], nil
}

// TaskListID returns the list owning a task.
func (s *Store) TaskListID(ctx context.Context, taskID string) (string, error) {
	row, err := s.queryRow(ctx, s.db.SQL(), s.sb.Select("list_id").From("tasks").Where("id = ?", taskID))
	if err != nil {
		return "", err
	}
	var listID string
	if err := row.Scan(&listID); err != nil {
		return "", notFound(err, "task", taskID)
	}
	return listID, nil
}

// TaskQuery selects tasks by predicate with ordering and pagination.
// Predicates and order keys reference the tasks table as filter.Alias.
type TaskQuery struct {
	Where   sq.Sqlizer
	OrderBy []sq.Sqlizer
	Limit   uint64
	Offset  uint64
}

// FindTasks runs q and returns matching tasks in order.
func (s *Store) FindTasks(ctx context.Context, q TaskQuery) ([]tasks.Task, error) {
	b := s.selectTasks()
	if q.Where != nil {
		b = b.Where(q.Where)
	}
	for _, key := range q.OrderBy {
		b = b.OrderByClause(key)
	}
	switch {
	case q.Limit > 0:
		b = b.Limit(q.Limit)
	case q.Offset > 0:
		b = b.Limit(math.MaxInt64)
	}
	if q.Offset > 0 {
		b = b.Offset(q.Offset)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building task query: %w", err)
	}
	s.log.Debug().Str("sql", query).Interface("args", args).Msg("find tasks")

	rows, err := s.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	var out []tasks.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if err := s.loadRelations(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadRelations fills assignee and tag ids. Rows of the task query must be
// closed first since the database holds a single connection.
func (s *Store) loadRelations(ctx context.Context, ts []tasks.Task) error {
	if len(ts) == 0 {
		return nil
	}
	index := make(map[string]int, len(ts))
	ids := make([]string, len(ts))
	for i, t := range ts {
		index[t.ID] = i
		ids[i] = t.ID
	}

	load := func(table, column string, assign func(*tasks.Task, string)) error {
		rows, err := s.query(ctx, s.db.SQL(), s.sb.Select("task_id", column).From(table).
			Where(sq.Eq{"task_id": ids}).OrderBy("task_id", column))
		if err != nil {
			return fmt.Errorf("querying %s: %w", table, err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var taskID, ref string
			if err := rows.Scan(&taskID, &ref); err != nil {
				return fmt.Errorf("scanning %s: %w", table, err)
			}
			assign(&ts[index[taskID]], ref)
		}
		return rows.Err()
	}

	if err := load("task_assignees", "user_id", func(t *tasks.Task, id string) {
		t.AssigneeIDs = append(t.AssigneeIDs, id)
	}); err != nil {
		return err
	}
	return load("task_tags", "tag_id", func(t *tasks.Task, id string) {
		t.TagIDs = append(t.TagIDs, id)
	})
}

// SetArchived flags or unflags a task as archived.
func (s *Store) SetArchived(ctx context.Context, taskID string, archived bool) error {
	res, err := s.exec(ctx, s.db.SQL(), s.sb.Update("tasks").
		Set("archived", boolInt(archived)).
		Set("updated_at", s.now()).
		Where("id = ?", taskID))
	if err != nil {
		return fmt.Errorf("archiving task %s: %w", taskID, err)
	}
	return requireRow(res, "task", taskID)
}

// AddAssignee assigns a user to a task. Assigning twice is a no-op.
func (s *Store) AddAssignee(ctx context.Context, taskID, userID string) error {
	return s.attach(ctx, "task_assignees", "user_id", taskID, userID)
}

// RemoveAssignee unassigns a user from a task.
func (s *Store) RemoveAssignee(ctx context.Context, taskID, userID string) error {
	return s.detach(ctx, "task_assignees", "user_id", taskID, userID)
}

// AddTag labels a task. Tagging twice is a no-op.
func (s *Store) AddTag(ctx context.Context, taskID, tagID string) error {
	return s.attach(ctx, "task_tags", "tag_id", taskID, tagID)
}

// RemoveTag removes a label from a task.
func (s *Store) RemoveTag(ctx context.Context, taskID, tagID string) error {
	return s.detach(ctx, "task_tags", "tag_id", taskID, tagID)
}

func (s *Store) attach(ctx context.Context, table, column, taskID, refID string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, taskID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, s.sb.Insert(table).Options("OR IGNORE").
			Columns("task_id", column).Values(taskID, refID))
		return constraintError(err, "attaching %s to task %s", refID, taskID)
	})
}

func (s *Store) detach(ctx context.Context, table, column, taskID, refID string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, taskID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, s.sb.Delete(table).Where(sq.Eq{"task_id": taskID, column: refID}))
		if err != nil {
			return fmt.Errorf("detaching %s from task %s: %w", refID, taskID, err)
		}
		return nil
	})
}

func (s *Store) touch(ctx context.Context, q querier, taskID string) error {
	res, err := s.exec(ctx, q, s.sb.Update("tasks").Set("updated_at", s.now()).Where("id = ?", taskID))
	if err != nil {
		return fmt.Errorf("touching task %s: %w", taskID, err)
	}
	return requireRow(res, "task", taskID)
}
