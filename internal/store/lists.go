package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/tasks"
)

// CreateList inserts a list. An empty ID is generated.
func (s *Store) CreateList(ctx context.Context, l tasks.List) (tasks.List, error) {
	if strings.TrimSpace(l.Name) == "" {
		return tasks.List{}, apperr.Validation("list name is required")
	}
	if l.ID == "" {
		l.ID = newID()
	}
	l.CreatedAt = s.now()
	_, err := s.exec(ctx, s.db.SQL(), s.sb.Insert("lists").
		Columns("id", "name", "created_at").
		Values(l.ID, l.Name, l.CreatedAt))
	if err != nil {
		return tasks.List{}, constraintError(err, "creating list %q", l.Name)
	}
	return l, nil
}

// GetList loads a list by id.
func (s *Store) GetList(ctx context.Context, id string) (tasks.List, error) {
	row, err := s.queryRow(ctx, s.db.SQL(), s.sb.Select("id", "name", "created_at").From("lists").Where("id = ?", id))
	if err != nil {
		return tasks.List{}, err
	}
	var l tasks.List
	if err := row.Scan(&l.ID, &l.Name, &l.CreatedAt); err != nil {
		return tasks.List{}, notFound(err, "list", id)
	}
	return l, nil
}

// Lists returns every list ordered by name.
func (s *Store) Lists(ctx context.Context) ([]tasks.List, error) {
	rows, err := s.query(ctx, s.db.SQL(), s.sb.Select("id", "name", "created_at").From("lists").OrderBy("name", "id"))
	if err != nil {
		return nil, fmt.Errorf("querying lists: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []tasks.List
	for rows.Next() {
		var l tasks.List
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning list: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateStatus inserts a workflow status for a list.
func (s *Store) CreateStatus(ctx context.Context, st tasks.Status) (tasks.Status, error) {
	if strings.TrimSpace(st.Name) == "" {
		return tasks.Status{}, apperr.Validation("status name is required")
	}
	if _, err := s.GetList(ctx, st.ListID); err != nil {
		return tasks.Status{}, err
	}
	if st.ID == "" {
		st.ID = newID()
	}
	_, err := s.exec(ctx, s.db.SQL(), s.sb.Insert("statuses").
		Columns("id", "list_id", "name", "position").
		Values(st.ID, st.ListID, st.Name, st.Position))
	if err != nil {
		return tasks.Status{}, constraintError(err, "creating status %q", st.Name)
	}
	return st, nil
}

// Statuses returns the statuses of a list in position order.
func (s *Store) Statuses(ctx context.Context, listID string) ([]tasks.Status, error) {
	rows, err := s.query(ctx, s.db.SQL(), s.sb.Select("id", "list_id", "name", "position").
		From("statuses").Where("list_id = ?", listID).OrderBy("position", "id"))
	if err != nil {
		return nil, fmt.Errorf("querying statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []tasks.Status
	for rows.Next() {
		var st tasks.Status
		if err := rows.Scan(&st.ID, &st.ListID, &st.Name, &st.Position); err != nil {
			return nil, fmt.Errorf("scanning status: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CreatePriority inserts a global priority level.
func (s *Store) CreatePriority(ctx context.Context, p tasks.Priority) (tasks.Priority, error) {
	if strings.TrimSpace(p.Name) == "" {
		return tasks.Priority{}, apperr.Validation("priority name is required")
	}
	if p.ID == "" {
		p.ID = newID()
	}
	_, err := s.exec(ctx, s.db.SQL(), s.sb.Insert("priorities").
		Columns("id", "name", "position").
		Values(p.ID, p.Name, p.Position))
	if err != nil {
		return tasks.Priority{}, constraintError(err, "creating priority %q", p.Name)
	}
	return p, nil
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u tasks.User) (tasks.User, error) {
	if strings.TrimSpace(u.Name) == "" {
		return tasks.User{}, apperr.Validation("user name is required")
	}
	if u.ID == "" {
		u.ID = newID()
	}
	_, err := s.exec(ctx, s.db.SQL(), s.sb.Insert("users").Columns("id", "name").Values(u.ID, u.Name))
	if err != nil {
		return tasks.User{}, constraintError(err, "creating user %q", u.Name)
	}
	return u, nil
}

// CreateTag inserts a tag.
func (s *Store) CreateTag(ctx context.Context, t tasks.Tag) (tasks.Tag, error) {
	if strings.TrimSpace(t.Name) == "" {
		return tasks.Tag{}, apperr.Validation("tag name is required")
	}
	if t.ID == "" {
		t.ID = newID()
	}
	_, err := s.exec(ctx, s.db.SQL(), s.sb.Insert("tags").Columns("id", "name").Values(t.ID, t.Name))
	if err != nil {
		return tasks.Tag{}, constraintError(err, "creating tag %q", t.Name)
	}
	return t, nil
}
