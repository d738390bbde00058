package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/customfields"
)

var fieldColumns = []string{"id", "list_id", "name", "type", "config", "created_at"}

func scanField(scan func(dest ...any) error) (customfields.Field, error) {
	var (
		f      customfields.Field
		config string
	)
	if err := scan(&f.ID, &f.ListID, &f.Name, &f.Type, &config, &f.CreatedAt); err != nil {
		return customfields.Field{}, err
	}
	if err := json.Unmarshal([]byte(config), &f.Config); err != nil {
		return customfields.Field{}, fmt.Errorf("custom field %s config: %w", f.ID, err)
	}
	return f, nil
}

// CreateCustomField validates and inserts a field definition.
func (s *Store) CreateCustomField(ctx context.Context, f customfields.Field) (customfields.Field, error) {
	if err := customfields.ValidateField(f); err != nil {
		return customfields.Field{}, err
	}
	if _, err := s.GetList(ctx, f.ListID); err != nil {
		return customfields.Field{}, err
	}
	if f.ID == "" {
		f.ID = newID()
	}
	f.CreatedAt = s.now()
	config, err := json.Marshal(f.Config)
	if err != nil {
		return customfields.Field{}, fmt.Errorf("encoding field config: %w", err)
	}
	_, err = s.exec(ctx, s.db.SQL(), s.sb.Insert("custom_fields").
		Columns(fieldColumns...).
		Values(f.ID, f.ListID, f.Name, string(f.Type), string(config), f.CreatedAt))
	if err != nil {
		return customfields.Field{}, constraintError(err, "creating custom field %q", f.Name)
	}
	s.log.Info().Str("field", f.ID).Str("list", f.ListID).Str("type", string(f.Type)).Msg("custom field created")
	return f, nil
}

// GetCustomField loads a field definition.
func (s *Store) GetCustomField(ctx context.Context, id string) (customfields.Field, error) {
	row, err := s.queryRow(ctx, s.db.SQL(), s.sb.Select(fieldColumns...).From("custom_fields").Where("id = ?", id))
	if err != nil {
		return customfields.Field{}, err
	}
	f, err := scanField(row.Scan)
	if err != nil {
		return customfields.Field{}, notFound(err, "custom field", id)
	}
	return f, nil
}

// CustomFields returns the field definitions of a list.
func (s *Store) CustomFields(ctx context.Context, listID string) ([]customfields.Field, error) {
	rows, err := s.query(ctx, s.db.SQL(), s.sb.Select(fieldColumns...).From("custom_fields").
		Where("list_id = ?", listID).OrderBy("name", "id"))
	if err != nil {
		return nil, fmt.Errorf("querying custom fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []customfields.Field
	for rows.Next() {
		f, err := scanField(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

var valueColumns = []string{
	"v.id", "v.task_id", "v.field_id", "f.type", "v.text_value", "v.number_value",
	"v.date_value", "v.created_at", "v.updated_at",
}

func (s *Store) selectValues() sq.SelectBuilder {
	return s.sb.Select(valueColumns...).From("custom_field_values v").
		Join("custom_fields f ON f.id = v.field_id")
}

func scanValue(scan func(dest ...any) error) (customfields.StoredValue, error) {
	var (
		v      customfields.StoredValue
		typ    customfields.FieldType
		text   sql.NullString
		number sql.NullFloat64
		date   sql.NullString
	)
	if err := scan(&v.ID, &v.TaskID, &v.FieldID, &typ, &text, &number, &date, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return customfields.StoredValue{}, err
	}
	value, err := customfields.FromColumns(typ, text, number, date)
	if err != nil {
		return customfields.StoredValue{}, fmt.Errorf("custom field value %s: %w", v.ID, err)
	}
	v.Value = value
	return v, nil
}

// InsertValue stores the first value of a task for a field. A second value
// for the same pair is rejected.
func (s *Store) InsertValue(ctx context.Context, taskID, fieldID string, value customfields.Value) (customfields.StoredValue, error) {
	now := s.now()
	sv := customfields.StoredValue{
		ID:        newID(),
		TaskID:    taskID,
		FieldID:   fieldID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	text, number, date := customfields.Columns(value)

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		dup, err := s.exists(ctx, tx, s.sb.Select("1").From("custom_field_values").
			Where(sq.Eq{"task_id": taskID, "field_id": fieldID}))
		if err != nil {
			return err
		}
		if dup {
			return apperr.ValidationWith(apperr.ErrValueExists, "task %s already has a value for field %s", taskID, fieldID)
		}
		_, err = s.exec(ctx, tx, s.sb.Insert("custom_field_values").
			Columns("id", "task_id", "field_id", "text_value", "number_value", "date_value", "created_at", "updated_at").
			Values(sv.ID, taskID, fieldID, text, number, date, now, now))
		return constraintError(err, "storing value for field %s", fieldID)
	})
	if err != nil {
		return customfields.StoredValue{}, err
	}
	return sv, nil
}

// GetValue loads a stored value by id.
func (s *Store) GetValue(ctx context.Context, id string) (customfields.StoredValue, error) {
	row, err := s.queryRow(ctx, s.db.SQL(), s.selectValues().Where("v.id = ?", id))
	if err != nil {
		return customfields.StoredValue{}, err
	}
	v, err := scanValue(row.Scan)
	if err != nil {
		return customfields.StoredValue{}, notFound(err, "custom field value", id)
	}
	return v, nil
}

// ValuesOf returns every custom field value of a task.
func (s *Store) ValuesOf(ctx context.Context, taskID string) ([]customfields.StoredValue, error) {
	rows, err := s.query(ctx, s.db.SQL(), s.selectValues().Where("v.task_id = ?", taskID).OrderBy("f.name", "v.id"))
	if err != nil {
		return nil, fmt.Errorf("querying values of task %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []customfields.StoredValue
	for rows.Next() {
		v, err := scanValue(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateValue replaces a stored value.
func (s *Store) UpdateValue(ctx context.Context, id string, value customfields.Value) (customfields.StoredValue, error) {
	text, number, date := customfields.Columns(value)
	res, err := s.exec(ctx, s.db.SQL(), s.sb.Update("custom_field_values").
		Set("text_value", text).
		Set("number_value", number).
		Set("date_value", date).
		Set("updated_at", s.now()).
		Where("id = ?", id))
	if err != nil {
		return customfields.StoredValue{}, fmt.Errorf("updating value %s: %w", id, err)
	}
	if err := requireRow(res, "custom field value", id); err != nil {
		return customfields.StoredValue{}, err
	}
	return s.GetValue(ctx, id)
}

// DeleteValue removes a stored value.
func (s *Store) DeleteValue(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db.SQL(), s.sb.Delete("custom_field_values").Where("id = ?", id))
	if err != nil {
		return fmt.Errorf("deleting value %s: %w", id, err)
	}
	return requireRow(res, "custom field value", id)
}
