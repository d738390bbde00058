// Package customfields is the custom field type registry. It owns the set of
// field types, the closed variant of values each type admits, and the
// validation that turns untyped caller input into one of those values.
package customfields

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/tasks"
)

// FieldType is the declared type of a custom field.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeDropdown FieldType = "dropdown"
)

// AllTypes lists every supported field type.
var AllTypes = []FieldType{TypeText, TypeNumber, TypeDate, TypeDropdown}

// ParseType validates a field type name.
func ParseType(s string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(AllTypes, t) {
		return t, nil
	}
	return "", apperr.Validation("unknown custom field type %q (supported: text, number, date, dropdown)", s)
}

// Column is the custom_field_values column holding values of type t.
func (t FieldType) Column() string {
	switch t {
	case TypeNumber:
		return "number_value"
	case TypeDate:
		return "date_value"
	default:
		return "text_value"
	}
}

// Config is the type-specific configuration of a field.
type Config struct {
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Field is a user-defined typed attribute owned by a list.
type Field struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredValue is the single value a task holds for a field.
type StoredValue struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	FieldID   string    `json:"field_id"`
	Value     Value     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateField checks a field definition before it is created.
func ValidateField(f Field) error {
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Validation("custom field name is required")
	}
	if f.ListID == "" {
		return apperr.Validation("custom field %q must belong to a list", f.Name)
	}
	if _, err := ParseType(string(f.Type)); err != nil {
		return err
	}
	if f.Type != TypeDropdown {
		if len(f.Config.Options) > 0 {
			return apperr.Validation("custom field %q: options are only valid for dropdown fields", f.Name)
		}
		return nil
	}
	if len(f.Config.Options) == 0 {
		return apperr.Validation("dropdown field %q requires a non-empty options list", f.Name)
	}
	seen := make(map[string]bool, len(f.Config.Options))
	for _, opt := range f.Config.Options {
		if strings.TrimSpace(opt) == "" {
			return apperr.Validation("dropdown field %q has an empty option", f.Name)
		}
		if seen[opt] {
			return apperr.Validation("dropdown field %q repeats option %q", f.Name, opt)
		}
		seen[opt] = true
	}
	return nil
}

// Validate checks raw against the declared type of f and returns the typed value.
func Validate(raw any, f Field) (Value, error) {
	if raw == nil {
		return nil, mismatch(f, "a value", raw)
	}
	switch f.Type {
	case TypeText:
		s, ok := asString(raw)
		if !ok {
			return nil, mismatch(f, "a string", raw)
		}
		return TextValue(s), nil

	case TypeNumber:
		n, ok := asNumber(raw)
		if !ok {
			return nil, mismatch(f, "a number", raw)
		}
		return NumberValue(n), nil

	case TypeDate:
		d, ok := asDate(raw)
		if !ok {
			return nil, mismatch(f, "an ISO-8601 date", raw)
		}
		return DateValue(d), nil

	case TypeDropdown:
		if len(f.Config.Options) == 0 {
			return nil, apperr.Validation("dropdown field %q has no options configured", f.Name)
		}
		s, ok := asString(raw)
		if !ok {
			return nil, mismatch(f, "one of ["+strings.Join(f.Config.Options, ", ")+"]", raw)
		}
		if !slices.Contains(f.Config.Options, s) {
			return nil, apperr.ValidationWith(apperr.ErrTypeMismatch,
				"value %q is not an option of field %q (allowed: %s)", s, f.Name, strings.Join(f.Config.Options, ", "))
		}
		return DropdownValue(s), nil

	default:
		return nil, apperr.Validation("custom field %q has unknown type %q", f.Name, f.Type)
	}
}

func mismatch(f Field, want string, got any) error {
	return apperr.ValidationWith(apperr.ErrTypeMismatch,
		"field %q (%s) expects %s, got %s", f.Name, f.Type, want, describe(got))
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", x)
	default:
		return fmt.Sprintf("%T", v)
	}
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case TextValue:
		return string(v), true
	case DropdownValue:
		return string(v), true
	}
	return "", false
}

func asNumber(raw any) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case int:
		n = float64(v)
	case int8:
		n = float64(v)
	case int16:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint8:
		n = float64(v)
	case uint16:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	case float32:
		n = float64(v)
	case float64:
		n = v
	case NumberValue:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func asDate(raw any) (tasks.Date, bool) {
	switch v := raw.(type) {
	case string:
		d, err := tasks.ParseDate(v)
		return d, err == nil
	case time.Time:
		return tasks.DateOf(v), !v.IsZero()
	case tasks.Date:
		return v, !v.IsZero()
	case DateValue:
		return tasks.Date(v), true
	}
	return tasks.Date{}, false
}

// FieldSource loads field definitions. Missing fields yield an apperr not-found error.
type FieldSource interface {
	GetCustomField(ctx context.Context, id string) (Field, error)
}

// Registry resolves field references and validates values against them.
type Registry struct {
	src FieldSource
}

// NewRegistry creates a registry over src.
func NewRegistry(src FieldSource) *Registry {
	return &Registry{src: src}
}

// Resolve loads fieldID and, when listID is non-empty, checks the field
// belongs to that list.
func (r *Registry) Resolve(ctx context.Context, fieldID, listID string) (Field, error) {
	if fieldID == "" {
		return Field{}, apperr.Validation("custom field id is required")
	}
	f, err := r.src.GetCustomField(ctx, fieldID)
	if err != nil {
		return Field{}, err
	}
	if listID != "" && f.ListID != listID {
		return Field{}, apperr.Validation("custom field %s belongs to list %s, not %s", fieldID, f.ListID, listID)
	}
	return f, nil
}

// Validate resolves fieldID and checks raw against it.
func (r *Registry) Validate(ctx context.Context, fieldID string, raw any) (Field, Value, error) {
	f, err := r.Resolve(ctx, fieldID, "")
	if err != nil {
		return Field{}, nil, err
	}
	v, err := Validate(raw, f)
	if err != nil {
		return Field{}, nil, err
	}
	return f, v, nil
}
