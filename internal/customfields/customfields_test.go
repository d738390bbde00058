package customfields

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/tasks"
)

func TestValidate(t *testing.T) {
	text := Field{Name: "Notes", Type: TypeText}
	number := Field{Name: "Points", Type: TypeNumber}
	date := Field{Name: "Start", Type: TypeDate}
	dropdown := Field{Name: "Stage", Type: TypeDropdown, Config: Config{Options: []string{"todo", "doing", "done"}}}

	tests := []struct {
		name    string
		field   Field
		raw     any
		want    Value
		wantErr bool
	}{
		{"text string", text, "hello", TextValue("hello"), false},
		{"text number", text, 5, nil, true},
		{"text nil", text, nil, nil, true},
		{"number int", number, 5, NumberValue(5), false},
		{"number float", number, 2.5, NumberValue(2.5), false},
		{"number json", number, json.Number("8"), NumberValue(8), false},
		{"number string", number, "abc", nil, true},
		{"number numeric string", number, "5", nil, true},
		{"number bool", number, true, nil, true},
		{"date iso", date, "2024-01-15", DateValue(tasks.MustParseDate("2024-01-15")), false},
		{"date rfc3339", date, "2024-01-15T10:00:00Z", DateValue(tasks.MustParseDate("2024-01-15")), false},
		{"date time", date, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), DateValue(tasks.MustParseDate("2024-03-01")), false},
		{"date garbage", date, "next tuesday", nil, true},
		{"date number", date, 20240115, nil, true},
		{"dropdown member", dropdown, "doing", DropdownValue("doing"), false},
		{"dropdown non member", dropdown, "blocked", nil, true},
		{"dropdown non string", dropdown, 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.raw, tt.field)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate(%v) = %v, want error", tt.raw, got)
				}
				if !apperr.IsValidation(err) {
					t.Errorf("Validate(%v) error %v is not a validation error", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%v): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Validate(%v) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateDropdownEnumeratesOptions(t *testing.T) {
	f := Field{Name: "Stage", Type: TypeDropdown, Config: Config{Options: []string{"todo", "done"}}}
	_, err := Validate("later", f)
	if err == nil {
		t.Fatal("expected error for non-member option")
	}
	if !errors.Is(err, apperr.ErrTypeMismatch) {
		t.Errorf("error %v should wrap ErrTypeMismatch", err)
	}
	if !strings.Contains(err.Error(), "todo, done") {
		t.Errorf("error %q should enumerate allowed options", err)
	}
}

func TestValidateDropdownWithoutOptions(t *testing.T) {
	f := Field{Name: "Stage", Type: TypeDropdown}
	if _, err := Validate("todo", f); err == nil {
		t.Fatal("expected error for dropdown without options")
	}
}

func TestValidateField(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantErr bool
	}{
		{"text", Field{Name: "Notes", ListID: "l1", Type: TypeText}, false},
		{"dropdown", Field{Name: "Stage", ListID: "l1", Type: TypeDropdown, Config: Config{Options: []string{"a", "b"}}}, false},
		{"missing name", Field{ListID: "l1", Type: TypeText}, true},
		{"missing list", Field{Name: "Notes", Type: TypeText}, true},
		{"unknown type", Field{Name: "X", ListID: "l1", Type: "color"}, true},
		{"dropdown empty options", Field{Name: "Stage", ListID: "l1", Type: TypeDropdown}, true},
		{"dropdown duplicate option", Field{Name: "Stage", ListID: "l1", Type: TypeDropdown, Config: Config{Options: []string{"a", "a"}}}, true},
		{"dropdown blank option", Field{Name: "Stage", ListID: "l1", Type: TypeDropdown, Config: Config{Options: []string{" "}}}, true},
		{"options on number", Field{Name: "Points", ListID: "l1", Type: TypeNumber, Config: Config{Options: []string{"1"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateField(tt.field)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateField() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestColumnsRoundTrip(t *testing.T) {
	values := []Value{
		TextValue("x"),
		NumberValue(3.25),
		DateValue(tasks.MustParseDate("2024-05-06")),
		DropdownValue("done"),
	}
	for _, v := range values {
		text, number, date := Columns(v)
		got, err := FromColumns(v.Type(), text, number, date)
		if err != nil {
			t.Fatalf("FromColumns(%s): %v", v.Type(), err)
		}
		if got != v {
			t.Errorf("FromColumns(%s) = %#v, want %#v", v.Type(), got, v)
		}
	}
}

type fakeSource map[string]Field

func (f fakeSource) GetCustomField(_ context.Context, id string) (Field, error) {
	field, ok := f[id]
	if !ok {
		return Field{}, apperr.NotFound("custom field", id)
	}
	return field, nil
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(fakeSource{
		"points": {ID: "points", ListID: "l1", Name: "Points", Type: TypeNumber},
	})
	ctx := context.Background()

	if _, err := reg.Resolve(ctx, "points", "l1"); err != nil {
		t.Errorf("Resolve(points, l1): %v", err)
	}
	if _, err := reg.Resolve(ctx, "points", ""); err != nil {
		t.Errorf("Resolve(points, unscoped): %v", err)
	}
	if _, err := reg.Resolve(ctx, "points", "l2"); !apperr.IsValidation(err) {
		t.Errorf("Resolve(points, l2) error = %v, want validation", err)
	}
	if _, err := reg.Resolve(ctx, "missing", "l1"); !apperr.IsNotFound(err) {
		t.Errorf("Resolve(missing) error = %v, want not found", err)
	}
	if _, err := reg.Resolve(ctx, "", "l1"); !apperr.IsValidation(err) {
		t.Errorf("Resolve(empty) error = %v, want validation", err)
	}

	_, v, err := reg.Validate(ctx, "points", 5)
	if err != nil || v != NumberValue(5) {
		t.Errorf("Validate(points, 5) = %v, %v", v, err)
	}
	if _, _, err := reg.Validate(ctx, "points", "abc"); !errors.Is(err, apperr.ErrTypeMismatch) {
		t.Errorf("Validate(points, abc) error = %v, want type mismatch", err)
	}
}

func TestParseType(t *testing.T) {
	for _, in := range []string{"text", "NUMBER", " date ", "dropdown"} {
		if _, err := ParseType(in); err != nil {
			t.Errorf("ParseType(%q): %v", in, err)
		}
	}
	if _, err := ParseType("checkbox"); err == nil {
		t.Error("ParseType(checkbox): want error")
	}
}
