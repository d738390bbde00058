package customfields

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/marcus/trellis/internal/tasks"
)

// Value is a typed custom field value. The set of implementations is closed.
type Value interface {
	Type() FieldType
	String() string
	// Raw returns the plain Go value (string, float64 or tasks.Date).
	Raw() any
	isValue()
}

// TextValue is the value of a text field.
type TextValue string

// NumberValue is the value of a number field.
type NumberValue float64

// DateValue is the value of a date field.
type DateValue tasks.Date

// DropdownValue is the selected option of a dropdown field.
type DropdownValue string

func (TextValue) Type() FieldType     { return TypeText }
func (NumberValue) Type() FieldType   { return TypeNumber }
func (DateValue) Type() FieldType     { return TypeDate }
func (DropdownValue) Type() FieldType { return TypeDropdown }

func (v TextValue) String() string     { return string(v) }
func (v NumberValue) String() string   { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v DateValue) String() string     { return tasks.Date(v).String() }
func (v DropdownValue) String() string { return string(v) }

func (v TextValue) Raw() any     { return string(v) }
func (v NumberValue) Raw() any   { return float64(v) }
func (v DateValue) Raw() any     { return tasks.Date(v) }
func (v DropdownValue) Raw() any { return string(v) }

func (TextValue) isValue()     {}
func (NumberValue) isValue()   {}
func (DateValue) isValue()     {}
func (DropdownValue) isValue() {}

func (v DateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// Columns splits v into the typed storage columns of custom_field_values.
func Columns(v Value) (text sql.NullString, number sql.NullFloat64, date sql.NullString) {
	switch x := v.(type) {
	case TextValue:
		text = sql.NullString{String: string(x), Valid: true}
	case DropdownValue:
		text = sql.NullString{String: string(x), Valid: true}
	case NumberValue:
		number = sql.NullFloat64{Float64: float64(x), Valid: true}
	case DateValue:
		date = sql.NullString{String: x.String(), Valid: true}
	}
	return text, number, date
}

// FromColumns rebuilds a value of type t from its storage columns.
func FromColumns(t FieldType, text sql.NullString, number sql.NullFloat64, date sql.NullString) (Value, error) {
	switch t {
	case TypeText:
		if text.Valid {
			return TextValue(text.String), nil
		}
	case TypeDropdown:
		if text.Valid {
			return DropdownValue(text.String), nil
		}
	case TypeNumber:
		if number.Valid {
			return NumberValue(number.Float64), nil
		}
	case TypeDate:
		if date.Valid {
			d, err := tasks.ParseDate(date.String)
			if err != nil {
				return nil, err
			}
			return DateValue(d), nil
		}
	}
	return nil, fmt.Errorf("no stored %s value", t)
}
