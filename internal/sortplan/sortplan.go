// Package sortplan resolves a task sort specification into ORDER BY keys with
// deterministic tie-breaks.
package sortplan

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/filter"
	"github.com/marcus/trellis/internal/logging"
)

// Field is a sortable task attribute.
type Field string

const (
	FieldOrderPosition Field = "orderPosition"
	FieldTitle         Field = "title"
	FieldDueDate       Field = "dueDate"
	FieldPriority      Field = "priority"
	FieldStatus        Field = "status"
	FieldCreatedAt     Field = "createdAt"
	FieldUpdatedAt     Field = "updatedAt"
	FieldAssignee      Field = "assignee"
	FieldCustomField   Field = "customField"
)

// Fields lists every supported sort field.
var Fields = []Field{
	FieldOrderPosition, FieldTitle, FieldDueDate, FieldPriority, FieldStatus,
	FieldCreatedAt, FieldUpdatedAt, FieldAssignee, FieldCustomField,
}

// Direction is ASC or DESC.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case; empty means ASC.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	}
	return "", apperr.Validation("unknown sort direction %q (want asc or desc)", s)
}

// Spec is a caller's sort request. The zero Spec sorts by order position.
type Spec struct {
	Field         Field     `json:"field,omitempty" yaml:"field,omitempty"`
	Direction     Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	CustomFieldID string    `json:"customFieldId,omitempty" yaml:"customFieldId,omitempty"`
}

// Key is one ORDER BY term. It implements squirrel.Sqlizer.
type Key struct {
	Expr string
	Args []any
	Dir  Direction
}

func (k Key) ToSql() (string, []any, error) {
	return k.Expr + " " + string(k.Dir), k.Args, nil
}

func (k Key) String() string {
	s, _, _ := k.ToSql()
	return s
}

// Plan is an ordered list of sort keys.
type Plan struct {
	Keys []Key
}

// Planner builds sort plans.
type Planner struct {
	fields filter.FieldResolver
	log    *logging.Logger
}

// New creates a planner resolving custom fields through fields.
func New(fields filter.FieldResolver) *Planner {
	return &Planner{fields: fields, log: logging.Component("sortplan")}
}

// Plan resolves spec for tasks in listID. An empty listID accepts custom
// fields from any list.
func (p *Planner) Plan(ctx context.Context, spec Spec, listID string) (Plan, error) {
	dir, err := ParseDirection(string(spec.Direction))
	if err != nil {
		return Plan{}, err
	}
	field := spec.Field
	if field == "" {
		field = FieldOrderPosition
	}

	var keys []Key
	switch field {
	case FieldOrderPosition:
		keys = []Key{{Expr: col("order_position"), Dir: dir}}
	case FieldTitle:
		keys = []Key{{Expr: col("title") + " COLLATE NOCASE", Dir: dir}}
	case FieldCreatedAt:
		keys = []Key{{Expr: col("created_at"), Dir: dir}}
	case FieldUpdatedAt:
		keys = []Key{{Expr: col("updated_at"), Dir: dir}}
	case FieldDueDate:
		keys = nullsLast(col("due_date"), nil, dir)
	case FieldPriority:
		keys = nullsLast("(SELECT p.position FROM priorities p WHERE p.id = "+col("priority_id")+")", nil, dir)
	case FieldStatus:
		keys = nullsLast("(SELECT s.position FROM statuses s WHERE s.id = "+col("status_id")+")", nil, dir)
	case FieldAssignee:
		// ASC sorts by the alphabetically first assignee, DESC by the last.
		agg := "MIN"
		if dir == Desc {
			agg = "MAX"
		}
		expr := fmt.Sprintf("(SELECT %s(u.name COLLATE NOCASE) FROM task_assignees ta JOIN users u ON u.id = ta.user_id WHERE ta.task_id = %s)", agg, col("id"))
		keys = nullsLast(expr, nil, dir)
		keys[1].Expr += " COLLATE NOCASE"
	case FieldCustomField:
		keys, err = p.customFieldKeys(ctx, spec.CustomFieldID, listID, dir)
		if err != nil {
			return Plan{}, err
		}
	default:
		return Plan{}, apperr.Validation("unknown sort field %q", spec.Field)
	}

	if field != FieldOrderPosition {
		keys = append(keys, Key{Expr: col("order_position"), Dir: Asc})
	}
	keys = append(keys, Key{Expr: col("id"), Dir: Asc})

	p.log.Debug().Str("field", string(field)).Str("direction", string(dir)).Int("keys", len(keys)).Msg("planned sort")
	return Plan{Keys: keys}, nil
}

func (p *Planner) customFieldKeys(ctx context.Context, fieldID, listID string, dir Direction) ([]Key, error) {
	if fieldID == "" {
		return nil, apperr.Validation("sorting by customField requires customFieldId")
	}
	if p.fields == nil {
		return nil, apperr.Validation("custom field %s cannot be resolved", fieldID)
	}
	f, err := p.fields.Resolve(ctx, fieldID, listID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Validation("sort references unknown custom field %s", fieldID)
		}
		return nil, err
	}
	expr := fmt.Sprintf("(SELECT v.%s FROM custom_field_values v WHERE v.task_id = %s AND v.field_id = ?)", f.Type.Column(), col("id"))
	return nullsLast(expr, []any{f.ID}, dir), nil
}

// nullsLast orders rows lacking a value after all others regardless of dir.
func nullsLast(expr string, args []any, dir Direction) []Key {
	return []Key{
		{Expr: "CASE WHEN " + expr + " IS NULL THEN 1 ELSE 0 END", Args: args, Dir: Asc},
		{Expr: expr, Args: args, Dir: dir},
	}
}

func col(name string) string {
	return filter.Alias + "." + name
}
