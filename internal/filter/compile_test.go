package filter

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/customfields"
	"github.com/marcus/trellis/internal/logging"
)

type fakeFields map[string]customfields.Field

func (f fakeFields) Resolve(_ context.Context, id, listID string) (customfields.Field, error) {
	field, ok := f[id]
	if !ok {
		return customfields.Field{}, apperr.NotFound("custom field", id)
	}
	if listID != "" && field.ListID != listID {
		return customfields.Field{}, apperr.Validation("custom field %s belongs to another list", id)
	}
	return field, nil
}

var testFields = fakeFields{
	"points": {ID: "points", ListID: "l1", Name: "Points", Type: customfields.TypeNumber},
	"notes":  {ID: "notes", ListID: "l1", Name: "Notes", Type: customfields.TypeText},
	"start":  {ID: "start", ListID: "l1", Name: "Start", Type: customfields.TypeDate},
	"stage":  {ID: "stage", ListID: "l1", Name: "Stage", Type: customfields.TypeDropdown, Config: customfields.Config{Options: []string{"a", "b"}}},
	"other":  {ID: "other", ListID: "l2", Name: "Other", Type: customfields.TypeText},
}

func newTestCompiler(opts ...Option) *Compiler {
	return NewCompiler(testFields, append([]Option{WithLogger(logging.Nop())}, opts...)...)
}

func compileSQL(t *testing.T, g *Group, scope Scope) (string, []any) {
	t.Helper()
	pred, err := newTestCompiler().Compile(context.Background(), g, scope)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sql, args, err := pred.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	return sql, args
}

func TestCompileScope(t *testing.T) {
	sql, args := compileSQL(t, nil, Scope{ListID: "l1"})
	if sql != "(t.list_id = ? AND t.archived = ?)" {
		t.Errorf("sql = %q", sql)
	}
	if diff := cmp.Diff([]any{"l1", 0}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	sql, args = compileSQL(t, nil, Scope{IncludeArchived: true})
	if sql != "1=1" || len(args) != 0 {
		t.Errorf("unscoped = %q %v, want 1=1", sql, args)
	}
}

func TestCompileEmptyGroups(t *testing.T) {
	sql, _ := compileSQL(t, &Group{Logic: And}, Scope{IncludeArchived: true})
	if !strings.Contains(sql, "1=1") {
		t.Errorf("empty AND = %q, want identity true", sql)
	}
	sql, _ = compileSQL(t, &Group{Logic: Or}, Scope{IncludeArchived: true})
	if !strings.Contains(sql, "1=0") {
		t.Errorf("empty OR = %q, want identity false", sql)
	}
}

func TestCompileConditions(t *testing.T) {
	tests := []struct {
		name     string
		cond     Condition
		contains []string
		args     []any
	}{
		{
			name:     "assignee equals",
			cond:     Condition{Field: FieldAssignee, Operator: OpEquals, Value: "u1"},
			contains: []string{"EXISTS (SELECT 1 FROM task_assignees ta", "ta.user_id = ?"},
			args:     []any{"u1"},
		},
		{
			name:     "assignee not in",
			cond:     Condition{Field: FieldAssignee, Operator: OpNotIn, Value: []any{"u1", "u2"}},
			contains: []string{"NOT EXISTS (SELECT 1 FROM task_assignees ta", "ta.user_id IN (?,?)"},
			args:     []any{"u1", "u2"},
		},
		{
			name:     "assignee is null",
			cond:     Condition{Field: FieldAssignee, Operator: OpIsNull},
			contains: []string{"NOT EXISTS (SELECT 1 FROM task_assignees ta"},
		},
		{
			name:     "tag in is or of exists",
			cond:     Condition{Field: FieldTag, Operator: OpIn, Value: []string{"x", "y"}},
			contains: []string{"EXISTS (SELECT 1 FROM task_tags tt", " OR ", "tt.tag_id = ?"},
			args:     []any{"x", "y"},
		},
		{
			name:     "status not equals includes null",
			cond:     Condition{Field: FieldStatus, Operator: "!=", Value: "s1"},
			contains: []string{"t.status_id IS NULL", "t.status_id <> ?"},
			args:     []any{"s1"},
		},
		{
			name:     "priority in",
			cond:     Condition{Field: FieldPriority, Operator: OpIn, Value: []any{"p1", "p2"}},
			contains: []string{"t.priority_id IN (?,?)"},
			args:     []any{"p1", "p2"},
		},
		{
			name:     "due date gt truncates",
			cond:     Condition{Field: FieldDueDate, Operator: ">", Value: "2024-01-15T18:30:00Z"},
			contains: []string{"t.due_date > ?"},
			args:     []any{"2024-01-15"},
		},
		{
			name:     "archived equals",
			cond:     Condition{Field: FieldIsArchived, Operator: OpEquals, Value: true},
			contains: []string{"t.archived = ?"},
			args:     []any{1},
		},
		{
			name:     "custom number gte",
			cond:     Condition{Field: FieldCustomField, CustomFieldID: "points", Operator: ">=", Value: 3},
			contains: []string{"EXISTS (SELECT 1 FROM custom_field_values v", "v.field_id = ?", "v.number_value >= ?"},
			args:     []any{"points", float64(3)},
		},
		{
			name:     "custom text contains escapes wildcards",
			cond:     Condition{Field: FieldCustomField, CustomFieldID: "notes", Operator: OpContains, Value: "50%"},
			contains: []string{"v.text_value LIKE ?"},
			args:     []any{"notes", `%50\%%`},
		},
		{
			name:     "custom date not equals",
			cond:     Condition{Field: FieldCustomField, CustomFieldID: "start", Operator: OpNotEquals, Value: "2024-03-01"},
			contains: []string{"NOT EXISTS (SELECT 1 FROM custom_field_values v", "v.date_value = ?"},
			args:     []any{"start", "2024-03-01"},
		},
		{
			name:     "custom dropdown is not null",
			cond:     Condition{Field: FieldCustomField, CustomFieldID: "stage", Operator: OpIsNotNull},
			contains: []string{"EXISTS (SELECT 1 FROM custom_field_values v"},
			args:     []any{"stage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := AllOf(tt.cond)
			sql, args := compileSQL(t, &g, Scope{IncludeArchived: true})
			for _, frag := range tt.contains {
				if !strings.Contains(sql, frag) {
					t.Errorf("sql %q missing %q", sql, frag)
				}
			}
			if diff := cmp.Diff(tt.args, args); tt.args != nil && diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileNestedGroups(t *testing.T) {
	g := AnyOf(
		Condition{Field: FieldStatus, Operator: OpEquals, Value: "s1"},
		AllOf(
			Condition{Field: FieldPriority, Operator: OpEquals, Value: "p1"},
			Condition{Field: FieldDueDate, Operator: OpIsNotNull},
		),
	)
	sql, args := compileSQL(t, &g, Scope{ListID: "l1"})
	want := "(t.list_id = ? AND t.archived = ? AND (t.status_id = ? OR (t.priority_id = ? AND t.due_date IS NOT NULL)))"
	if sql != want {
		t.Errorf("sql = %q\nwant  %q", sql, want)
	}
	if diff := cmp.Diff([]any{"l1", 0, "s1", "p1"}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
	}{
		{"unknown field", Condition{Field: "color", Operator: OpEquals, Value: "red"}},
		{"unknown operator", Condition{Field: FieldStatus, Operator: "like", Value: "x"}},
		{"operator invalid for field", Condition{Field: FieldStatus, Operator: OpGt, Value: "x"}},
		{"missing value", Condition{Field: FieldStatus, Operator: OpEquals}},
		{"empty in list", Condition{Field: FieldStatus, Operator: OpIn, Value: []any{}}},
		{"bad due date", Condition{Field: FieldDueDate, Operator: OpGt, Value: "soon"}},
		{"due date contains", Condition{Field: FieldDueDate, Operator: OpContains, Value: "2024"}},
		{"archived bad bool", Condition{Field: FieldIsArchived, Operator: OpEquals, Value: "maybe"}},
		{"archived gt", Condition{Field: FieldIsArchived, Operator: OpGt, Value: true}},
		{"missing custom field id", Condition{Field: FieldCustomField, Operator: OpEquals, Value: 1}},
		{"unknown custom field", Condition{Field: FieldCustomField, CustomFieldID: "nope", Operator: OpEquals, Value: 1}},
		{"custom field of other list", Condition{Field: FieldCustomField, CustomFieldID: "other", Operator: OpEquals, Value: "x"}},
		{"contains on number", Condition{Field: FieldCustomField, CustomFieldID: "points", Operator: OpContains, Value: "1"}},
		{"gt on text", Condition{Field: FieldCustomField, CustomFieldID: "notes", Operator: OpGt, Value: "a"}},
		{"in on date", Condition{Field: FieldCustomField, CustomFieldID: "start", Operator: OpIn, Value: []any{"2024-01-01"}}},
		{"number with text value", Condition{Field: FieldCustomField, CustomFieldID: "points", Operator: OpEquals, Value: "abc"}},
	}
	c := newTestCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := AllOf(tt.cond)
			_, err := c.Compile(context.Background(), &g, Scope{ListID: "l1"})
			if !apperr.IsValidation(err) {
				t.Errorf("Compile() error = %v, want validation error", err)
			}
		})
	}
}

func TestCompileBadLogic(t *testing.T) {
	g := &Group{Logic: "XOR"}
	if _, err := newTestCompiler().Compile(context.Background(), g, Scope{}); !apperr.IsValidation(err) {
		t.Errorf("Compile(XOR) error = %v, want validation", err)
	}
}

func TestCompileDepthGuard(t *testing.T) {
	g := Group{}
	for i := 0; i < 5; i++ {
		g = Group{Logic: And, Groups: []Group{g}}
	}
	if g.Depth() != 6 {
		t.Fatalf("Depth() = %d, want 6", g.Depth())
	}

	if _, err := newTestCompiler(WithMaxDepth(6)).Compile(context.Background(), &g, Scope{}); err != nil {
		t.Errorf("depth 6 with limit 6: %v", err)
	}
	if _, err := newTestCompiler(WithMaxDepth(5)).Compile(context.Background(), &g, Scope{}); !apperr.IsValidation(err) {
		t.Errorf("depth 6 with limit 5 error = %v, want validation", err)
	}
}

func TestParse(t *testing.T) {
	yamlDoc := `
logic: OR
conditions:
  - field: status
    operator: "="
    value: s1
groups:
  - logic: AND
    conditions:
      - field: customField
        customFieldId: points
        operator: gt
        value: 3
`
	g, err := Parse([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("Parse(yaml): %v", err)
	}
	if g.Logic != Or || len(g.Conditions) != 1 || len(g.Groups) != 1 {
		t.Fatalf("Parse(yaml) = %+v", g)
	}
	if g.Groups[0].Conditions[0].CustomFieldID != "points" {
		t.Errorf("custom field id = %q", g.Groups[0].Conditions[0].CustomFieldID)
	}

	jsonDoc := `{"logic":"AND","conditions":[{"field":"dueDate","operator":">","value":"2024-01-15"}]}`
	g, err = Parse([]byte(jsonDoc))
	if err != nil {
		t.Fatalf("Parse(json): %v", err)
	}
	if g.Conditions[0].Value != "2024-01-15" {
		t.Errorf("date value = %#v, want string", g.Conditions[0].Value)
	}
	if _, err := newTestCompiler().Compile(context.Background(), g, Scope{}); err != nil {
		t.Errorf("Compile(parsed json): %v", err)
	}

	if _, err := Parse([]byte("logic: [")); !apperr.IsValidation(err) {
		t.Errorf("Parse(malformed) error = %v, want validation", err)
	}
}

func TestParseOperatorAliases(t *testing.T) {
	tests := map[string]Operator{
		"=":           OpEquals,
		"!=":          OpNotEquals,
		">":           OpGt,
		"<":           OpLt,
		">=":          OpGte,
		"<=":          OpLte,
		"IS_NULL":     OpIsNull,
		"not_in":      OpNotIn,
		" contains ":  OpContains,
		"is_not_null": OpIsNotNull,
	}
	for in, want := range tests {
		got, err := ParseOperator(in)
		if err != nil || got != want {
			t.Errorf("ParseOperator(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseOperator("~="); err == nil {
		t.Error("ParseOperator(~=): want error")
	}
}
