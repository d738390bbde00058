package filter

import (
	"context"
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/customfields"
	"github.com/marcus/trellis/internal/logging"
)

// Alias is the table alias the compiled predicates use for the tasks table.
// Queries executing a predicate must select FROM tasks AS t.
const Alias = "t"

// DefaultMaxDepth bounds group nesting when no limit is configured.
const DefaultMaxDepth = 32

var (
	matchAll  = sq.Expr("1=1")
	matchNone = sq.Expr("1=0")
)

// FieldResolver resolves a custom field reference within a list scope.
type FieldResolver interface {
	Resolve(ctx context.Context, fieldID, listID string) (customfields.Field, error)
}

// Scope is the base restriction applied to every compiled filter.
type Scope struct {
	ListID          string
	IncludeArchived bool
}

// Compiler turns filter trees into SQL predicates.
type Compiler struct {
	fields   FieldResolver
	maxDepth int
	log      *logging.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMaxDepth limits group nesting depth. Values below 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithLogger sets the logger used for compiled-query debug output.
func WithLogger(l *logging.Logger) Option {
	return func(c *Compiler) { c.log = l }
}

// NewCompiler creates a compiler that resolves custom fields through fields.
func NewCompiler(fields FieldResolver, opts ...Option) *Compiler {
	c := &Compiler{
		fields:   fields,
		maxDepth: DefaultMaxDepth,
		log:      logging.Component("filter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile validates g and returns the predicate selecting matching tasks
// within scope. A nil group matches every task in scope.
func (c *Compiler) Compile(ctx context.Context, g *Group, scope Scope) (sq.Sqlizer, error) {
	where := sq.And{}
	if scope.ListID != "" {
		where = append(where, sq.Eq{col("list_id"): scope.ListID})
	}
	if !scope.IncludeArchived {
		where = append(where, sq.Eq{col("archived"): 0})
	}

	if g != nil {
		if d := g.Depth(); d > c.maxDepth {
			return nil, apperr.Validation("filter nesting depth %d exceeds limit %d", d, c.maxDepth)
		}
		pred, err := c.compileNode(ctx, *g, scope)
		if err != nil {
			return nil, err
		}
		where = append(where, pred)
	}
	if len(where) == 0 {
		return matchAll, nil
	}

	if e := c.log.Debug(); e.Enabled() {
		if sqlStr, args, err := where.ToSql(); err == nil {
			e.Str("where", sqlStr).Interface("args", args).Msg("compiled filter")
		}
	}
	return where, nil
}

func (c *Compiler) compileNode(ctx context.Context, n Node, scope Scope) (sq.Sqlizer, error) {
	switch v := n.(type) {
	case Condition:
		return c.compileCondition(ctx, v, scope)
	case Group:
		return c.compileGroup(ctx, v, scope)
	default:
		return nil, apperr.Validation("unsupported filter node %T", n)
	}
}

func (c *Compiler) compileGroup(ctx context.Context, g Group, scope Scope) (sq.Sqlizer, error) {
	logic, err := ParseLogic(string(g.Logic))
	if err != nil {
		return nil, err
	}
	children := g.Children()
	if len(children) == 0 {
		if logic == Or {
			return matchNone, nil
		}
		return matchAll, nil
	}

	parts := make([]sq.Sqlizer, 0, len(children))
	for _, child := range children {
		p, err := c.compileNode(ctx, child, scope)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if logic == Or {
		return sq.Or(parts), nil
	}
	return sq.And(parts), nil
}

func (c *Compiler) compileCondition(ctx context.Context, cond Condition, scope Scope) (sq.Sqlizer, error) {
	field, err := ParseField(string(cond.Field))
	if err != nil {
		return nil, err
	}
	op, err := ParseOperator(string(cond.Operator))
	if err != nil {
		return nil, err
	}
	cond.Field, cond.Operator = field, op

	switch field {
	case FieldAssignee:
		return compileAssignee(cond)
	case FieldTag:
		return compileTag(cond)
	case FieldStatus:
		return compileReference(cond, col("status_id"), true)
	case FieldPriority:
		return compileReference(cond, col("priority_id"), true)
	case FieldList:
		return compileReference(cond, col("list_id"), false)
	case FieldDueDate:
		return compileDueDate(cond)
	case FieldIsArchived:
		return compileArchived(cond)
	case FieldCustomField:
		return c.compileCustomField(ctx, cond, scope)
	}
	return nil, apperr.Validation("unknown filter field %q", cond.Field)
}

func col(name string) string {
	return Alias + "." + name
}

func unsupported(cond Condition, what string) error {
	return apperr.Validation("operator %s is not supported for %s", cond.Operator, what)
}

// exists renders EXISTS (sub) or NOT EXISTS (sub).
type exists struct {
	sub    sq.SelectBuilder
	negate bool
}

func (e exists) ToSql() (string, []any, error) {
	sub, args, err := e.sub.ToSql()
	if err != nil {
		return "", nil, err
	}
	op := "EXISTS"
	if e.negate {
		op = "NOT EXISTS"
	}
	return fmt.Sprintf("%s (%s)", op, sub), args, nil
}

func assigneeRows() sq.SelectBuilder {
	return sq.Select("1").From("task_assignees ta").Where("ta.task_id = " + col("id"))
}

func tagRows() sq.SelectBuilder {
	return sq.Select("1").From("task_tags tt").Where("tt.task_id = " + col("id"))
}

func compileAssignee(cond Condition) (sq.Sqlizer, error) {
	switch cond.Operator {
	case OpEquals, OpNotEquals:
		id, err := idValue(cond)
		if err != nil {
			return nil, err
		}
		return exists{assigneeRows().Where(sq.Eq{"ta.user_id": id}), cond.Operator == OpNotEquals}, nil
	case OpIn, OpNotIn:
		ids, err := idValues(cond)
		if err != nil {
			return nil, err
		}
		return exists{assigneeRows().Where(sq.Eq{"ta.user_id": ids}), cond.Operator == OpNotIn}, nil
	case OpIsNull:
		return exists{assigneeRows(), true}, nil
	case OpIsNotNull:
		return exists{assigneeRows(), false}, nil
	}
	return nil, unsupported(cond, "assignee")
}

func compileTag(cond Condition) (sq.Sqlizer, error) {
	hasTag := func(id string, negate bool) sq.Sqlizer {
		return exists{tagRows().Where(sq.Eq{"tt.tag_id": id}), negate}
	}
	switch cond.Operator {
	case OpEquals, OpNotEquals:
		id, err := idValue(cond)
		if err != nil {
			return nil, err
		}
		return hasTag(id, cond.Operator == OpNotEquals), nil
	case OpIn:
		ids, err := idValues(cond)
		if err != nil {
			return nil, err
		}
		anyTag := make(sq.Or, 0, len(ids))
		for _, id := range ids {
			anyTag = append(anyTag, hasTag(id, false))
		}
		return anyTag, nil
	case OpNotIn:
		ids, err := idValues(cond)
		if err != nil {
			return nil, err
		}
		none := make(sq.And, 0, len(ids))
		for _, id := range ids {
			none = append(none, hasTag(id, true))
		}
		return none, nil
	case OpIsNull:
		return exists{tagRows(), true}, nil
	case OpIsNotNull:
		return exists{tagRows(), false}, nil
	}
	return nil, unsupported(cond, "tag")
}

// compileReference handles status, priority and list. Negations on a
// nullable column also match tasks without a reference.
func compileReference(cond Condition, column string, nullable bool) (sq.Sqlizer, error) {
	orNull := func(p sq.Sqlizer) sq.Sqlizer {
		if !nullable {
			return p
		}
		return sq.Or{sq.Eq{column: nil}, p}
	}
	switch cond.Operator {
	case OpEquals:
		id, err := idValue(cond)
		if err != nil {
			return nil, err
		}
		return sq.Eq{column: id}, nil
	case OpNotEquals:
		id, err := idValue(cond)
		if err != nil {
			return nil, err
		}
		return orNull(sq.NotEq{column: id}), nil
	case OpIn:
		ids, err := idValues(cond)
		if err != nil {
			return nil, err
		}
		return sq.Eq{column: ids}, nil
	case OpNotIn:
		ids, err := idValues(cond)
		if err != nil {
			return nil, err
		}
		return orNull(sq.NotEq{column: ids}), nil
	case OpIsNull:
		return sq.Eq{column: nil}, nil
	case OpIsNotNull:
		return sq.NotEq{column: nil}, nil
	}
	return nil, unsupported(cond, string(cond.Field))
}

// comparison maps ordering operators onto squirrel predicates.
func comparison(op Operator, column string, v any) (sq.Sqlizer, bool) {
	switch op {
	case OpEquals:
		return sq.Eq{column: v}, true
	case OpGt:
		return sq.Gt{column: v}, true
	case OpLt:
		return sq.Lt{column: v}, true
	case OpGte:
		return sq.GtOrEq{column: v}, true
	case OpLte:
		return sq.LtOrEq{column: v}, true
	}
	return nil, false
}

func compileDueDate(cond Condition) (sq.Sqlizer, error) {
	column := col("due_date")
	switch cond.Operator {
	case OpIsNull:
		return sq.Eq{column: nil}, nil
	case OpIsNotNull:
		return sq.NotEq{column: nil}, nil
	case OpEquals, OpGt, OpLt, OpGte, OpLte:
		day, err := dateValue(cond)
		if err != nil {
			return nil, err
		}
		pred, _ := comparison(cond.Operator, column, day)
		return pred, nil
	}
	return nil, unsupported(cond, "dueDate")
}

func compileArchived(cond Condition) (sq.Sqlizer, error) {
	b, err := boolValue(cond)
	if err != nil {
		return nil, err
	}
	flag := 0
	if b {
		flag = 1
	}
	switch cond.Operator {
	case OpEquals:
		return sq.Eq{col("archived"): flag}, nil
	case OpNotEquals:
		return sq.NotEq{col("archived"): flag}, nil
	}
	return nil, unsupported(cond, "isArchived")
}

var customFieldOperators = map[customfields.FieldType][]Operator{
	customfields.TypeText:     {OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpIsNull, OpIsNotNull},
	customfields.TypeDropdown: {OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpIsNull, OpIsNotNull},
	customfields.TypeNumber:   {OpEquals, OpNotEquals, OpIn, OpNotIn, OpGt, OpLt, OpGte, OpLte, OpIsNull, OpIsNotNull},
	customfields.TypeDate:     {OpEquals, OpNotEquals, OpGt, OpLt, OpGte, OpLte, OpIsNull, OpIsNotNull},
}

// SupportsOperator reports whether op is valid for custom fields of type t.
func SupportsOperator(t customfields.FieldType, op Operator) bool {
	return slices.Contains(customFieldOperators[t], op)
}

func (c *Compiler) compileCustomField(ctx context.Context, cond Condition, scope Scope) (sq.Sqlizer, error) {
	if cond.CustomFieldID == "" {
		return nil, apperr.Validation("customField condition requires customFieldId")
	}
	if c.fields == nil {
		return nil, apperr.Validation("custom field %s cannot be resolved", cond.CustomFieldID)
	}
	f, err := c.fields.Resolve(ctx, cond.CustomFieldID, scope.ListID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Validation("filter references unknown custom field %s", cond.CustomFieldID)
		}
		return nil, err
	}
	if !SupportsOperator(f.Type, cond.Operator) {
		return nil, apperr.Validation("operator %s is not supported for %s field %q", cond.Operator, f.Type, f.Name)
	}

	column := "v." + f.Type.Column()
	rows := sq.Select("1").From("custom_field_values v").
		Where("v.task_id = " + col("id")).
		Where(sq.Eq{"v.field_id": f.ID})

	switch cond.Operator {
	case OpIsNull:
		return exists{rows, true}, nil
	case OpIsNotNull:
		return exists{rows, false}, nil
	case OpContains:
		s, err := scalar(cond, textOf)
		if err != nil {
			return nil, err
		}
		like := sq.Expr(column+` LIKE ? ESCAPE '\'`, "%"+escapeLike(s)+"%")
		return exists{rows.Where(like), false}, nil
	case OpIn, OpNotIn:
		vals, err := customValues(cond, f.Type)
		if err != nil {
			return nil, err
		}
		return exists{rows.Where(sq.Eq{column: vals}), cond.Operator == OpNotIn}, nil
	case OpNotEquals:
		v, err := customValue(cond, f.Type)
		if err != nil {
			return nil, err
		}
		return exists{rows.Where(sq.Eq{column: v}), true}, nil
	default:
		v, err := customValue(cond, f.Type)
		if err != nil {
			return nil, err
		}
		pred, ok := comparison(cond.Operator, column, v)
		if !ok {
			return nil, unsupported(cond, string(f.Type))
		}
		return exists{rows.Where(pred), false}, nil
	}
}

func customValue(cond Condition, t customfields.FieldType) (any, error) {
	switch t {
	case customfields.TypeNumber:
		return scalar(cond, numberOf)
	case customfields.TypeDate:
		return scalar(cond, dateOf)
	default:
		return scalar(cond, textOf)
	}
}

func customValues(cond Condition, t customfields.FieldType) (any, error) {
	switch t {
	case customfields.TypeNumber:
		return listOf(cond, numberOf)
	case customfields.TypeDate:
		return listOf(cond, dateOf)
	default:
		return listOf(cond, textOf)
	}
}
