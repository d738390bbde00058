// Package filter compiles recursive AND/OR filter trees over task attributes,
// custom fields included, into SQL predicates for the task store.
package filter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcus/trellis/internal/apperr"
)

// Logic combines the children of a group.
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// Field names the task attribute a condition tests.
type Field string

const (
	FieldAssignee    Field = "assignee"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldTag         Field = "tag"
	FieldDueDate     Field = "dueDate"
	FieldList        Field = "list"
	FieldIsArchived  Field = "isArchived"
	FieldCustomField Field = "customField"
)

// Operator is a comparison applied by a condition.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpContains  Operator = "contains"
	OpGt        Operator = "gt"
	OpLt        Operator = "lt"
	OpGte       Operator = "gte"
	OpLte       Operator = "lte"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
)

var operatorAliases = map[string]Operator{
	"equals":      OpEquals,
	"eq":          OpEquals,
	"=":           OpEquals,
	"not_equals":  OpNotEquals,
	"notequals":   OpNotEquals,
	"ne":          OpNotEquals,
	"!=":          OpNotEquals,
	"in":          OpIn,
	"not_in":      OpNotIn,
	"notin":       OpNotIn,
	"contains":    OpContains,
	"gt":          OpGt,
	">":           OpGt,
	"lt":          OpLt,
	"<":           OpLt,
	"gte":         OpGte,
	">=":          OpGte,
	"lte":         OpLte,
	"<=":          OpLte,
	"is_null":     OpIsNull,
	"isnull":      OpIsNull,
	"is_not_null": OpIsNotNull,
	"isnotnull":   OpIsNotNull,
}

// ParseOperator normalizes an operator name or symbol.
func ParseOperator(s string) (Operator, error) {
	if op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return "", apperr.Validation("unknown operator %q", s)
}

// ParseField validates a field tag.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.TrimSpace(s)); f {
	case FieldAssignee, FieldStatus, FieldPriority, FieldTag, FieldDueDate,
		FieldList, FieldIsArchived, FieldCustomField:
		return f, nil
	}
	return "", apperr.Validation("unknown filter field %q", s)
}

// ParseLogic validates a group logic tag; empty means AND.
func ParseLogic(s string) (Logic, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AND":
		return And, nil
	case "OR":
		return Or, nil
	}
	return "", apperr.Validation("unknown group logic %q (want AND or OR)", s)
}

// Node is either a Condition or a Group.
type Node interface {
	node()
}

// Condition tests one task attribute.
type Condition struct {
	Field         Field    `json:"field" yaml:"field"`
	Operator      Operator `json:"operator" yaml:"operator"`
	Value         any      `json:"value,omitempty" yaml:"value,omitempty"`
	CustomFieldID string   `json:"customFieldId,omitempty" yaml:"customFieldId,omitempty"`
}

// Group combines conditions and nested groups with one logic.
type Group struct {
	Logic      Logic       `json:"logic,omitempty" yaml:"logic,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Groups     []Group     `json:"groups,omitempty" yaml:"groups,omitempty"`
}

func (Condition) node() {}
func (Group) node()     {}

// Children returns the group's conditions followed by its nested groups.
func (g Group) Children() []Node {
	nodes := make([]Node, 0, len(g.Conditions)+len(g.Groups))
	for _, c := range g.Conditions {
		nodes = append(nodes, c)
	}
	for _, sub := range g.Groups {
		nodes = append(nodes, sub)
	}
	return nodes
}

// Depth returns the nesting depth of g; a group with no nested groups has depth 1.
func (g Group) Depth() int {
	max := 0
	for _, sub := range g.Groups {
		if d := sub.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// AllOf returns an AND group over the given nodes.
func AllOf(nodes ...Node) Group {
	return build(And, nodes)
}

// AnyOf returns an OR group over the given nodes.
func AnyOf(nodes ...Node) Group {
	return build(Or, nodes)
}

func build(logic Logic, nodes []Node) Group {
	g := Group{Logic: logic}
	for _, n := range nodes {
		switch v := n.(type) {
		case Condition:
			g.Conditions = append(g.Conditions, v)
		case Group:
			g.Groups = append(g.Groups, v)
		}
	}
	return g
}

// Parse decodes a filter group from YAML or JSON.
func Parse(data []byte) (*Group, error) {
	var g Group
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, apperr.Validation("malformed filter: %v", err)
	}
	return &g, nil
}

func (c Condition) String() string {
	if c.Field == FieldCustomField {
		return fmt.Sprintf("customField[%s] %s %v", c.CustomFieldID, c.Operator, c.Value)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}
