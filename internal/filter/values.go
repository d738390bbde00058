package filter

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/tasks"
)

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func idValue(c Condition) (string, error) {
	if c.Value == nil || isList(c.Value) {
		return "", apperr.Validation("%s %s requires a single id value", c.Field, c.Operator)
	}
	s, err := cast.ToStringE(c.Value)
	if err != nil || strings.TrimSpace(s) == "" {
		return "", apperr.Validation("%s %s: invalid id %v", c.Field, c.Operator, c.Value)
	}
	return s, nil
}

// idValues accepts a list of ids or a single id.
func idValues(c Condition) ([]string, error) {
	if c.Value == nil {
		return nil, apperr.Validation("%s %s requires at least one id", c.Field, c.Operator)
	}
	if !isList(c.Value) {
		id, err := idValue(c)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
	ids, err := cast.ToStringSliceE(c.Value)
	if err != nil {
		return nil, apperr.Validation("%s %s: invalid id list %v", c.Field, c.Operator, c.Value)
	}
	if len(ids) == 0 {
		return nil, apperr.Validation("%s %s requires at least one id", c.Field, c.Operator)
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, apperr.Validation("%s %s: empty id in list", c.Field, c.Operator)
		}
	}
	return ids, nil
}

func boolValue(c Condition) (bool, error) {
	if c.Value == nil || isList(c.Value) {
		return false, apperr.Validation("%s requires a boolean value", c.Field)
	}
	b, err := cast.ToBoolE(c.Value)
	if err != nil {
		return false, apperr.Validation("%s: invalid boolean %v", c.Field, c.Value)
	}
	return b, nil
}

func dateOf(c Condition, v any) (string, error) {
	switch x := v.(type) {
	case string:
		d, err := tasks.ParseDate(x)
		if err != nil {
			return "", apperr.Validation("%s: %v", c.Field, err)
		}
		return d.String(), nil
	case time.Time:
		return tasks.DateOf(x).String(), nil
	case tasks.Date:
		return x.String(), nil
	}
	return "", apperr.Validation("%s: expected a date, got %T", c.Field, v)
}

func dateValue(c Condition) (string, error) {
	if c.Value == nil || isList(c.Value) {
		return "", apperr.Validation("%s %s requires a single date value", c.Field, c.Operator)
	}
	return dateOf(c, c.Value)
}

func numberOf(c Condition, v any) (float64, error) {
	if _, ok := v.(bool); ok {
		return 0, apperr.Validation("%s: expected a number, got bool", c.Field)
	}
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, apperr.Validation("%s: expected a number, got %v", c.Field, v)
	}
	return n, nil
}

func textOf(c Condition, v any) (string, error) {
	if v == nil || isList(v) {
		return "", apperr.Validation("%s: expected a string value", c.Field)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", apperr.Validation("%s: expected a string, got %T", c.Field, v)
	}
	return s, nil
}

// listOf applies conv to each element of a list value (or to a scalar).
func listOf[T any](c Condition, conv func(Condition, any) (T, error)) ([]T, error) {
	if c.Value == nil {
		return nil, apperr.Validation("%s %s requires a value", c.Field, c.Operator)
	}
	var raw []any
	if isList(c.Value) {
		rv := reflect.ValueOf(c.Value)
		for i := 0; i < rv.Len(); i++ {
			raw = append(raw, rv.Index(i).Interface())
		}
	} else {
		raw = []any{c.Value}
	}
	if len(raw) == 0 {
		return nil, apperr.Validation("%s %s requires at least one value", c.Field, c.Operator)
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		v, err := conv(c, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func scalar[T any](c Condition, conv func(Condition, any) (T, error)) (T, error) {
	var zero T
	if c.Value == nil || isList(c.Value) {
		return zero, apperr.Validation("%s %s requires a single value", c.Field, c.Operator)
	}
	return conv(c, c.Value)
}

// escapeLike escapes LIKE wildcards for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
