package vectordb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Operator is a filter comparison operator.
type Operator string

const (
	OpEq   Operator = "=="
	OpNe   Operator = "!="
	OpGt   Operator = ">"
	OpGe   Operator = ">="
	OpLt   Operator = "<"
	OpLe   Operator = "<="
	OpIn   Operator = "in"
	OpLike Operator = "like"
)

// ErrInvalidFilter indicates a filter triple that cannot be compiled.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter is a structured {field, operator, value} comparison. Adapters
// compile filters into their native expression form.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// Eq returns an exact-match filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Operator: OpEq, Value: value}
}

// Validate checks that the triple is well-formed.
func (f Filter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("%w: field required", ErrInvalidFilter)
	}
	switch f.Operator {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe, OpLike:
	case OpIn:
		if _, ok := f.Value.([]any); !ok {
			if _, ok := f.Value.([]string); !ok {
				return fmt.Errorf("%w: %q requires a slice value", ErrInvalidFilter, OpIn)
			}
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Operator)
	}
	return nil
}

// CompileExpr renders filters as a conjunction in the database's string
// expression syntax. Useful for logging and for adapters that speak string
// expressions natively.
func CompileExpr(filters []Filter) (string, error) {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return "", err
		}
		switch f.Operator {
		case OpIn:
			vals := inValues(f.Value)
			quoted := make([]string, len(vals))
			for i, v := range vals {
				quoted[i] = quoteValue(v)
			}
			parts = append(parts, fmt.Sprintf("%s in [%s]", f.Field, strings.Join(quoted, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", f.Field, f.Operator, quoteValue(f.Value)))
		}
	}
	return strings.Join(parts, " && "), nil
}

// Matches evaluates filters in-process against an attribute map. Used by the
// embedded adapter, which has no native expression engine. Attribute values
// are compared by string form; numeric operators parse both sides as floats.
func Matches(attrs map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(attrs, f) {
			return false
		}
	}
	return true
}

func matchOne(attrs map[string]any, f Filter) bool {
	raw, ok := attrs[f.Field]
	if !ok {
		return false
	}
	have := stringValue(raw)

	switch f.Operator {
	case OpEq:
		return have == stringValue(f.Value)
	case OpNe:
		return have != stringValue(f.Value)
	case OpLike:
		return strings.Contains(have, strings.Trim(stringValue(f.Value), "%"))
	case OpIn:
		for _, v := range inValues(f.Value) {
			if have == stringValue(v) {
				return true
			}
		}
		return false
	case OpGt, OpGe, OpLt, OpLe:
		a, errA := strconv.ParseFloat(have, 64)
		b, errB := strconv.ParseFloat(stringValue(f.Value), 64)
		if errA != nil || errB != nil {
			return false
		}
		switch f.Operator {
		case OpGt:
			return a > b
		case OpGe:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	}
	return false
}

func inValues(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func quoteValue(v any) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	default:
		return stringValue(v)
	}
}
