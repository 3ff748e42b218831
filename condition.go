package authz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator is a condition comparison operator. The set is fixed; unknown
// operators always evaluate false.
type Operator string

const (
	OpEq            Operator = "eq"
	OpNe            Operator = "ne"
	OpGt            Operator = "gt"
	OpLt            Operator = "lt"
	OpGte           Operator = "gte"
	OpLte           Operator = "lte"
	OpIn            Operator = "in"
	OpNotIn         Operator = "not_in"
	OpContains      Operator = "contains"
	OpNotContains   Operator = "not_contains"
	OpStartsWith    Operator = "starts_with"
	OpEndsWith      Operator = "ends_with"
	OpIntersects    Operator = "intersects"
	OpNotIntersects Operator = "not_intersects"
	OpHasAll        Operator = "has_all"
	OpHasAny        Operator = "has_any"
)

var knownOperators = map[Operator]bool{
	OpEq: true, OpNe: true, OpGt: true, OpLt: true, OpGte: true, OpLte: true,
	OpIn: true, OpNotIn: true, OpContains: true, OpNotContains: true,
	OpStartsWith: true, OpEndsWith: true,
	OpIntersects: true, OpNotIntersects: true, OpHasAll: true, OpHasAny: true,
}

// ConditionValue is a tagged scalar-or-list value fixed at policy-authoring
// time, so evaluation never needs runtime type introspection.
type ConditionValue struct {
	scalar any
	items  []any
	isList bool
}

// ScalarValue wraps a single comparison operand.
func ScalarValue(v any) ConditionValue { return ConditionValue{scalar: v} }

// ListValue wraps a list operand for set-style operators.
func ListValue(items ...any) ConditionValue {
	dup := make([]any, len(items))
	copy(dup, items)
	return ConditionValue{items: dup, isList: true}
}

func (v ConditionValue) IsList() bool { return v.isList }

func (v ConditionValue) Scalar() any { return v.scalar }

func (v ConditionValue) Items() []any {
	if !v.isList {
		return nil
	}
	dup := make([]any, len(v.items))
	copy(dup, v.items)
	return dup
}

func (v ConditionValue) raw() any {
	if v.isList {
		return v.items
	}
	return v.scalar
}

func (v ConditionValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw())
}

func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.set(raw)
	return nil
}

func (v ConditionValue) MarshalYAML() (any, error) { return v.raw(), nil }

func (v *ConditionValue) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v.set(raw)
	return nil
}

// set infers the tag from the decoded shape: sequences become lists,
// everything else stays scalar.
func (v *ConditionValue) set(raw any) {
	if items, ok := asList(raw); ok {
		v.items = items
		v.isList = true
		v.scalar = nil
		return
	}
	v.scalar = raw
	v.isList = false
	v.items = nil
}

// Condition is one attribute test inside a policy. Conditions on a policy
// are AND-combined in order.
type Condition struct {
	Attribute string         `json:"attribute" yaml:"attribute"`
	Operator  Operator       `json:"operator" yaml:"operator"`
	Value     ConditionValue `json:"value" yaml:"value"`
}

// Evaluate resolves the condition attribute by dot-path lookup into the
// context map and applies the operator. Any missing path segment, type
// mismatch, or malformed operand evaluates false. Fail-closed, never an
// error.
func (c Condition) Evaluate(ctx map[string]any) bool {
	actual, ok := lookupPath(ctx, c.Attribute)
	if !ok || actual == nil {
		return false
	}
	switch c.Operator {
	case OpEq:
		return looseEqual(actual, c.Value.raw())
	case OpNe:
		return !looseEqual(actual, c.Value.raw())
	case OpGt, OpLt, OpGte, OpLte:
		return compareNumeric(c.Operator, actual, c.Value.raw())
	case OpIn:
		if !c.Value.isList {
			return false
		}
		return memberOf(c.Value.items, actual)
	case OpNotIn:
		// A malformed not_in is false, same as a malformed in. The
		// asymmetric "non-list means true" behavior would let a broken
		// condition satisfy a deny policy.
		if !c.Value.isList {
			return false
		}
		return !memberOf(c.Value.items, actual)
	case OpContains:
		return containsValue(actual, c.Value)
	case OpNotContains:
		if !containsApplicable(actual) {
			return false
		}
		return !containsValue(actual, c.Value)
	case OpStartsWith:
		as, ok1 := actual.(string)
		es, ok2 := c.Value.scalar.(string)
		return ok1 && ok2 && !c.Value.isList && strings.HasPrefix(as, es)
	case OpEndsWith:
		as, ok1 := actual.(string)
		es, ok2 := c.Value.scalar.(string)
		return ok1 && ok2 && !c.Value.isList && strings.HasSuffix(as, es)
	case OpIntersects:
		return setIntersects(actual, c.Value)
	case OpNotIntersects:
		actualList, ok := asList(actual)
		if !ok || !c.Value.isList {
			return false
		}
		return !listsIntersect(actualList, c.Value.items)
	case OpHasAll:
		actualList, ok := asList(actual)
		if !ok || !c.Value.isList {
			return false
		}
		for _, want := range c.Value.items {
			if !memberOf(actualList, want) {
				return false
			}
		}
		return true
	case OpHasAny:
		actualList, ok := asList(actual)
		if !ok || !c.Value.isList {
			return false
		}
		return listsIntersect(actualList, c.Value.items)
	default:
		return false
	}
}

// EvaluateAll is AND over the condition list. An empty list is vacuously
// true.
func EvaluateAll(conditions []Condition, ctx map[string]any) bool {
	for _, c := range conditions {
		if !c.Evaluate(ctx) {
			return false
		}
	}
	return true
}

// ValidateCondition rejects conditions that could never evaluate true.
func ValidateCondition(c Condition) error {
	if strings.TrimSpace(c.Attribute) == "" {
		return fmt.Errorf("condition attribute is required")
	}
	if !knownOperators[c.Operator] {
		return fmt.Errorf("unknown operator: %s", c.Operator)
	}
	switch c.Operator {
	case OpIn, OpNotIn, OpIntersects, OpNotIntersects, OpHasAll, OpHasAny:
		if !c.Value.isList {
			return fmt.Errorf("operator %s requires a list value", c.Operator)
		}
	}
	return nil
}

// lookupPath walks a dot-separated attribute path through nested maps.
func lookupPath(ctx map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current any = ctx
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setIntersects(actual any, value ConditionValue) bool {
	actualList, ok := asList(actual)
	if !ok || !value.isList {
		return false
	}
	return listsIntersect(actualList, value.items)
}

func listsIntersect(a, b []any) bool {
	for _, x := range a {
		if memberOf(b, x) {
			return true
		}
	}
	return false
}

func memberOf(list []any, v any) bool {
	for _, item := range list {
		if looseEqual(item, v) {
			return true
		}
	}
	return false
}

func containsApplicable(actual any) bool {
	if _, ok := asList(actual); ok {
		return true
	}
	_, ok := actual.(string)
	return ok
}

// containsValue is membership when the actual value is list-like and a
// substring test when it is a string.
func containsValue(actual any, value ConditionValue) bool {
	if value.isList {
		return false
	}
	if list, ok := asList(actual); ok {
		return memberOf(list, value.scalar)
	}
	if s, ok := actual.(string); ok {
		return strings.Contains(s, stringOf(value.scalar))
	}
	return false
}

func compareNumeric(op Operator, a, b any) bool {
	af, ok1 := toFloat(a)
	bf, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpGt:
		return af > bf
	case OpLt:
		return af < bf
	case OpGte:
		return af >= bf
	case OpLte:
		return af <= bf
	}
	return false
}

// looseEqual compares across the numeric types JSON and YAML decoding
// produce; everything else falls back to direct equality.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, ok1 := toFloat(a); ok1 {
		if bf, ok2 := toFloat(b); ok2 {
			return af == bf
		}
		return false
	}
	if as, ok := a.(string); ok {
		bs, ok2 := b.(string)
		return ok2 && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok2 := b.(bool)
		return ok2 && ab == bb
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(v)
	}
}
