// Package targeting evaluates attribute rules against a visitor's attributes.
package targeting

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Supported operators.
const (
	OpEquals     = "equals"
	OpContains   = "contains"
	OpStartsWith = "startsWith"
	OpEndsWith   = "endsWith"
	OpGreater    = "gt"
	OpLess       = "lt"
	OpIn         = "in"
)

// Rule compares one visitor attribute against a value.
type Rule struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

// ParseRules decodes a stored rule list. Empty input yields no rules.
func ParseRules(raw []byte) ([]Rule, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var rules []Rule
	if err := json.Unmarshal([]byte(trimmed), &rules); err != nil {
		return nil, fmt.Errorf("failed to parse targeting rules: %w", err)
	}
	return rules, nil
}

// Matches reports whether attributes satisfy every rule.
//
// Rules are ANDed in order and evaluation stops at the first failing rule.
// A rule whose attribute is absent (or null) is skipped rather than failed.
func Matches(rules []Rule, attributes map[string]any) bool {
	for _, rule := range rules {
		actual, ok := attributes[rule.Attribute]
		if !ok || actual == nil {
			continue
		}
		if !evaluate(rule.Operator, actual, rule.Value) {
			return false
		}
	}
	return true
}

func evaluate(operator string, actual, expected any) bool {
	switch operator {
	case OpEquals:
		return strictEqual(actual, expected)
	case OpContains:
		return strings.Contains(toString(actual), toString(expected))
	case OpStartsWith:
		return strings.HasPrefix(toString(actual), toString(expected))
	case OpEndsWith:
		return strings.HasSuffix(toString(actual), toString(expected))
	case OpGreater:
		a, okA := toNumber(actual)
		e, okE := toNumber(expected)
		return okA && okE && a > e
	case OpLess:
		a, okA := toNumber(actual)
		e, okE := toNumber(expected)
		return okA && okE && a < e
	case OpIn:
		return memberOf(actual, expected)
	default:
		return false
	}
}

// strictEqual compares without cross-type coercion; numbers of any Go numeric
// type compare by value.
func strictEqual(a, b any) bool {
	if na, ok := numeric(a); ok {
		nb, ok := numeric(b)
		return ok && na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func memberOf(actual, list any) bool {
	needle := toString(actual)
	switch items := list.(type) {
	case []any:
		for _, item := range items {
			if toString(item) == needle {
				return true
			}
		}
	case []string:
		for _, item := range items {
			if item == needle {
				return true
			}
		}
	}
	return false
}

// numeric returns v as float64 when v is a Go or JSON number.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toNumber coerces strings and booleans as well as numbers.
func toNumber(v any) (float64, bool) {
	if n, ok := numeric(v); ok {
		return n, !math.IsNaN(n)
	}
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	if n, ok := numeric(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
