package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dqc/internal/rules"
)

// relativeDatePattern matches "<op> <signed int> <unit>[s]", e.g. "> -3 years".
var relativeDatePattern = regexp.MustCompile(`(?i)^\s*(>=|<=|!=|<>|=|>|<)\s*([+-]?\d+)\s+(day|week|month|quarter|year)s?\s*$`)

// operatorPrefixes mark a string filter as a condition to pass through.
var operatorPrefixes = []string{
	"NOT LIKE ", "LIKE ", "NOT IN ", "NOT IN(", "IN ", "IN(", "IS ", "BETWEEN ",
	">=", "<=", "!=", "<>", "=", "<", ">",
}

var filterOperators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "NOT LIKE": true, "IN": true, "NOT IN": true,
}

type operatorValue struct {
	Operator string `mapstructure:"operator"`
	Value    any    `mapstructure:"value"`
}

// parseFilter converts one data_source.filters entry into a condition.
func parseFilter(n *yaml.Node) (rules.Condition, error) {
	n = resolve(n)
	if n == nil {
		return nil, fmt.Errorf("filter value is empty")
	}

	switch n.Kind {
	case yaml.SequenceNode:
		vals, err := asValueList(n)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("filter list must not be empty")
		}
		return rules.InList{Values: vals}, nil
	case yaml.MappingNode:
		return parseOperatorValue(n)
	case yaml.ScalarNode:
		v, err := asValue(n)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("filter value is null, use \"IS NULL\" instead")
		}
		s, ok := v.(string)
		if !ok {
			return rules.Equals{Value: v}, nil
		}
		return parseStringFilter(s)
	default:
		return nil, fmt.Errorf("unsupported filter value")
	}
}

func parseStringFilter(s string) (rules.Condition, error) {
	if m := relativeDatePattern.FindStringSubmatch(s); m != nil {
		amount, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("relative date amount %q: %w", m[2], err)
		}
		return rules.RelativeDate{
			Operator: m[1],
			Amount:   amount,
			Unit:     rules.DateUnit(strings.ToLower(m[3])),
		}, nil
	}

	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	for _, p := range operatorPrefixes {
		if strings.HasPrefix(upper, p) {
			return rules.RawCondition{SQL: trimmed}, nil
		}
	}
	return rules.Equals{Value: s}, nil
}

func parseOperatorValue(n *yaml.Node) (rules.Condition, error) {
	var raw map[string]any
	if err := n.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}

	var ov operatorValue
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &ov,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("filter must be {operator, value}: %w", err)
	}

	op := strings.ToUpper(strings.Join(strings.Fields(ov.Operator), " "))
	if !filterOperators[op] {
		return nil, fmt.Errorf("unsupported filter operator %q", ov.Operator)
	}

	switch v := ov.Value.(type) {
	case nil:
		return nil, fmt.Errorf("filter operator %s needs a value", op)
	case []any:
		if op != "IN" && op != "NOT IN" {
			return nil, fmt.Errorf("list value requires IN or NOT IN, got %s", op)
		}
		if len(v) == 0 {
			return nil, fmt.Errorf("filter list must not be empty")
		}
		vals := make([]rules.Value, len(v))
		for i, item := range v {
			switch item.(type) {
			case []any, map[string]any:
				return nil, fmt.Errorf("filter list item %d must be a scalar", i)
			}
			vals[i] = item
		}
		return rules.OperatorValue{Operator: op, Value: vals}, nil
	case map[string]any:
		return nil, fmt.Errorf("filter value must be a scalar or a list")
	default:
		if op == "IN" || op == "NOT IN" {
			return rules.OperatorValue{Operator: op, Value: []rules.Value{v}}, nil
		}
		return rules.OperatorValue{Operator: op, Value: v}, nil
	}
}
