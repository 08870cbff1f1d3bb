package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dqc/internal/rules"
)

// ruleReader reads the kind-specific fields of one validation entry, reporting
// every missing or mistyped field before the rule is discarded.
type ruleReader struct {
	b      *builder
	n      *yaml.Node
	path   string
	failed bool
}

func (r *ruleReader) fail(code, key string, n *yaml.Node, format string, args ...any) {
	r.failed = true
	if n == nil {
		n = r.n
	}
	r.b.fail(code, r.path+"."+key, n, format, args...)
}

func (r *ruleReader) read(kind rules.Kind, common rules.Common) rules.Rule {
	switch kind {
	case rules.KindNotNull:
		return rules.NotNull{Common: common, Columns: r.columns()}
	case rules.KindValueInSet:
		return rules.ValueInSet{Common: common, Sets: r.valueSets()}
	case rules.KindValueNotInSet:
		return rules.ValueNotInSet{Common: common, Column: r.str("column"), Values: r.values("value_set")}
	case rules.KindRegexMatch:
		return rules.RegexMatch{Common: common, Columns: r.columns(), Pattern: r.str("regex")}
	case rules.KindRegexNotMatch:
		return rules.RegexNotMatch{Common: common, Columns: r.columns(), Pattern: r.str("regex")}
	case rules.KindPairEqual:
		return rules.PairEqual{Common: common, ColumnA: r.str("column_a"), ColumnB: r.str("column_b")}
	case rules.KindPairGreaterThan:
		return rules.PairGreaterThan{
			Common:  common,
			ColumnA: r.str("column_a"),
			ColumnB: r.str("column_b"),
			OrEqual: r.optBool("or_equal"),
		}
	case rules.KindLengthEqual:
		cols := r.columns()
		n := r.integer("value")
		if n < 0 {
			r.fail(ErrBounds, "value", nil, "length must not be negative, got %d", n)
		}
		return rules.LengthEqual{Common: common, Columns: cols, Length: n}
	case rules.KindLengthBetween:
		cols := r.columns()
		lo, hi := r.integer("min_value"), r.integer("max_value")
		if !r.failed && (lo < 0 || lo > hi) {
			r.fail(ErrBounds, "min_value", nil, "length bounds must satisfy 0 <= min_value <= max_value, got %d and %d", lo, hi)
		}
		return rules.LengthBetween{Common: common, Columns: cols, Min: lo, Max: hi}
	case rules.KindNumericBetween:
		cols := r.columns()
		lo, hi := r.number("min_value"), r.number("max_value")
		if !r.failed && lo > hi {
			r.fail(ErrBounds, "min_value", nil, "min_value %v is greater than max_value %v", lo, hi)
		}
		return rules.NumericBetween{
			Common:    common,
			Columns:   cols,
			Min:       lo,
			Max:       hi,
			StrictMin: r.optBool("strict_min"),
			StrictMax: r.optBool("strict_max"),
		}
	case rules.KindUnique:
		return rules.Unique{Common: common, Columns: r.columns()}
	case rules.KindCompoundUnique:
		cols := r.strList("column_list")
		if !r.failed && len(cols) < 2 {
			r.fail(ErrMissingField, "column_list", nil, "column_list must name at least two columns")
		}
		return rules.CompoundUnique{Common: common, Columns: cols}
	case rules.KindConditionalRequired:
		return rules.ConditionalRequired{
			Common:          common,
			ConditionColumn: r.str("condition_column"),
			ConditionValues: r.values("condition_values"),
			RequiredColumn:  r.str("required_column"),
		}
	case rules.KindConditionalValueInSet:
		return rules.ConditionalValueInSet{
			Common:          common,
			ConditionColumn: r.str("condition_column"),
			ConditionValues: r.values("condition_values"),
			TargetColumn:    r.str("target_column"),
			AllowedValues:   r.values("allowed_values"),
		}
	default:
		r.fail(ErrUnknownType, "type", nil, "unsupported validation type %q", kind)
		return nil
	}
}

func (r *ruleReader) required(key string) *yaml.Node {
	n := lookup(r.n, key)
	if n == nil || isNull(n) {
		r.fail(ErrMissingField, key, nil, "%s is required", key)
		return nil
	}
	return n
}

func (r *ruleReader) str(key string) string {
	n := r.required(key)
	if n == nil {
		return ""
	}
	s, ok := asString(n)
	if !ok || strings.TrimSpace(s) == "" {
		r.fail(ErrFieldType, key, n, "%s must be a non-empty string", key)
	}
	return s
}

func (r *ruleReader) strList(key string) []string {
	n := r.required(key)
	if n == nil {
		return nil
	}
	list, ok := asStringList(n)
	if !ok {
		r.fail(ErrFieldType, key, n, "%s must be a list of column names", key)
		return nil
	}
	if len(list) == 0 {
		r.fail(ErrMissingField, key, n, "%s must not be empty", key)
	}
	return list
}

// columns reads "columns", accepting a single "column" as shorthand.
func (r *ruleReader) columns() []string {
	if lookup(r.n, "columns") == nil {
		if single := lookup(r.n, "column"); single != nil {
			return []string{r.str("column")}
		}
	}
	return r.strList("columns")
}

func (r *ruleReader) values(key string) []rules.Value {
	n := r.required(key)
	if n == nil {
		return nil
	}
	vals, err := asValueList(n)
	if err != nil {
		r.fail(ErrFieldType, key, n, "%s must be a list of values: %v", key, err)
		return nil
	}
	if len(vals) == 0 {
		r.fail(ErrMissingField, key, n, "%s must not be empty", key)
	}
	return vals
}

// valueSets reads the "rules" map of column -> allowed values, accepting
// column + value_set for a single column.
func (r *ruleReader) valueSets() []rules.ColumnValues {
	if lookup(r.n, "rules") == nil && lookup(r.n, "column") != nil {
		return []rules.ColumnValues{{Column: r.str("column"), Values: r.values("value_set")}}
	}
	n := r.required("rules")
	if n == nil {
		return nil
	}
	sets, err := columnValueSets(n)
	if err != nil {
		r.fail(ErrFieldType, "rules", n, "rules %v", err)
		return nil
	}
	return sets
}

func (r *ruleReader) integer(key string) int {
	n := r.required(key)
	if n == nil {
		return 0
	}
	i, ok := asInt(n)
	if !ok {
		r.fail(ErrBounds, key, n, "%s must be an integer", key)
	}
	return i
}

func (r *ruleReader) number(key string) float64 {
	n := r.required(key)
	if n == nil {
		return 0
	}
	f, ok := asFloat(n)
	if !ok {
		r.fail(ErrBounds, key, n, "%s must be a number", key)
	}
	return f
}

func (r *ruleReader) optBool(key string) bool {
	n := lookup(r.n, key)
	if n == nil || isNull(n) {
		return false
	}
	v, ok := asBool(n)
	if !ok {
		r.fail(ErrFieldType, key, n, "%s must be true or false", key)
	}
	return v
}

func (r *ruleReader) conditional() *rules.Conditional {
	n := lookup(r.n, "conditional_on")
	if n == nil || isNull(n) {
		return nil
	}
	if !isMapping(n) {
		r.fail(ErrFieldType, "conditional_on", n, "conditional_on must be a mapping with derived_group and membership")
		return nil
	}

	c := &rules.Conditional{Membership: rules.Exclude}
	group, ok := asString(lookup(n, "derived_group"))
	if !ok || strings.TrimSpace(group) == "" {
		r.fail(ErrMissingField, "conditional_on.derived_group", n, "derived_group is required")
	}
	c.DerivedGroup = group

	if m := lookup(n, "membership"); m != nil && !isNull(m) {
		s, _ := asString(m)
		switch rules.Membership(strings.ToLower(s)) {
		case rules.Exclude:
			c.Membership = rules.Exclude
		case rules.Include:
			c.Membership = rules.Include
		default:
			r.fail(ErrMembership, "conditional_on.membership", m, "membership must be \"exclude\" or \"include\", got %q", s)
		}
	}
	return c
}
