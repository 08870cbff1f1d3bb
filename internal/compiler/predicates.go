package compiler

import (
	"slices"

	"github.com/roach88/dqc/internal/catalog"
	"github.com/roach88/dqc/internal/rules"
	"github.com/roach88/dqc/internal/sqlgen"
)

// failure returns the condition under which a target FAILs, without its
// conditional scope.
//
// NULL handling differs per kind and is part of the output contract:
// set membership leaves NULL to three-valued logic, pair equality treats two
// NULLs as equal, and ordering rules fail whenever either side is NULL.
func failure(t catalog.Target) (sqlgen.Expr, error) {
	for _, c := range t.Columns {
		if c == "" {
			return nil, ruleError(t.Rule, "target %s has an empty column name", t.ID)
		}
	}
	if len(t.Columns) == 0 {
		return nil, ruleError(t.Rule, "rule names no columns")
	}
	col := sqlgen.Col{Name: t.Columns[0]}

	switch r := t.Rule.(type) {
	case rules.NotNull:
		return sqlgen.IsNull{X: col}, nil

	case rules.ValueInSet:
		idx := slices.IndexFunc(r.Sets, func(s rules.ColumnValues) bool { return s.Column == t.Columns[0] })
		if idx < 0 || len(r.Sets[idx].Values) == 0 {
			return nil, ruleError(r, "column %s has an empty value set", t.Columns[0])
		}
		return sqlgen.In{X: col, Values: sqlgen.Lits(r.Sets[idx].Values), Negate: true}, nil

	case rules.ValueNotInSet:
		if len(r.Values) == 0 {
			return nil, ruleError(r, "value_set must not be empty")
		}
		return sqlgen.In{X: col, Values: sqlgen.Lits(r.Values)}, nil

	case rules.RegexMatch:
		if r.Pattern == "" {
			return nil, ruleError(r, "regex must not be empty")
		}
		return sqlgen.Not{X: sqlgen.Regex{X: col, Pattern: r.Pattern}}, nil

	case rules.RegexNotMatch:
		if r.Pattern == "" {
			return nil, ruleError(r, "regex must not be empty")
		}
		return sqlgen.Regex{X: col, Pattern: r.Pattern}, nil

	case rules.PairEqual:
		a, b, err := pair(t)
		if err != nil {
			return nil, err
		}
		return sqlgen.Or{Terms: []sqlgen.Expr{
			sqlgen.Compare{Op: "<>", L: a, R: b},
			sqlgen.And{Terms: []sqlgen.Expr{sqlgen.IsNull{X: a}, sqlgen.IsNotNull{X: b}}},
			sqlgen.And{Terms: []sqlgen.Expr{sqlgen.IsNotNull{X: a}, sqlgen.IsNull{X: b}}},
		}}, nil

	case rules.PairGreaterThan:
		a, b, err := pair(t)
		if err != nil {
			return nil, err
		}
		op := ">"
		if r.OrEqual {
			op = ">="
		}
		return sqlgen.Or{Terms: []sqlgen.Expr{
			sqlgen.Not{X: sqlgen.Compare{Op: op, L: a, R: b}},
			sqlgen.IsNull{X: a},
			sqlgen.IsNull{X: b},
		}}, nil

	case rules.LengthEqual:
		return sqlgen.Compare{Op: "<>", L: sqlgen.Length{X: col}, R: sqlgen.Lit{Value: r.Length}}, nil

	case rules.LengthBetween:
		if r.Min > r.Max {
			return nil, ruleError(r, "min_value %d is greater than max_value %d", r.Min, r.Max)
		}
		return sqlgen.Or{Terms: []sqlgen.Expr{
			sqlgen.Compare{Op: "<", L: sqlgen.Length{X: col}, R: sqlgen.Lit{Value: r.Min}},
			sqlgen.Compare{Op: ">", L: sqlgen.Length{X: col}, R: sqlgen.Lit{Value: r.Max}},
		}}, nil

	case rules.NumericBetween:
		if r.Min > r.Max {
			return nil, ruleError(r, "min_value %v is greater than max_value %v", r.Min, r.Max)
		}
		lo, hi := "<", ">"
		if r.StrictMin {
			lo = "<="
		}
		if r.StrictMax {
			hi = ">="
		}
		return sqlgen.Or{Terms: []sqlgen.Expr{
			sqlgen.Compare{Op: lo, L: col, R: sqlgen.Lit{Value: r.Min}},
			sqlgen.Compare{Op: hi, L: col, R: sqlgen.Lit{Value: r.Max}},
		}}, nil

	case rules.Unique:
		return sqlgen.And{Terms: []sqlgen.Expr{
			sqlgen.IsNotNull{X: col},
			sqlgen.Compare{Op: ">", L: sqlgen.WindowCount{PartitionBy: t.Columns[:1]}, R: sqlgen.Lit{Value: 1}},
		}}, nil

	case rules.CompoundUnique:
		if len(t.Columns) < 2 {
			return nil, ruleError(r, "compound uniqueness needs at least two columns")
		}
		allNull := make([]sqlgen.Expr, len(t.Columns))
		for i, c := range t.Columns {
			allNull[i] = sqlgen.IsNull{X: sqlgen.Col{Name: c}}
		}
		return sqlgen.And{Terms: []sqlgen.Expr{
			sqlgen.Not{X: sqlgen.AllOf(allNull...)},
			sqlgen.Compare{Op: ">", L: sqlgen.WindowCount{PartitionBy: t.Columns}, R: sqlgen.Lit{Value: 1}},
		}}, nil

	case rules.ConditionalRequired:
		cond, req, err := pair(t)
		if err != nil {
			return nil, err
		}
		if len(r.ConditionValues) == 0 {
			return nil, ruleError(r, "condition_values must not be empty")
		}
		return sqlgen.And{Terms: []sqlgen.Expr{
			sqlgen.In{X: cond, Values: sqlgen.Lits(r.ConditionValues)},
			sqlgen.IsNull{X: req},
		}}, nil

	case rules.ConditionalValueInSet:
		cond, target, err := pair(t)
		if err != nil {
			return nil, err
		}
		if len(r.ConditionValues) == 0 || len(r.AllowedValues) == 0 {
			return nil, ruleError(r, "condition_values and allowed_values must not be empty")
		}
		return sqlgen.And{Terms: []sqlgen.Expr{
			sqlgen.In{X: cond, Values: sqlgen.Lits(r.ConditionValues)},
			sqlgen.In{X: target, Values: sqlgen.Lits(r.AllowedValues), Negate: true},
		}}, nil

	default:
		return nil, ruleError(t.Rule, "no predicate for rule kind %s", t.Kind)
	}
}

func pair(t catalog.Target) (sqlgen.Expr, sqlgen.Expr, error) {
	if len(t.Columns) != 2 {
		return nil, nil, ruleError(t.Rule, "rule needs exactly two columns, got %d", len(t.Columns))
	}
	return sqlgen.Col{Name: t.Columns[0]}, sqlgen.Col{Name: t.Columns[1]}, nil
}

// embeddedFailure is the failure condition of a group-owned column rule:
// the column holds a value outside the listed ones.
func embeddedFailure(cv rules.ColumnValues) (sqlgen.Expr, error) {
	if cv.Column == "" || len(cv.Values) == 0 {
		return nil, suiteError("embedded group rule on %q needs a column and values", cv.Column)
	}
	return sqlgen.In{X: sqlgen.Col{Name: cv.Column}, Values: sqlgen.Lits(cv.Values), Negate: true}, nil
}
