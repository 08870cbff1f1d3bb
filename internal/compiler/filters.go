package compiler

import (
	"fmt"

	"github.com/roach88/dqc/internal/rules"
	"github.com/roach88/dqc/internal/sqlgen"
)

// filterExpr translates one source filter into a WHERE term.
func filterExpr(d sqlgen.Dialect, f rules.Filter) (sqlgen.Expr, error) {
	if f.Column == "" {
		return nil, fmt.Errorf("filter with empty column name")
	}
	col := sqlgen.Col{Name: f.Column}

	switch c := f.Cond.(type) {
	case rules.Equals:
		return sqlgen.Compare{Op: "=", L: col, R: sqlgen.Lit{Value: c.Value}}, nil
	case rules.InList:
		return sqlgen.In{X: col, Values: sqlgen.Lits(c.Values)}, nil
	case rules.RawCondition:
		return sqlgen.Raw{SQL: d.QuoteIdent(f.Column) + " " + c.SQL}, nil
	case rules.RelativeDate:
		return sqlgen.Compare{
			Op: comparisonOp(c.Operator),
			L:  col,
			R:  sqlgen.RelativeDate{Amount: c.Amount, Unit: string(c.Unit)},
		}, nil
	case rules.OperatorValue:
		return operatorExpr(d, f.Column, c)
	default:
		return nil, fmt.Errorf("filter on %s: unsupported condition %T", f.Column, f.Cond)
	}
}

func operatorExpr(d sqlgen.Dialect, column string, c rules.OperatorValue) (sqlgen.Expr, error) {
	col := sqlgen.Col{Name: column}
	switch c.Operator {
	case "IN", "NOT IN":
		vals, ok := c.Value.([]rules.Value)
		if !ok {
			vals = []rules.Value{c.Value}
		}
		return sqlgen.In{X: col, Values: sqlgen.Lits(vals), Negate: c.Operator == "NOT IN"}, nil
	case "LIKE", "NOT LIKE":
		lit, err := sqlgen.RenderLiteral(c.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %s: %w", column, err)
		}
		return sqlgen.Raw{SQL: d.QuoteIdent(column) + " " + c.Operator + " " + lit}, nil
	default:
		return sqlgen.Compare{Op: comparisonOp(c.Operator), L: col, R: sqlgen.Lit{Value: c.Value}}, nil
	}
}

func comparisonOp(op string) string {
	if op == "!=" {
		return "<>"
	}
	return op
}
