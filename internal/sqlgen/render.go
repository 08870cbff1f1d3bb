package sqlgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Renderer turns expressions into SQL text for one dialect.
//
// Literals are inlined rather than bound: the compiled query is a single
// self-contained string that callers may store, print or hand to any engine.
type Renderer struct {
	Dialect Dialect
}

// NewRenderer creates a renderer, defaulting to Snowflake when d is nil.
func NewRenderer(d Dialect) *Renderer {
	if d == nil {
		d = Snowflake{}
	}
	return &Renderer{Dialect: d}
}

// Render converts an expression to SQL.
func (r *Renderer) Render(e Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("cannot render nil expression")
	}

	switch x := e.(type) {
	case Col:
		if x.Name == "" {
			return "", fmt.Errorf("column reference with empty name")
		}
		return r.Dialect.QuoteIdent(x.Name), nil
	case Ident:
		return x.Name, nil
	case Lit:
		return RenderLiteral(x.Value)
	case IsNull:
		return r.postfix(x.X, " IS NULL")
	case IsNotNull:
		return r.postfix(x.X, " IS NOT NULL")
	case In:
		return r.renderIn(x)
	case InSubquery:
		return r.renderInSubquery(x)
	case Compare:
		return r.renderCompare(x)
	case Not:
		inner, err := r.Render(x.X)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case And:
		return r.renderJunction(x.Terms, " AND ")
	case Or:
		return r.renderJunction(x.Terms, " OR ")
	case Regex:
		inner, err := r.operand(x.X)
		if err != nil {
			return "", err
		}
		return r.Dialect.Regex(inner, x.Pattern), nil
	case Length:
		inner, err := r.operand(x.X)
		if err != nil {
			return "", err
		}
		return r.Dialect.Length(inner), nil
	case WindowCount:
		return r.renderWindowCount(x)
	case RelativeDate:
		return r.Dialect.RelativeDate(x.Unit, x.Amount)
	case Raw:
		return x.SQL, nil
	case Status:
		cond, err := r.Render(x.Cond)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("CASE WHEN %s THEN '%s' ELSE '%s' END", cond, Fail, Pass), nil
	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

// RenderLiteral renders a scalar literal.
func RenderLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return QuoteString(val), nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", fmt.Errorf("non-finite number %v cannot be a literal", val)
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported literal type: %T", v)
	}
}

// operand renders e, parenthesizing boolean compounds.
func (r *Renderer) operand(e Expr) (string, error) {
	s, err := r.Render(e)
	if err != nil {
		return "", err
	}
	switch e.(type) {
	case And, Or:
		return "(" + s + ")", nil
	default:
		return s, nil
	}
}

func (r *Renderer) postfix(x Expr, suffix string) (string, error) {
	s, err := r.operand(x)
	if err != nil {
		return "", err
	}
	return s + suffix, nil
}

func (r *Renderer) renderIn(in In) (string, error) {
	if len(in.Values) == 0 {
		return "", fmt.Errorf("IN list must not be empty")
	}
	lhs, err := r.operand(in.X)
	if err != nil {
		return "", err
	}
	vals := make([]string, len(in.Values))
	for i, v := range in.Values {
		s, err := r.Render(v)
		if err != nil {
			return "", fmt.Errorf("IN value %d: %w", i, err)
		}
		vals[i] = s
	}
	op := " IN ("
	if in.Negate {
		op = " NOT IN ("
	}
	return lhs + op + strings.Join(vals, ", ") + ")", nil
}

func (r *Renderer) renderInSubquery(in InSubquery) (string, error) {
	if in.Relation == "" || in.Column == "" {
		return "", fmt.Errorf("membership subquery needs a relation and a column")
	}
	lhs, err := r.operand(in.X)
	if err != nil {
		return "", err
	}
	sub := fmt.Sprintf("(SELECT %s FROM %s)", r.Dialect.QuoteIdent(in.Column), in.Relation)
	if !in.Negate {
		return lhs + " IN " + sub, nil
	}
	// NOT IN is NULL for a NULL key, and a NULL key is never a member.
	return fmt.Sprintf("(%s IS NULL OR %s NOT IN %s)", lhs, lhs, sub), nil
}

var compareOps = map[string]bool{"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

func (r *Renderer) renderCompare(c Compare) (string, error) {
	if !compareOps[c.Op] {
		return "", fmt.Errorf("unsupported comparison operator %q", c.Op)
	}
	l, err := r.operand(c.L)
	if err != nil {
		return "", err
	}
	rhs, err := r.operand(c.R)
	if err != nil {
		return "", err
	}
	return l + " " + c.Op + " " + rhs, nil
}

func (r *Renderer) renderJunction(terms []Expr, sep string) (string, error) {
	if len(terms) == 0 {
		return "", fmt.Errorf("empty%sexpression", strings.ToLower(sep))
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		s, err := r.operand(t)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

func (r *Renderer) renderWindowCount(w WindowCount) (string, error) {
	if len(w.PartitionBy) == 0 {
		return "", fmt.Errorf("window count needs at least one partition column")
	}
	cols := make([]string, len(w.PartitionBy))
	for i, c := range w.PartitionBy {
		cols[i] = r.Dialect.QuoteIdent(c)
	}
	return "COUNT(*) OVER (PARTITION BY " + strings.Join(cols, ", ") + ")", nil
}
