// Package sqlgen is a small SQL expression IR and its renderer.
//
// The compiler builds predicates as Expr trees and renders them through a
// Dialect, so engine-specific functions (regex, length, date arithmetic) stay
// out of compiler logic.
package sqlgen

// Expr is a SQL scalar or boolean expression.
//
// This is a sealed interface: only types in this package implement it, and
// the renderer's type switch covers every node.
type Expr interface {
	exprNode()
}

// Col references a column; it is quoted by the dialect.
type Col struct {
	Name string
}

// Ident references an identifier emitted unquoted (generated aliases such as
// target ids).
type Ident struct {
	Name string
}

// Lit is a literal: string, integer, float, bool or nil.
type Lit struct {
	Value any
}

type IsNull struct {
	X Expr
}

type IsNotNull struct {
	X Expr
}

// In renders X [NOT] IN (values...).
type In struct {
	X      Expr
	Values []Expr
	Negate bool
}

// InSubquery renders X [NOT] IN (SELECT column FROM relation). The negated
// form is true for a NULL X.
type InSubquery struct {
	X        Expr
	Column   string
	Relation string
	Negate   bool
}

// Compare renders L op R for one of =, <>, <, <=, >, >=.
type Compare struct {
	Op string
	L  Expr
	R  Expr
}

type Not struct {
	X Expr
}

type And struct {
	Terms []Expr
}

type Or struct {
	Terms []Expr
}

// Regex is true when X matches Pattern, in the dialect's regex syntax.
type Regex struct {
	X       Expr
	Pattern string
}

// Length is the character length of X.
type Length struct {
	X Expr
}

// WindowCount renders COUNT(*) OVER (PARTITION BY columns).
type WindowCount struct {
	PartitionBy []string
}

// RelativeDate is today's date shifted by Amount units (Amount may be negative).
type RelativeDate struct {
	Amount int
	Unit   string
}

// Raw is emitted verbatim.
type Raw struct {
	SQL string
}

// Status renders CASE WHEN Cond THEN 'FAIL' ELSE 'PASS' END.
type Status struct {
	Cond Expr
}

func (Col) exprNode()          {}
func (Ident) exprNode()        {}
func (Lit) exprNode()          {}
func (IsNull) exprNode()       {}
func (IsNotNull) exprNode()    {}
func (In) exprNode()           {}
func (InSubquery) exprNode()   {}
func (Compare) exprNode()      {}
func (Not) exprNode()          {}
func (And) exprNode()          {}
func (Or) exprNode()           {}
func (Regex) exprNode()        {}
func (Length) exprNode()       {}
func (WindowCount) exprNode()  {}
func (RelativeDate) exprNode() {}
func (Raw) exprNode()          {}
func (Status) exprNode()       {}

// Status literals written into every target and derived column.
const (
	Fail = "FAIL"
	Pass = "PASS"
)

// Lits wraps values as literals.
func Lits[T any](values []T) []Expr {
	out := make([]Expr, len(values))
	for i, v := range values {
		out[i] = Lit{Value: v}
	}
	return out
}

// AnyOf is the OR of terms, collapsing the single-term case.
func AnyOf(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return Or{Terms: terms}
}

// AllOf is the AND of terms, collapsing the single-term case.
func AllOf(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return And{Terms: terms}
}
