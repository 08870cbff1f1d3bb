// Package compiler turns a rule suite into one bulk SQL query.
//
// The query has up to four parts: base_data (the filtered source projected to
// validated and context columns), membership CTEs over base_data for derived
// groups used as conditional scopes, target_results (one PASS/FAIL column per
// rule target) and a final selection adding one column per derived group. Derived columns
// read target columns, so they always come after every target.
package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/dqc/internal/catalog"
	"github.com/roach88/dqc/internal/grain"
	loglib "github.com/roach88/dqc/internal/log"
	"github.com/roach88/dqc/internal/rules"
	"github.com/roach88/dqc/internal/sqlgen"
)

// Options tune one compilation. The zero value compiles for Snowflake with
// the embedded grain table and no row limit.
type Options struct {
	// RowLimit caps base_data when positive.
	RowLimit int
	Dialect  sqlgen.Dialect
	Grains   *grain.Table
	Logger   loglib.Logger
}

// Membership is a CTE listing the record keys that fail a derived group.
type Membership struct {
	Name  string
	Group rules.DerivedGroup
}

// Query is a compiled suite.
type Query struct {
	SQL     string
	Dialect string
	// Targets and Derived are in column order.
	Targets []catalog.Target
	Derived []catalog.Resolution
	// Columns are the source columns read by rules.
	Columns        []string
	ContextColumns []string
	// Projection is the column list of base_data.
	Projection  []string
	Memberships []Membership
	Warnings    []string
}

// TargetIDs returns the target status columns in query order.
func (q *Query) TargetIDs() []string {
	out := make([]string, len(q.Targets))
	for i, t := range q.Targets {
		out[i] = t.ID
	}
	return out
}

// DerivedColumns returns the derived status columns in query order.
func (q *Query) DerivedColumns() []string {
	out := make([]string, len(q.Derived))
	for i, d := range q.Derived {
		out[i] = d.Group.Column()
	}
	return out
}

type column struct {
	expr  string
	alias string
}

type membershipCTE struct {
	Membership
	cond string
}

type compilation struct {
	suite  *rules.Suite
	opts   Options
	r      *sqlgen.Renderer
	logger loglib.Logger
	key    string

	query   *Query
	filters []string
	members map[string]membershipCTE
	ctes    []membershipCTE
	targets []column
	derived []column
}

// Compile builds the query for suite. The suite is not modified.
func Compile(suite *rules.Suite, opts Options) (*Query, error) {
	if suite == nil {
		return nil, suiteError("suite is nil")
	}
	if suite.Source.Relation == "" {
		return nil, suiteError("suite %q has no source relation", suite.Name)
	}
	if len(suite.Rules) == 0 {
		return nil, suiteError("suite %q has no rules", suite.Name)
	}

	if opts.Dialect == nil {
		opts.Dialect = sqlgen.Snowflake{}
	}
	if opts.Grains == nil {
		opts.Grains = grain.Default()
	}
	key := suite.IndexColumn
	if key == "" {
		key = rules.DefaultIndexColumn
	}
	grains := opts.Grains.WithRecordKey(key)

	c := &compilation{
		suite: suite,
		opts:  opts,
		r:     sqlgen.NewRenderer(opts.Dialect),
		logger: loglib.NewLogger(opts.Logger).WithFields(loglib.Fields{
			loglib.ModuleField: "compiler",
			loglib.SuiteField:  suite.Name,
		}),
		key:     key,
		members: make(map[string]membershipCTE),
		query:   &Query{Dialect: opts.Dialect.Name()},
	}

	// Validated and context columns.
	c.query.Columns = suite.Columns()
	c.query.ContextColumns = grains.ContextColumns(c.query.Columns)
	c.query.Projection = dedupe(c.query.Columns, c.query.ContextColumns, []string{key})

	if err := c.compileFilters(); err != nil {
		return nil, err
	}

	targets := catalog.Expand(suite)
	resolutions := catalog.Resolve(suite, targets)

	if err := c.compileMemberships(resolutions); err != nil {
		return nil, err
	}
	if err := c.compileTargets(targets); err != nil {
		return nil, err
	}
	if err := c.compileDerived(resolutions); err != nil {
		return nil, err
	}

	c.query.SQL = c.assemble()
	c.logger.Debug("compiled suite", loglib.Fields{
		"targets":     len(c.query.Targets),
		"derived":     len(c.query.Derived),
		"memberships": len(c.query.Memberships),
		"dialect":     c.query.Dialect,
	})
	return c.query, nil
}

func (c *compilation) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.query.Warnings = append(c.query.Warnings, msg)
	c.logger.Warn(nil, msg)
}

func (c *compilation) compileFilters() error {
	for _, f := range c.suite.Source.Filters {
		e, err := filterExpr(c.opts.Dialect, f)
		if err != nil {
			return suiteError("%v", err)
		}
		s, err := c.r.Render(e)
		if err != nil {
			return suiteError("filter on %s: %v", f.Column, err)
		}
		c.filters = append(c.filters, s)
	}
	return nil
}

// compileMemberships builds one CTE per derived group referenced as a scope.
// The CTE evaluates the group's own column conditions against base_data,
// since target columns do not exist yet at that point of the query.
func (c *compilation) compileMemberships(resolutions []catalog.Resolution) error {
	referenced := make(map[string]rules.Rule)
	for _, r := range c.suite.Rules {
		cond := r.Meta().Conditional
		if cond == nil {
			continue
		}
		g, ok := c.suite.FindGroup(cond.DerivedGroup)
		if !ok {
			return ruleError(r, "conditional_on references unknown derived group %q", cond.DerivedGroup)
		}
		if _, seen := referenced[g.ID]; !seen {
			referenced[g.ID] = r
		}
	}

	for _, res := range resolutions {
		user, ok := referenced[res.Group.ID]
		if !ok {
			continue
		}
		for _, t := range res.Targets {
			if t.Conditional() != nil {
				return ruleError(user, "derived group %q is used as a scope but contains conditionally scoped target %s", res.Group.Label, t.ID)
			}
		}

		var terms []sqlgen.Expr
		for _, t := range res.Targets {
			e, err := failure(t)
			if err != nil {
				return err
			}
			terms = append(terms, e)
		}
		for _, cv := range res.Embedded {
			e, err := embeddedFailure(cv)
			if err != nil {
				return err
			}
			terms = append(terms, e)
		}

		cond := "1 = 0"
		if len(terms) == 0 {
			c.warn("derived group %q has no constituents; its scope matches no records", res.Group.Label)
		} else {
			s, err := c.r.Render(sqlgen.AnyOf(terms...))
			if err != nil {
				return ruleError(user, "derived group %q: %v", res.Group.Label, err)
			}
			cond = s
		}

		m := membershipCTE{
			Membership: Membership{Name: "member_" + rules.SafeLabel(res.Group.Label), Group: res.Group},
			cond:       cond,
		}
		c.members[res.Group.ID] = m
		c.ctes = append(c.ctes, m)
		c.query.Memberships = append(c.query.Memberships, m.Membership)
	}
	return nil
}

func (c *compilation) compileTargets(targets []catalog.Target) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.ID] {
			return ruleError(t.Rule, "target %s is produced twice; merge the rules or change their columns", t.ID)
		}
		seen[t.ID] = true

		pred, err := failure(t)
		if err != nil {
			return err
		}
		if cond := t.Conditional(); cond != nil {
			g, _ := c.suite.FindGroup(cond.DerivedGroup)
			m := c.members[g.ID]
			pred = sqlgen.AllOf(pred, sqlgen.InSubquery{
				X:        sqlgen.Col{Name: c.key},
				Column:   c.key,
				Relation: m.Name,
				Negate:   cond.Membership != rules.Include,
			})
		}

		s, err := c.r.Render(sqlgen.Status{Cond: pred})
		if err != nil {
			return ruleError(t.Rule, "target %s: %v", t.ID, err)
		}
		c.targets = append(c.targets, column{expr: s, alias: t.ID})
		c.query.Targets = append(c.query.Targets, t)
	}
	return nil
}

func (c *compilation) compileDerived(resolutions []catalog.Resolution) error {
	for _, res := range resolutions {
		if len(res.MissingIDs) > 0 {
			c.warn("derived group %q references unknown ids %v", res.Group.Label, res.MissingIDs)
		}

		expr := sqlgen.QuoteString(sqlgen.Pass)
		if res.Empty() {
			c.warn("derived group %q has no constituents; it always passes", res.Group.Label)
		} else {
			terms := make([]sqlgen.Expr, 0, len(res.Targets)+len(res.Embedded))
			for _, t := range res.Targets {
				terms = append(terms, sqlgen.Compare{Op: "=", L: sqlgen.Ident{Name: t.ID}, R: sqlgen.Lit{Value: sqlgen.Fail}})
			}
			for _, cv := range res.Embedded {
				e, err := embeddedFailure(cv)
				if err != nil {
					return err
				}
				terms = append(terms, e)
			}
			s, err := c.r.Render(sqlgen.Status{Cond: sqlgen.AnyOf(terms...)})
			if err != nil {
				return suiteError("derived group %q: %v", res.Group.Label, err)
			}
			expr = s
		}
		c.derived = append(c.derived, column{expr: expr, alias: res.Group.Column()})
		c.query.Derived = append(c.query.Derived, res)
	}
	return nil
}

// dedupe concatenates lists, keeping the first occurrence of each name.
func dedupe(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if s != "" && !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}
