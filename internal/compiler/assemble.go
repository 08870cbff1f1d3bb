package compiler

import (
	"fmt"
	"strings"
)

const indent = "    "

// assemble lays out the final query text. The layout is stable so compiled
// queries can be diffed and stored.
func (c *compilation) assemble() string {
	var b strings.Builder
	rel := c.suite.Source.Relation
	key := c.opts.Dialect.QuoteIdent(c.key)

	b.WriteString("WITH base_data AS (\n")
	b.WriteString(indent + "SELECT")
	if c.suite.Source.Distinct {
		b.WriteString(" DISTINCT")
	}
	b.WriteString("\n")
	for i, col := range c.query.Projection {
		b.WriteString(indent + indent + c.opts.Dialect.QuoteIdent(col))
		if i < len(c.query.Projection)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%sFROM %s\n", indent, rel)
	c.writeWhere(&b, indent)
	if c.opts.RowLimit > 0 {
		fmt.Fprintf(&b, "%sLIMIT %d\n", indent, c.opts.RowLimit)
	}
	b.WriteString("),\n")

	// Membership reads base_data so window conditions count the same rows
	// the target columns see.
	for _, m := range c.ctes {
		fmt.Fprintf(&b, "%s AS (\n", m.Name)
		fmt.Fprintf(&b, "%sSELECT DISTINCT %s\n", indent, key)
		fmt.Fprintf(&b, "%sFROM (\n", indent)
		fmt.Fprintf(&b, "%sSELECT %s, CASE WHEN %s THEN 1 ELSE 0 END AS in_group\n", indent+indent, key, m.cond)
		fmt.Fprintf(&b, "%sFROM base_data\n", indent+indent)
		fmt.Fprintf(&b, "%s) scoped\n", indent)
		fmt.Fprintf(&b, "%sWHERE in_group = 1 AND %s IS NOT NULL\n", indent, key)
		b.WriteString("),\n")
	}

	b.WriteString("target_results AS (\n")
	b.WriteString(indent + "SELECT\n")
	b.WriteString(indent + indent + "*")
	writeColumns(&b, indent+indent, c.targets)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%sFROM base_data\n", indent)
	b.WriteString(")\n")

	if len(c.derived) == 0 {
		b.WriteString("SELECT * FROM target_results")
		return b.String()
	}
	b.WriteString("SELECT\n")
	b.WriteString(indent + "*")
	writeColumns(&b, indent, c.derived)
	b.WriteString("\nFROM target_results")
	return b.String()
}

func (c *compilation) writeWhere(b *strings.Builder, prefix string) {
	for i, f := range c.filters {
		if i == 0 {
			fmt.Fprintf(b, "%sWHERE %s\n", prefix, f)
			continue
		}
		fmt.Fprintf(b, "%s  AND %s\n", prefix, f)
	}
}

func writeColumns(b *strings.Builder, prefix string, cols []column) {
	for _, col := range cols {
		fmt.Fprintf(b, ",\n%s%s AS %s", prefix, col.expr, col.alias)
	}
}
