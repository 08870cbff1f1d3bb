package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dqc/internal/catalog"
	"github.com/roach88/dqc/internal/rules"
)

// builder validates a suite document and builds the rule model in the same
// walk. It never stops at the first problem: every error is collected so a
// user sees all of them in one pass.
type builder struct {
	errs []ValidationError
	// noLines drops line numbers that do not point into the user's file,
	// e.g. for documents re-encoded from CUE.
	noLines bool
}

func (b *builder) fail(code, field string, n *yaml.Node, format string, args ...any) {
	ve := ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
	if !b.noLines {
		ve.Line = line(n)
	}
	b.errs = append(b.errs, ve)
}

// build returns the suite and the validation errors found. The suite is only
// meaningful when no errors were reported.
func (b *builder) build(root *yaml.Node) *rules.Suite {
	doc := resolve(root)
	if !isMapping(doc) {
		b.fail(ErrDocumentShape, "document", doc, "configuration must be a mapping with metadata, data_source and validations")
		return nil
	}

	suite := &rules.Suite{IndexColumn: rules.DefaultIndexColumn}
	dataSourceName := b.metadata(doc, suite)
	b.source(doc, suite, dataSourceName)
	b.validations(doc, suite)
	b.derivedStatuses(doc, suite)
	b.derivedLists(doc, suite)
	b.crossReferences(suite)
	return suite
}

func (b *builder) metadata(doc *yaml.Node, suite *rules.Suite) string {
	md := lookup(doc, "metadata")
	if md == nil {
		b.fail(ErrMetadata, "metadata", doc, "metadata section is required")
		return ""
	}
	if !isMapping(md) {
		b.fail(ErrMetadata, "metadata", md, "metadata must be a mapping")
		return ""
	}

	name, ok := asString(lookup(md, "suite_name"))
	if !ok || strings.TrimSpace(name) == "" {
		b.fail(ErrSuiteName, "metadata.suite_name", md, "suite_name is required and must be a non-empty string")
	}
	suite.Name = name

	dataSource, ok := asString(lookup(md, "data_source"))
	if !ok || strings.TrimSpace(dataSource) == "" {
		b.fail(ErrDataSource, "metadata.data_source", md, "data_source is required and must be a non-empty string")
	}

	if n := lookup(md, "index_column"); n != nil && !isNull(n) {
		col, ok := asString(n)
		if !ok || strings.TrimSpace(col) == "" {
			b.fail(ErrMetadata, "metadata.index_column", n, "index_column must be a non-empty string")
		} else {
			suite.IndexColumn = col
		}
	}
	return dataSource
}

// source reads data_source. Without data_source.table the relation falls back
// to metadata.data_source.
func (b *builder) source(doc *yaml.Node, suite *rules.Suite, fallback string) {
	suite.Source.Relation = fallback

	ds := lookup(doc, "data_source")
	if ds == nil || isNull(ds) {
		return
	}
	if !isMapping(ds) {
		b.fail(ErrInvalidSourceKey, "data_source", ds, "data_source must be a mapping")
		return
	}

	if n := lookup(ds, "table"); n != nil {
		table, ok := asString(n)
		if !ok || strings.TrimSpace(table) == "" {
			b.fail(ErrSourceRelation, "data_source.table", n, "table must be a non-empty string")
		} else {
			suite.Source.Relation = table
		}
	}

	if n := lookup(ds, "distinct"); n != nil && !isNull(n) {
		v, ok := asBool(n)
		if !ok {
			b.fail(ErrInvalidSourceKey, "data_source.distinct", n, "distinct must be true or false")
		}
		suite.Source.Distinct = v
	}

	if n := lookup(ds, "filters"); n != nil && !isNull(n) {
		if !isMapping(n) {
			b.fail(ErrInvalidFilter, "data_source.filters", n, "filters must be a mapping of column to condition")
			return
		}
		for _, f := range fields(n) {
			cond, err := parseFilter(f.node)
			if err != nil {
				b.fail(ErrInvalidFilter, "data_source.filters."+f.key, f.node, "%v", err)
				continue
			}
			suite.Source.Filters = append(suite.Source.Filters, rules.Filter{Column: f.key, Cond: cond})
		}
	}
}

func (b *builder) validations(doc *yaml.Node, suite *rules.Suite) {
	v := lookup(doc, "validations")
	switch {
	case v == nil:
		b.fail(ErrValidationsList, "validations", doc, "validations section is required")
		return
	case !isSequence(v):
		b.fail(ErrValidationsList, "validations", v, "validations must be a list")
		return
	case len(v.Content) == 0:
		b.fail(ErrValidationsList, "validations", v, "validations must contain at least one rule")
		return
	}

	for i, item := range v.Content {
		if r := b.rule(i, resolve(item)); r != nil {
			suite.Rules = append(suite.Rules, r)
		}
	}
}

func (b *builder) rule(i int, n *yaml.Node) rules.Rule {
	path := fmt.Sprintf("validations[%d]", i)
	if !isMapping(n) {
		b.fail(ErrRuleShape, path, n, "validation must be a mapping")
		return nil
	}

	typeNode := lookup(n, "type")
	typ, ok := asString(typeNode)
	if typeNode == nil || !ok || strings.TrimSpace(typ) == "" {
		b.fail(ErrMissingType, path+".type", n, "validation type is required")
		return nil
	}
	kind := rules.Kind(typ)
	if !kind.IsKnown() {
		b.fail(ErrUnknownType, path+".type", typeNode, "unknown validation type %q", typ)
		return nil
	}

	rr := &ruleReader{b: b, n: n, path: path}
	common := rules.Common{Index: i, Conditional: rr.conditional()}
	if desc, ok := asString(lookup(n, "description")); ok {
		common.Description = desc
	}

	r := rr.read(kind, common)
	if rr.failed {
		return nil
	}
	return r
}

func (b *builder) derivedStatuses(doc *yaml.Node, suite *rules.Suite) {
	n := lookup(doc, "derived_statuses")
	if n == nil || isNull(n) {
		return
	}
	if !isSequence(n) {
		b.fail(ErrDerivedStatus, "derived_statuses", n, "derived_statuses must be a list")
		return
	}

	var groups []rules.DerivedGroup
	usedIDs := make(map[string]bool)
	columns := make(map[string]string)

	for i, item := range n.Content {
		item = resolve(item)
		path := fmt.Sprintf("derived_statuses[%d]", i)
		g, ok := b.derivedGroup(path, item)
		if !ok {
			continue
		}
		if prev, dup := columns[g.Column()]; dup {
			b.fail(ErrDuplicateStatus, path+".status", item, "status %q produces column %s already used by %q", g.Label, g.Column(), prev)
			continue
		}
		columns[g.Column()] = g.Label
		if g.ID != "" {
			if usedIDs[g.ID] {
				b.fail(ErrDuplicateStatus, path+".expectation_id", item, "expectation_id %q is used by another derived status", g.ID)
				continue
			}
			usedIDs[g.ID] = true
		}
		groups = append(groups, g)
	}

	// Auto ids are assigned after every explicit id is known.
	for _, g := range groups {
		if g.ID == "" {
			g.ID = uniqueGroupID(g.Label, usedIDs)
			usedIDs[g.ID] = true
		}
		suite.DerivedGroups = append(suite.DerivedGroups, g)
	}
}

// uniqueGroupID derives exp_derived_<label>, suffixing _2, _3... on collision.
func uniqueGroupID(label string, used map[string]bool) string {
	base := rules.DefaultGroupID(label)
	id := base
	for n := 2; used[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

func (b *builder) derivedGroup(path string, n *yaml.Node) (rules.DerivedGroup, bool) {
	var g rules.DerivedGroup
	if !isMapping(n) {
		b.fail(ErrDerivedStatus, path, n, "derived status must be a mapping")
		return g, false
	}
	ok := true

	label, isStr := asString(lookup(n, "status"))
	if !isStr || strings.TrimSpace(label) == "" {
		b.fail(ErrDerivedStatus, path+".status", n, "status label is required")
		ok = false
	} else if rules.SafeLabel(label) == "" {
		b.fail(ErrDerivedStatus, path+".status", n, "status %q has no letters or digits to name a column", label)
		ok = false
	}
	g.Label = label

	if idNode := lookup(n, "expectation_id"); idNode != nil && !isNull(idNode) {
		id, isStr := asString(idNode)
		if !isStr || strings.TrimSpace(id) == "" {
			b.fail(ErrDerivedStatus, path+".expectation_id", idNode, "expectation_id must be a non-empty string")
			ok = false
		}
		g.ID = id
	}

	colsNode := lookup(n, "columns")
	idsNode := lookup(n, "expectation_ids")
	if colsNode != nil {
		cols, isList := asStringList(colsNode)
		if !isList || len(cols) == 0 {
			b.fail(ErrDerivedStatus, path+".columns", colsNode, "columns must be a non-empty list of column names")
			ok = false
		}
		g.Columns = cols
	}
	if idsNode != nil {
		ids, isList := asStringList(idsNode)
		if !isList || len(ids) == 0 {
			b.fail(ErrDerivedStatus, path+".expectation_ids", idsNode, "expectation_ids must be a non-empty list of ids")
			ok = false
		}
		g.ExpectationIDs = ids
	}
	if typeNode := lookup(n, "expectation_type"); typeNode != nil && !isNull(typeNode) {
		typ, _ := asString(typeNode)
		if !rules.Kind(typ).IsKnown() {
			b.fail(ErrDerivedStatus, path+".expectation_type", typeNode, "unknown expectation_type %q", typ)
			ok = false
		}
		g.Kind = rules.Kind(typ)
	}

	if rulesNode := lookup(n, "rules"); rulesNode != nil && !isNull(rulesNode) {
		sets, err := columnValueSets(rulesNode)
		if err != nil {
			b.fail(ErrDerivedStatus, path+".rules", rulesNode, "%v", err)
			ok = false
		}
		g.Embedded = sets
	}

	switch {
	case colsNode != nil && idsNode != nil:
		b.fail(ErrDerivedStatus, path, n, "use either columns or expectation_ids, not both")
		ok = false
	case colsNode == nil && idsNode == nil && len(g.Embedded) == 0:
		b.fail(ErrDerivedStatus, path, n, "derived status needs columns, expectation_ids or rules")
		ok = false
	}
	return g, ok
}

func (b *builder) derivedLists(doc *yaml.Node, suite *rules.Suite) {
	n := lookup(doc, "derived_lists")
	if n == nil || isNull(n) {
		return
	}
	if !isSequence(n) {
		b.fail(ErrDerivedList, "derived_lists", n, "derived_lists must be a list")
		return
	}

	labels := make(map[string]bool, len(suite.DerivedGroups))
	for _, g := range suite.DerivedGroups {
		labels[g.Label] = true
	}

	for i, item := range n.Content {
		item = resolve(item)
		path := fmt.Sprintf("derived_lists[%d]", i)
		if !isMapping(item) {
			b.fail(ErrDerivedList, path, item, "derived list must be a mapping")
			continue
		}
		var l rules.DerivedList
		ok := true

		name, isStr := asString(lookup(item, "name"))
		if !isStr || strings.TrimSpace(name) == "" {
			b.fail(ErrDerivedList, path+".name", item, "name is required")
			ok = false
		}
		l.Name = name
		l.Description, _ = asString(lookup(item, "description"))

		excl, isList := asStringList(lookup(item, "exclude_statuses"))
		if !isList || len(excl) == 0 {
			b.fail(ErrDerivedList, path+".exclude_statuses", item, "exclude_statuses must be a non-empty list of status labels")
			ok = false
		}
		for _, s := range excl {
			if !labels[s] {
				b.fail(ErrDerivedList, path+".exclude_statuses", item, "unknown derived status %q", s)
				ok = false
			}
		}
		l.ExcludeStatuses = excl

		if ok {
			suite.DerivedLists = append(suite.DerivedLists, l)
		}
	}
}

// crossReferences checks references between rules and derived groups and
// target id uniqueness. It runs on the parts that built cleanly.
func (b *builder) crossReferences(suite *rules.Suite) {
	for _, r := range suite.Rules {
		meta := r.Meta()
		if meta.Conditional == nil {
			continue
		}
		if _, ok := suite.FindGroup(meta.Conditional.DerivedGroup); !ok {
			b.fail(ErrUnknownScope, fmt.Sprintf("validations[%d].conditional_on.derived_group", meta.Index), nil,
				"derived group %q is not defined in derived_statuses", meta.Conditional.DerivedGroup)
		}
	}

	seen := make(map[string]catalog.Target)
	for _, t := range catalog.Expand(suite) {
		if prev, dup := seen[t.ID]; dup {
			b.fail(ErrDuplicateTarget, fmt.Sprintf("validations[%d]", t.RuleIndex), nil,
				"%s on %s duplicates validations[%d] (target %s)", t.Kind, strings.Join(t.Columns, ", "), prev.RuleIndex, t.ID)
			continue
		}
		seen[t.ID] = t
	}
}

// columnValueSets reads a mapping of column -> list of values.
func columnValueSets(n *yaml.Node) ([]rules.ColumnValues, error) {
	if !isMapping(n) {
		return nil, fmt.Errorf("must be a mapping of column to allowed values")
	}
	entries := fields(n)
	if len(entries) == 0 {
		return nil, fmt.Errorf("must not be empty")
	}
	out := make([]rules.ColumnValues, 0, len(entries))
	for _, f := range entries {
		vals, err := asValueList(f.node)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.key, err)
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("column %s: value list must not be empty", f.key)
		}
		out = append(out, rules.ColumnValues{Column: f.key, Values: vals})
	}
	return out, nil
}
