// Package grain maps validated columns to the granularity of the source table
// they come from, and picks the minimal key columns needed to explain a failure.
package grain

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownTable is the grain name reported for columns without mapping data.
const UnknownTable = "UNKNOWN"

//go:embed default_grains.yaml
var defaultGrains []byte

// Grain is the uniqueness level of a source table.
type Grain struct {
	Name string   `json:"name"`
	Keys []string `json:"keys"`
}

// Table holds grain definitions and the column to table mapping.
// A Table is read-only after construction.
type Table struct {
	recordKey string
	grains    map[string][]string
	columns   map[string]string
}

type tableFile struct {
	RecordKey string              `yaml:"record_key"`
	Grains    map[string][]string `yaml:"grains"`
	Tables    map[string][]string `yaml:"tables"`
}

// Default returns the built-in mapping for the product master view.
func Default() *Table {
	t, err := Parse(defaultGrains)
	if err != nil {
		panic(fmt.Sprintf("grain: embedded mapping is invalid: %v", err))
	}
	return t
}

// Load reads a grain mapping file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grain file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a grain mapping document.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse grain mapping: %w", err)
	}
	if strings.TrimSpace(f.RecordKey) == "" {
		return nil, fmt.Errorf("grain mapping: record_key is required")
	}

	t := &Table{
		recordKey: f.RecordKey,
		grains:    make(map[string][]string, len(f.Grains)),
		columns:   make(map[string]string),
	}
	for name, keys := range f.Grains {
		if len(keys) == 0 {
			return nil, fmt.Errorf("grain mapping: grain %q has no key columns", name)
		}
		t.grains[name] = keys
	}
	for table, cols := range f.Tables {
		if _, ok := t.grains[table]; !ok {
			return nil, fmt.Errorf("grain mapping: table %q has no grain definition", table)
		}
		for _, c := range cols {
			if prev, dup := t.columns[c]; dup && prev != table {
				return nil, fmt.Errorf("grain mapping: column %q mapped to both %s and %s", c, prev, table)
			}
			t.columns[c] = table
		}
	}
	return t, nil
}

// RecordKey is the column identifying one record of the validated relation.
func (t *Table) RecordKey() string {
	return t.recordKey
}

// WithRecordKey returns a copy whose fallback grain uses key as record key.
func (t *Table) WithRecordKey(key string) *Table {
	if key == "" || key == t.recordKey {
		return t
	}
	return &Table{recordKey: key, grains: t.grains, columns: t.columns}
}

// GrainForColumn returns the grain of the table column comes from. Unknown
// columns get the record-key grain.
func (t *Table) GrainForColumn(column string) Grain {
	table, ok := t.columns[column]
	if !ok {
		return Grain{Name: UnknownTable, Keys: []string{t.recordKey}}
	}
	return Grain{Name: table, Keys: append([]string(nil), t.grains[table]...)}
}

// GrainForColumns returns the most granular grain among the columns' grains,
// i.e. the one with the most key columns (the first one on ties). When the
// columns span several tables the name joins the sorted table names with "+".
func (t *Table) GrainForColumns(columns []string) Grain {
	if len(columns) == 0 {
		return Grain{Name: UnknownTable, Keys: []string{t.recordKey}}
	}

	var best Grain
	tables := make(map[string]bool)
	for _, c := range columns {
		g := t.GrainForColumn(c)
		tables[g.Name] = true
		if len(g.Keys) > len(best.Keys) {
			best = g
		}
	}

	if len(tables) > 1 {
		names := make([]string, 0, len(tables))
		for n := range tables {
			names = append(names, n)
		}
		sort.Strings(names)
		best.Name = strings.Join(names, "+")
	}
	return best
}

// ContextColumns returns the union of key columns needed to explain a failure
// on any of columns: the record key first when present, the rest sorted.
func (t *Table) ContextColumns(columns []string) []string {
	set := make(map[string]bool)
	for _, c := range columns {
		for _, k := range t.GrainForColumn(c).Keys {
			set[k] = true
		}
	}

	out := make([]string, 0, len(set))
	if set[t.recordKey] {
		out = append(out, t.recordKey)
		delete(set, t.recordKey)
	}
	rest := make([]string, 0, len(set))
	for k := range set {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// ValidateGrainExists reports whether every key column is available.
func ValidateGrainExists(keys, available []string) bool {
	have := toSet(available)
	for _, k := range keys {
		if !have[k] {
			return false
		}
	}
	return true
}

// FallbackGrain reduces ideal to the key columns present in available. The
// record key is kept whenever it is available; if it is not, nothing can
// identify a record and the result is empty.
func (t *Table) FallbackGrain(ideal, available []string) []string {
	have := toSet(available)
	if !have[t.recordKey] {
		return []string{}
	}
	out := make([]string, 0, len(ideal))
	for _, k := range ideal {
		if have[k] {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return []string{t.recordKey}
	}
	return out
}

func toSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}
