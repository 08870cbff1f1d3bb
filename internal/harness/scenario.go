package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one suite checked against one data set.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Suite is the path of the suite file, relative to the scenario file
	// once loaded.
	Suite string `yaml:"suite"`

	Data Data `yaml:"data"`

	// Expect maps a status column to the expected PASS/FAIL per record key.
	// Records not listed are not checked.
	Expect map[string]map[string]string `yaml:"expect,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Data is the relation loaded into the warehouse before the query runs.
type Data struct {
	Relation string   `yaml:"relation,omitempty"`
	Columns  []string `yaml:"columns"`
	Rows     [][]any  `yaml:"rows"`
}

// Assertion checks an aggregate outcome of the run.
type Assertion struct {
	Type string `yaml:"type"`

	// ID is a target id or a derived column (unexpected_count).
	ID string `yaml:"id,omitempty"`

	// List is a derived list name (list_members).
	List string `yaml:"list,omitempty"`

	Count *int     `yaml:"count,omitempty"`
	Keys  []string `yaml:"keys,omitempty"`
	Text  string   `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertUnexpectedCount = "unexpected_count"
	AssertFailedRecords   = "failed_records"
	AssertListMembers     = "list_members"
	AssertWarningContains = "warning_contains"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos do not silently disable a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Suite != "" && !filepath.IsAbs(scenario.Suite) {
		scenario.Suite = filepath.Join(filepath.Dir(path), scenario.Suite)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Suite == "" {
		return fmt.Errorf("suite is required")
	}
	if len(s.Data.Columns) == 0 {
		return fmt.Errorf("data.columns is required and must be non-empty")
	}
	for i, row := range s.Data.Rows {
		if len(row) != len(s.Data.Columns) {
			return fmt.Errorf("data.rows[%d] has %d values, want %d", i, len(row), len(s.Data.Columns))
		}
	}
	if len(s.Expect) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("at least one expect entry or assertion is required")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertUnexpectedCount:
		if a.ID == "" || a.Count == nil {
			return fmt.Errorf("%s needs id and count", a.Type)
		}
	case AssertFailedRecords:
		if a.Count == nil {
			return fmt.Errorf("%s needs count", a.Type)
		}
	case AssertListMembers:
		if a.List == "" {
			return fmt.Errorf("%s needs list", a.Type)
		}
	case AssertWarningContains:
		if a.Text == "" {
			return fmt.Errorf("%s needs text", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
