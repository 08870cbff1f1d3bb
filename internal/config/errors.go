package config

import (
	"fmt"
	"strings"
)

// Validation error codes (E100-E199)
const (
	// Document errors (E100-E109)
	ErrDocumentShape    = "E100" // document is not a mapping, or not parseable
	ErrMetadata         = "E101" // metadata missing or not a mapping
	ErrSuiteName        = "E102" // metadata.suite_name required
	ErrDataSource       = "E103" // metadata.data_source required
	ErrSourceRelation   = "E104" // no relation to read from
	ErrInvalidFilter    = "E105" // data_source.filters entry malformed
	ErrInvalidSourceKey = "E106" // data_source field has the wrong type

	// Rule errors (E110-E119)
	ErrValidationsList = "E110" // validations missing, not a list, or empty
	ErrRuleShape       = "E111" // rule entry is not a mapping
	ErrMissingType     = "E112" // rule has no type
	ErrUnknownType     = "E113" // rule type outside the supported set
	ErrMissingField    = "E114" // required field absent for the rule type
	ErrFieldType       = "E115" // field present with the wrong type
	ErrBounds          = "E116" // malformed or inverted bounds
	ErrDuplicateTarget = "E117" // two rules expand to the same target id

	// Derived construct errors (E120-E129)
	ErrDerivedStatus   = "E120" // derived status malformed
	ErrUnknownScope    = "E121" // conditional_on references no derived group
	ErrMembership      = "E122" // membership is not include/exclude
	ErrDerivedList     = "E123" // derived list malformed or references unknown status
	ErrDuplicateStatus = "E124" // two derived statuses share an id or column name
)

// ValidationError represents one configuration problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// SchemaError carries every validation problem found in one document.
type SchemaError struct {
	Path   string
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	fmt.Fprintf(&b, "configuration has %d error(s)", len(e.Errors))
	for _, ve := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(ve.Error())
	}
	return b.String()
}

// Codes returns the error codes in report order.
func (e *SchemaError) Codes() []string {
	codes := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		codes[i] = ve.Code
	}
	return codes
}
