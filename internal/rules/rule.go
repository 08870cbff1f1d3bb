package rules

// Kind names a rule variant. Values are the configuration "type" strings.
type Kind string

const (
	KindNotNull               Kind = "expect_column_values_to_not_be_null"
	KindValueInSet            Kind = "expect_column_values_to_be_in_set"
	KindValueNotInSet         Kind = "expect_column_values_to_not_be_in_set"
	KindRegexMatch            Kind = "expect_column_values_to_match_regex"
	KindRegexNotMatch         Kind = "expect_column_values_to_not_match_regex"
	KindPairEqual             Kind = "expect_column_pair_values_to_be_equal"
	KindPairGreaterThan       Kind = "expect_column_pair_values_a_to_be_greater_than_b"
	KindLengthEqual           Kind = "expect_column_value_lengths_to_equal"
	KindLengthBetween         Kind = "expect_column_value_lengths_to_be_between"
	KindNumericBetween        Kind = "expect_column_values_to_be_between"
	KindUnique                Kind = "expect_column_values_to_be_unique"
	KindCompoundUnique        Kind = "expect_compound_columns_to_be_unique"
	KindConditionalRequired   Kind = "custom:conditional_required"
	KindConditionalValueInSet Kind = "custom:conditional_value_in_set"
)

// Kinds lists every supported kind in a fixed order.
var Kinds = []Kind{
	KindNotNull,
	KindValueInSet,
	KindValueNotInSet,
	KindRegexMatch,
	KindRegexNotMatch,
	KindPairEqual,
	KindPairGreaterThan,
	KindLengthEqual,
	KindLengthBetween,
	KindNumericBetween,
	KindUnique,
	KindCompoundUnique,
	KindConditionalRequired,
	KindConditionalValueInSet,
}

// IsKnown reports whether k is one of the supported kinds.
func (k Kind) IsKnown() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Rule is one typed validation rule.
//
// This is a sealed interface: only the variants in this package implement it,
// so compiler and interpreter switches over it are complete.
type Rule interface {
	Kind() Kind
	Meta() Common
	ruleNode()
}

// Common carries the attributes every rule variant shares.
type Common struct {
	// Index is the rule's position in the configuration's validations list.
	Index       int
	Description string
	Conditional *Conditional
}

// Meta returns the shared attributes; embedding Common gives every variant the method.
func (c Common) Meta() Common { return c }

// NotNull fails a row when any of Columns is NULL.
type NotNull struct {
	Common
	Columns []string
}

// ValueInSet checks each column against its own allowed set.
type ValueInSet struct {
	Common
	Sets []ColumnValues
}

// ValueNotInSet fails a row whose Column holds one of Values.
type ValueNotInSet struct {
	Common
	Column string
	Values []Value
}

// RegexMatch requires every column to fully match Pattern.
type RegexMatch struct {
	Common
	Columns []string
	Pattern string
}

// RegexNotMatch is the inverse of RegexMatch.
type RegexNotMatch struct {
	Common
	Columns []string
	Pattern string
}

// PairEqual compares two columns of the same row.
type PairEqual struct {
	Common
	ColumnA string
	ColumnB string
}

// PairGreaterThan requires ColumnA > ColumnB, or >= when OrEqual is set.
type PairGreaterThan struct {
	Common
	ColumnA string
	ColumnB string
	OrEqual bool
}

// LengthEqual requires each column to be exactly Length characters.
type LengthEqual struct {
	Common
	Columns []string
	Length  int
}

// LengthBetween bounds the character length of each column, inclusive.
type LengthBetween struct {
	Common
	Columns []string
	Min     int
	Max     int
}

// NumericBetween bounds are inclusive unless the matching Strict flag is set.
type NumericBetween struct {
	Common
	Columns   []string
	Min       float64
	Max       float64
	StrictMin bool
	StrictMax bool
}

// Unique checks each column independently for duplicates.
type Unique struct {
	Common
	Columns []string
}

// CompoundUnique checks the combination of Columns for duplicates.
type CompoundUnique struct {
	Common
	Columns []string
}

// ConditionalRequired requires RequiredColumn whenever ConditionColumn holds
// one of ConditionValues.
type ConditionalRequired struct {
	Common
	ConditionColumn string
	ConditionValues []Value
	RequiredColumn  string
}

// ConditionalValueInSet restricts TargetColumn to AllowedValues whenever
// ConditionColumn holds one of ConditionValues.
type ConditionalValueInSet struct {
	Common
	ConditionColumn string
	ConditionValues []Value
	TargetColumn    string
	AllowedValues   []Value
}

// Kind implements Rule.
func (NotNull) Kind() Kind               { return KindNotNull }
func (ValueInSet) Kind() Kind            { return KindValueInSet }
func (ValueNotInSet) Kind() Kind         { return KindValueNotInSet }
func (RegexMatch) Kind() Kind            { return KindRegexMatch }
func (RegexNotMatch) Kind() Kind         { return KindRegexNotMatch }
func (PairEqual) Kind() Kind             { return KindPairEqual }
func (PairGreaterThan) Kind() Kind       { return KindPairGreaterThan }
func (LengthEqual) Kind() Kind           { return KindLengthEqual }
func (LengthBetween) Kind() Kind         { return KindLengthBetween }
func (NumericBetween) Kind() Kind        { return KindNumericBetween }
func (Unique) Kind() Kind                { return KindUnique }
func (CompoundUnique) Kind() Kind        { return KindCompoundUnique }
func (ConditionalRequired) Kind() Kind   { return KindConditionalRequired }
func (ConditionalValueInSet) Kind() Kind { return KindConditionalValueInSet }

func (NotNull) ruleNode()               {}
func (ValueInSet) ruleNode()            {}
func (ValueNotInSet) ruleNode()         {}
func (RegexMatch) ruleNode()            {}
func (RegexNotMatch) ruleNode()         {}
func (PairEqual) ruleNode()             {}
func (PairGreaterThan) ruleNode()       {}
func (LengthEqual) ruleNode()           {}
func (LengthBetween) ruleNode()         {}
func (NumericBetween) ruleNode()        {}
func (Unique) ruleNode()                {}
func (CompoundUnique) ruleNode()        {}
func (ConditionalRequired) ruleNode()   {}
func (ConditionalValueInSet) ruleNode() {}

// Columns returns the columns a rule reads, in declaration order.
func Columns(r Rule) []string {
	switch rule := r.(type) {
	case NotNull:
		return rule.Columns
	case ValueInSet:
		cols := make([]string, 0, len(rule.Sets))
		for _, s := range rule.Sets {
			cols = append(cols, s.Column)
		}
		return cols
	case ValueNotInSet:
		return []string{rule.Column}
	case RegexMatch:
		return rule.Columns
	case RegexNotMatch:
		return rule.Columns
	case PairEqual:
		return []string{rule.ColumnA, rule.ColumnB}
	case PairGreaterThan:
		return []string{rule.ColumnA, rule.ColumnB}
	case LengthEqual:
		return rule.Columns
	case LengthBetween:
		return rule.Columns
	case NumericBetween:
		return rule.Columns
	case Unique:
		return rule.Columns
	case CompoundUnique:
		return rule.Columns
	case ConditionalRequired:
		return []string{rule.ConditionColumn, rule.RequiredColumn}
	case ConditionalValueInSet:
		return []string{rule.ConditionColumn, rule.TargetColumn}
	default:
		return nil
	}
}
