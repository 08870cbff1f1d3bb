package compiler

import (
	"fmt"

	"github.com/roach88/dqc/internal/rules"
)

// CompileError reports a rule that cannot be translated into a predicate.
// Compilation stops at the first one.
type CompileError struct {
	RuleIndex int
	Kind      rules.Kind
	Message   string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("compile: %s", e.Message)
	}
	return fmt.Sprintf("compile: validations[%d] (%s): %s", e.RuleIndex, e.Kind, e.Message)
}

func ruleError(r rules.Rule, format string, args ...any) *CompileError {
	return &CompileError{
		RuleIndex: r.Meta().Index,
		Kind:      r.Kind(),
		Message:   fmt.Sprintf(format, args...),
	}
}

func suiteError(format string, args ...any) *CompileError {
	return &CompileError{RuleIndex: -1, Message: fmt.Sprintf(format, args...)}
}
