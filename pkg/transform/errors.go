package transform

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-invoicegen/pkg/validation"
)

// Canonical evaluation error codes.
const (
	CodeSchemaValidationFailed  = "SCHEMA_VALIDATION_FAILED"
	CodeMissingBinding          = "MISSING_BINDING"
	CodeUnknownStrategy         = "UNKNOWN_STRATEGY"
	CodeStrategyExecutionFailed = "STRATEGY_EXECUTION_FAILED"
	CodeInvalidTransformInput   = "INVALID_TRANSFORM_INPUT"
	CodeInvalidOperand          = "INVALID_OPERAND"
)

// Error is the structured evaluation failure: a canonical code, the
// operation that raised it when known, and per-issue detail for multi-error
// contexts. Stages fail fast; no partial result accompanies an Error.
type Error struct {
	Code      string
	Operation string
	Binding   string
	Message   string
	Issues    []validation.Issue
	Err       error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("transform: ")
	sb.WriteString(e.Code)
	if e.Operation != "" {
		fmt.Fprintf(&sb, " in %s", e.Operation)
	}
	if e.Binding != "" {
		fmt.Fprintf(&sb, " (binding %q)", e.Binding)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	for _, issue := range e.Issues {
		sb.WriteString("; ")
		sb.WriteString(issue.String())
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// missingBinding travels out of scope resolution so the evaluator can name
// the binding and the referencing operation in the surfaced Error.
type missingBinding struct {
	name string
}

func (e *missingBinding) Error() string {
	return fmt.Sprintf("binding %q is not declared", e.name)
}

// invalidOperand marks an unresolved aggregate reference inside an
// expression scope.
type invalidOperand struct {
	ref string
}

func (e *invalidOperand) Error() string {
	return fmt.Sprintf("aggregate reference %q does not resolve", e.ref)
}
