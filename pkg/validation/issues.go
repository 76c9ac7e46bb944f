package validation

import (
	"fmt"
	"strings"
)

// Canonical issue codes reported by the validator. Every issue carries one of
// these plus a path into the candidate structure.
const (
	CodeUnknownKey      = "UNKNOWN_KEY"
	CodeMissingField    = "MISSING_FIELD"
	CodeInvalidType     = "INVALID_TYPE"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeEmptyList       = "EMPTY_LIST"
	CodeVersionMismatch = "VERSION_MISMATCH"
	CodeUnknownVariant  = "UNKNOWN_VARIANT"
	CodeUnresolvedRef   = "UNRESOLVED_REFERENCE"
)

// ErrCode is the consolidated error code carried by Error.
const ErrCode = "SCHEMA_VALIDATION_FAILED"

// Issue is a single validation finding with a canonical code and a path
// addressing the offending location (e.g. "transforms.operations[2].sort.keys").
type Issue struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s at %s: %s", i.Code, i.Path, i.Message)
}

// Error aggregates every issue found in a candidate document. Parse returns
// it whenever validation fails; no partial template is ever returned.
type Error struct {
	Issues []Issue
}

// Code returns the consolidated machine-readable code.
func (e *Error) Code() string { return ErrCode }

func (e *Error) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "validation: template document is invalid"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return fmt.Sprintf("validation: template document is invalid: %s", strings.Join(parts, "; "))
}
