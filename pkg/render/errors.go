package render

import "fmt"

// Render failure codes. Every failure names the offending node so preview
// and PDF callers report the same structured error identically.
const (
	CodeUnknownStyleClass = "UNKNOWN_STYLE_CLASS"
	CodeUnknownStyleToken = "UNKNOWN_STYLE_TOKEN"
	CodeUnresolvedBinding = "UNRESOLVED_BINDING"
	CodeUnknownCollection = "UNKNOWN_COLLECTION"
	CodeMissingTotal      = "MISSING_TOTAL"
	CodeUnknownNodeKind   = "UNKNOWN_NODE_KIND"
	CodeMissingEvaluation = "MISSING_EVALUATION"
)

// Error is a structured rendering failure. A missing binding or undeclared
// style class is never silently rendered as empty output.
type Error struct {
	NodeID  string
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("render: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("render: %s at node %q: %s", e.Code, e.NodeID, e.Message)
}
