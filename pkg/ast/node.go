package ast

// NodeKind discriminates layout node variants.
type NodeKind string

const (
	NodeDocument     NodeKind = "document"
	NodeSection      NodeKind = "section"
	NodeStack        NodeKind = "stack"
	NodeText         NodeKind = "text"
	NodeField        NodeKind = "field"
	NodeImage        NodeKind = "image"
	NodeDivider      NodeKind = "divider"
	NodeTable        NodeKind = "table"
	NodeDynamicTable NodeKind = "dynamic-table"
	NodeTotals       NodeKind = "totals"
)

// KnownNodeKinds lists every layout variant the renderer understands, in
// canonical order.
func KnownNodeKinds() []NodeKind {
	return []NodeKind{
		NodeDocument, NodeSection, NodeStack, NodeText, NodeField,
		NodeImage, NodeDivider, NodeTable, NodeDynamicTable, NodeTotals,
	}
}

// Node is one layout tree node. Kind selects the variant; exactly one of the
// payload pointers matching the kind is set for leaf variants, while
// container variants (document, section, stack) carry Children.
type Node struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Style string   `json:"style,omitempty"`

	Children []Node `json:"children,omitempty"`

	Text   *TextPayload   `json:"text,omitempty"`
	Field  *FieldPayload  `json:"field,omitempty"`
	Image  *ImagePayload  `json:"image,omitempty"`
	Table  *TablePayload  `json:"table,omitempty"`
	Repeat *RepeatPayload `json:"repeat,omitempty"`
	Totals *TotalsPayload `json:"totals,omitempty"`
}

// IsContainer reports whether the node kind nests child nodes.
func (n Node) IsContainer() bool {
	switch n.Kind {
	case NodeDocument, NodeSection, NodeStack:
		return true
	default:
		return false
	}
}

// TextPayload carries literal text content.
type TextPayload struct {
	Content string `json:"content"`
}

// FieldPayload carries a value expression resolved against the evaluation
// result's bindings and, inside repeat regions, the current row scope.
type FieldPayload struct {
	Expr string `json:"expr"`
}

// ImagePayload references an external image or carries inline SVG markup.
// Inline markup is sanitized before inclusion; both are never emitted raw.
type ImagePayload struct {
	Src string `json:"src,omitempty"`
	Alt string `json:"alt,omitempty"`
	SVG string `json:"svg,omitempty"`
}

// Column describes one table column: a header label and, for dynamic tables,
// the per-row cell expression.
type Column struct {
	Header string `json:"header"`
	Expr   string `json:"expr,omitempty"`
}

// TablePayload is a static table with literal row values.
type TablePayload struct {
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows,omitempty"`
}

// RepeatPayload is a dynamic-table repeat region. SourceBinding names the
// collection driving repetition and ItemBinding names the per-row scope
// variable. Both are mandatory.
type RepeatPayload struct {
	SourceBinding string   `json:"sourceBinding"`
	ItemBinding   string   `json:"itemBinding"`
	Columns       []Column `json:"columns"`
}

// TotalsEntry renders one named total from the evaluation result.
type TotalsEntry struct {
	Label string `json:"label"`
	Total string `json:"total"`
}

// TotalsPayload lists the totals rendered by a totals node.
type TotalsPayload struct {
	Entries []TotalsEntry `json:"entries"`
}
