package validation

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-invoicegen/pkg/ast"
)

var nodePayloadKeys = map[ast.NodeKind]string{
	ast.NodeText:         "text",
	ast.NodeField:        "field",
	ast.NodeImage:        "image",
	ast.NodeTable:        "table",
	ast.NodeDynamicTable: "repeat",
	ast.NodeTotals:       "totals",
}

func (b *builder) node(path string, v any) ast.Node {
	node := ast.Node{}
	m, ok := b.object(path, v)
	if !ok {
		return node
	}
	b.unknownKeys(path, m, "id", "kind", "style", "children", "text", "field", "image", "table", "repeat", "totals")

	node.ID, _ = b.str(path, m, "id", true)
	kindRaw, _ := b.str(path, m, "kind", true)
	node.Kind = ast.NodeKind(kindRaw)
	if kindRaw != "" && !knownNodeKind(node.Kind) {
		b.report(CodeUnknownVariant, joinPath(path, "kind"), "unknown node kind %q", kindRaw)
		return node
	}
	if style, ok := b.str(path, m, "style", false); ok {
		node.Style = style
	}

	// Payload keys for a different variant are reported, never dropped.
	expectedPayload := nodePayloadKeys[node.Kind]
	for _, key := range []string{"text", "field", "image", "table", "repeat", "totals"} {
		if _, present := m[key]; present && key != expectedPayload {
			b.report(CodeInvalidValue, joinPath(path, key), "payload %q does not belong on a %q node", key, node.Kind)
		}
	}

	if rawChildren, present := m["children"]; present {
		if !node.IsContainer() {
			b.report(CodeInvalidValue, joinPath(path, "children"), "%q nodes cannot nest children", node.Kind)
		} else if list, ok := rawChildren.([]any); !ok {
			b.report(CodeInvalidType, joinPath(path, "children"), "expected a list, got %s", typeName(rawChildren))
		} else {
			node.Children = make([]ast.Node, 0, len(list))
			for idx, entry := range list {
				node.Children = append(node.Children, b.node(fmt.Sprintf("%s.children[%d]", path, idx), entry))
			}
		}
	}

	if expectedPayload == "" {
		return node
	}
	payloadPath := joinPath(path, expectedPayload)
	payload, present := m[expectedPayload]
	if !present {
		b.report(CodeMissingField, payloadPath, "%q nodes require a %q payload", node.Kind, expectedPayload)
		return node
	}

	switch node.Kind {
	case ast.NodeText:
		node.Text = b.textPayload(payloadPath, payload)
	case ast.NodeField:
		node.Field = b.fieldPayload(payloadPath, payload)
	case ast.NodeImage:
		node.Image = b.imagePayload(payloadPath, payload)
	case ast.NodeTable:
		node.Table = b.tablePayload(payloadPath, payload)
	case ast.NodeDynamicTable:
		node.Repeat = b.repeatPayload(payloadPath, payload)
	case ast.NodeTotals:
		node.Totals = b.totalsPayload(payloadPath, payload)
	}
	return node
}

func (b *builder) textPayload(path string, v any) *ast.TextPayload {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "content")
	content, _ := b.str(path, m, "content", true)
	return &ast.TextPayload{Content: content}
}

func (b *builder) fieldPayload(path string, v any) *ast.FieldPayload {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "expr")
	expr, _ := b.str(path, m, "expr", true)
	return &ast.FieldPayload{Expr: expr}
}

func (b *builder) imagePayload(path string, v any) *ast.ImagePayload {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "src", "alt", "svg")
	src, _ := b.str(path, m, "src", false)
	alt, _ := b.str(path, m, "alt", false)
	svg, _ := b.str(path, m, "svg", false)
	if strings.TrimSpace(src) == "" && strings.TrimSpace(svg) == "" {
		b.report(CodeMissingField, path, "image requires a src or inline svg markup")
	}
	return &ast.ImagePayload{Src: src, Alt: alt, SVG: svg}
}

func (b *builder) tablePayload(path string, v any) *ast.TablePayload {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "columns", "rows")

	out := &ast.TablePayload{}
	out.Columns = b.columns(joinPath(path, "columns"), m["columns"], false)

	if raw, present := m["rows"]; present {
		list, ok := raw.([]any)
		if !ok {
			b.report(CodeInvalidType, joinPath(path, "rows"), "expected a list, got %s", typeName(raw))
			return out
		}
		out.Rows = make([][]string, 0, len(list))
		for idx, entry := range list {
			rowPath := fmt.Sprintf("%s.rows[%d]", path, idx)
			cells, ok := entry.([]any)
			if !ok {
				b.report(CodeInvalidType, rowPath, "expected a list, got %s", typeName(entry))
				continue
			}
			if len(out.Columns) > 0 && len(cells) != len(out.Columns) {
				b.report(CodeInvalidValue, rowPath, "row has %d cells, table declares %d columns", len(cells), len(out.Columns))
			}
			row := make([]string, 0, len(cells))
			for cellIdx, cell := range cells {
				text, ok := cell.(string)
				if !ok {
					b.report(CodeInvalidType, fmt.Sprintf("%s[%d]", rowPath, cellIdx), "expected a string, got %s", typeName(cell))
					continue
				}
				row = append(row, text)
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func (b *builder) repeatPayload(path string, v any) *ast.RepeatPayload {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "sourceBinding", "itemBinding", "columns")

	// Both repeat fields are mandatory; absence is a validation failure, not
	// a runtime default.
	source, _ := b.str(path, m, "sourceBinding", true)
	item, _ := b.str(path, m, "itemBinding", true)
	columns := b.columns(joinPath(path, "columns"), m["columns"], true)
	return &ast.RepeatPayload{SourceBinding: source, ItemBinding: item, Columns: columns}
}

func (b *builder) totalsPayload(path string, v any) *ast.TotalsPayload {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "entries")

	raw, present := m["entries"]
	if !present {
		b.report(CodeMissingField, joinPath(path, "entries"), "missing required field %q", "entries")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, "entries"), "expected a list, got %s", typeName(raw))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, joinPath(path, "entries"), "totals node requires at least one entry")
		return nil
	}

	out := &ast.TotalsPayload{Entries: make([]ast.TotalsEntry, 0, len(list))}
	for idx, entry := range list {
		entryPath := fmt.Sprintf("%s.entries[%d]", path, idx)
		entryObj, ok := b.object(entryPath, entry)
		if !ok {
			continue
		}
		b.unknownKeys(entryPath, entryObj, "label", "total")
		label, _ := b.str(entryPath, entryObj, "label", true)
		total, _ := b.str(entryPath, entryObj, "total", true)
		out.Entries = append(out.Entries, ast.TotalsEntry{Label: label, Total: total})
	}
	return out
}

func (b *builder) columns(path string, v any, requireExpr bool) []ast.Column {
	if v == nil {
		b.report(CodeMissingField, path, "missing required field %q", "columns")
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		b.report(CodeInvalidType, path, "expected a list, got %s", typeName(v))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, path, "at least one column is required")
		return nil
	}

	out := make([]ast.Column, 0, len(list))
	for idx, entry := range list {
		entryPath := fmt.Sprintf("%s[%d]", path, idx)
		colObj, ok := b.object(entryPath, entry)
		if !ok {
			continue
		}
		b.unknownKeys(entryPath, colObj, "header", "expr")
		header, _ := b.str(entryPath, colObj, "header", true)
		expr, _ := b.str(entryPath, colObj, "expr", requireExpr)
		out = append(out, ast.Column{Header: header, Expr: expr})
	}
	return out
}

func knownNodeKind(kind ast.NodeKind) bool {
	for _, known := range ast.KnownNodeKinds() {
		if kind == known {
			return true
		}
	}
	return false
}

// checkReferences verifies that style class references resolve in the style
// catalog and that repeat regions reference declared collection bindings.
func (b *builder) checkReferences(tpl *ast.Template) {
	if tpl == nil {
		return
	}
	if tpl.Transforms != nil && tpl.Transforms.Source != "" {
		if _, ok := tpl.Bindings.Collections[tpl.Transforms.Source]; !ok {
			b.report(CodeUnresolvedRef, "transforms.source", "collection binding %q is not declared in the binding catalog", tpl.Transforms.Source)
		}
	}
	b.checkNodeReferences("layout", tpl, tpl.Layout)
}

func (b *builder) checkNodeReferences(path string, tpl *ast.Template, node ast.Node) {
	if node.Style != "" {
		if _, ok := tpl.Styles.Classes[node.Style]; !ok {
			b.report(CodeUnresolvedRef, joinPath(path, "style"), "style class %q is not declared in the style catalog", node.Style)
		}
	}
	if node.Repeat != nil && node.Repeat.SourceBinding != "" {
		if _, ok := tpl.Bindings.Collections[node.Repeat.SourceBinding]; !ok {
			b.report(CodeUnresolvedRef, joinPath(path, "repeat.sourceBinding"), "collection binding %q is not declared in the binding catalog", node.Repeat.SourceBinding)
		}
	}
	for idx, child := range node.Children {
		b.checkNodeReferences(fmt.Sprintf("%s.children[%d]", path, idx), tpl, child)
	}
}
