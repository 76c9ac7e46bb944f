// Package render turns a validated template layout tree plus an evaluation
// result into an HTML fragment and a consolidated CSS block. Rendering is a
// pure function: no I/O, no clock, no randomness, and byte-identical output
// for byte-identical input regardless of caller.
package render

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-invoicegen/pkg/ast"
	"github.com/goliatone/go-invoicegen/pkg/transform"
	"github.com/goliatone/go-invoicegen/pkg/transform/expr"
)

const defaultClassPrefix = "inv"

// Fragment is the rendered output consumed by the preview caller directly
// and by the document wrapper for PDF capture.
type Fragment struct {
	HTML string
	CSS  string
}

// Renderer renders layout trees. It holds only immutable configuration, so
// one instance serves concurrent callers.
type Renderer struct {
	baseTokens  map[string]string
	classPrefix string
}

// New constructs a Renderer applying any provided options.
func New(options ...Option) *Renderer {
	cfg := config{classPrefix: defaultClassPrefix}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &Renderer{baseTokens: cfg.baseTokens, classPrefix: cfg.classPrefix}
}

// Render walks the template layout with the default renderer configuration.
func Render(tpl *ast.Template, evaluation *transform.Result) (Fragment, error) {
	return New().Render(tpl, evaluation)
}

// Render walks the layout tree and emits markup per node variant plus one
// consolidated CSS block for every referenced style class. Unresolved style
// classes, bindings, and totals surface as *Error naming the offending node.
func (r *Renderer) Render(tpl *ast.Template, evaluation *transform.Result) (Fragment, error) {
	if tpl == nil {
		return Fragment{}, &Error{Code: CodeMissingEvaluation, Message: "template is required"}
	}
	if evaluation == nil {
		return Fragment{}, &Error{Code: CodeMissingEvaluation, Message: "evaluation result is required"}
	}

	w := &walker{
		tpl:        tpl,
		evaluation: evaluation,
		prefix:     r.classPrefix,
		used:       map[string]struct{}{},
	}
	markup, err := w.node(tpl.Layout, nil, "")
	if err != nil {
		return Fragment{}, err
	}
	css, err := r.stylesheet(tpl, w.used)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{HTML: markup, CSS: css}, nil
}

type walker struct {
	tpl        *ast.Template
	evaluation *transform.Result
	prefix     string
	used       map[string]struct{}
}

func (w *walker) node(node ast.Node, row transform.Row, item string) (string, error) {
	classes, err := w.classAttr(node)
	if err != nil {
		return "", err
	}

	switch node.Kind {
	case ast.NodeDocument, ast.NodeSection, ast.NodeStack:
		var sb strings.Builder
		for _, child := range node.Children {
			rendered, err := w.node(child, row, item)
			if err != nil {
				return "", err
			}
			sb.WriteString(rendered)
		}
		tag := "div"
		if node.Kind == ast.NodeSection {
			tag = "section"
		}
		return fmt.Sprintf("<%s class=%q>%s</%s>", tag, classes, sb.String(), tag), nil

	case ast.NodeText:
		return fmt.Sprintf("<p class=%q>%s</p>", classes, html.EscapeString(node.Text.Content)), nil

	case ast.NodeField:
		value, err := expr.Eval(node.Field.Expr, w.evaluation.Scope(row, item))
		if err != nil {
			return "", &Error{NodeID: node.ID, Code: CodeUnresolvedBinding, Message: err.Error()}
		}
		return fmt.Sprintf("<span class=%q>%s</span>", classes, html.EscapeString(formatValue(value))), nil

	case ast.NodeImage:
		return w.image(node, classes)

	case ast.NodeDivider:
		return fmt.Sprintf("<hr class=%q/>", classes), nil

	case ast.NodeTable:
		return w.staticTable(node, classes)

	case ast.NodeDynamicTable:
		return w.dynamicTable(node, classes)

	case ast.NodeTotals:
		return w.totals(node, classes)

	default:
		return "", &Error{NodeID: node.ID, Code: CodeUnknownNodeKind, Message: fmt.Sprintf("unknown node kind %q", node.Kind)}
	}
}

func (w *walker) image(node ast.Node, classes string) (string, error) {
	if node.Image.SVG != "" {
		cleaned := sanitizeSVGMarkup(node.Image.SVG)
		if cleaned == "" {
			return "", &Error{NodeID: node.ID, Code: CodeUnresolvedBinding, Message: "inline svg markup was rejected by the sanitizer"}
		}
		return fmt.Sprintf("<figure class=%q>%s</figure>", classes, cleaned), nil
	}
	return fmt.Sprintf("<img class=%q src=%q alt=%q/>",
		classes, html.EscapeString(node.Image.Src), html.EscapeString(node.Image.Alt)), nil
}

func (w *walker) staticTable(node ast.Node, classes string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<table class=%q>", classes)
	w.tableHead(&sb, node.Table.Columns)
	sb.WriteString("<tbody>")
	for _, row := range node.Table.Rows {
		sb.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&sb, "<td>%s</td>", html.EscapeString(cell))
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")
	return sb.String(), nil
}

func (w *walker) dynamicTable(node ast.Node, classes string) (string, error) {
	repeat := node.Repeat
	binding, declared := w.tpl.Bindings.Collections[repeat.SourceBinding]
	if !declared {
		return "", &Error{
			NodeID:  node.ID,
			Code:    CodeUnknownCollection,
			Message: fmt.Sprintf("collection binding %q is not declared", repeat.SourceBinding),
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<table class=%q>", classes)
	w.tableHead(&sb, repeat.Columns)

	switch binding.Source {
	case ast.SourceOutput:
		sb.WriteString("<tbody>")
		if err := w.tableRows(&sb, node, repeat, w.evaluation.Output); err != nil {
			return "", err
		}
		sb.WriteString("</tbody>")

	case ast.SourceGroups:
		// Group sections render in the evaluator's first-appearance order,
		// which is what keeps section ordering stable across callers.
		for _, key := range w.evaluation.GroupOrder {
			fmt.Fprintf(&sb, "<tbody class=%q>", w.prefix+"-group")
			fmt.Fprintf(&sb, "<tr class=%q><td colspan=\"%d\">%s</td></tr>",
				w.prefix+"-group-label", len(repeat.Columns), html.EscapeString(key))
			if err := w.tableRows(&sb, node, repeat, w.evaluation.Groups[key]); err != nil {
				return "", err
			}
			sb.WriteString("</tbody>")
		}

	default:
		raw, resolved := w.evaluation.Bindings[repeat.SourceBinding]
		if !resolved {
			return "", &Error{
				NodeID:  node.ID,
				Code:    CodeUnknownCollection,
				Message: fmt.Sprintf("collection binding %q did not resolve during evaluation", repeat.SourceBinding),
			}
		}
		list, ok := raw.([]any)
		if !ok {
			return "", &Error{
				NodeID:  node.ID,
				Code:    CodeUnknownCollection,
				Message: fmt.Sprintf("collection binding %q is not a sequence", repeat.SourceBinding),
			}
		}
		rows := make([]transform.Row, 0, len(list))
		for idx, entry := range list {
			item, ok := entry.(map[string]any)
			if !ok {
				return "", &Error{
					NodeID:  node.ID,
					Code:    CodeUnknownCollection,
					Message: fmt.Sprintf("collection %q item %d is not an object", repeat.SourceBinding, idx),
				}
			}
			rows = append(rows, item)
		}
		sb.WriteString("<tbody>")
		if err := w.tableRows(&sb, node, repeat, rows); err != nil {
			return "", err
		}
		sb.WriteString("</tbody>")
	}

	sb.WriteString("</table>")
	return sb.String(), nil
}

func (w *walker) tableHead(sb *strings.Builder, columns []ast.Column) {
	sb.WriteString("<thead><tr>")
	for _, column := range columns {
		fmt.Fprintf(sb, "<th>%s</th>", html.EscapeString(column.Header))
	}
	sb.WriteString("</tr></thead>")
}

func (w *walker) tableRows(sb *strings.Builder, node ast.Node, repeat *ast.RepeatPayload, rows []transform.Row) error {
	for _, row := range rows {
		sb.WriteString("<tr>")
		for _, column := range repeat.Columns {
			value, err := expr.Eval(column.Expr, w.evaluation.Scope(row, repeat.ItemBinding))
			if err != nil {
				return &Error{NodeID: node.ID, Code: CodeUnresolvedBinding, Message: err.Error()}
			}
			fmt.Fprintf(sb, "<td>%s</td>", html.EscapeString(formatValue(value)))
		}
		sb.WriteString("</tr>")
	}
	return nil
}

func (w *walker) totals(node ast.Node, classes string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<dl class=%q>", classes)
	for _, entry := range node.Totals.Entries {
		value, present := w.evaluation.Totals[entry.Total]
		if !present {
			return "", &Error{
				NodeID:  node.ID,
				Code:    CodeMissingTotal,
				Message: fmt.Sprintf("total %q was not composed by the transform pipeline", entry.Total),
			}
		}
		fmt.Fprintf(&sb, "<div class=%q><dt>%s</dt><dd>%s</dd></div>",
			w.prefix+"-total", html.EscapeString(entry.Label), html.EscapeString(formatValue(value)))
	}
	sb.WriteString("</dl>")
	return sb.String(), nil
}

func (w *walker) classAttr(node ast.Node) (string, error) {
	classes := w.prefix + "-" + string(node.Kind)
	if node.Style == "" {
		return classes, nil
	}
	if _, declared := w.tpl.Styles.Classes[node.Style]; !declared {
		return "", &Error{
			NodeID:  node.ID,
			Code:    CodeUnknownStyleClass,
			Message: fmt.Sprintf("style class %q is not declared in the style catalog", node.Style),
		}
	}
	// Class names land unescaped inside class attributes and CSS selectors.
	// The validator enforces the same charset, but hand-built templates reach
	// the renderer without passing through it.
	if !safeClassName(node.Style) {
		return "", &Error{
			NodeID:  node.ID,
			Code:    CodeUnknownStyleClass,
			Message: fmt.Sprintf("style class %q contains characters unsafe for markup", node.Style),
		}
	}
	w.used[node.Style] = struct{}{}
	return classes + " " + w.prefix + "-c-" + node.Style, nil
}

func safeClassName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// stylesheet emits one consolidated CSS block for every referenced style
// class, in sorted class / property order so identical class usage produces
// identical, deduplicated CSS.
func (r *Renderer) stylesheet(tpl *ast.Template, used map[string]struct{}) (string, error) {
	if len(used) == 0 {
		return "", nil
	}

	tokens := make(map[string]string, len(r.baseTokens)+len(tpl.Styles.Tokens))
	for name, value := range r.baseTokens {
		tokens[name] = value
	}
	for name, value := range tpl.Styles.Tokens {
		tokens[name] = value
	}

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		declarations := tpl.Styles.Classes[name]
		properties := make([]string, 0, len(declarations))
		for property := range declarations {
			properties = append(properties, property)
		}
		sort.Strings(properties)

		fmt.Fprintf(&sb, ".%s-c-%s {\n", r.classPrefix, name)
		for _, property := range properties {
			value := declarations[property]
			if token, isRef := strings.CutPrefix(value, "$"); isRef {
				resolved, declared := tokens[token]
				if !declared {
					return "", &Error{
						Code:    CodeUnknownStyleToken,
						Message: fmt.Sprintf("class %q references undeclared token %q", name, token),
					}
				}
				value = resolved
			}
			fmt.Fprintf(&sb, "  %s: %s;\n", property, value)
		}
		sb.WriteString("}\n")
	}
	return sb.String(), nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return expr.Text(value)
	}
}
