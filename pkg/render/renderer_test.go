package render_test

import (
	"errors"
	"strings"
	"testing"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-invoicegen/pkg/ast"
	"github.com/goliatone/go-invoicegen/pkg/render"
	"github.com/goliatone/go-invoicegen/pkg/testsupport"
	"github.com/goliatone/go-invoicegen/pkg/transform"
	"github.com/goliatone/go-invoicegen/pkg/validation"
)

func TestRenderFixtureTemplate(t *testing.T) {
	t.Parallel()

	tpl, result := testsupport.MustResult(t)
	fragment, err := render.Render(tpl, result)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	for _, want := range []string{
		`<p class="inv-text inv-c-title">Invoice</p>`,
		`<span class="inv-field">Blue Harbor Co</span>`,
		`<span class="inv-field inv-c-note">INV-1042</span>`,
		`<hr class="inv-divider"/>`,
		"<th>Description</th>",
		"<td>Hosting</td>",
		"<dt>Subtotal</dt><dd>1690</dd>",
		"<dt>Tax</dt><dd>169</dd>",
		"<dt>Total</dt><dd>1859</dd>",
	} {
		if !strings.Contains(fragment.HTML, want) {
			t.Fatalf("fragment missing %q:\n%s", want, fragment.HTML)
		}
	}

	// Filtered rows never render.
	if strings.Contains(fragment.HTML, "Voided line") {
		t.Fatal("filtered row leaked into output")
	}

	// Rows render in pipeline order.
	hosting := strings.Index(fragment.HTML, "Hosting")
	design := strings.Index(fragment.HTML, "Design sprint")
	retainer := strings.Index(fragment.HTML, "Support retainer")
	if !(hosting < design && design < retainer) {
		t.Fatal("table rows are not in evaluation order")
	}
}

func TestRenderStylesheet(t *testing.T) {
	t.Parallel()

	tpl, result := testsupport.MustResult(t)
	fragment, err := render.Render(tpl, result)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	// Referenced classes emit once each with token references resolved, in
	// sorted class order.
	for _, want := range []string{
		".inv-c-lines {", ".inv-c-note {", ".inv-c-summary {", ".inv-c-title {",
		"color: #1a73e8;",
		"color: #667085;",
	} {
		if !strings.Contains(fragment.CSS, want) {
			t.Fatalf("stylesheet missing %q:\n%s", want, fragment.CSS)
		}
	}
	if strings.Contains(fragment.CSS, "$accent") {
		t.Fatal("token reference was not resolved")
	}
	if strings.Count(fragment.CSS, ".inv-c-note {") != 1 {
		t.Fatal("class used by several nodes must emit exactly once")
	}
	if strings.Index(fragment.CSS, ".inv-c-lines") > strings.Index(fragment.CSS, ".inv-c-note") {
		t.Fatal("classes are not in sorted order")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	tpl, result := testsupport.MustResult(t)

	first, err := render.Render(tpl, result)
	if err != nil {
		t.Fatalf("first render failed: %v", err)
	}
	second, err := render.Render(tpl, result)
	if err != nil {
		t.Fatalf("second render failed: %v", err)
	}
	if first.HTML != second.HTML || first.CSS != second.CSS {
		t.Fatal("identical inputs must render byte-identical output")
	}
}

func TestRenderEscapesContent(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"values": {"note": {"expr": "note"}}},
  "layout": {"id": "root", "kind": "document", "children": [
    {"id": "content", "kind": "text", "text": {"content": "<script>alert(1)</script>"}},
    {"id": "value", "kind": "field", "field": {"expr": "bindings.note"}}
  ]}
}`)
	result, err := transform.Evaluate(tpl, map[string]any{
		"note": `<img src=x onerror="alert(2)">`,
	})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	fragment, err := render.Render(tpl, result)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(fragment.HTML, "<script>") {
		t.Fatal("text content was not escaped")
	}
	if strings.Contains(fragment.HTML, "<img") {
		t.Fatal("field value was not escaped")
	}
	if !strings.Contains(fragment.HTML, "&lt;script&gt;") {
		t.Fatalf("expected escaped markup in output:\n%s", fragment.HTML)
	}
}

func TestRenderGroupedTable(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {
    "rawItems": {"source": "items"},
    "byCategory": {"source": "$groups"}
  }},
  "transforms": {"source": "rawItems", "operations": [
    {"kind": "group", "group": {"key": "category"}}
  ]},
  "layout": {"id": "root", "kind": "document", "children": [
    {"id": "grouped", "kind": "dynamic-table", "repeat": {
      "sourceBinding": "byCategory", "itemBinding": "line",
      "columns": [{"header": "Amount", "expr": "line.amount"}]
    }}
  ]}
}`)
	result, err := transform.Evaluate(tpl, map[string]any{
		"items": []any{
			map[string]any{"category": "b-side", "amount": 1},
			map[string]any{"category": "a-side", "amount": 2},
			map[string]any{"category": "b-side", "amount": 3},
		},
	})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	fragment, err := render.Render(tpl, result)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	// Group sections follow first-appearance order, not sorted key order.
	if strings.Index(fragment.HTML, "b-side") > strings.Index(fragment.HTML, "a-side") {
		t.Fatalf("group sections out of order:\n%s", fragment.HTML)
	}
	if strings.Count(fragment.HTML, `<tbody class="inv-group">`) != 2 {
		t.Fatalf("expected one tbody per group:\n%s", fragment.HTML)
	}
	if !strings.Contains(fragment.HTML, `<tr class="inv-group-label"><td colspan="1">b-side</td></tr>`) {
		t.Fatalf("missing group label row:\n%s", fragment.HTML)
	}
}

func TestRenderSanitizesInlineSVG(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "layout": {"id": "root", "kind": "document", "children": [
    {"id": "logo", "kind": "image", "image": {
      "svg": "<svg viewBox=\"0 0 10 10\" onload=\"alert(1)\"><script>alert(2)</script><path d=\"M0 0\"/></svg>"
    }}
  ]}
}`)

	fragment, err := render.Render(tpl, emptyResult())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(fragment.HTML, "onload") || strings.Contains(fragment.HTML, "script") {
		t.Fatalf("unsafe svg content survived sanitization:\n%s", fragment.HTML)
	}
	if !strings.Contains(fragment.HTML, "<path") {
		t.Fatalf("safe svg content was stripped:\n%s", fragment.HTML)
	}
}

func TestRenderUnknownStyleClass(t *testing.T) {
	t.Parallel()

	// Hand-built templates bypass Parse, so the renderer re-checks style
	// references itself.
	tpl := &ast.Template{
		Version: 1,
		Layout: ast.Node{
			ID: "root", Kind: ast.NodeDocument, Style: "ghost",
		},
	}

	_, err := render.Render(tpl, emptyResult())
	rerr := requireRenderError(t, err)
	if rerr.Code != render.CodeUnknownStyleClass {
		t.Fatalf("unexpected code %q", rerr.Code)
	}
	if rerr.NodeID != "root" {
		t.Fatalf("error should name the node, got %q", rerr.NodeID)
	}
}

func TestRenderRejectsHostileClassName(t *testing.T) {
	t.Parallel()

	// A class name carrying quotes would otherwise terminate the class
	// attribute and smuggle an event-handler attribute into the markup.
	hostile := `x" onmouseover=alert(1) z="`
	tpl := &ast.Template{
		Version: 1,
		Styles: ast.Styles{
			Classes: map[string]ast.Declarations{
				hostile: {"color": "red"},
			},
		},
		Layout: ast.Node{ID: "root", Kind: ast.NodeDocument, Style: hostile},
	}

	fragment, err := render.Render(tpl, emptyResult())
	rerr := requireRenderError(t, err)
	if rerr.Code != render.CodeUnknownStyleClass {
		t.Fatalf("unexpected code %q", rerr.Code)
	}
	if rerr.NodeID != "root" {
		t.Fatalf("error should name the node, got %q", rerr.NodeID)
	}
	if strings.Contains(fragment.HTML, "onmouseover") {
		t.Fatalf("hostile class name leaked into markup:\n%s", fragment.HTML)
	}
}

func TestRenderUnknownStyleToken(t *testing.T) {
	t.Parallel()

	tpl := &ast.Template{
		Version: 1,
		Styles: ast.Styles{
			Classes: map[string]ast.Declarations{
				"title": {"color": "$nope"},
			},
		},
		Layout: ast.Node{ID: "root", Kind: ast.NodeDocument, Style: "title"},
	}

	_, err := render.Render(tpl, emptyResult())
	rerr := requireRenderError(t, err)
	if rerr.Code != render.CodeUnknownStyleToken {
		t.Fatalf("unexpected code %q", rerr.Code)
	}
}

func TestRenderMissingTotal(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "layout": {"id": "root", "kind": "document", "children": [
    {"id": "summary", "kind": "totals", "totals": {"entries": [
      {"label": "Total", "total": "never_composed"}
    ]}}
  ]}
}`)

	_, err := render.Render(tpl, emptyResult())
	rerr := requireRenderError(t, err)
	if rerr.Code != render.CodeMissingTotal {
		t.Fatalf("unexpected code %q", rerr.Code)
	}
	if rerr.NodeID != "summary" {
		t.Fatalf("error should name the totals node, got %q", rerr.NodeID)
	}
}

func TestRenderThemeTokens(t *testing.T) {
	t.Parallel()

	tpl := &ast.Template{
		Version: 1,
		Styles: ast.Styles{
			Tokens: map[string]string{"accent": "#template-wins"},
			Classes: map[string]ast.Declarations{
				"title": {"color": "$accent", "background": "$surface"},
			},
		},
		Layout: ast.Node{ID: "root", Kind: ast.NodeDocument, Style: "title"},
	}
	selection := &theme.Selection{
		Theme:   "acme",
		Variant: "light",
		Manifest: &theme.Manifest{
			Name: "acme",
			Tokens: map[string]string{
				"accent":  "#theme-loses",
				"surface": "#ffffff",
			},
		},
	}

	renderer := render.New(render.WithThemeSelection(selection))
	fragment, err := renderer.Render(tpl, emptyResult())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(fragment.CSS, "color: #template-wins;") {
		t.Fatalf("template token should override theme token:\n%s", fragment.CSS)
	}
	if !strings.Contains(fragment.CSS, "background: #ffffff;") {
		t.Fatalf("theme token should fill gaps:\n%s", fragment.CSS)
	}
}

func mustParse(t *testing.T, doc string) *ast.Template {
	t.Helper()
	tpl, err := validation.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	return tpl
}

func emptyResult() *transform.Result {
	return &transform.Result{
		Output:     []transform.Row{},
		Groups:     map[string][]transform.Row{},
		GroupOrder: []string{},
		Totals:     map[string]any{},
		Bindings:   map[string]any{},
	}
}

func requireRenderError(t *testing.T, err error) *render.Error {
	t.Helper()
	if err == nil {
		t.Fatal("expected a render error")
	}
	var rerr *render.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *render.Error, got %T: %v", err, err)
	}
	return rerr
}
