// Package testsupport provides the shared template and invoice fixtures the
// package tests evaluate against. Helpers panic through t.Fatalf to keep
// contract tests concise.
package testsupport

import (
	"context"
	"testing"

	"github.com/goliatone/go-invoicegen/pkg/ast"
	"github.com/goliatone/go-invoicegen/pkg/transform"
	"github.com/goliatone/go-invoicegen/pkg/validation"
)

// TemplateJSON returns a complete, valid template document exercising every
// layout variant the renderer supports and a full six-operation pipeline.
func TemplateJSON() []byte {
	return []byte(`{
  "version": 1,
  "metadata": {"name": "acme-invoice", "locale": "en-US"},
  "styles": {
    "tokens": {"accent": "#1a73e8", "muted": "#667085", "rule": "#e4e7ec"},
    "classes": {
      "title":   {"color": "$accent", "font-size": "20px", "font-weight": "700"},
      "note":    {"color": "$muted", "font-size": "12px"},
      "lines":   {"border-color": "$rule", "width": "100%"},
      "summary": {"margin-top": "16px"}
    }
  },
  "bindings": {
    "values": {
      "customerName":  {"expr": "customer.name"},
      "invoiceNumber": {"expr": "invoice.number"}
    },
    "collections": {
      "rawItems":   {"source": "items"},
      "lines":      {"source": "$output"},
      "byCategory": {"source": "$groups"}
    }
  },
  "transforms": {
    "source": "rawItems",
    "operations": [
      {"kind": "filter", "filter": {"conditions": ["amount > 0"]}},
      {"kind": "sort", "sort": {"keys": [
        {"field": "category", "direction": "asc"},
        {"field": "amount", "direction": "desc"}
      ]}},
      {"kind": "group", "group": {"key": "category"}},
      {"kind": "aggregate", "aggregate": {"aggregations": [
        {"name": "amount_sum", "fn": "sum", "field": "amount"},
        {"name": "line_count", "fn": "count"}
      ]}},
      {"kind": "computed-field", "computed-field": {"fields": [
        {"name": "share", "expr": "amount / agg.amount_sum"}
      ]}},
      {"kind": "totals-compose", "totals-compose": {"totals": [
        {"name": "subtotal", "aggregate": "amount_sum"},
        {"name": "tax", "expr": "totals.subtotal * 0.1"},
        {"name": "grand_total", "expr": "totals.subtotal + totals.tax"}
      ]}}
    ]
  },
  "layout": {
    "id": "root",
    "kind": "document",
    "children": [
      {"id": "header", "kind": "section", "children": [
        {"id": "heading", "kind": "text", "style": "title", "text": {"content": "Invoice"}},
        {"id": "customer", "kind": "field", "field": {"expr": "bindings.customerName"}},
        {"id": "number", "kind": "field", "style": "note", "field": {"expr": "bindings.invoiceNumber"}}
      ]},
      {"id": "rule-1", "kind": "divider"},
      {"id": "line-items", "kind": "dynamic-table", "style": "lines", "repeat": {
        "sourceBinding": "lines",
        "itemBinding": "line",
        "columns": [
          {"header": "Description", "expr": "line.description"},
          {"header": "Category", "expr": "line.category"},
          {"header": "Amount", "expr": "line.amount"}
        ]
      }},
      {"id": "summary", "kind": "totals", "style": "summary", "totals": {"entries": [
        {"label": "Subtotal", "total": "subtotal"},
        {"label": "Tax", "total": "tax"},
        {"label": "Total", "total": "grand_total"}
      ]}},
      {"id": "footer-note", "kind": "text", "style": "note", "text": {"content": "Thank you for your business."}}
    ]
  }
}`)
}

// Invoice returns the view-model the fixture template evaluates against.
// One zero-amount line exists so the filter stage observably drops a row.
func Invoice() map[string]any {
	return map[string]any{
		"customer": map[string]any{"name": "Blue Harbor Co"},
		"invoice":  map[string]any{"number": "INV-1042"},
		"items": []any{
			map[string]any{"description": "Design sprint", "category": "services", "amount": 1200},
			map[string]any{"description": "Hosting", "category": "infrastructure", "amount": 90},
			map[string]any{"description": "Support retainer", "category": "services", "amount": 400},
			map[string]any{"description": "Voided line", "category": "services", "amount": 0},
		},
	}
}

// MustTemplate parses and validates the fixture template.
func MustTemplate(t *testing.T) *ast.Template {
	t.Helper()
	tpl, err := validation.Parse(TemplateJSON())
	if err != nil {
		t.Fatalf("parse fixture template: %v", err)
	}
	return tpl
}

// MustResult evaluates the fixture template against the fixture invoice.
func MustResult(t *testing.T) (*ast.Template, *transform.Result) {
	t.Helper()
	tpl := MustTemplate(t)
	result, err := transform.Evaluate(tpl, Invoice())
	if err != nil {
		t.Fatalf("evaluate fixture template: %v", err)
	}
	return tpl, result
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
