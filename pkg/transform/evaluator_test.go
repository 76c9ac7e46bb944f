package transform_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-invoicegen/pkg/ast"
	"github.com/goliatone/go-invoicegen/pkg/testsupport"
	"github.com/goliatone/go-invoicegen/pkg/transform"
	"github.com/goliatone/go-invoicegen/pkg/validation"
)

func TestEvaluateFixturePipeline(t *testing.T) {
	t.Parallel()

	_, result := testsupport.MustResult(t)

	// The zero-amount line is filtered, then rows sort by category asc and
	// amount desc within category.
	descriptions := make([]string, 0, len(result.Output))
	for _, row := range result.Output {
		descriptions = append(descriptions, row["description"].(string))
	}
	want := []string{"Hosting", "Design sprint", "Support retainer"}
	if diff := cmp.Diff(want, descriptions); diff != "" {
		t.Fatalf("output order mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"infrastructure", "services"}, result.GroupOrder); diff != "" {
		t.Fatalf("group order mismatch (-want +got):\n%s", diff)
	}
	if len(result.Groups["services"]) != 2 || len(result.Groups["infrastructure"]) != 1 {
		t.Fatalf("unexpected group shapes: %v", result.Groups)
	}

	if got := result.Aggregates.Overall["amount_sum"]; got != 1690 {
		t.Fatalf("amount_sum = %v, want 1690", got)
	}
	if got := result.Aggregates.Overall["line_count"]; got != 3 {
		t.Fatalf("line_count = %v, want 3", got)
	}
	if got := result.Aggregates.PerGroup["services"]["amount_sum"]; got != 1600 {
		t.Fatalf("services amount_sum = %v, want 1600", got)
	}
	if got := result.Aggregates.PerGroup["infrastructure"]["line_count"]; got != 1 {
		t.Fatalf("infrastructure line_count = %v, want 1", got)
	}

	for _, row := range result.Output {
		if _, ok := row["share"]; !ok {
			t.Fatalf("computed field missing on row %v", row)
		}
	}

	if got := result.Totals["subtotal"]; got != 1690.0 {
		t.Fatalf("subtotal = %v, want 1690", got)
	}
	if got := result.Totals["tax"]; got != 169.0 {
		t.Fatalf("tax = %v, want 169", got)
	}
	if got := result.Totals["grand_total"]; got != 1859.0 {
		t.Fatalf("grand_total = %v, want 1859", got)
	}

	if got := result.Bindings["customerName"]; got != "Blue Harbor Co" {
		t.Fatalf("customerName = %v", got)
	}
	if _, ok := result.Bindings["rawItems"].([]any); !ok {
		t.Fatal("collection binding should resolve to a sequence")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	tpl := testsupport.MustTemplate(t)

	first, err := transform.Evaluate(tpl, testsupport.Invoice())
	if err != nil {
		t.Fatalf("first evaluation failed: %v", err)
	}
	second, err := transform.Evaluate(tpl, testsupport.Invoice())
	if err != nil {
		t.Fatalf("second evaluation failed: %v", err)
	}

	firstBytes, err := first.Canonical()
	if err != nil {
		t.Fatalf("serialize first result: %v", err)
	}
	secondBytes, err := second.Canonical()
	if err != nil {
		t.Fatalf("serialize second result: %v", err)
	}
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Fatal("identical inputs must serialize to identical bytes")
	}
}

func TestEvaluateMissingCollection(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {"rawItems": {"source": "absent"}}},
  "layout": {"id": "root", "kind": "document"}
}`)

	_, err := transform.Evaluate(tpl, map[string]any{"items": []any{}})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeMissingBinding {
		t.Fatalf("unexpected code %q", terr.Code)
	}
	if terr.Binding != "rawItems" {
		t.Fatalf("error should name the binding, got %q", terr.Binding)
	}
}

func TestEvaluateMissingBindingReference(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"values": {"label": {"expr": "bindings.ghost"}}},
  "layout": {"id": "root", "kind": "document"}
}`)

	_, err := transform.Evaluate(tpl, map[string]any{})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeMissingBinding {
		t.Fatalf("unexpected code %q", terr.Code)
	}
	if terr.Binding != "ghost" {
		t.Fatalf("error should name the undeclared binding, got %q", terr.Binding)
	}
}

func TestEvaluateUnknownStrategy(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {"rawItems": {"source": "items"}}},
  "transforms": {"operations": [
    {"kind": "group", "strategyId": "not-a-real-strategy", "group": {}}
  ]},
  "layout": {"id": "root", "kind": "document"}
}`)

	_, err := transform.Evaluate(tpl, map[string]any{
		"items": []any{map[string]any{"category": "a"}},
	})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeUnknownStrategy {
		t.Fatalf("unexpected code %q", terr.Code)
	}
}

func TestEvaluateStrategyGroupKey(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {"rawItems": {"source": "items"}}},
  "transforms": {"operations": [
    {"kind": "group", "strategyId": "custom-group-key", "group": {}}
  ]},
  "layout": {"id": "root", "kind": "document"}
}`)

	result, err := transform.Evaluate(tpl, map[string]any{
		"items": []any{
			map[string]any{"category": "Services", "amount": 1},
			map[string]any{"category": "  services ", "amount": 2},
			map[string]any{"category": "Hardware", "amount": 3},
		},
	})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"services", "hardware"}, result.GroupOrder); diff != "" {
		t.Fatalf("strategy group order mismatch (-want +got):\n%s", diff)
	}
	if len(result.Groups["services"]) != 2 {
		t.Fatalf("casing variants must land in one group: %v", result.Groups)
	}
}

func TestEvaluateInvalidOperand(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {"rawItems": {"source": "items"}}},
  "transforms": {"operations": [
    {"kind": "totals-compose", "totals-compose": {"totals": [
      {"name": "subtotal", "aggregate": "never_computed"}
    ]}}
  ]},
  "layout": {"id": "root", "kind": "document"}
}`)

	_, err := transform.Evaluate(tpl, map[string]any{"items": []any{}})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeInvalidOperand {
		t.Fatalf("unexpected code %q", terr.Code)
	}
}

func TestEvaluateNonNumericAggregation(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {"rawItems": {"source": "items"}}},
  "transforms": {"operations": [
    {"kind": "aggregate", "aggregate": {"aggregations": [
      {"name": "amount_sum", "fn": "sum", "field": "amount"}
    ]}}
  ]},
  "layout": {"id": "root", "kind": "document"}
}`)

	_, err := transform.Evaluate(tpl, map[string]any{
		"items": []any{map[string]any{"amount": map[string]any{"value": 1}}},
	})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeInvalidOperand {
		t.Fatalf("unexpected code %q", terr.Code)
	}
}

func TestEvaluateBadOperandErrorIsDeterministic(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {"rawItems": {"source": "items"}}},
  "transforms": {"operations": [
    {"kind": "group", "group": {"key": "category"}},
    {"kind": "aggregate", "aggregate": {"aggregations": [
      {"name": "amount_sum", "fn": "sum", "field": "amount"}
    ]}}
  ]},
  "layout": {"id": "root", "kind": "document"}
}`)
	invoice := map[string]any{"items": []any{
		map[string]any{"category": "services", "amount": "n/a"},
		map[string]any{"category": "hardware", "amount": "n/a"},
	}}

	// Both groups carry a bad operand; the reported error must not depend
	// on map iteration order.
	_, err := transform.Evaluate(tpl, invoice)
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeInvalidOperand {
		t.Fatalf("unexpected code %q", terr.Code)
	}
	want := terr.Error()
	for i := 0; i < 5; i++ {
		_, err := transform.Evaluate(tpl, invoice)
		if got := requireTransformError(t, err).Error(); got != want {
			t.Fatalf("error message changed between runs:\n%s\n%s", want, got)
		}
	}
}

func TestEvaluateAmbiguousPipelineSource(t *testing.T) {
	t.Parallel()

	tpl := mustParse(t, `{
  "version": 1,
  "bindings": {"collections": {
    "first": {"source": "items"},
    "second": {"source": "fees"}
  }},
  "transforms": {"operations": [
    {"kind": "filter", "filter": {"conditions": ["amount > 0"]}}
  ]},
  "layout": {"id": "root", "kind": "document"}
}`)

	_, err := transform.Evaluate(tpl, map[string]any{
		"items": []any{},
		"fees":  []any{},
	})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeInvalidTransformInput {
		t.Fatalf("unexpected code %q", terr.Code)
	}
}

func TestEvaluateRevalidatesTemplate(t *testing.T) {
	t.Parallel()

	// A hand-constructed template bypasses Parse, so Evaluate must catch the
	// broken version itself.
	tpl := &ast.Template{
		Version: 99,
		Layout:  ast.Node{ID: "root", Kind: ast.NodeDocument},
	}

	_, err := transform.Evaluate(tpl, map[string]any{})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeSchemaValidationFailed {
		t.Fatalf("unexpected code %q", terr.Code)
	}
	if len(terr.Issues) == 0 {
		t.Fatal("revalidation failure should carry the underlying issues")
	}
}

func TestEvaluateNilTemplate(t *testing.T) {
	t.Parallel()

	_, err := transform.Evaluate(nil, map[string]any{})
	terr := requireTransformError(t, err)
	if terr.Code != transform.CodeInvalidTransformInput {
		t.Fatalf("unexpected code %q", terr.Code)
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

func requireTransformError(t *testing.T, err error) *transform.Error {
	t.Helper()
	if err == nil {
		t.Fatal("expected an evaluation error")
	}
	var terr *transform.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transform.Error, got %T: %v", err, err)
	}
	return terr
}
