package expr

import (
	"strings"
	"testing"
)

func TestEvalComparison(t *testing.T) {
	t.Parallel()

	scope := MapScope{"amount": 120.0, "category": "services"}

	value, err := Eval("amount > 100", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != true {
		t.Fatalf("expected true, got %v", value)
	}

	value, err = Eval(`category == "services"`, scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != true {
		t.Fatalf("expected true for string equality, got %v", value)
	}

	value, err = Eval("amount <= 100", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != false {
		t.Fatalf("expected false, got %v", value)
	}
}

func TestEvalArithmetic(t *testing.T) {
	t.Parallel()

	scope := MapScope{"quantity": 3.0, "unitPrice": 25.0}

	value, err := Eval("quantity * unitPrice", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != 75.0 {
		t.Fatalf("expected 75, got %v", value)
	}

	value, err = Eval("(quantity + 1) * 2 - 4", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != 4.0 {
		t.Fatalf("expected 4, got %v", value)
	}

	if _, err := Eval("quantity / 0", scope); err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestEvalStringConcat(t *testing.T) {
	t.Parallel()

	scope := MapScope{"number": "INV-1042"}

	value, err := Eval(`"Invoice " + number`, scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != "Invoice INV-1042" {
		t.Fatalf("unexpected concat result: %v", value)
	}
}

func TestEvalBooleanComposition(t *testing.T) {
	t.Parallel()

	scope := MapScope{"amount": 50.0, "taxable": true}

	value, err := Eval("amount > 0 && taxable", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != true {
		t.Fatalf("expected true, got %v", value)
	}

	value, err = Eval("amount > 100 || !taxable", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != false {
		t.Fatalf("expected false, got %v", value)
	}
}

func TestEvalNullAndMissing(t *testing.T) {
	t.Parallel()

	scope := MapScope{"present": "x"}

	value, err := Eval("missing == null", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != true {
		t.Fatalf("expected missing == null to hold, got %v", value)
	}

	value, err = Eval("present != null", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != true {
		t.Fatalf("expected present != null to hold, got %v", value)
	}
}

func TestEvalDotTraversal(t *testing.T) {
	t.Parallel()

	scope := MapScope{
		"customer": map[string]any{"name": "Blue Harbor Co"},
	}

	value, err := Eval("customer.name", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != "Blue Harbor Co" {
		t.Fatalf("unexpected traversal result: %v", value)
	}
}

func TestEvalSingleQuotedString(t *testing.T) {
	t.Parallel()

	value, err := Eval(`category == 'services'`, MapScope{"category": "services"})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != true {
		t.Fatalf("expected true for single-quoted literal, got %v", value)
	}
}

func TestEvalBoolEmptyExpression(t *testing.T) {
	t.Parallel()

	ok, err := EvalBool("   ", MapScope{})
	if err != nil {
		t.Fatalf("EvalBool returned error: %v", err)
	}
	if !ok {
		t.Fatal("empty expression must evaluate to true")
	}
}

func TestEvalSyntaxErrors(t *testing.T) {
	t.Parallel()

	cases := []string{
		"amount >",
		"(amount > 1",
		"amount = 1",
		`"unterminated`,
		"a && ",
	}
	for _, input := range cases {
		if _, err := Eval(input, MapScope{}); err == nil {
			t.Fatalf("expected error for %q", input)
		} else if !strings.HasPrefix(err.Error(), "transform/expr:") {
			t.Fatalf("error for %q missing package prefix: %v", input, err)
		}
	}
}

func TestPrefixScopeStripsNamespace(t *testing.T) {
	t.Parallel()

	scope := PrefixScope{Prefix: "item.", Next: MapScope{"amount": 120.0}}

	value, err := Eval("item.amount", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != 120.0 {
		t.Fatalf("expected prefixed lookup to resolve, got %v", value)
	}

	value, err = Eval("amount", scope)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if value != 120.0 {
		t.Fatalf("expected bare lookup to fall through, got %v", value)
	}
}
