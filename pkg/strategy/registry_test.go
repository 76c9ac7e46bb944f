package strategy

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultRegistryList(t *testing.T) {
	t.Parallel()

	got := Default().List()
	want := []string{AmountBand, CustomGroupKey, MonthBucket}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("allowlist mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteRejectsUnknownIdentifier(t *testing.T) {
	t.Parallel()

	registry := Default()
	if registry.IsAllowlisted("not-a-real-strategy") {
		t.Fatal("unknown identifier must not be allowlisted")
	}

	_, err := registry.Execute("not-a-real-strategy", map[string]any{})
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if serr.Code != CodeNotAllowlisted {
		t.Fatalf("unexpected code %q", serr.Code)
	}
	if serr.ID != "not-a-real-strategy" {
		t.Fatalf("error should carry the offending identifier, got %q", serr.ID)
	}
}

func TestExecuteCustomGroupKey(t *testing.T) {
	t.Parallel()

	registry := Default()

	key, err := registry.Execute(CustomGroupKey, map[string]any{"category": "  Services "})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if key != "services" {
		t.Fatalf("expected normalized key, got %v", key)
	}

	key, err = registry.Execute(CustomGroupKey, map[string]any{"type": "Hardware"})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if key != "hardware" {
		t.Fatalf("expected fallback to type field, got %v", key)
	}

	_, err = registry.Execute(CustomGroupKey, map[string]any{"amount": 1})
	var serr *Error
	if !errors.As(err, &serr) || serr.Code != CodeExecutionFailed {
		t.Fatalf("expected execution failure for missing key fields, got %v", err)
	}
}

func TestExecuteMonthBucket(t *testing.T) {
	t.Parallel()

	registry := Default()

	cases := map[string]string{
		"2026-03-14T10:30:00Z": "2026-03",
		"2026-03-14":           "2026-03",
		"2026-03":              "2026-03",
	}
	for input, want := range cases {
		key, err := registry.Execute(MonthBucket, map[string]any{"date": input})
		if err != nil {
			t.Fatalf("Execute(%q) returned error: %v", input, err)
		}
		if key != want {
			t.Fatalf("Execute(%q) = %v, want %q", input, key, want)
		}
	}

	if _, err := registry.Execute(MonthBucket, map[string]any{"date": "soon"}); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestExecuteAmountBand(t *testing.T) {
	t.Parallel()

	registry := Default()

	cases := map[float64]string{12: "small", 450: "medium", 5000: "large"}
	for amount, want := range cases {
		key, err := registry.Execute(AmountBand, map[string]any{"amount": amount})
		if err != nil {
			t.Fatalf("Execute returned error: %v", err)
		}
		if key != want {
			t.Fatalf("amount %v banded as %v, want %q", amount, key, want)
		}
	}
}

func TestExecuteRecoversPanics(t *testing.T) {
	t.Parallel()

	registry := New(map[string]Fn{
		"explode": func(any) (any, error) { panic("boom") },
	})

	_, err := registry.Execute("explode", nil)
	var serr *Error
	if !errors.As(err, &serr) || serr.Code != CodeExecutionFailed {
		t.Fatalf("panicking hook must surface as execution failure, got %v", err)
	}
}

func TestNewCopiesEntryTable(t *testing.T) {
	t.Parallel()

	entries := map[string]Fn{
		"stable": func(any) (any, error) { return "ok", nil },
	}
	registry := New(entries)
	entries["injected"] = func(any) (any, error) { return "bad", nil }

	if registry.IsAllowlisted("injected") {
		t.Fatal("mutating the source map must not widen the allowlist")
	}
}
