package document_test

import (
	"strings"
	"testing"

	"github.com/goliatone/go-invoicegen/pkg/document"
	"github.com/goliatone/go-invoicegen/pkg/render"
)

func TestWrapEmbedsFragmentVerbatim(t *testing.T) {
	t.Parallel()

	fragment := render.Fragment{
		HTML: `<div class="inv-document"><p class="inv-text">Invoice</p></div>`,
		CSS:  ".inv-c-title {\n  color: #1a73e8;\n}\n",
	}

	doc, err := document.Wrap(fragment, document.Options{Title: "Invoice INV-1042"})
	if err != nil {
		t.Fatalf("Wrap returned error: %v", err)
	}

	if !strings.Contains(doc, fragment.HTML) {
		t.Fatal("wrapped document must embed the fragment markup untouched")
	}
	if !strings.Contains(doc, fragment.CSS) {
		t.Fatal("wrapped document must embed the fragment stylesheet untouched")
	}
	if !strings.Contains(doc, "<title>Invoice INV-1042</title>") {
		t.Fatalf("missing document title:\n%s", doc)
	}
	if !strings.HasPrefix(doc, "<!DOCTYPE html>") {
		t.Fatal("wrapped output must be a standalone document")
	}
}

func TestWrapEscapesShellInputs(t *testing.T) {
	t.Parallel()

	doc, err := document.Wrap(render.Fragment{}, document.Options{
		Title: `<script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatalf("Wrap returned error: %v", err)
	}
	if strings.Contains(doc, "<script>") {
		t.Fatal("title was not escaped")
	}
	if !strings.Contains(doc, "&lt;script&gt;") {
		t.Fatalf("expected escaped title:\n%s", doc)
	}
}

func TestWrapDefaults(t *testing.T) {
	t.Parallel()

	doc, err := document.Wrap(render.Fragment{}, document.Options{})
	if err != nil {
		t.Fatalf("Wrap returned error: %v", err)
	}
	if !strings.Contains(doc, "<title>Invoice</title>") {
		t.Fatalf("expected default title:\n%s", doc)
	}
	if strings.Contains(doc, `<body class=`) {
		t.Fatal("body class must be omitted when unset")
	}
}

func TestWrapOptions(t *testing.T) {
	t.Parallel()

	doc, err := document.Wrap(render.Fragment{CSS: ".a {}"}, document.Options{
		BodyClass:     "invoice-print",
		AdditionalCSS: "@page { margin: 2cm; }",
	})
	if err != nil {
		t.Fatalf("Wrap returned error: %v", err)
	}
	if !strings.Contains(doc, `<body class="invoice-print">`) {
		t.Fatalf("missing body class:\n%s", doc)
	}
	if !strings.Contains(doc, "@page { margin: 2cm; }") {
		t.Fatalf("missing additional css:\n%s", doc)
	}
}
