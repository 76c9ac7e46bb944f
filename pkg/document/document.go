// Package document wraps a rendered fragment in a standalone HTML shell
// suitable for headless-browser PDF capture. The fragment markup and CSS are
// embedded verbatim, so the wrapped document renders identically to the
// preview fragment.
package document

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-invoicegen/pkg/render"
)

//go:embed shell.html
var shellSource string

var (
	shellOnce sync.Once
	shellTpl  *pongo2.Template
	shellErr  error
)

// Options controls the wrapping shell. Zero value produces a usable document.
type Options struct {
	// Title populates the document <title>. Defaults to "Invoice".
	Title string
	// BodyClass is applied to the <body> element when set.
	BodyClass string
	// AdditionalCSS is appended after the fragment stylesheet, letting the
	// caller inject print rules such as @page margins.
	AdditionalCSS string
}

// Wrap embeds the fragment in the HTML shell. Title and body class are
// escaped by the template engine; fragment markup and CSS pass through
// untouched since the renderer already escaped all dynamic content.
func Wrap(fragment render.Fragment, opts Options) (string, error) {
	tpl, err := shellTemplate()
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Invoice"
	}

	out, err := tpl.Execute(pongo2.Context{
		"title":      title,
		"body_class": strings.TrimSpace(opts.BodyClass),
		"css":        fragment.CSS,
		"extra_css":  strings.TrimSpace(opts.AdditionalCSS),
		"fragment":   fragment.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("document: execute shell template: %w", err)
	}
	return out, nil
}

func shellTemplate() (*pongo2.Template, error) {
	shellOnce.Do(func() {
		tpl, err := pongo2.FromString(shellSource)
		if err != nil {
			shellErr = fmt.Errorf("document: parse shell template: %w", err)
			return
		}
		shellTpl = tpl
	})
	return shellTpl, shellErr
}
