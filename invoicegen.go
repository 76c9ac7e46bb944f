// Package invoicegen evaluates declarative invoice templates against caller
// supplied view-model data and renders deterministic HTML output. The root
// package wires the full sequence: schema validation, transform pipeline
// evaluation, fragment rendering, and optional document wrapping.
package invoicegen

import (
	"context"
	"errors"
	"fmt"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-invoicegen/pkg/ast"
	"github.com/goliatone/go-invoicegen/pkg/document"
	"github.com/goliatone/go-invoicegen/pkg/render"
	"github.com/goliatone/go-invoicegen/pkg/strategy"
	"github.com/goliatone/go-invoicegen/pkg/transform"
	"github.com/goliatone/go-invoicegen/pkg/validation"
)

// Fragment aliases render.Fragment for callers that only import the root
// package.
type Fragment = render.Fragment

// Issue aliases validation.Issue so callers can inspect structured schema
// findings without importing the validation package.
type Issue = validation.Issue

// Option customises the pipeline configuration.
type Option func(*Pipeline)

// WithRegistry injects the strategy allowlist consulted during transform
// evaluation. Defaults to the built-in registry.
func WithRegistry(registry *strategy.Registry) Option {
	return func(p *Pipeline) {
		p.registry = registry
	}
}

// WithRenderOptions forwards renderer configuration such as class prefixes
// or base style tokens.
func WithRenderOptions(options ...render.Option) Option {
	return func(p *Pipeline) {
		p.renderOptions = append(p.renderOptions, options...)
	}
}

// WithThemeSelection seeds renderer style tokens from a resolved go-theme
// selection. Template-level tokens still win on conflict.
func WithThemeSelection(selection *theme.Selection) Option {
	return func(p *Pipeline) {
		p.renderOptions = append(p.renderOptions, render.WithThemeSelection(selection))
	}
}

// WithThemeSelector resolves the named theme and variant through a go-theme
// selector at construction time. Resolution failures surface on the first
// pipeline call.
func WithThemeSelector(selector theme.ThemeSelector, name, variant string) Option {
	return func(p *Pipeline) {
		if selector == nil {
			p.initErr = errors.New("invoicegen: theme selector is required")
			return
		}
		selection, err := selector.Select(name, variant)
		if err != nil {
			p.initErr = fmt.Errorf("invoicegen: resolve theme %q/%q: %w", name, variant, err)
			return
		}
		p.renderOptions = append(p.renderOptions, render.WithThemeSelection(selection))
	}
}

// Pipeline coordinates validation, transform evaluation, and rendering. A
// zero-option pipeline uses the built-in strategy registry and default
// renderer configuration.
type Pipeline struct {
	registry      *strategy.Registry
	renderOptions []render.Option
	initErr       error
}

// New constructs a Pipeline applying any provided options.
func New(options ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(p)
	}
	if p.registry == nil {
		p.registry = strategy.Default()
	}
	return p
}

// Request describes one evaluation: a template in exactly one representation
// plus the invoice view-model it runs against.
type Request struct {
	// Template supplies an already validated template. Optional when raw
	// bytes are provided instead.
	Template *ast.Template

	// TemplateJSON holds raw JSON template bytes. Parsed and validated when
	// Template is nil.
	TemplateJSON []byte

	// TemplateYAML holds raw YAML template bytes. Parsed and validated when
	// Template and TemplateJSON are both unset.
	TemplateYAML []byte

	// ViewModel is the invoice data the transform pipeline evaluates.
	ViewModel map[string]any
}

// Preview validates the template, runs the transform pipeline, and renders
// the HTML fragment plus consolidated CSS.
func (p *Pipeline) Preview(ctx context.Context, req Request) (Fragment, error) {
	tpl, result, err := p.evaluate(ctx, req)
	if err != nil {
		return Fragment{}, err
	}
	return render.New(p.renderOptions...).Render(tpl, result)
}

// Document renders the fragment and wraps it in a standalone HTML shell for
// PDF capture. The embedded fragment is byte-identical to Preview output.
func (p *Pipeline) Document(ctx context.Context, req Request, opts document.Options) (string, error) {
	fragment, err := p.Preview(ctx, req)
	if err != nil {
		return "", err
	}
	return document.Wrap(fragment, opts)
}

// Evaluate exposes the transform pipeline result without rendering, for
// callers that want the canonical evaluation output directly.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) (*transform.Result, error) {
	_, result, err := p.evaluate(ctx, req)
	return result, err
}

func (p *Pipeline) evaluate(ctx context.Context, req Request) (*ast.Template, *transform.Result, error) {
	if ctx == nil {
		return nil, nil, errors.New("invoicegen: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if p.initErr != nil {
		return nil, nil, p.initErr
	}

	tpl, err := p.resolveTemplate(req)
	if err != nil {
		return nil, nil, err
	}

	evaluator := transform.New(transform.WithRegistry(p.registry))
	result, err := evaluator.Evaluate(tpl, req.ViewModel)
	if err != nil {
		return nil, nil, err
	}
	return tpl, result, nil
}

func (p *Pipeline) resolveTemplate(req Request) (*ast.Template, error) {
	switch {
	case req.Template != nil:
		return req.Template, nil
	case len(req.TemplateJSON) > 0:
		return validation.Parse(req.TemplateJSON)
	case len(req.TemplateYAML) > 0:
		return validation.ParseYAML(req.TemplateYAML)
	default:
		return nil, errors.New("invoicegen: request needs a template")
	}
}

// Preview runs a one-off pipeline with default configuration.
func Preview(ctx context.Context, req Request, options ...Option) (Fragment, error) {
	return New(options...).Preview(ctx, req)
}

// Document runs a one-off pipeline with default configuration and wraps the
// output in the document shell.
func Document(ctx context.Context, req Request, opts document.Options, options ...Option) (string, error) {
	return New(options...).Document(ctx, req, opts)
}
