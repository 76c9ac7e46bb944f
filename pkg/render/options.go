package render

import theme "github.com/goliatone/go-theme"

// Option configures a Renderer before construction.
type Option func(*config)

type config struct {
	baseTokens  map[string]string
	classPrefix string
}

// WithThemeSelection seeds the style token table from a resolved go-theme
// selection. Template-declared tokens override theme tokens of the same
// name.
func WithThemeSelection(selection *theme.Selection) Option {
	return func(cfg *config) {
		if selection == nil || selection.Manifest == nil || len(selection.Manifest.Tokens) == 0 {
			return
		}
		if cfg.baseTokens == nil {
			cfg.baseTokens = make(map[string]string, len(selection.Manifest.Tokens))
		}
		for name, value := range selection.Manifest.Tokens {
			cfg.baseTokens[name] = value
		}
	}
}

// WithBaseTokens seeds style tokens directly, without a theme manifest.
func WithBaseTokens(tokens map[string]string) Option {
	return func(cfg *config) {
		if len(tokens) == 0 {
			return
		}
		if cfg.baseTokens == nil {
			cfg.baseTokens = make(map[string]string, len(tokens))
		}
		for name, value := range tokens {
			cfg.baseTokens[name] = value
		}
	}
}

// WithClassPrefix overrides the class prefix used for emitted markup and
// CSS selectors. The default is "inv".
func WithClassPrefix(prefix string) Option {
	return func(cfg *config) {
		if prefix != "" {
			cfg.classPrefix = prefix
		}
	}
}
