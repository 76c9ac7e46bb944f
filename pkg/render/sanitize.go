package render

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	logoPolicyOnce sync.Once
	logoPolicy     *bluemonday.Policy
)

// sanitizeSVGMarkup strips everything from an inline logo except a safe SVG
// subset. Script elements, event handlers, and foreignObject never survive.
func sanitizeSVGMarkup(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	policy := logoSanitizer()
	cleaned := strings.TrimSpace(policy.Sanitize(trimmed))
	if cleaned == "" {
		return ""
	}
	return cleaned
}

func logoSanitizer() *bluemonday.Policy {
	logoPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		elements := []string{
			"svg", "g", "path", "circle", "rect", "line", "polyline", "polygon",
			"ellipse", "text", "tspan", "title", "desc", "defs", "use", "clipPath",
			"linearGradient", "radialGradient", "stop",
		}
		policy.AllowElements(elements...)

		policy.AllowAttrs(
			"xmlns", "viewBox", "width", "height", "fill", "stroke",
			"stroke-width", "stroke-linecap", "stroke-linejoin", "aria-hidden",
			"role", "focusable", "class",
		).OnElements("svg")

		policy.AllowAttrs(
			"href", "xlink:href", "clip-path",
		).OnElements("use")

		for _, el := range []string{"path", "circle", "rect", "line", "polyline", "polygon", "ellipse"} {
			policy.AllowAttrs(
				"d", "cx", "cy", "r", "x", "y", "x1", "y1", "x2", "y2",
				"points", "rx", "ry", "fill", "stroke", "stroke-width",
				"stroke-linecap", "stroke-linejoin", "class", "transform",
			).OnElements(el)
		}

		policy.AllowAttrs(
			"x", "y", "dx", "dy", "fill", "font-family", "font-size",
			"font-weight", "text-anchor", "class",
		).OnElements("text", "tspan")

		policy.AllowAttrs("id", "x1", "y1", "x2", "y2", "cx", "cy", "r",
			"gradientUnits", "gradientTransform").OnElements("linearGradient", "radialGradient")
		policy.AllowAttrs("offset", "stop-color", "stop-opacity").OnElements("stop")

		policy.AllowAttrs("id", "clipPathUnits").OnElements("clipPath")
		policy.AllowAttrs("id").OnElements("defs")
		policy.AllowAttrs("id", "transform").OnElements("g")

		logoPolicy = policy
	})
	return logoPolicy
}
