package transform

import (
	"strings"

	"github.com/goliatone/go-invoicegen/pkg/transform/expr"
)

// evalScope resolves the namespaces row-level expressions can reference:
// "bindings." for the resolved binding catalog, "agg." for aggregate values,
// and bare identifiers for fields of the current row (or view-model). Unknown
// bindings and aggregate references are hard errors; unknown row fields
// resolve to null.
type evalScope struct {
	row        map[string]any
	bindings   map[string]any
	aggregates map[string]float64
	totals     map[string]any
	item       string
}

func (s evalScope) Resolve(path string) (any, error) {
	if name, ok := strings.CutPrefix(path, "bindings."); ok {
		head, rest, _ := strings.Cut(name, ".")
		value, declared := s.bindings[head]
		if !declared {
			return nil, &missingBinding{name: head}
		}
		if rest == "" {
			return value, nil
		}
		if nested, ok := value.(map[string]any); ok {
			return expr.MapScope(nested).Resolve(rest)
		}
		return nil, nil
	}

	if name, ok := strings.CutPrefix(path, "agg."); ok {
		value, computed := s.aggregates[name]
		if !computed {
			return nil, &invalidOperand{ref: path}
		}
		return value, nil
	}

	if name, ok := strings.CutPrefix(path, "totals."); ok {
		if s.totals == nil {
			return nil, nil
		}
		return s.totals[name], nil
	}

	rowScope := expr.Scope(expr.MapScope(s.row))
	if s.item != "" {
		rowScope = expr.PrefixScope{Prefix: s.item + ".", Next: rowScope}
	}
	return rowScope.Resolve(path)
}

// Scope exposes the evaluation result to renderer expressions: bindings,
// overall aggregates, totals, and the supplied current row. The itemBinding
// name declared by a repeat region prefixes row lookups; an empty item keeps
// bare row lookups only.
func (r *Result) Scope(row Row, item string) expr.Scope {
	return evalScope{
		row:        row,
		bindings:   r.Bindings,
		aggregates: r.Aggregates.Overall,
		totals:     r.Totals,
		item:       item,
	}
}
