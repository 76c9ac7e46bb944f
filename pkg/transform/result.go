package transform

import "encoding/json"

// Row is one shaped output row.
type Row = map[string]any

// Aggregates holds named aggregate values computed over the whole row set
// and independently per group.
type Aggregates struct {
	Overall  map[string]float64            `json:"overall"`
	PerGroup map[string]map[string]float64 `json:"perGroup"`
}

// Result is the ephemeral, deterministic output of one evaluation call. It
// is constructed fresh per call, never mutated after construction, and
// discarded once the renderer has consumed it.
//
// Serialized output is canonical: struct fields emit in declared order and
// every map marshals with sorted keys, so identical template + view-model
// inputs produce byte-identical bytes regardless of host map iteration
// order. GroupOrder preserves first-appearance order of group keys over the
// sorted row sequence, which map keys alone cannot carry.
type Result struct {
	Output     []Row            `json:"output"`
	Groups     map[string][]Row `json:"groups"`
	GroupOrder []string         `json:"groupOrder"`
	Aggregates Aggregates       `json:"aggregates"`
	Totals     map[string]any   `json:"totals"`
	Bindings   map[string]any   `json:"bindings"`
}

// Canonical returns the canonical serialized form of the result.
func (r *Result) Canonical() ([]byte, error) {
	return json.Marshal(r)
}

// canonicalValue passes a value through JSON so every nested structure lands
// in the map[string]any / []any / float64 shape the canonical serializer
// sorts deterministically. Host-native types (time.Time, custom structs)
// would otherwise leak encoder-specific forms into the result.
func canonicalValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case string, bool, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func canonicalRow(v any) (Row, bool) {
	normalized, err := canonicalValue(v)
	if err != nil {
		return nil, false
	}
	row, ok := normalized.(map[string]any)
	return row, ok
}
