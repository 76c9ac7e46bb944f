package ast

// SchemaVersion is the template document version this evaluator/renderer
// pair understands. Documents declaring any other version fail validation
// rather than being coerced.
const SchemaVersion = 1

// Reserved collection sources that bind a repeat region to the transform
// pipeline's output instead of a raw view-model path.
const (
	SourceOutput = "$output"
	SourceGroups = "$groups"
)

// Template is the versioned, declarative invoice template document: layout
// tree plus style/binding catalogs and an optional transform pipeline.
type Template struct {
	Version    int            `json:"version"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Styles     Styles         `json:"styles"`
	Bindings   Bindings       `json:"bindings"`
	Transforms *Transforms    `json:"transforms,omitempty"`
	Layout     Node           `json:"layout"`
}

// Styles is the document's style catalog: a named token table and class
// declarations referencing tokens. Declaration values may reference a token
// by prefixing its name with '$'.
type Styles struct {
	Tokens  map[string]string       `json:"tokens,omitempty"`
	Classes map[string]Declarations `json:"classes,omitempty"`
}

// Declarations maps CSS property names to values for one style class.
type Declarations map[string]string

// Bindings is the document's binding catalog. Value bindings resolve scalar
// expressions against the invoice view-model or current row scope; collection
// bindings name the sequences that drive repeat regions.
type Bindings struct {
	Values      map[string]ValueBinding      `json:"values,omitempty"`
	Collections map[string]CollectionBinding `json:"collections,omitempty"`
}

// ValueBinding is a named scalar expression.
type ValueBinding struct {
	Expr string `json:"expr"`
}

// CollectionBinding names a sequence source: a dot path into the invoice
// view-model, or one of the reserved SourceOutput / SourceGroups names that
// bind against the transform pipeline's shaped rows.
type CollectionBinding struct {
	Source string `json:"source"`
}

// Transforms holds the ordered transform pipeline. Operations is non-empty
// whenever the block is present. Source optionally names the collection
// binding feeding the pipeline; when omitted, exactly one view-model
// collection binding must be declared and it becomes the input.
type Transforms struct {
	Source     string      `json:"source,omitempty"`
	Operations []Operation `json:"operations"`
}
