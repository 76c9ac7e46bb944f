package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-invoicegen/pkg/ast"
)

// Parse decodes a JSON template document, validates it strictly, and returns
// the typed template. On failure it returns a *Error aggregating every issue;
// no partial template is ever returned.
func Parse(raw []byte) (*ast.Template, error) {
	var candidate any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return nil, &Error{Issues: []Issue{{
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("document is not valid JSON: %v", err),
		}}}
	}
	return fromCandidate(candidate)
}

// ParseYAML decodes a YAML template document and validates it like Parse.
func ParseYAML(raw []byte) (*ast.Template, error) {
	var candidate any
	if err := yaml.Unmarshal(raw, &candidate); err != nil {
		return nil, &Error{Issues: []Issue{{
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("document is not valid YAML: %v", err),
		}}}
	}
	return fromCandidate(candidate)
}

// Validate structurally validates a decoded candidate value and returns every
// issue found. An empty result means the candidate is a valid template.
func Validate(candidate any) []Issue {
	_, issues := Build(candidate)
	return issues
}

// Build validates a decoded candidate and constructs the typed template. When
// issues are reported the template is nil.
func Build(candidate any) (*ast.Template, []Issue) {
	b := &builder{}
	tpl := b.template(candidate)
	if len(b.issues) > 0 {
		return nil, b.issues
	}
	return tpl, nil
}

func fromCandidate(candidate any) (*ast.Template, error) {
	tpl, issues := Build(candidate)
	if len(issues) > 0 {
		return nil, &Error{Issues: issues}
	}
	return tpl, nil
}

type builder struct {
	issues []Issue
}

func (b *builder) report(code, path, format string, args ...any) {
	b.issues = append(b.issues, Issue{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *builder) object(path string, v any) (map[string]any, bool) {
	m, ok := asObject(v)
	if !ok {
		b.report(CodeInvalidType, path, "expected an object, got %s", typeName(v))
		return nil, false
	}
	return m, true
}

func (b *builder) unknownKeys(path string, m map[string]any, allowed ...string) {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = struct{}{}
	}
	for key := range m {
		if _, ok := allowedSet[key]; !ok {
			b.report(CodeUnknownKey, joinPath(path, key), "unknown key %q", key)
		}
	}
}

func (b *builder) str(path string, m map[string]any, key string, required bool) (string, bool) {
	raw, present := m[key]
	if !present {
		if required {
			b.report(CodeMissingField, joinPath(path, key), "missing required field %q", key)
		}
		return "", false
	}
	value, ok := raw.(string)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, key), "expected a string, got %s", typeName(raw))
		return "", false
	}
	if required && strings.TrimSpace(value) == "" {
		b.report(CodeInvalidValue, joinPath(path, key), "field %q must not be empty", key)
		return "", false
	}
	return value, true
}

// template validates the document root and builds the typed template.
func (b *builder) template(candidate any) *ast.Template {
	root, ok := b.object("", candidate)
	if !ok {
		return nil
	}
	b.unknownKeys("", root, "version", "metadata", "styles", "bindings", "transforms", "layout")

	tpl := &ast.Template{}

	if raw, present := root["version"]; !present {
		b.report(CodeMissingField, "version", "missing required field %q", "version")
	} else if version, ok := asInt(raw); !ok {
		b.report(CodeInvalidType, "version", "expected an integer, got %s", typeName(raw))
	} else if version != ast.SchemaVersion {
		b.report(CodeVersionMismatch, "version", "unsupported schema version %d, this build understands %d", version, ast.SchemaVersion)
	} else {
		tpl.Version = version
	}

	if raw, present := root["metadata"]; present {
		if metadata, ok := b.object("metadata", raw); ok {
			tpl.Metadata = metadata
		}
	}

	if raw, present := root["styles"]; present {
		tpl.Styles = b.styles("styles", raw)
	}
	if raw, present := root["bindings"]; present {
		tpl.Bindings = b.bindings("bindings", raw)
	}
	if raw, present := root["transforms"]; present && raw != nil {
		tpl.Transforms = b.transforms("transforms", raw)
	}

	raw, present := root["layout"]
	if !present {
		b.report(CodeMissingField, "layout", "missing required field %q", "layout")
		return tpl
	}
	tpl.Layout = b.node("layout", raw)

	// Cross-reference checks need the catalogs, so they run after the
	// structural walk.
	b.checkReferences(tpl)
	return tpl
}

func (b *builder) styles(path string, v any) ast.Styles {
	out := ast.Styles{}
	m, ok := b.object(path, v)
	if !ok {
		return out
	}
	b.unknownKeys(path, m, "tokens", "classes")

	if raw, present := m["tokens"]; present {
		if tokens, ok := b.object(joinPath(path, "tokens"), raw); ok {
			out.Tokens = make(map[string]string, len(tokens))
			for name, value := range tokens {
				text, ok := value.(string)
				if !ok {
					b.report(CodeInvalidType, joinPath(path, "tokens."+name), "token value must be a string, got %s", typeName(value))
					continue
				}
				out.Tokens[name] = text
			}
		}
	}

	if raw, present := m["classes"]; present {
		if classes, ok := b.object(joinPath(path, "classes"), raw); ok {
			out.Classes = make(map[string]ast.Declarations, len(classes))
			for name, value := range classes {
				classPath := joinPath(path, "classes."+name)
				if !safeClassName(name) {
					b.report(CodeInvalidValue, classPath, "class name %q may only contain letters, digits, hyphens, and underscores", name)
					continue
				}
				decls, ok := b.object(classPath, value)
				if !ok {
					continue
				}
				class := make(ast.Declarations, len(decls))
				for property, declValue := range decls {
					text, ok := declValue.(string)
					if !ok {
						b.report(CodeInvalidType, joinPath(classPath, property), "declaration value must be a string, got %s", typeName(declValue))
						continue
					}
					class[property] = text
				}
				out.Classes[name] = class
			}
		}
	}
	return out
}

func (b *builder) bindings(path string, v any) ast.Bindings {
	out := ast.Bindings{}
	m, ok := b.object(path, v)
	if !ok {
		return out
	}
	b.unknownKeys(path, m, "values", "collections")

	if raw, present := m["values"]; present {
		if values, ok := b.object(joinPath(path, "values"), raw); ok {
			out.Values = make(map[string]ast.ValueBinding, len(values))
			for name, value := range values {
				bindingPath := joinPath(path, "values."+name)
				binding, ok := b.object(bindingPath, value)
				if !ok {
					continue
				}
				b.unknownKeys(bindingPath, binding, "expr")
				expr, _ := b.str(bindingPath, binding, "expr", true)
				out.Values[name] = ast.ValueBinding{Expr: expr}
			}
		}
	}

	if raw, present := m["collections"]; present {
		if collections, ok := b.object(joinPath(path, "collections"), raw); ok {
			out.Collections = make(map[string]ast.CollectionBinding, len(collections))
			for name, value := range collections {
				bindingPath := joinPath(path, "collections."+name)
				binding, ok := b.object(bindingPath, value)
				if !ok {
					continue
				}
				b.unknownKeys(bindingPath, binding, "source")
				source, _ := b.str(bindingPath, binding, "source", true)
				out.Collections[name] = ast.CollectionBinding{Source: source}
			}
		}
	}
	return out
}

func (b *builder) transforms(path string, v any) *ast.Transforms {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "source", "operations")

	source, _ := b.str(path, m, "source", false)

	raw, present := m["operations"]
	if !present {
		b.report(CodeMissingField, joinPath(path, "operations"), "missing required field %q", "operations")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, "operations"), "expected a list, got %s", typeName(raw))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, joinPath(path, "operations"), "transforms.operations must not be empty")
		return nil
	}

	out := &ast.Transforms{Source: source, Operations: make([]ast.Operation, 0, len(list))}
	for idx, entry := range list {
		out.Operations = append(out.Operations, b.operation(fmt.Sprintf("%s.operations[%d]", path, idx), entry))
	}
	return out
}

func (b *builder) operation(path string, v any) ast.Operation {
	op := ast.Operation{}
	m, ok := b.object(path, v)
	if !ok {
		return op
	}
	b.unknownKeys(path, m, "kind", "strategyId",
		string(ast.OpFilter), string(ast.OpSort), string(ast.OpGroup),
		string(ast.OpAggregate), string(ast.OpComputedField), string(ast.OpTotalsCompose))

	kindRaw, _ := b.str(path, m, "kind", true)
	op.Kind = ast.OpKind(kindRaw)
	if kindRaw != "" && !knownOpKind(op.Kind) {
		b.report(CodeUnknownVariant, joinPath(path, "kind"), "unknown operation kind %q", kindRaw)
		return op
	}
	if strategyID, ok := b.str(path, m, "strategyId", false); ok {
		op.StrategyID = strategyID
	}

	// The payload key must match the declared kind; a payload for a different
	// operation kind is reported rather than ignored.
	for _, kind := range ast.KnownOpKinds() {
		if _, present := m[string(kind)]; present && kind != op.Kind {
			b.report(CodeInvalidValue, joinPath(path, string(kind)), "payload %q does not match operation kind %q", kind, op.Kind)
		}
	}
	if op.Kind == "" {
		return op
	}

	payloadPath := joinPath(path, string(op.Kind))
	payload, present := m[string(op.Kind)]
	if !present {
		b.report(CodeMissingField, payloadPath, "missing %q payload", op.Kind)
		return op
	}

	switch op.Kind {
	case ast.OpFilter:
		op.Filter = b.filterOp(payloadPath, payload)
	case ast.OpSort:
		op.Sort = b.sortOp(payloadPath, payload)
	case ast.OpGroup:
		op.Group = b.groupOp(payloadPath, payload, op.StrategyID)
	case ast.OpAggregate:
		op.Aggregate = b.aggregateOp(payloadPath, payload)
	case ast.OpComputedField:
		op.ComputedField = b.computedFieldOp(payloadPath, payload)
	case ast.OpTotalsCompose:
		op.TotalsCompose = b.totalsComposeOp(payloadPath, payload)
	}
	return op
}

func (b *builder) filterOp(path string, v any) *ast.FilterOp {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "conditions")

	raw, present := m["conditions"]
	if !present {
		b.report(CodeMissingField, joinPath(path, "conditions"), "missing required field %q", "conditions")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, "conditions"), "expected a list, got %s", typeName(raw))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, joinPath(path, "conditions"), "filter requires at least one condition")
		return nil
	}

	out := &ast.FilterOp{Conditions: make([]string, 0, len(list))}
	for idx, entry := range list {
		entryPath := fmt.Sprintf("%s.conditions[%d]", path, idx)
		condition, ok := entry.(string)
		if !ok {
			b.report(CodeInvalidType, entryPath, "expected a string, got %s", typeName(entry))
			continue
		}
		if strings.TrimSpace(condition) == "" {
			b.report(CodeInvalidValue, entryPath, "condition must not be empty")
			continue
		}
		out.Conditions = append(out.Conditions, condition)
	}
	return out
}

func (b *builder) sortOp(path string, v any) *ast.SortOp {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "keys")

	raw, present := m["keys"]
	if !present {
		b.report(CodeMissingField, joinPath(path, "keys"), "missing required field %q", "keys")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, "keys"), "expected a list, got %s", typeName(raw))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, joinPath(path, "keys"), "sort requires at least one key")
		return nil
	}

	out := &ast.SortOp{Keys: make([]ast.SortKey, 0, len(list))}
	for idx, entry := range list {
		entryPath := fmt.Sprintf("%s.keys[%d]", path, idx)
		keyObj, ok := b.object(entryPath, entry)
		if !ok {
			continue
		}
		b.unknownKeys(entryPath, keyObj, "field", "direction")
		field, _ := b.str(entryPath, keyObj, "field", true)
		direction, _ := b.str(entryPath, keyObj, "direction", true)
		switch ast.SortDirection(direction) {
		case ast.SortAsc, ast.SortDesc:
		default:
			if direction != "" {
				b.report(CodeInvalidValue, joinPath(entryPath, "direction"), "direction must be %q or %q, got %q", ast.SortAsc, ast.SortDesc, direction)
			}
		}
		out.Keys = append(out.Keys, ast.SortKey{Field: field, Direction: ast.SortDirection(direction)})
	}
	return out
}

func (b *builder) groupOp(path string, v any, strategyID string) *ast.GroupOp {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "key")

	// A strategy hook replaces the literal key expression, so the key is only
	// mandatory when no strategy is declared.
	key, present := b.str(path, m, "key", false)
	if !present && strategyID == "" {
		b.report(CodeMissingField, joinPath(path, "key"), "group requires a key expression or a strategyId")
	}
	return &ast.GroupOp{Key: key}
}

func (b *builder) aggregateOp(path string, v any) *ast.AggregateOp {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "aggregations")

	raw, present := m["aggregations"]
	if !present {
		b.report(CodeMissingField, joinPath(path, "aggregations"), "missing required field %q", "aggregations")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, "aggregations"), "expected a list, got %s", typeName(raw))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, joinPath(path, "aggregations"), "aggregate requires at least one aggregation")
		return nil
	}

	out := &ast.AggregateOp{Aggregations: make([]ast.Aggregation, 0, len(list))}
	for idx, entry := range list {
		entryPath := fmt.Sprintf("%s.aggregations[%d]", path, idx)
		aggObj, ok := b.object(entryPath, entry)
		if !ok {
			continue
		}
		b.unknownKeys(entryPath, aggObj, "name", "fn", "field")
		name, _ := b.str(entryPath, aggObj, "name", true)
		fnRaw, _ := b.str(entryPath, aggObj, "fn", true)
		fn := ast.AggregateFn(fnRaw)
		switch fn {
		case ast.AggSum, ast.AggCount, ast.AggAvg, ast.AggMin, ast.AggMax:
		default:
			if fnRaw != "" {
				b.report(CodeInvalidValue, joinPath(entryPath, "fn"), "unknown aggregation function %q", fnRaw)
			}
		}
		field, _ := b.str(entryPath, aggObj, "field", false)
		if field == "" && fn != ast.AggCount && fnRaw != "" {
			b.report(CodeMissingField, joinPath(entryPath, "field"), "aggregation %q requires a field", fnRaw)
		}
		out.Aggregations = append(out.Aggregations, ast.Aggregation{Name: name, Fn: fn, Field: field})
	}
	return out
}

func (b *builder) computedFieldOp(path string, v any) *ast.ComputedFieldOp {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "fields")

	raw, present := m["fields"]
	if !present {
		b.report(CodeMissingField, joinPath(path, "fields"), "missing required field %q", "fields")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, "fields"), "expected a list, got %s", typeName(raw))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, joinPath(path, "fields"), "computed-field requires at least one field")
		return nil
	}

	out := &ast.ComputedFieldOp{Fields: make([]ast.ComputedField, 0, len(list))}
	for idx, entry := range list {
		entryPath := fmt.Sprintf("%s.fields[%d]", path, idx)
		fieldObj, ok := b.object(entryPath, entry)
		if !ok {
			continue
		}
		b.unknownKeys(entryPath, fieldObj, "name", "expr")
		name, _ := b.str(entryPath, fieldObj, "name", true)
		expr, _ := b.str(entryPath, fieldObj, "expr", true)
		out.Fields = append(out.Fields, ast.ComputedField{Name: name, Expr: expr})
	}
	return out
}

func (b *builder) totalsComposeOp(path string, v any) *ast.TotalsComposeOp {
	m, ok := b.object(path, v)
	if !ok {
		return nil
	}
	b.unknownKeys(path, m, "totals")

	raw, present := m["totals"]
	if !present {
		b.report(CodeMissingField, joinPath(path, "totals"), "missing required field %q", "totals")
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		b.report(CodeInvalidType, joinPath(path, "totals"), "expected a list, got %s", typeName(raw))
		return nil
	}
	if len(list) == 0 {
		b.report(CodeEmptyList, joinPath(path, "totals"), "totals-compose requires at least one total")
		return nil
	}

	out := &ast.TotalsComposeOp{Totals: make([]ast.Total, 0, len(list))}
	for idx, entry := range list {
		entryPath := fmt.Sprintf("%s.totals[%d]", path, idx)
		totalObj, ok := b.object(entryPath, entry)
		if !ok {
			continue
		}
		b.unknownKeys(entryPath, totalObj, "name", "aggregate", "expr")
		name, _ := b.str(entryPath, totalObj, "name", true)
		aggregate, _ := b.str(entryPath, totalObj, "aggregate", false)
		expr, _ := b.str(entryPath, totalObj, "expr", false)
		if aggregate == "" && expr == "" {
			b.report(CodeMissingField, entryPath, "total %q requires an aggregate reference or an expression", name)
		}
		if aggregate != "" && expr != "" {
			b.report(CodeInvalidValue, entryPath, "total %q must declare exactly one of aggregate or expr", name)
		}
		out.Totals = append(out.Totals, ast.Total{Name: name, Aggregate: aggregate, Expr: expr})
	}
	return out
}

// safeClassName reports whether a style class name stays within the charset
// that is inert in HTML class attributes and CSS selectors.
func safeClassName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func knownOpKind(kind ast.OpKind) bool {
	for _, known := range ast.KnownOpKinds() {
		if kind == known {
			return true
		}
	}
	return false
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
