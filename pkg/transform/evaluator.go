// Package transform runs a validated template's transform pipeline over an
// invoice view-model and produces the deterministic evaluation result the
// renderer consumes.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-invoicegen/pkg/ast"
	"github.com/goliatone/go-invoicegen/pkg/strategy"
	"github.com/goliatone/go-invoicegen/pkg/transform/expr"
	"github.com/goliatone/go-invoicegen/pkg/validation"
)

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithRegistry substitutes the strategy registry consulted for hook
// resolution. Tests use this to install restricted or stub registries.
func WithRegistry(registry *strategy.Registry) Option {
	return func(e *Evaluator) {
		if registry != nil {
			e.registry = registry
		}
	}
}

// Evaluator runs transform pipelines. It holds no per-evaluation state, so
// one instance serves concurrent callers.
type Evaluator struct {
	registry *strategy.Registry
}

// New constructs an Evaluator with the built-in strategy registry unless an
// option substitutes another.
func New(options ...Option) *Evaluator {
	e := &Evaluator{registry: strategy.Default()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

// Evaluate runs the default evaluator. See Evaluator.Evaluate.
func Evaluate(tpl *ast.Template, invoice map[string]any) (*Result, error) {
	return New().Evaluate(tpl, invoice)
}

// Evaluate re-validates the template as a defensive boundary, resolves the
// binding catalog against the invoice view-model, and executes the declared
// operation pipeline in order. Every failure is an *Error with a canonical
// code; a nil error guarantees a fully constructed, immutable result.
func (e *Evaluator) Evaluate(tpl *ast.Template, invoice map[string]any) (*Result, error) {
	if tpl == nil {
		return nil, &Error{Code: CodeInvalidTransformInput, Message: "template is nil"}
	}
	if err := e.revalidate(tpl); err != nil {
		return nil, err
	}

	viewModel, err := canonicalViewModel(invoice)
	if err != nil {
		return nil, &Error{Code: CodeInvalidTransformInput, Message: "invoice view-model is not serializable", Err: err}
	}

	result := &Result{
		Output:     []Row{},
		Groups:     map[string][]Row{},
		GroupOrder: []string{},
		Aggregates: Aggregates{Overall: map[string]float64{}, PerGroup: map[string]map[string]float64{}},
		Totals:     map[string]any{},
		Bindings:   map[string]any{},
	}

	if err := e.resolveBindings(tpl, viewModel, result); err != nil {
		return nil, err
	}
	if tpl.Transforms == nil {
		return result, nil
	}

	rows, err := e.pipelineInput(tpl, result)
	if err != nil {
		return nil, err
	}

	state := &pipelineState{rows: rows, result: result}
	for idx, op := range tpl.Transforms.Operations {
		opID := fmt.Sprintf("operations[%d].%s", idx, op.Kind)
		if err := e.runOperation(opID, op, state); err != nil {
			return nil, err
		}
	}

	result.Output = make([]Row, 0, len(state.rows))
	for _, entry := range state.rows {
		result.Output = append(result.Output, entry.row)
	}
	return result, nil
}

// revalidate round-trips the typed template through the schema validator so
// even a hand-constructed value is checked before any data binding.
func (e *Evaluator) revalidate(tpl *ast.Template) error {
	raw, err := json.Marshal(tpl)
	if err != nil {
		return &Error{Code: CodeSchemaValidationFailed, Message: "template is not serializable", Err: err}
	}
	var candidate any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return &Error{Code: CodeSchemaValidationFailed, Err: err}
	}
	if issues := validation.Validate(candidate); len(issues) > 0 {
		return &Error{Code: CodeSchemaValidationFailed, Message: "template failed validation", Issues: issues}
	}
	return nil
}

func (e *Evaluator) resolveBindings(tpl *ast.Template, viewModel map[string]any, result *Result) error {
	// Collections resolve first so value expressions can reference them.
	for _, name := range sortedKeys(tpl.Bindings.Collections) {
		binding := tpl.Bindings.Collections[name]
		if binding.Source == ast.SourceOutput || binding.Source == ast.SourceGroups {
			continue
		}
		value, _ := expr.MapScope(viewModel).Resolve(binding.Source)
		if value == nil {
			return &Error{
				Code:    CodeMissingBinding,
				Binding: name,
				Message: fmt.Sprintf("collection source %q does not resolve in the invoice view-model", binding.Source),
			}
		}
		list, ok := value.([]any)
		if !ok {
			return &Error{
				Code:    CodeMissingBinding,
				Binding: name,
				Message: fmt.Sprintf("collection source %q is not a sequence", binding.Source),
			}
		}
		result.Bindings[name] = list
	}

	for _, name := range sortedKeys(tpl.Bindings.Values) {
		binding := tpl.Bindings.Values[name]
		scope := evalScope{row: viewModel, bindings: result.Bindings}
		value, err := expr.Eval(binding.Expr, scope)
		if err != nil {
			return stageError("bindings.values."+name, err)
		}
		normalized, err := canonicalValue(value)
		if err != nil {
			return &Error{Code: CodeInvalidTransformInput, Binding: name, Err: err}
		}
		result.Bindings[name] = normalized
	}
	return nil
}

// pipelineInput selects the row collection the operation pipeline consumes.
func (e *Evaluator) pipelineInput(tpl *ast.Template, result *Result) ([]indexedRow, error) {
	source := tpl.Transforms.Source
	if source == "" {
		candidates := make([]string, 0, len(tpl.Bindings.Collections))
		for _, name := range sortedKeys(tpl.Bindings.Collections) {
			binding := tpl.Bindings.Collections[name]
			if binding.Source == ast.SourceOutput || binding.Source == ast.SourceGroups {
				continue
			}
			candidates = append(candidates, name)
		}
		if len(candidates) != 1 {
			return nil, &Error{
				Code:    CodeInvalidTransformInput,
				Message: fmt.Sprintf("transforms.source is required when %d view-model collections are declared", len(candidates)),
			}
		}
		source = candidates[0]
	}

	raw, ok := result.Bindings[source]
	if !ok {
		return nil, &Error{Code: CodeMissingBinding, Binding: source, Message: "pipeline source is not a resolved collection"}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &Error{Code: CodeInvalidTransformInput, Message: fmt.Sprintf("pipeline source %q is not a sequence", source)}
	}

	rows := make([]indexedRow, 0, len(list))
	for idx, entry := range list {
		row, ok := canonicalRow(entry)
		if !ok {
			return nil, &Error{
				Code:    CodeInvalidTransformInput,
				Message: fmt.Sprintf("pipeline source %q item %d is not an object", source, idx),
			}
		}
		rows = append(rows, indexedRow{row: row, index: idx})
	}
	return rows, nil
}

type indexedRow struct {
	row   Row
	index int
}

type pipelineState struct {
	rows   []indexedRow
	result *Result
}

func (e *Evaluator) runOperation(opID string, op ast.Operation, state *pipelineState) error {
	// Non-group operations may declare a row-shaping hook that runs before
	// the operation itself; group hooks produce the group key instead.
	if op.StrategyID != "" && op.Kind != ast.OpGroup {
		if err := e.applyRowHook(opID, op.StrategyID, state); err != nil {
			return err
		}
	}

	switch op.Kind {
	case ast.OpFilter:
		return e.runFilter(opID, op.Filter, state)
	case ast.OpSort:
		return e.runSort(opID, op.Sort, state)
	case ast.OpGroup:
		return e.runGroup(opID, op, state)
	case ast.OpAggregate:
		return e.runAggregate(opID, op.Aggregate, state)
	case ast.OpComputedField:
		return e.runComputedField(opID, op.ComputedField, state)
	case ast.OpTotalsCompose:
		return e.runTotalsCompose(opID, op.TotalsCompose, state)
	default:
		return &Error{Code: CodeInvalidTransformInput, Operation: opID, Message: fmt.Sprintf("unknown operation kind %q", op.Kind)}
	}
}

func (e *Evaluator) applyRowHook(opID, strategyID string, state *pipelineState) error {
	input := make([]any, 0, len(state.rows))
	for _, entry := range state.rows {
		input = append(input, entry.row)
	}
	output, err := e.registry.Execute(strategyID, input)
	if err != nil {
		return stageError(opID, err)
	}
	list, ok := output.([]any)
	if !ok {
		return &Error{Code: CodeStrategyExecutionFailed, Operation: opID, Message: fmt.Sprintf("hook %q returned %T, expected a row sequence", strategyID, output)}
	}

	rows := make([]indexedRow, 0, len(list))
	for idx, entry := range list {
		row, ok := canonicalRow(entry)
		if !ok {
			return &Error{Code: CodeStrategyExecutionFailed, Operation: opID, Message: fmt.Sprintf("hook %q item %d is not an object", strategyID, idx)}
		}
		rows = append(rows, indexedRow{row: row, index: idx})
	}
	state.rows = rows
	return nil
}

func (e *Evaluator) runFilter(opID string, op *ast.FilterOp, state *pipelineState) error {
	kept := make([]indexedRow, 0, len(state.rows))
	for _, entry := range state.rows {
		keep := true
		for _, condition := range op.Conditions {
			scope := e.scopeFor(entry.row, state)
			ok, err := expr.EvalBool(condition, scope)
			if err != nil {
				return stageError(opID, err)
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, entry)
		}
	}
	state.rows = kept
	return nil
}

func (e *Evaluator) runSort(_ string, op *ast.SortOp, state *pipelineState) error {
	sort.SliceStable(state.rows, func(i, j int) bool {
		left, right := state.rows[i], state.rows[j]
		for _, key := range op.Keys {
			cmp := compareValues(left.row[key.Field], right.row[key.Field])
			if cmp == 0 {
				continue
			}
			if key.Direction == ast.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		// Original input index is the final tie-break so repeated
		// evaluation never reorders equal-keyed rows differently.
		return left.index < right.index
	})
	return nil
}

func (e *Evaluator) runGroup(opID string, op ast.Operation, state *pipelineState) error {
	groups := map[string][]Row{}
	order := []string{}

	for _, entry := range state.rows {
		var key string
		if op.StrategyID != "" {
			output, err := e.registry.Execute(op.StrategyID, entry.row)
			if err != nil {
				return stageError(opID, err)
			}
			key = expr.Text(output)
		} else {
			value, err := expr.Eval(op.Group.Key, e.scopeFor(entry.row, state))
			if err != nil {
				return stageError(opID, err)
			}
			key = expr.Text(value)
		}

		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entry.row)
	}

	state.result.Groups = groups
	state.result.GroupOrder = order
	return nil
}

func (e *Evaluator) runAggregate(opID string, op *ast.AggregateOp, state *pipelineState) error {
	rows := make([]Row, 0, len(state.rows))
	for _, entry := range state.rows {
		rows = append(rows, entry.row)
	}

	for _, agg := range op.Aggregations {
		value, err := aggregateRows(agg, rows)
		if err != nil {
			return &Error{Code: CodeInvalidOperand, Operation: opID, Message: err.Error()}
		}
		state.result.Aggregates.Overall[agg.Name] = value

		// Walking GroupOrder rather than the map keeps error reporting
		// deterministic when more than one group carries a bad operand.
		for _, key := range state.result.GroupOrder {
			groupRows := state.result.Groups[key]
			value, err := aggregateRows(agg, groupRows)
			if err != nil {
				return &Error{Code: CodeInvalidOperand, Operation: opID, Message: fmt.Sprintf("group %q: %v", key, err)}
			}
			perGroup, ok := state.result.Aggregates.PerGroup[key]
			if !ok {
				perGroup = map[string]float64{}
				state.result.Aggregates.PerGroup[key] = perGroup
			}
			perGroup[agg.Name] = value
		}
	}
	return nil
}

func (e *Evaluator) runComputedField(opID string, op *ast.ComputedFieldOp, state *pipelineState) error {
	for _, field := range op.Fields {
		for _, entry := range state.rows {
			value, err := expr.Eval(field.Expr, e.scopeFor(entry.row, state))
			if err != nil {
				return stageError(opID, err)
			}
			normalized, err := canonicalValue(value)
			if err != nil {
				return &Error{Code: CodeInvalidOperand, Operation: opID, Err: err}
			}
			entry.row[field.Name] = normalized
		}
	}
	return nil
}

func (e *Evaluator) runTotalsCompose(opID string, op *ast.TotalsComposeOp, state *pipelineState) error {
	for _, total := range op.Totals {
		if total.Aggregate != "" {
			value, ok := state.result.Aggregates.Overall[total.Aggregate]
			if !ok {
				return &Error{
					Code:      CodeInvalidOperand,
					Operation: opID,
					Message:   fmt.Sprintf("total %q references unknown aggregate %q", total.Name, total.Aggregate),
				}
			}
			state.result.Totals[total.Name] = value
			continue
		}

		value, err := expr.Eval(total.Expr, e.scopeFor(nil, state))
		if err != nil {
			return stageError(opID, err)
		}
		normalized, err := canonicalValue(value)
		if err != nil {
			return &Error{Code: CodeInvalidOperand, Operation: opID, Err: err}
		}
		state.result.Totals[total.Name] = normalized
	}
	return nil
}

func (e *Evaluator) scopeFor(row Row, state *pipelineState) expr.Scope {
	return evalScope{
		row:        row,
		bindings:   state.result.Bindings,
		aggregates: state.result.Aggregates.Overall,
		totals:     state.result.Totals,
	}
}

func aggregateRows(agg ast.Aggregation, rows []Row) (float64, error) {
	if agg.Fn == ast.AggCount {
		return float64(len(rows)), nil
	}

	var (
		sum   float64
		minV  float64
		maxV  float64
		first = true
	)
	for idx, row := range rows {
		raw, present := row[agg.Field]
		if !present {
			return 0, fmt.Errorf("aggregation %q: row %d has no field %q", agg.Name, idx, agg.Field)
		}
		value, ok := expr.Number(raw)
		if !ok {
			return 0, fmt.Errorf("aggregation %q: field %q is not numeric in row %d", agg.Name, agg.Field, idx)
		}
		sum += value
		if first || value < minV {
			minV = value
		}
		if first || value > maxV {
			maxV = value
		}
		first = false
	}

	switch agg.Fn {
	case ast.AggSum:
		return sum, nil
	case ast.AggAvg:
		if len(rows) == 0 {
			return 0, nil
		}
		return sum / float64(len(rows)), nil
	case ast.AggMin:
		return minV, nil
	case ast.AggMax:
		return maxV, nil
	default:
		return 0, fmt.Errorf("aggregation %q: unknown function %q", agg.Name, agg.Fn)
	}
}

func compareValues(left, right any) int {
	leftNum, leftOK := expr.Number(left)
	rightNum, rightOK := expr.Number(right)
	if leftOK && rightOK {
		switch {
		case leftNum < rightNum:
			return -1
		case leftNum > rightNum:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(expr.Text(left), expr.Text(right))
}

func stageError(opID string, err error) *Error {
	var missing *missingBinding
	if errors.As(err, &missing) {
		return &Error{Code: CodeMissingBinding, Operation: opID, Binding: missing.name, Message: missing.Error()}
	}
	var operand *invalidOperand
	if errors.As(err, &operand) {
		return &Error{Code: CodeInvalidOperand, Operation: opID, Message: operand.Error()}
	}
	var hookErr *strategy.Error
	if errors.As(err, &hookErr) {
		code := CodeUnknownStrategy
		if hookErr.Code == strategy.CodeExecutionFailed {
			code = CodeStrategyExecutionFailed
		}
		return &Error{Code: code, Operation: opID, Err: hookErr}
	}
	return &Error{Code: CodeInvalidTransformInput, Operation: opID, Err: err}
}

func canonicalViewModel(invoice map[string]any) (map[string]any, error) {
	if invoice == nil {
		return map[string]any{}, nil
	}
	normalized, err := canonicalValue(invoice)
	if err != nil {
		return nil, err
	}
	viewModel, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("view-model is not an object")
	}
	return viewModel, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
