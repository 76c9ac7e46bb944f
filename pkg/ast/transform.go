package ast

// OpKind discriminates transform operation variants.
type OpKind string

const (
	OpFilter        OpKind = "filter"
	OpSort          OpKind = "sort"
	OpGroup         OpKind = "group"
	OpAggregate     OpKind = "aggregate"
	OpComputedField OpKind = "computed-field"
	OpTotalsCompose OpKind = "totals-compose"
)

// KnownOpKinds lists the declared transform operation set.
func KnownOpKinds() []OpKind {
	return []OpKind{OpFilter, OpSort, OpGroup, OpAggregate, OpComputedField, OpTotalsCompose}
}

// Operation is one transform pipeline step. Kind selects the variant and
// exactly one matching payload pointer is set. Any operation may delegate to
// an allowlisted strategy hook via StrategyID.
type Operation struct {
	Kind       OpKind `json:"kind"`
	StrategyID string `json:"strategyId,omitempty"`

	Filter        *FilterOp        `json:"filter,omitempty"`
	Sort          *SortOp          `json:"sort,omitempty"`
	Group         *GroupOp         `json:"group,omitempty"`
	Aggregate     *AggregateOp     `json:"aggregate,omitempty"`
	ComputedField *ComputedFieldOp `json:"computed-field,omitempty"`
	TotalsCompose *TotalsComposeOp `json:"totals-compose,omitempty"`
}

// FilterOp keeps rows for which every condition expression holds. An empty
// condition set is a validation failure, never a runtime always-true.
type FilterOp struct {
	Conditions []string `json:"conditions"`
}

// SortDirection orders a sort key ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortKey is one key in a stable multi-key sort.
type SortKey struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// SortOp sorts rows by the declared keys; ties preserve original input order.
type SortOp struct {
	Keys []SortKey `json:"keys"`
}

// GroupOp partitions rows by a key expression. When the owning operation
// carries a StrategyID the resolved strategy produces the group key instead
// of the literal expression.
type GroupOp struct {
	Key string `json:"key"`
}

// AggregateFn enumerates the supported aggregation functions.
type AggregateFn string

const (
	AggSum   AggregateFn = "sum"
	AggCount AggregateFn = "count"
	AggAvg   AggregateFn = "avg"
	AggMin   AggregateFn = "min"
	AggMax   AggregateFn = "max"
)

// Aggregation names one aggregate value computed overall and per group.
// Field is the row field the function reads; count ignores it.
type Aggregation struct {
	Name  string      `json:"name"`
	Fn    AggregateFn `json:"fn"`
	Field string      `json:"field,omitempty"`
}

// AggregateOp computes the declared aggregations.
type AggregateOp struct {
	Aggregations []Aggregation `json:"aggregations"`
}

// ComputedField adds one named derived value to each row.
type ComputedField struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// ComputedFieldOp derives row fields from expressions over the row, prior
// aggregates, and bindings.
type ComputedFieldOp struct {
	Fields []ComputedField `json:"fields"`
}

// Total builds one named total, either from an aggregate reference or from a
// computation expression. Exactly one of Aggregate / Expr is set.
type Total struct {
	Name      string `json:"name"`
	Aggregate string `json:"aggregate,omitempty"`
	Expr      string `json:"expr,omitempty"`
}

// TotalsComposeOp composes the document's named totals.
type TotalsComposeOp struct {
	Totals []Total `json:"totals"`
}
