// Package strategy holds the closed allowlist of extension hooks a template
// transform may delegate to. An identifier outside the allowlist is never
// invoked; adding a hook means adding an entry here, in the same deployable
// unit. There is no runtime registration path.
package strategy

import (
	"fmt"
	"sort"
)

// Error codes surfaced by the registry.
const (
	CodeNotAllowlisted  = "STRATEGY_NOT_ALLOWLISTED"
	CodeExecutionFailed = "STRATEGY_EXECUTION_FAILED"
)

// Fn is a pure strategy hook: it derives an output value (typically a group
// key) from its input and must not touch clocks, I/O, or shared state.
type Fn func(input any) (any, error)

// Error reports an allowlist rejection or a hook failure with a
// machine-readable code and the offending identifier.
type Error struct {
	Code string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("strategy: %s: %q: %v", e.Code, e.ID, e.Err)
	}
	return fmt.Sprintf("strategy: %s: %q", e.Code, e.ID)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry is an immutable identifier → hook table. It is safe for
// unsynchronized concurrent reads; nothing mutates it after construction.
type Registry struct {
	entries map[string]Fn
}

// New constructs a registry from an explicit entry table. The map is copied
// so later caller mutations cannot widen the allowlist. Tests use this to
// substitute restricted or stub registries.
func New(entries map[string]Fn) *Registry {
	copied := make(map[string]Fn, len(entries))
	for id, fn := range entries {
		if id == "" || fn == nil {
			continue
		}
		copied[id] = fn
	}
	return &Registry{entries: copied}
}

// Default returns the registry holding the built-in hooks.
func Default() *Registry {
	return New(builtins())
}

// List returns the allowlisted identifiers in sorted order.
func (r *Registry) List() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsAllowlisted reports whether an identifier resolves.
func (r *Registry) IsAllowlisted(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.entries[id]
	return ok
}

// Resolve returns the hook for an allowlisted identifier or a
// STRATEGY_NOT_ALLOWLISTED error.
func (r *Registry) Resolve(id string) (Fn, error) {
	if r == nil {
		return nil, &Error{Code: CodeNotAllowlisted, ID: id}
	}
	fn, ok := r.entries[id]
	if !ok {
		return nil, &Error{Code: CodeNotAllowlisted, ID: id}
	}
	return fn, nil
}

// Execute resolves and runs a hook. A hook that errors or panics surfaces as
// STRATEGY_EXECUTION_FAILED; an unknown identifier is never a silent no-op.
func (r *Registry) Execute(id string, input any) (output any, err error) {
	fn, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			output = nil
			err = &Error{Code: CodeExecutionFailed, ID: id, Err: fmt.Errorf("panic: %v", recovered)}
		}
	}()

	output, err = fn(input)
	if err != nil {
		return nil, &Error{Code: CodeExecutionFailed, ID: id, Err: err}
	}
	return output, nil
}
