// Package evalctx implements the Evaluation Context (C2): an
// immutable-by-structural-sharing map of variables, imports, and handles to
// the function/attribute registries and trace sink, threaded through every
// expression evaluation.
package evalctx

import (
	"context"

	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/val"
)

// reservedTopLevel are the variable names that may only be bound once per
// evaluation chain (§4.2: duplicate top-level var subject|action|resource|
// environment declarations are rejected).
var reservedTopLevel = map[string]bool{
	"subject":     true,
	"action":      true,
	"resource":    true,
	"environment": true,
}

// Context is a node in a parent-pointer chain of variable bindings. It is
// never mutated after construction: With returns a new child Context that
// extends the parent without touching it, so the parent remains valid for
// any other derived Context (structural sharing).
type Context struct {
	parent   *Context
	bindings map[string]val.Val
	boundTop map[string]bool // accumulates reservedTopLevel bindings seen on this chain

	Imports   map[string]string
	Functions registry.FunctionRegistry
	Attributes registry.AttributeBroker
	Trace     TraceSink

	// Go is the cancellation context for this evaluation chain. Cancelling
	// it propagates to every attribute subscription and function call
	// derived from this Context (§4.2, §5).
	Go context.Context
}

// TraceSink receives evaluation provenance; see internal/otelsink for the
// OpenTelemetry-backed implementation. A nil TraceSink is valid and simply
// discards traces.
type TraceSink interface {
	Record(t *val.Trace)
}

// Root constructs the outermost Context for a subscription evaluation.
func Root(goCtx context.Context, imports map[string]string, funcs registry.FunctionRegistry, attrs registry.AttributeBroker, trace TraceSink) *Context {
	return &Context{
		bindings:   map[string]val.Val{},
		boundTop:   map[string]bool{},
		Imports:    imports,
		Functions:  funcs,
		Attributes: attrs,
		Trace:      trace,
		Go:         goCtx,
	}
}

// With returns a child Context binding name to v. If name is one of the
// four top-level subscription variables and it was already bound anywhere
// in this chain, the binding is rejected and an EvaluationError-flavoured
// Val is returned as the second value (nil error otherwise) so the caller
// can fail the enclosing policy evaluation with INDETERMINATE/Error.
func (c *Context) With(name string, v val.Val) (*Context, error) {
	if reservedTopLevel[name] && c.topLevelBound(name) {
		return c, duplicateTopLevelError{name: name}
	}
	child := &Context{
		parent:     c,
		bindings:   map[string]val.Val{name: v},
		boundTop:   map[string]bool{},
		Imports:    c.Imports,
		Functions:  c.Functions,
		Attributes: c.Attributes,
		Trace:      c.Trace,
		Go:         c.Go,
	}
	if reservedTopLevel[name] {
		child.boundTop[name] = true
	}
	return child, nil
}

func (c *Context) topLevelBound(name string) bool {
	for n := c; n != nil; n = n.parent {
		if n.boundTop[name] {
			return true
		}
	}
	return false
}

// Lookup resolves a variable by walking the parent chain from the most
// recently bound Context outward. Unbound variables yield Undefined.
func (c *Context) Lookup(name string) val.Val {
	for n := c; n != nil; n = n.parent {
		if v, ok := n.bindings[name]; ok {
			return v
		}
	}
	return val.Undefined()
}

// WithImports returns a child Context with a replaced Imports map, leaving
// all bindings intact. Used when the engine descends into a policy
// document that declares its own imports, distinct from its parent
// PolicySet's.
func (c *Context) WithImports(imports map[string]string) *Context {
	child := *c
	child.parent = c
	child.bindings = map[string]val.Val{}
	child.boundTop = map[string]bool{}
	child.Imports = imports
	return &child
}

// WithGo returns a child Context with a replaced cancellation context,
// leaving all bindings intact. Used when deriving a per-attribute-finder
// sub-context with a narrower deadline.
func (c *Context) WithGo(goCtx context.Context) *Context {
	child := *c
	child.parent = c
	child.bindings = map[string]val.Val{}
	child.boundTop = map[string]bool{}
	child.Go = goCtx
	return &child
}

type duplicateTopLevelError struct{ name string }

func (e duplicateTopLevelError) Error() string {
	return "duplicate top-level variable declaration: " + e.name
}
