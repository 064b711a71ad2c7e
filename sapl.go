// Package sapl is a reactive, streaming policy decision point: it accepts
// authorization subscriptions, evaluates them against a live catalog of
// parsed policy documents, and emits an infinite-lifetime stream of
// decisions that updates whenever a relevant attribute or policy changes.
//
// The heavy lifting — the Attribute Broker, the policy AST evaluator, the
// target indexer (PRP), and the combining algorithms — lives in this
// module's internal packages; this package is the public facade that wires
// them together (New) and re-exports the types a caller needs to construct
// subscriptions, policy documents, and collaborators (function registries,
// attribute brokers, policy catalogs) without reaching into internal/.
package sapl

import (
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// Stream is an infinite-lifetime, cancellable sequence of values: the shape
// every PolicyDecisionPoint operation returns. It ends only when the ctx
// passed to the producing call is cancelled.
type Stream[T any] = streaming.Stream[T]

// Emission is one value or error delivered on a Stream's channel.
type Emission[T any] = streaming.Emission[T]

// Val is the dynamically-typed value every attribute, literal, and
// evaluation result is built from (§3, §4.1). Undefined/Null/Bool/Number/
// Text/Array/Object construct the respective kinds.
type Val = val.Val

// Undefined is the Val produced by evaluating an unbound identifier or a
// missing attribute.
func Undefined() Val { return val.Undefined() }

// Null is the Val produced by a literal null.
func Null() Val { return val.Null() }

// Bool constructs a boolean Val.
func Bool(b bool) Val { return val.Bool(b) }

// Number constructs a numeric Val from a float64.
func Number(f float64) Val { return val.Number(f) }

// Text constructs a string Val.
func Text(s string) Val { return val.Text(s) }

// Array constructs an array Val.
func Array(items []Val) Val { return val.Array(items) }

// Object constructs an object Val.
func Object(fields map[string]Val) Val { return val.Object(fields) }

// Trace records the provenance of a Val for a TraceSink (§7). The core
// never inspects Trace contents; see internal/otelsink for the
// OpenTelemetry-backed TraceSink this module ships.
type Trace = val.Trace
