// Package engine implements the Engine Facade (C7, §4.7): it wires the
// Target Indexer (internal/target), the per-policy evaluation pipeline
// (internal/expr), and the Combining Algorithms (internal/combining) behind
// a single Decide/DecideOnce/DecideAll/DecideEach surface.
package engine

import (
	"context"

	"github.com/sapl-go/sapl/internal/combining"
	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/document"
	"github.com/sapl-go/sapl/internal/evalctx"
	"github.com/sapl-go/sapl/internal/expr"
	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/target"
)

// Engine is the reference PDP implementation.
type Engine struct {
	catalog   document.PolicyCatalog
	index     *target.Index
	evaluator *expr.Evaluator

	functions registry.FunctionRegistry
	attrs     registry.AttributeBroker
	trace     evalctx.TraceSink

	algo          decision.CombiningAlgorithm
	onAdviceError expr.OnAdviceError

	catalogEvents chan document.CatalogEvent
	cancelSub     func()
	stopWatch     chan struct{}
}

// New constructs an Engine, seeds the target index from every document the
// catalog already holds, and subscribes to further catalog changes so the
// index stays current. strategy/predicateEval select the PRP lookup
// strategy (internal/target.LinearEvaluator needs a nil predicateEval).
func New(
	catalog document.PolicyCatalog,
	strategy target.Strategy,
	predicateEval target.PredicateEvaluator,
	functions registry.FunctionRegistry,
	attrs registry.AttributeBroker,
	trace evalctx.TraceSink,
	algo decision.CombiningAlgorithm,
	onAdviceError expr.OnAdviceError,
) (*Engine, error) {
	idx := target.NewIndex(strategy, predicateEval)
	idx.SetLive(false)

	docs, err := catalog.All()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if err := seedIndex(idx, doc); err != nil {
			return nil, err
		}
	}
	idx.SetLive(true)

	events := make(chan document.CatalogEvent, 64)
	cancel := catalog.Subscribe(events)

	e := &Engine{
		catalog:       catalog,
		index:         idx,
		evaluator:     expr.NewEvaluator(),
		functions:     functions,
		attrs:         attrs,
		trace:         trace,
		algo:          algo,
		onAdviceError: onAdviceError,
		catalogEvents: events,
		cancelSub:     cancel,
		stopWatch:     make(chan struct{}),
	}
	go e.watchCatalog()
	return e, nil
}

// seedIndex registers doc's own target in the PRP. A PolicySet's children
// are not separately indexed: the PRP only narrows the top-level catalog
// documents a subscription might reach, and a matching PolicySet's children
// are then evaluated unconditionally by evaluateDocument (gated again by
// their own targets, just not through the PRP).
func seedIndex(idx *target.Index, doc *document.PolicyDocument) error {
	return idx.Put(doc)
}

// watchCatalog never ranges over catalogEvents directly: the channel is
// owned by this Engine but written to by the catalog's notify goroutines,
// so closing it on Close would race a concurrent send. stopWatch is closed
// instead, which only this goroutine ever observes.
func (e *Engine) watchCatalog() {
	for {
		select {
		case evt := <-e.catalogEvents:
			switch evt.Kind {
			case document.CatalogAdd:
				_ = e.index.Put(evt.Doc)
			case document.CatalogRemove:
				e.index.Remove(evt.ID)
			}
		case <-e.stopWatch:
			return
		}
	}
}

// Close releases the catalog subscription and stops watchCatalog. It does
// not dispose the AttributeBroker or FunctionRegistry, which the caller
// constructed and owns.
func (e *Engine) Close() {
	if e.cancelSub != nil {
		e.cancelSub()
	}
	close(e.stopWatch)
}

// Decide implements the root sapl.PolicyDecisionPoint.Decide operation: it
// asks the PRP for candidates, subscribes each to the evaluation pipeline,
// combines via the PDP-level algorithm, and returns an infinite-lifetime
// decision stream that ends when ctx is cancelled (§4.7).
func (e *Engine) Decide(ctx context.Context, sub decision.AuthorizationSubscription) (streaming.Stream[decision.AuthorizationDecision], error) {
	candidates, err := e.index.Candidates(sub)
	if err != nil {
		return streaming.Stream[decision.AuthorizationDecision]{}, err
	}

	root := evalctx.Root(ctx, nil, e.functions, e.attrs, e.trace)
	root, bindErr := bindSubscription(root, sub)
	if bindErr != nil {
		return streaming.Just(ctx, decision.AuthorizationDecision{Decision: decision.Indeterminate}), nil
	}

	if len(candidates) == 0 {
		return streaming.Just(ctx, decision.AuthorizationDecision{Decision: e.algo.DefaultDecision}), nil
	}

	inputs := make([]streaming.Stream[decision.AuthorizationDecision], len(candidates))
	for i, doc := range candidates {
		inputs[i] = e.evaluateDocument(ctx, root, doc)
	}
	combined := combining.Combine(ctx, e.algo, inputs)
	return backpressure(ctx, combined), nil
}

// bindSubscription binds the four top-level subscription variables into
// root, one at a time through With so the duplicate-declaration guard
// (evalctx.Context.With) is exercised exactly as it would be for a
// policy-declared `var subject = ...`.
func bindSubscription(root *evalctx.Context, sub decision.AuthorizationSubscription) (*evalctx.Context, error) {
	var err error
	root, err = root.With("subject", sub.Subject)
	if err != nil {
		return root, err
	}
	root, err = root.With("action", sub.Action)
	if err != nil {
		return root, err
	}
	root, err = root.With("resource", sub.Resource)
	if err != nil {
		return root, err
	}
	root, err = root.With("environment", sub.Environment)
	if err != nil {
		return root, err
	}
	return root, nil
}

// evaluateDocument produces a single candidate document's decision stream,
// recursing into a PolicySet's children and combining them with the set's
// own CombiningAlgorithm (§3: "a set's combining governs its children
// only").
func (e *Engine) evaluateDocument(ctx context.Context, parent *evalctx.Context, doc *document.PolicyDocument) streaming.Stream[decision.AuthorizationDecision] {
	c := parent
	if doc.Imports != nil {
		c = parent.WithImports(doc.Imports)
	}

	if doc.Kind == document.KindPolicy {
		return expr.Pipeline(c, e.evaluator, doc.Spec(), e.onAdviceError)
	}

	return expr.GateByTarget(c, e.evaluator, doc.TargetExpr, func(innerCtx context.Context) streaming.Stream[decision.AuthorizationDecision] {
		innerC := c.WithGo(innerCtx)
		children := make([]streaming.Stream[decision.AuthorizationDecision], len(doc.Children))
		for i, child := range doc.Children {
			children[i] = e.evaluateDocument(innerCtx, innerC, child)
		}
		return combining.Combine(innerCtx, doc.Combining, children)
	})
}
