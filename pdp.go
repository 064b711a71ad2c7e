package sapl

import (
	"context"

	"github.com/sapl-go/sapl/internal/document"
	"github.com/sapl-go/sapl/internal/engine"
	"github.com/sapl-go/sapl/internal/evalctx"
	"github.com/sapl-go/sapl/internal/expr"
	"github.com/sapl-go/sapl/internal/metrics"
	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/target"
)

// Kind distinguishes a Policy from a PolicySet.
type Kind = document.Kind

const (
	KindPolicy    = document.KindPolicy
	KindPolicySet = document.KindPolicySet
)

// Entitlement is a policy's intrinsic outcome when it matches.
type Entitlement = document.Entitlement

const (
	EntitlementPermit = document.EntitlementPermit
	EntitlementDeny   = document.EntitlementDeny
)

// PolicyDocument is the parsed policy AST the engine consumes (§3).
// Invariant: a PolicySet contains only Policies (no nested sets within one
// set); a set's Combining governs its children only.
type PolicyDocument = document.PolicyDocument

// Expr is any evaluable expression tree node (§4.4). Concrete node
// constructors live in this module's parser-facing internal packages;
// grammar parsing itself is out of scope (§1) — a caller feeding this
// library supplies already-built Expr trees.
type Expr = expr.Expr

// CatalogEventKind distinguishes add/remove notifications from
// PolicyCatalog.Subscribe.
type CatalogEventKind = document.CatalogEventKind

const (
	CatalogAdd    = document.CatalogAdd
	CatalogRemove = document.CatalogRemove
)

// CatalogEvent is one add/remove notification from a PolicyCatalog.
type CatalogEvent = document.CatalogEvent

// PolicyCatalog is the external source of parsed policy documents the
// engine retrieves from and subscribes to for updates (§6.4). The engine
// treats the document id as opaque.
type PolicyCatalog = document.PolicyCatalog

// MemoryCatalog is a minimal in-memory PolicyCatalog reference
// implementation, letting a caller construct a PolicyDecisionPoint without
// writing its own catalog.
type MemoryCatalog = document.MemoryCatalog

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog { return document.NewMemoryCatalog() }

// Function is a registered policy function: a pure transform of argument
// Vals into a result Val. Function bodies are out of scope (§1); a caller
// supplies its own.
type Function = registry.Function

// FunctionRegistry resolves fully qualified function names to callable
// implementations (§6.2). Immutable after a PolicyDecisionPoint is
// constructed (§5).
type FunctionRegistry = registry.FunctionRegistry

// NewStaticFunctionRegistry builds an immutable FunctionRegistry from a
// name->Function map, validating every name against the fully-qualified-
// name grammar (§7 RegistrationError).
func NewStaticFunctionRegistry(fns map[string]Function) (*registry.StaticFunctionRegistry, error) {
	return registry.NewStaticFunctionRegistry(fns)
}

// AttributeKey identifies a single attribute subscription (§3
// AttributeSubscriptionKey).
type AttributeKey = registry.AttributeKey

// AttributeBroker backs attribute-finder evaluation with a single, shared,
// replayable stream per AttributeKey (§4.3). See internal/broker for the
// reference implementation wired in by default.
type AttributeBroker = registry.AttributeBroker

// TraceSink receives evaluation provenance (§7 "trace sink interface"). A
// nil TraceSink is valid and simply discards traces. See internal/otelsink
// for the OpenTelemetry-backed implementation.
type TraceSink = evalctx.TraceSink

// Strategy selects how the target indexer (PRP) narrows the document set
// for a subscription (§4.5).
type Strategy = target.Strategy

const (
	// LinearEvaluator walks every candidate's target formula independently
	// against the subscription.
	LinearEvaluator = target.LinearEvaluator
	// PredicateSharingIndex evaluates each distinct predicate at most once
	// per Candidates call via a CEL fast path (internal/celpredicate) and
	// propagates truth through every clause that references it.
	PredicateSharingIndex = target.PredicateSharingIndex
)

// PredicateEvaluator decides, as cheaply as possible, whether a single
// target predicate leaf can be conclusively evaluated for a subscription
// (§4.5). A nil PredicateEvaluator is valid and treats every predicate as
// "maybe true".
type PredicateEvaluator = target.PredicateEvaluator

// OnAdviceError receives an error produced while evaluating an advice
// expression on an otherwise-PERMIT decision (§4.4 step 6). It never
// changes the outcome: the policy still reports whatever decision the
// advice failure implies; the hook exists purely for observability.
type OnAdviceError = expr.OnAdviceError

// PolicyDecisionPoint is the core external interface (§6.1): accepts
// subscriptions, evaluates them against the live policy catalog, and
// streams decisions.
type PolicyDecisionPoint interface {
	// Decide subscribes sub against the live catalog and returns a
	// decision stream that updates whenever a relevant attribute or
	// policy changes. The stream ends when ctx is cancelled.
	Decide(ctx context.Context, sub AuthorizationSubscription) (Stream[AuthorizationDecision], error)

	// DecideOnce samples a single subscription's decision stream once.
	DecideOnce(ctx context.Context, sub AuthorizationSubscription) (AuthorizationDecision, error)

	// DecideAll subscribes to every subscription in subs and emits a fresh
	// MultiDecision snapshot whenever any one of them ticks.
	DecideAll(ctx context.Context, subs []AuthorizationSubscription) (Stream[MultiDecision], error)

	// DecideEach subscribes to every subscription in subs and forwards
	// each one's ticks independently, tagged by index.
	DecideEach(ctx context.Context, subs []AuthorizationSubscription) (Stream[TaggedDecision], error)

	// Close releases the catalog subscription and any collaborator this
	// PolicyDecisionPoint owns (see WithAttributeBroker).
	Close()
}

// pdp adapts internal/engine.Engine to PolicyDecisionPoint and owns
// whichever default collaborators New constructed on the caller's behalf
// (disposed from Close alongside the engine's own catalog subscription).
type pdp struct {
	engine  *engine.Engine
	metrics *metrics.Metrics
	dispose []func()
}

var _ PolicyDecisionPoint = (*pdp)(nil)

// New constructs a PolicyDecisionPoint backed by the reference Engine
// Facade (C7), wiring the target indexer, policy evaluator, and combining
// algorithm behind Decide/DecideOnce/DecideAll/DecideEach. algo is the
// PDP-level combining algorithm applied across every top-level candidate
// document (§4.7); a PolicySet's own CombiningAlgorithm governs its
// children independently of algo (§3).
//
// Sensible defaults are used for anything not supplied via opts: a linear
// target-evaluation strategy, an empty function registry, an in-process
// Attribute Broker with a 5s linger (owned and disposed by Close), no
// trace sink, and advice errors silently folded into INDETERMINATE.
func New(catalog PolicyCatalog, algo CombiningAlgorithm, opts ...Option) (PolicyDecisionPoint, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	var dispose []func()
	if cfg.brokerDispose != nil {
		dispose = append(dispose, cfg.brokerDispose)
	}

	e, err := engine.New(
		catalog,
		cfg.strategy,
		cfg.predicateEval,
		cfg.functions,
		cfg.broker,
		cfg.trace,
		algo,
		cfg.onAdviceError,
	)
	if err != nil {
		return nil, err
	}
	return &pdp{engine: e, metrics: cfg.metrics, dispose: dispose}, nil
}

func (p *pdp) Decide(ctx context.Context, sub AuthorizationSubscription) (Stream[AuthorizationDecision], error) {
	s, err := p.engine.Decide(ctx, sub)
	if err != nil {
		return s, err
	}
	if p.metrics == nil {
		return s, nil
	}
	return streaming.Map(ctx, s, func(d AuthorizationDecision) AuthorizationDecision {
		p.metrics.ObserveDecision(d.Decision.String())
		return d
	}), nil
}

func (p *pdp) DecideOnce(ctx context.Context, sub AuthorizationSubscription) (AuthorizationDecision, error) {
	d, err := p.engine.DecideOnce(ctx, sub)
	if err == nil && p.metrics != nil {
		p.metrics.ObserveDecision(d.Decision.String())
	}
	return d, err
}

func (p *pdp) DecideAll(ctx context.Context, subs []AuthorizationSubscription) (Stream[MultiDecision], error) {
	return p.engine.DecideAll(ctx, subs)
}

func (p *pdp) DecideEach(ctx context.Context, subs []AuthorizationSubscription) (Stream[TaggedDecision], error) {
	return p.engine.DecideEach(ctx, subs)
}

func (p *pdp) Close() {
	p.engine.Close()
	for _, dispose := range p.dispose {
		dispose()
	}
}
