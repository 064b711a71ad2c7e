package sapl

import (
	"log/slog"
	"time"

	"github.com/sapl-go/sapl/internal/broker"
	"github.com/sapl-go/sapl/internal/celpredicate"
	"github.com/sapl-go/sapl/internal/metrics"
	"github.com/sapl-go/sapl/internal/registry"
)

// Option configures New. Options are applied in the order given, so a
// later WithAttributeBroker/WithFunctions/etc. call overrides an earlier
// one of the same kind.
type Option func(*options)

type options struct {
	strategy      Strategy
	predicateEval PredicateEvaluator
	functions     FunctionRegistry
	broker        AttributeBroker
	brokerDispose func()
	trace         TraceSink
	onAdviceError OnAdviceError
	logger        *slog.Logger
	brokerLinger  time.Duration
	metrics       *metrics.Metrics
}

func defaultOptions() *options {
	o := &options{
		strategy:      LinearEvaluator,
		functions:     mustStaticFunctionRegistry(nil),
		onAdviceError: func(error) {},
		logger:        slog.Default(),
		brokerLinger:  5 * time.Second,
	}
	o.broker, o.brokerDispose = o.newDefaultBroker()
	return o
}

func mustStaticFunctionRegistry(fns map[string]Function) *registry.StaticFunctionRegistry {
	r, err := registry.NewStaticFunctionRegistry(fns)
	if err != nil {
		// An empty/nil map can never fail fqname validation or dedup, so a
		// default registry construction failing would mean this package's
		// own invariant is broken, not a caller error.
		panic(err)
	}
	return r
}

func (o *options) newDefaultBroker() (AttributeBroker, func()) {
	b := broker.New(o.brokerLinger, o.logger)
	return b, b.Dispose
}

// WithTargetStrategy selects the PRP lookup strategy (default
// LinearEvaluator). PredicateSharingIndex additionally wires a CEL-backed
// PredicateEvaluator (internal/celpredicate) unless WithPredicateEvaluator
// has already supplied one.
func WithTargetStrategy(strategy Strategy) Option {
	return func(o *options) {
		o.strategy = strategy
		if strategy == PredicateSharingIndex && o.predicateEval == nil {
			o.predicateEval = celpredicate.NewEvaluator()
		}
	}
}

// WithPredicateEvaluator supplies a custom PredicateEvaluator, overriding
// the default CEL fast path WithTargetStrategy(PredicateSharingIndex) would
// otherwise install.
func WithPredicateEvaluator(eval PredicateEvaluator) Option {
	return func(o *options) { o.predicateEval = eval }
}

// WithFunctions supplies the FunctionRegistry consulted by function calls
// in policy expressions (default: an empty registry).
func WithFunctions(functions FunctionRegistry) Option {
	return func(o *options) { o.functions = functions }
}

// WithAttributeBroker supplies a caller-owned AttributeBroker, replacing
// the default in-process internal/broker.Broker. The caller remains
// responsible for disposing it; PolicyDecisionPoint.Close will not call
// Dispose on a broker supplied this way.
func WithAttributeBroker(b AttributeBroker) Option {
	return func(o *options) {
		o.broker = b
		o.brokerDispose = nil
	}
}

// WithBrokerLinger overrides the default Attribute Broker's linger
// duration (how long a shared subscription's upstream stays alive after
// its last subscriber unsubscribes). Has no effect once
// WithAttributeBroker has supplied a caller-owned broker.
func WithBrokerLinger(d time.Duration) Option {
	return func(o *options) {
		o.brokerLinger = d
		if o.brokerDispose != nil {
			o.broker, o.brokerDispose = o.newDefaultBroker()
		}
	}
}

// WithTraceSink supplies a TraceSink evaluation provenance is recorded to
// (default: discarded).
func WithTraceSink(trace TraceSink) Option {
	return func(o *options) { o.trace = trace }
}

// WithOnAdviceError supplies a hook invoked whenever an advice expression
// fails during evaluation (default: a no-op). The decision outcome is
// unaffected; this exists purely for observability.
func WithOnAdviceError(fn OnAdviceError) Option {
	return func(o *options) { o.onAdviceError = fn }
}

// WithLogger supplies the *slog.Logger used for the default Attribute
// Broker's internal logging (default: slog.Default()). Has no effect once
// WithAttributeBroker has supplied a caller-owned broker.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
		if o.brokerDispose != nil {
			o.broker, o.brokerDispose = o.newDefaultBroker()
		}
	}
}

// WithMetrics supplies a Metrics instance Decide and DecideOnce record
// every emitted decision against, tagged by outcome (default: no metrics).
// DecideAll/DecideEach are not instrumented this way: a single tick there
// already aggregates many sub-decisions, and counting each would double
// count against whatever per-subscription Decide call produced them.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}
