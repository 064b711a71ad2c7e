package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/streaming"
)

// DecideOnce samples a single subscription's decision stream once, per
// §6's one-shot decision operation.
func (e *Engine) DecideOnce(ctx context.Context, sub decision.AuthorizationSubscription) (decision.AuthorizationDecision, error) {
	s, err := e.Decide(ctx, sub)
	if err != nil {
		return decision.AuthorizationDecision{}, err
	}
	return streaming.First(ctx, s)
}

// MultiDecision is one tick of DecideAll: the latest decision for every
// sub-subscription, keyed by its position in the subs slice passed to
// DecideAll. CorrelationIDs is a uuid.New().String() per sub-subscription,
// purely for tracing/log correlation; it does not change how callers index
// Decisions.
type MultiDecision struct {
	Decisions      []decision.AuthorizationDecision
	CorrelationIDs []string
}

// DecideAll subscribes to every subscription in subs and emits a fresh
// MultiDecision snapshot every time ANY one of them ticks (open question
// (i), resolved as documented behavior rather than guessed: no attempt is
// made to batch same-instant updates across sub-subscriptions — see
// DESIGN.md).
func (e *Engine) DecideAll(ctx context.Context, subs []decision.AuthorizationSubscription) (streaming.Stream[MultiDecision], error) {
	ids := make([]string, len(subs))
	streams := make([]streaming.Stream[decision.AuthorizationDecision], len(subs))
	for i, sub := range subs {
		ids[i] = uuid.New().String()
		s, err := e.Decide(ctx, sub)
		if err != nil {
			return streaming.Stream[MultiDecision]{}, err
		}
		streams[i] = s
	}
	combined := streaming.CombineLatest(ctx, streams)
	return streaming.Map(ctx, combined, func(ds []decision.AuthorizationDecision) MultiDecision {
		return MultiDecision{Decisions: ds, CorrelationIDs: ids}
	}), nil
}

// TaggedDecision is one tick of DecideEach: a single sub-subscription's
// latest decision, tagged with its index in the subs slice and a
// correlation id.
type TaggedDecision struct {
	Index         int
	CorrelationID string
	Decision      decision.AuthorizationDecision
}

// DecideEach subscribes to every subscription in subs and forwards each
// one's ticks independently and immediately — unlike DecideAll, a tick from
// sub i does not wait for, or carry, the latest values of any other
// sub-subscription.
func (e *Engine) DecideEach(ctx context.Context, subs []decision.AuthorizationSubscription) (streaming.Stream[TaggedDecision], error) {
	streams := make([]streaming.Stream[TaggedDecision], len(subs))
	for i, sub := range subs {
		id := uuid.New().String()
		s, err := e.Decide(ctx, sub)
		if err != nil {
			return streaming.Stream[TaggedDecision]{}, err
		}
		idx := i
		streams[i] = streaming.Map(ctx, s, func(d decision.AuthorizationDecision) TaggedDecision {
			return TaggedDecision{Index: idx, CorrelationID: id, Decision: d}
		})
	}
	return mergeStreams(ctx, streams), nil
}

// mergeStreams fans every input in unmodified, forwarding each emission as
// soon as it arrives rather than waiting for every input to have ticked
// (the CombineLatest gate DecideAll relies on would otherwise silently
// delay a sub-subscription's first decision behind the slowest sibling).
func mergeStreams[T any](ctx context.Context, ins []streaming.Stream[T]) streaming.Stream[T] {
	out := streaming.NewSource[T](0)
	if len(ins) == 0 {
		out.Close()
		return out.Stream()
	}
	done := make(chan struct{}, len(ins))
	for _, in := range ins {
		go func(in streaming.Stream[T]) {
			defer func() { done <- struct{}{} }()
			streaming.Drain(ctx, in, func(v T) { out.Emit(ctx, v) }, func(err error) { out.EmitError(ctx, err) })
		}(in)
	}
	go func() {
		for range ins {
			<-done
		}
		out.Close()
	}()
	return out.Stream()
}
