package engine

import (
	"context"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/streaming"
)

// backpressure applies latest-value backpressure to a PDP-facing decision
// stream (§4.7): a slow consumer never blocks the attribute upstreams
// feeding the combiner, at the cost of dropping intermediate ticks — except
// that a PERMIT→DENY transition is never dropped, since losing it would let
// a caller keep acting on a stale PERMIT after access should have been
// revoked.
func backpressure(ctx context.Context, in streaming.Stream[decision.AuthorizationDecision]) streaming.Stream[decision.AuthorizationDecision] {
	return streaming.LatestOnly(ctx, in, isPermitToDenyTransition)
}

func isPermitToDenyTransition(prev, next decision.AuthorizationDecision) bool {
	return prev.Decision == decision.Permit && next.Decision == decision.Deny
}
