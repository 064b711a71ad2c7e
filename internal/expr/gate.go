package expr

import (
	"context"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/evalctx"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// GateByTarget reactively gates inner (a PolicySet's combined children
// decision stream) behind target: whenever target's value changes, any
// in-flight inner stream is torn down and replaced per
// streaming.SwitchMap's cancel-and-restart semantics, matching how a leaf
// policy's own target recomputation drives Pipeline. A false or Error
// target collapses to NOT_APPLICABLE/INDETERMINATE without ever building
// inner.
func GateByTarget(c *evalctx.Context, ev *Evaluator, target Expr, inner func(ctx context.Context) streaming.Stream[decision.AuthorizationDecision]) streaming.Stream[decision.AuthorizationDecision] {
	targetStream := boolStream(c, ev, target)
	return streaming.SwitchMap(c.Go, targetStream, func(ctx context.Context, t val.Val) streaming.Stream[decision.AuthorizationDecision] {
		if t.IsError() {
			return streaming.Just(ctx, indeterminate())
		}
		matched, ok := t.AsBool()
		if !ok || !matched {
			return streaming.Just(ctx, decision.AuthorizationDecision{Decision: decision.NotApplicable})
		}
		return inner(ctx)
	})
}
