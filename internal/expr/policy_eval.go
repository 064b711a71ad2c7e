package expr

import (
	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/evalctx"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// PolicySpec is the minimal shape Pipeline needs from a single policy: its
// target/where guards, intrinsic entitlement, and obligation/advice/
// transform expressions. internal/document.PolicyDocument satisfies this
// by construction; Pipeline does not import internal/document to avoid
// import-cycling back through internal/expr.
type PolicySpec struct {
	TargetExpr  Expr
	WhereExpr   Expr
	Entitlement decision.Decision // decision.Permit or decision.Deny
	Obligations []Expr
	Advice      []Expr
	Transform   Expr
}

// OnAdviceError receives an error from an advice expression (§4.4 step 6:
// "errors in advice are logged and dropped"). A nil handler silently drops.
type OnAdviceError func(err error)

// Pipeline runs the eight-step per-policy evaluation procedure of §4.4 and
// produces an infinite-lifetime AuthorizationDecision stream for one policy.
func Pipeline(c *evalctx.Context, ev *Evaluator, spec PolicySpec, onAdviceError OnAdviceError) streaming.Stream[decision.AuthorizationDecision] {
	targetStream := boolStream(c, ev, spec.TargetExpr)
	out := streaming.Map(c.Go, targetStream, func(target val.Val) decision.AuthorizationDecision {
		return decisionForTick(c, ev, spec, target, onAdviceError)
	})
	return out
}

func boolStream(c *evalctx.Context, ev *Evaluator, e Expr) streaming.Stream[val.Val] {
	if e == nil {
		return streaming.Just(c.Go, val.Bool(true))
	}
	return ev.Eval(c, e)
}

// decisionForTick synchronously resolves steps 2-8 for one target tick by
// sampling where/obligations/advice/transform with streaming.First: once
// target has settled true for this tick, the remaining steps are plain
// value computations over the same evaluation context, not further
// independently-reactive sub-pipelines (the target recomputation already
// drives when this whole function re-runs).
func decisionForTick(c *evalctx.Context, ev *Evaluator, spec PolicySpec, target val.Val, onAdviceError OnAdviceError) decision.AuthorizationDecision {
	if target.IsError() {
		return indeterminate()
	}
	matched, ok := target.AsBool()
	if !ok || !matched {
		return decision.AuthorizationDecision{Decision: decision.NotApplicable}
	}

	where, err := streaming.First(c.Go, boolStream(c, ev, spec.WhereExpr))
	if err != nil {
		return indeterminate()
	}
	if where.IsError() {
		return indeterminate()
	}
	whereMatched, ok := where.AsBool()
	if !ok || !whereMatched {
		return decision.AuthorizationDecision{Decision: decision.NotApplicable}
	}

	obligations, err := evalExprList(c, ev, spec.Obligations)
	if err != nil {
		return indeterminate()
	}

	advice := evalAdviceList(c, ev, spec.Advice, onAdviceError)

	var resource *val.Val
	if spec.Transform != nil {
		tv, err := streaming.First(c.Go, ev.Eval(c, spec.Transform))
		if err != nil || tv.IsError() {
			return indeterminate()
		}
		resource = &tv
	}

	// Obligation/resource errors still force INDETERMINATE above regardless
	// of entitlement, but a non-PERMIT decision must never carry either
	// (§3 invariant on AuthorizationDecision); advice may remain.
	if spec.Entitlement != decision.Permit {
		obligations = nil
		resource = nil
	}

	return decision.AuthorizationDecision{
		Decision:    spec.Entitlement,
		Resource:    resource,
		Obligations: obligations,
		Advice:      advice,
	}
}

func evalExprList(c *evalctx.Context, ev *Evaluator, exprs []Expr) ([]val.Val, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]val.Val, 0, len(exprs))
	for _, e := range exprs {
		v, err := streaming.First(c.Go, ev.Eval(c, e))
		if err != nil {
			return nil, err
		}
		if v.IsError() {
			return nil, fieldError{msg: v.ErrorMessage()}
		}
		out = append(out, v)
	}
	return out, nil
}

func evalAdviceList(c *evalctx.Context, ev *Evaluator, exprs []Expr, onError OnAdviceError) []val.Val {
	if len(exprs) == 0 {
		return nil
	}
	out := make([]val.Val, 0, len(exprs))
	for _, e := range exprs {
		v, err := streaming.First(c.Go, ev.Eval(c, e))
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if v.IsError() {
			if onError != nil {
				onError(fieldError{msg: v.ErrorMessage()})
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

func indeterminate() decision.AuthorizationDecision {
	return decision.AuthorizationDecision{Decision: decision.Indeterminate}
}

type fieldError struct{ msg string }

func (e fieldError) Error() string { return e.msg }
