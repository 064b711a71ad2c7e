// Package combining implements the six voting-mode Combining Algorithms
// (C6, §4.6): folding the latest decision from each candidate policy's
// stream into a single AuthorizationDecision stream on every tick.
package combining

import (
	"context"
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// Combine folds inputs (one per candidate policy, supplied in document
// submission order — the only ordering FirstApplicable needs, per §5's
// "FIRST_APPLICABLE... ordering is defined by document submission order")
// into a single decision stream using algo. The returned stream is
// infinite-lifetime and suppresses consecutive structurally-equal emissions
// (§4.6); ctx bounds every goroutine Combine starts, matching every other
// stream-producing function in this engine.
func Combine(ctx context.Context, algo decision.CombiningAlgorithm, inputs []streaming.Stream[decision.AuthorizationDecision]) streaming.Stream[decision.AuthorizationDecision] {
	if len(inputs) == 0 {
		return streaming.Just(ctx, decision.AuthorizationDecision{Decision: algo.DefaultDecision})
	}
	combined := streaming.CombineLatest(ctx, inputs)
	folded := streaming.Map(ctx, combined, func(ds []decision.AuthorizationDecision) decision.AuthorizationDecision {
		ds = applyErrorHandling(algo.ErrorHandling, ds)
		return fold(algo, ds)
	})
	return streaming.DedupFunc(ctx, folded, decision.AuthorizationDecision.Equal)
}

// applyErrorHandling is a placeholder identity pass: per-policy pipelines
// (internal/expr.Pipeline) already turn evaluation errors into
// decision.Indeterminate before a decision ever reaches the combiner, so
// ErrorHandling's three modes are realised by reinterpreting Indeterminate
// entries rather than by inspecting a separate error channel here.
func applyErrorHandling(mode decision.ErrorHandling, ds []decision.AuthorizationDecision) []decision.AuthorizationDecision {
	if mode != decision.TreatAsNotApplicable {
		return ds
	}
	out := make([]decision.AuthorizationDecision, len(ds))
	for i, d := range ds {
		if d.Decision == decision.Indeterminate {
			out[i] = decision.AuthorizationDecision{Decision: decision.NotApplicable}
			continue
		}
		out[i] = d
	}
	return out
}

func fold(algo decision.CombiningAlgorithm, ds []decision.AuthorizationDecision) decision.AuthorizationDecision {
	switch algo.VotingMode {
	case decision.DenyOverrides:
		return foldDenyOverrides(ds, algo.DefaultDecision)
	case decision.PermitOverrides:
		return foldPermitOverrides(ds, algo.DefaultDecision)
	case decision.FirstApplicable:
		return foldFirstApplicable(ds, algo.DefaultDecision)
	case decision.OnlyOneApplicable:
		return foldOnlyOneApplicable(ds, algo.DefaultDecision, algo.OnlyOneApplicableTreatsIndeterminateAsApplicable)
	case decision.DenyUnlessPermit:
		return foldDenyUnlessPermit(ds)
	case decision.PermitUnlessDeny:
		return foldPermitUnlessDeny(ds)
	default:
		return decision.AuthorizationDecision{Decision: algo.DefaultDecision}
	}
}

func foldDenyOverrides(ds []decision.AuthorizationDecision, def decision.Decision) decision.AuthorizationDecision {
	if d, ok := firstWith(ds, decision.Deny); ok {
		return d
	}
	if anyIs(ds, decision.Indeterminate) {
		return decision.AuthorizationDecision{Decision: decision.Indeterminate}
	}
	if anyIs(ds, decision.Permit) {
		return aggregatePermits(ds)
	}
	return decision.AuthorizationDecision{Decision: def}
}

func foldPermitOverrides(ds []decision.AuthorizationDecision, def decision.Decision) decision.AuthorizationDecision {
	if anyIs(ds, decision.Permit) {
		return aggregatePermits(ds)
	}
	if anyIs(ds, decision.Indeterminate) {
		return decision.AuthorizationDecision{Decision: decision.Indeterminate}
	}
	if d, ok := firstWith(ds, decision.Deny); ok {
		return d
	}
	return decision.AuthorizationDecision{Decision: def}
}

func foldFirstApplicable(ds []decision.AuthorizationDecision, def decision.Decision) decision.AuthorizationDecision {
	for _, d := range ds {
		if d.Decision != decision.NotApplicable {
			return d
		}
	}
	return decision.AuthorizationDecision{Decision: def}
}

func foldOnlyOneApplicable(ds []decision.AuthorizationDecision, def decision.Decision, indeterminateCounts bool) decision.AuthorizationDecision {
	var applicable *decision.AuthorizationDecision
	count := 0
	for i, d := range ds {
		isApplicable := d.Decision != decision.NotApplicable
		if d.Decision == decision.Indeterminate && !indeterminateCounts {
			isApplicable = false
		}
		if isApplicable {
			count++
			applicable = &ds[i]
		}
	}
	switch count {
	case 0:
		return decision.AuthorizationDecision{Decision: def}
	case 1:
		return *applicable
	default:
		return decision.AuthorizationDecision{Decision: decision.Indeterminate}
	}
}

// foldDenyUnlessPermit and foldPermitUnlessDeny never emit INDETERMINATE or
// NOT_APPLICABLE (§4.6, testable property #3): every per-policy
// INDETERMINATE is treated as "not a permit", not escalated, so they collect
// permits with collectPermits directly rather than through aggregatePermits'
// indeterminate-escalation path.
func foldDenyUnlessPermit(ds []decision.AuthorizationDecision) decision.AuthorizationDecision {
	if anyIs(ds, decision.Permit) {
		return collectPermits(ds)
	}
	return decision.AuthorizationDecision{Decision: decision.Deny}
}

func foldPermitUnlessDeny(ds []decision.AuthorizationDecision) decision.AuthorizationDecision {
	if anyIs(ds, decision.Deny) {
		if d, ok := firstWith(ds, decision.Deny); ok {
			return d
		}
	}
	return collectPermits(ds)
}

func anyIs(ds []decision.AuthorizationDecision, want decision.Decision) bool {
	for _, d := range ds {
		if d.Decision == want {
			return true
		}
	}
	return false
}

func firstWith(ds []decision.AuthorizationDecision, want decision.Decision) (decision.AuthorizationDecision, bool) {
	for _, d := range ds {
		if d.Decision == want {
			return d, true
		}
	}
	return decision.AuthorizationDecision{}, false
}

// aggregatePermits escalates to INDETERMINATE if any policy's own obligation
// evaluation had already failed (represented upstream as that policy's
// decision itself being INDETERMINATE rather than PERMIT), otherwise
// collects permits as collectPermits does. Used by DENY_OVERRIDES and
// PERMIT_OVERRIDES, where an unresolved INDETERMINATE must still win over a
// PERMIT. DENY_UNLESS_PERMIT/PERMIT_UNLESS_DENY must never produce
// INDETERMINATE (§4.6, testable property #3) and so call collectPermits
// directly instead of through this escalation.
func aggregatePermits(ds []decision.AuthorizationDecision) decision.AuthorizationDecision {
	if anyIs(ds, decision.Indeterminate) {
		return decision.AuthorizationDecision{Decision: decision.Indeterminate}
	}
	return collectPermits(ds)
}

// collectPermits gathers obligations/advice/resource from every PERMIT
// entry in ds, deduplicated by structural equality, and always returns
// PERMIT regardless of whether ds contains any PERMIT entry at all (the
// default outcome for PERMIT_UNLESS_DENY when nothing denies).
func collectPermits(ds []decision.AuthorizationDecision) decision.AuthorizationDecision {
	var resource *val.Val
	var obligations, advice []val.Val
	seenOb := map[uint64]bool{}
	seenAd := map[uint64]bool{}
	for _, d := range ds {
		if d.Decision != decision.Permit {
			continue
		}
		if resource == nil && d.Resource != nil {
			resource = d.Resource
		}
		for _, ob := range d.Obligations {
			key := digest(ob)
			if !seenOb[key] {
				seenOb[key] = true
				obligations = append(obligations, ob)
			}
		}
		for _, ad := range d.Advice {
			key := digest(ad)
			if !seenAd[key] {
				seenAd[key] = true
				advice = append(advice, ad)
			}
		}
	}
	return decision.AuthorizationDecision{
		Decision:    decision.Permit,
		Resource:    resource,
		Obligations: obligations,
		Advice:      advice,
	}
}

// digest hashes v's JSON encoding with xxhash for structural-equality
// deduplication.
func digest(v val.Val) uint64 {
	h := xxhash.New()
	raw, _ := json.Marshal(v)
	_, _ = h.Write(raw)
	return h.Sum64()
}

