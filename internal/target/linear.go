package target

import (
	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/expr"
)

// PredicateEvaluator decides, as cheaply as possible, whether a single
// predicate leaf can be conclusively evaluated for sub. It MUST NOT report
// definitely-false for a predicate it cannot fully evaluate (e.g. one
// containing an attribute finder, which the PRP never subscribes to):
// over-approximation (reporting "maybe true") is required in that case,
// never under-approximation (§4.5). internal/celpredicate provides the CEL
// fast-path implementation; a nil PredicateEvaluator is also valid and
// treats every predicate as "maybe true".
type PredicateEvaluator interface {
	// EvaluatePredicate reports the definite truth value of leaf against
	// sub, or ok=false if it cannot be conclusively decided (the indexer
	// then over-approximates to "might match").
	EvaluatePredicate(sub decision.AuthorizationSubscription, leaf expr.Expr) (value bool, ok bool, err error)
}

type predicateResult struct {
	value bool
	ok    bool
}

// mightMatch implements both Strategy variants: with a memo map it shares
// each distinct predicate's result across every clause that references it
// within one Candidates call (PredicateSharingIndex); without one it
// re-evaluates every literal independently (LinearEvaluator). Either way a
// clause is "maybe true" unless some literal is conclusively false, and the
// formula is "maybe true" unless every clause is conclusively false.
func mightMatch(arena *Arena, f DisjunctiveFormula, sub decision.AuthorizationSubscription, eval PredicateEvaluator, memo map[*Arena]map[PredicateRef]predicateResult) (bool, error) {
	if f.IsTautology() {
		return true, nil
	}
	if f.IsContradiction() {
		return false, nil
	}
	for _, clause := range f.Clauses {
		might, err := clauseMightMatch(arena, clause, sub, eval, memo)
		if err != nil {
			return false, err
		}
		if might {
			return true, nil
		}
	}
	return false, nil
}

func clauseMightMatch(arena *Arena, c Clause, sub decision.AuthorizationSubscription, eval PredicateEvaluator, memo map[*Arena]map[PredicateRef]predicateResult) (bool, error) {
	for _, lit := range c.Literals {
		value, ok, err := evaluateLiteral(arena, lit, sub, eval, memo)
		if err != nil {
			return false, err
		}
		if ok && !value {
			return false, nil // this literal is conclusively false: the clause cannot match
		}
	}
	return true, nil
}

func evaluateLiteral(arena *Arena, lit Literal, sub decision.AuthorizationSubscription, eval PredicateEvaluator, memo map[*Arena]map[PredicateRef]predicateResult) (bool, bool, error) {
	if eval == nil {
		return false, false, nil
	}
	if memo != nil {
		byArena, exists := memo[arena]
		if !exists {
			byArena = map[PredicateRef]predicateResult{}
			memo[arena] = byArena
		}
		if r, cached := byArena[lit.Predicate]; cached {
			return applyNegation(r, lit.Negated), r.ok, nil
		}
		value, ok, err := eval.EvaluatePredicate(sub, arena.Leaf(lit.Predicate))
		if err != nil {
			return false, false, err
		}
		byArena[lit.Predicate] = predicateResult{value: value, ok: ok}
		return applyNegation(predicateResult{value: value, ok: ok}, lit.Negated), ok, nil
	}
	value, ok, err := eval.EvaluatePredicate(sub, arena.Leaf(lit.Predicate))
	if err != nil {
		return false, false, err
	}
	return applyNegation(predicateResult{value: value, ok: ok}, lit.Negated), ok, nil
}

func applyNegation(r predicateResult, negated bool) bool {
	if !negated {
		return r.value
	}
	return !r.value
}
