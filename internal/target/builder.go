package target

import (
	"fmt"

	"github.com/sapl-go/sapl/internal/expr"
)

// Arena interns predicate leaves (any target sub-expression that is not a
// pure boolean AND/OR/NOT combinator) into a shared, append-only table so
// structurally identical leaves across different policies' targets resolve
// to the same PredicateRef (design note "arena + integer index rather than
// owning cycles" — avoids every formula owning its own copy of every leaf
// expr.Expr it references).
type Arena struct {
	leaves []expr.Expr
	byFP   map[string]PredicateRef
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{byFP: map[string]PredicateRef{}}
}

// Leaf returns the expr.Expr a PredicateRef was interned from.
func (a *Arena) Leaf(ref PredicateRef) expr.Expr { return a.leaves[ref] }

func (a *Arena) intern(e expr.Expr) PredicateRef {
	fp := fingerprint(e)
	if ref, ok := a.byFP[fp]; ok {
		return ref
	}
	ref := PredicateRef(len(a.leaves))
	a.leaves = append(a.leaves, e)
	a.byFP[fp] = ref
	return ref
}

// Build walks a target expr.Expr tree, rewriting pure boolean combinators
// (AND, OR, NOT) into a DisjunctiveFormula and interning every other
// sub-expression as an opaque predicate leaf in arena (§4.5: "any
// sub-expression that is not a pure boolean combinator becomes a leaf"). A
// nil target expression (absent target, always matches) returns the
// tautology.
func Build(arena *Arena, target expr.Expr) (DisjunctiveFormula, error) {
	if target == nil {
		return tautology(), nil
	}
	return build(arena, target)
}

func build(arena *Arena, e expr.Expr) (DisjunctiveFormula, error) {
	switch n := e.(type) {
	case expr.Logical:
		switch n.Op {
		case expr.OpAnd:
			left, err := build(arena, n.Left)
			if err != nil {
				return DisjunctiveFormula{}, err
			}
			right, err := build(arena, n.Right)
			if err != nil {
				return DisjunctiveFormula{}, err
			}
			return and(left, right).reduce(), nil
		case expr.OpOr:
			left, err := build(arena, n.Left)
			if err != nil {
				return DisjunctiveFormula{}, err
			}
			right, err := build(arena, n.Right)
			if err != nil {
				return DisjunctiveFormula{}, err
			}
			return or(left, right).reduce(), nil
		case expr.OpNot:
			inner, err := build(arena, n.Left)
			if err != nil {
				return DisjunctiveFormula{}, err
			}
			return inner.Negate(), nil
		default:
			return DisjunctiveFormula{}, fmt.Errorf("target: unknown logical operator %v", n.Op)
		}
	default:
		ref := arena.intern(e)
		return DisjunctiveFormula{Clauses: []Clause{{Literals: []Literal{{Predicate: ref}}}}}, nil
	}
}

// fingerprint produces a structural key for e good enough for leaf
// deduplication within one arena. It does not need to be collision-proof
// across arbitrarily adversarial trees, only stable for the same parsed
// tree shape, since a false negative (two fingerprints differing for an
// identical tree) only costs an extra arena slot, never correctness.
func fingerprint(e expr.Expr) string {
	return fmt.Sprintf("%#v", e)
}
