package target

import "testing"

func lit(p PredicateRef, negated bool) Literal { return Literal{Predicate: p, Negated: negated} }

func clause(lits ...Literal) Clause { return Clause{Literals: lits} }

func TestReduceDropsSelfContradictingClause(t *testing.T) {
	f := DisjunctiveFormula{Clauses: []Clause{clause(lit(0, false), lit(0, true))}}
	got := f.reduce()
	if !got.IsContradiction() {
		t.Fatalf("expected contradiction, got %+v", got)
	}
}

func TestReduceDropsIdempotentDuplicateLiterals(t *testing.T) {
	f := DisjunctiveFormula{Clauses: []Clause{clause(lit(0, false), lit(0, false))}}
	got := f.reduce()
	if len(got.Clauses) != 1 || len(got.Clauses[0].Literals) != 1 {
		t.Fatalf("expected one deduped clause, got %+v", got)
	}
}

func TestReduceAbsorbsSupersetClause(t *testing.T) {
	f := DisjunctiveFormula{Clauses: []Clause{
		clause(lit(0, false)),
		clause(lit(0, false), lit(1, false)),
	}}
	got := f.reduce()
	if len(got.Clauses) != 1 {
		t.Fatalf("expected absorption to leave one clause, got %d", len(got.Clauses))
	}
}

func TestNegateTwiceEqualsReducedOriginal(t *testing.T) {
	f := DisjunctiveFormula{Clauses: []Clause{
		clause(lit(0, false), lit(1, false)),
		clause(lit(2, false)),
	}}
	got := f.Negate().Negate()
	if !Equal(got, f) {
		t.Fatalf("double negation did not round-trip: got %+v want %+v", got, f.reduce())
	}
}

func TestEqualIgnoresClauseAndLiteralOrder(t *testing.T) {
	a := DisjunctiveFormula{Clauses: []Clause{
		clause(lit(0, false), lit(1, false)),
		clause(lit(2, false)),
	}}
	b := DisjunctiveFormula{Clauses: []Clause{
		clause(lit(2, false)),
		clause(lit(1, false), lit(0, false)),
	}}
	if !Equal(a, b) {
		t.Fatalf("expected formulas to be equal regardless of order")
	}
}

func TestTautologyAndContradiction(t *testing.T) {
	if !tautology().IsTautology() {
		t.Fatalf("tautology() must report IsTautology")
	}
	if !contradiction().IsContradiction() {
		t.Fatalf("contradiction() must report IsContradiction")
	}
}
