// Package target implements the Target Indexer / PRP (C5): canonicalising
// a policy's target expression into a DisjunctiveFormula over opaque
// predicate leaves, and an atomic-snapshot index for looking up candidate
// documents for a subscription (§4.5).
package target

import (
	"sort"
	"strconv"
)

// PredicateRef is an opaque handle into an arena of interned predicate
// leaves: any target sub-expression that is not a pure boolean combinator
// (AND/OR/NOT over other target expressions) becomes one leaf, shared
// across every formula that contains a structurally identical leaf.
type PredicateRef int

// Literal is one signed occurrence of a predicate within a clause.
type Literal struct {
	Predicate PredicateRef
	Negated   bool
}

// Clause is a conjunction (AND) of Literals.
type Clause struct {
	Literals []Literal
}

// DisjunctiveFormula is a disjunction (OR) of Clauses: the canonical
// disjunctive-normal-form representation of a target expression.
type DisjunctiveFormula struct {
	Clauses []Clause
}

// tautology is the canonical "always true" formula: a single empty clause
// (the empty conjunction is vacuously true).
func tautology() DisjunctiveFormula { return DisjunctiveFormula{Clauses: []Clause{{}}} }

// contradiction is the canonical "always false" formula: no clauses at all
// (the empty disjunction is vacuously false).
func contradiction() DisjunctiveFormula { return DisjunctiveFormula{} }

// IsTautology reports whether f is the canonical "always true" formula.
func (f DisjunctiveFormula) IsTautology() bool {
	for _, c := range f.Clauses {
		if len(c.Literals) == 0 {
			return true
		}
	}
	return false
}

// IsContradiction reports whether f is the canonical "always false" formula.
func (f DisjunctiveFormula) IsContradiction() bool { return len(f.Clauses) == 0 }

// Negate applies De Morgan's laws: the negation of a disjunction of
// conjunctions is a conjunction of disjunctions, which Reduce then
// distributes back out into DNF. Double negation eliminates: Negate applied
// twice returns a formula equal (per Equal) to the original's Reduce.
func (f DisjunctiveFormula) Negate() DisjunctiveFormula {
	if f.IsContradiction() {
		return tautology()
	}
	// Start from the negation of the first clause, then intersect in the
	// negation of every remaining clause via distribution (De Morgan: NOT
	// (A AND B) == (NOT A) OR (NOT B), then distribute OR over the
	// accumulated AND of such disjunctions).
	acc := negateClause(f.Clauses[0])
	for _, c := range f.Clauses[1:] {
		acc = distributeAnd(acc, negateClause(c))
	}
	return acc.reduce()
}

func negateClause(c Clause) DisjunctiveFormula {
	clauses := make([]Clause, len(c.Literals))
	for i, lit := range c.Literals {
		clauses[i] = Clause{Literals: []Literal{{Predicate: lit.Predicate, Negated: !lit.Negated}}}
	}
	if len(clauses) == 0 {
		return contradiction()
	}
	return DisjunctiveFormula{Clauses: clauses}
}

// distributeAnd computes the DNF of (a AND b) by pairwise-conjoining every
// clause of a with every clause of b.
func distributeAnd(a, b DisjunctiveFormula) DisjunctiveFormula {
	if a.IsContradiction() || b.IsContradiction() {
		return contradiction()
	}
	out := make([]Clause, 0, len(a.Clauses)*len(b.Clauses))
	for _, ca := range a.Clauses {
		for _, cb := range b.Clauses {
			merged := make([]Literal, 0, len(ca.Literals)+len(cb.Literals))
			merged = append(merged, ca.Literals...)
			merged = append(merged, cb.Literals...)
			out = append(out, Clause{Literals: merged})
		}
	}
	return DisjunctiveFormula{Clauses: out}
}

// or computes the DNF of (a OR b): simple clause-set union, left to reduce
// for absorption/idempotence/constant-folding cleanup.
func or(a, b DisjunctiveFormula) DisjunctiveFormula {
	out := make([]Clause, 0, len(a.Clauses)+len(b.Clauses))
	out = append(out, a.Clauses...)
	out = append(out, b.Clauses...)
	return DisjunctiveFormula{Clauses: out}
}

// and computes the DNF of (a AND b) via distribution.
func and(a, b DisjunctiveFormula) DisjunctiveFormula { return distributeAnd(a, b) }

// reduce applies idempotence (duplicate literals within a clause dropped),
// constant folding (a clause containing both a literal and its negation is
// always false and is dropped; a formula containing a tautological clause
// collapses to tautology), and absorption (a clause that is a superset of
// another clause is redundant and dropped) (§4.5).
func (f DisjunctiveFormula) reduce() DisjunctiveFormula {
	clauses := make([]Clause, 0, len(f.Clauses))
	for _, c := range f.Clauses {
		dc, ok := dedupeClause(c)
		if !ok {
			continue // self-contradictory clause (p AND NOT p): constant-folded away
		}
		if len(dc.Literals) == 0 {
			return tautology() // empty clause after dedup: vacuously true, whole formula is tautology
		}
		clauses = append(clauses, dc)
	}
	clauses = dropAbsorbed(clauses)
	return DisjunctiveFormula{Clauses: clauses}
}

func dedupeClause(c Clause) (Clause, bool) {
	seen := map[Literal]bool{}
	negSeen := map[PredicateRef]bool{}
	posSeen := map[PredicateRef]bool{}
	out := make([]Literal, 0, len(c.Literals))
	for _, lit := range c.Literals {
		if seen[lit] {
			continue
		}
		seen[lit] = true
		if lit.Negated {
			negSeen[lit.Predicate] = true
		} else {
			posSeen[lit.Predicate] = true
		}
		if negSeen[lit.Predicate] && posSeen[lit.Predicate] {
			return Clause{}, false
		}
		out = append(out, lit)
	}
	return Clause{Literals: out}, true
}

// dropAbsorbed removes every clause that is a (non-strict) superset of
// another clause's literal set: the shorter clause already implies it.
func dropAbsorbed(clauses []Clause) []Clause {
	sets := make([]map[Literal]bool, len(clauses))
	for i, c := range clauses {
		s := make(map[Literal]bool, len(c.Literals))
		for _, lit := range c.Literals {
			s[lit] = true
		}
		sets[i] = s
	}
	keep := make([]bool, len(clauses))
	for i := range clauses {
		keep[i] = true
	}
	for i := range clauses {
		if !keep[i] {
			continue
		}
		for j := range clauses {
			if i == j || !keep[j] {
				continue
			}
			if isSuperset(sets[i], sets[j]) && (len(sets[i]) > len(sets[j]) || i > j) {
				keep[i] = false
				break
			}
		}
	}
	out := make([]Clause, 0, len(clauses))
	for i, c := range clauses {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func isSuperset(a, b map[Literal]bool) bool {
	if len(a) < len(b) {
		return false
	}
	for lit := range b {
		if !a[lit] {
			return false
		}
	}
	return true
}

// Equal reports whether f and o reduce to the same clause set: order of
// clauses and order of literals within a clause are both insignificant
// (§4.5: "equal iff their reduced forms have equal clause sets...").
func Equal(f, o DisjunctiveFormula) bool {
	rf, ro := f.reduce(), o.reduce()
	if len(rf.Clauses) != len(ro.Clauses) {
		return false
	}
	fk := clauseKeys(rf)
	ok := clauseKeys(ro)
	sort.Strings(fk)
	sort.Strings(ok)
	for i := range fk {
		if fk[i] != ok[i] {
			return false
		}
	}
	return true
}

func clauseKeys(f DisjunctiveFormula) []string {
	keys := make([]string, len(f.Clauses))
	for i, c := range f.Clauses {
		lits := make([]string, len(c.Literals))
		for j, lit := range c.Literals {
			lits[j] = literalKey(lit)
		}
		sort.Strings(lits)
		key := ""
		for _, l := range lits {
			key += l + "&"
		}
		keys[i] = key
	}
	return keys
}

func literalKey(l Literal) string {
	if l.Negated {
		return "!p" + strconv.Itoa(int(l.Predicate))
	}
	return "p" + strconv.Itoa(int(l.Predicate))
}
