package target

import (
	"sync"
	"sync/atomic"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/document"
)

// candidate is one indexed document's canonicalised target formula plus the
// document itself, retained for the subsequent per-candidate evaluation
// C7 performs after narrowing via the index.
type candidate struct {
	doc     *document.PolicyDocument
	arena   *Arena
	formula DisjunctiveFormula
}

// indexSnapshot is the immutable value an Index publishes via atomic.Value:
// a copy-on-write snapshot so readers always see an internally-consistent
// view and writers never block them.
type indexSnapshot struct {
	candidates map[string]candidate
	order      []string // submission order, for FIRST_APPLICABLE (§4.5, §5)
}

// Strategy selects how Index.Candidates narrows the document set for a
// subscription.
type Strategy int

const (
	// LinearEvaluator walks every candidate's formula independently against
	// the subscription, the "simple" option of §4.5.
	LinearEvaluator Strategy = iota
	// PredicateSharingIndex evaluates each distinct predicate in the arena
	// at most once per Candidates call and propagates truth through every
	// clause that references it, the "predicate-sharing" option of §4.5.
	PredicateSharingIndex
)

// Index is the PRP: an atomic, copy-on-write snapshot of canonicalised
// target formulas plus a pluggable evaluation Strategy (§4.5, §5 "a
// read-write discipline (copy-on-write or versioned snapshot) is
// required").
type Index struct {
	snapshot atomic.Value // stores *indexSnapshot
	mu       sync.Mutex   // serializes Put/Remove/UpdateFunctionContext writers

	strategy Strategy
	eval     PredicateEvaluator

	liveMu  sync.Mutex
	live    bool
	pending []func(*indexSnapshot) *indexSnapshot
}

// NewIndex constructs an empty, immediately-serving Index.
func NewIndex(strategy Strategy, eval PredicateEvaluator) *Index {
	idx := &Index{strategy: strategy, eval: eval, live: true}
	idx.snapshot.Store(&indexSnapshot{
		candidates: map[string]candidate{},
	})
	return idx
}

// SetLive toggles the loading/serving flag (§4.5 "Live-mode flag separates
// loading (updates buffered) from serving (updates immediately visible)").
// Transitioning from not-live to live flushes every buffered update in
// submission order.
func (idx *Index) SetLive(live bool) {
	idx.liveMu.Lock()
	defer idx.liveMu.Unlock()
	idx.live = live
	if !live {
		return
	}
	pending := idx.pending
	idx.pending = nil
	for _, apply := range pending {
		idx.applyLocked(apply)
	}
}

// Put canonicalises doc's target and makes it a candidate under doc.ID,
// replacing any previous document with the same id in place (preserving
// its submission-order position) or appending it as newest otherwise.
func (idx *Index) Put(doc *document.PolicyDocument) error {
	arena := NewArena()
	formula, err := Build(arena, doc.TargetExpr)
	if err != nil {
		return err
	}
	idx.enqueue(func(snap *indexSnapshot) *indexSnapshot {
		next := cloneSnapshot(snap)
		if _, exists := next.candidates[doc.ID]; !exists {
			next.order = append(next.order, doc.ID)
		}
		next.candidates[doc.ID] = candidate{doc: doc, arena: arena, formula: formula}
		return next
	})
	return nil
}

// Remove drops id from the index.
func (idx *Index) Remove(id string) {
	idx.enqueue(func(snap *indexSnapshot) *indexSnapshot {
		next := cloneSnapshot(snap)
		if _, exists := next.candidates[id]; !exists {
			return snap
		}
		delete(next.candidates, id)
		for i, existing := range next.order {
			if existing == id {
				next.order = append(next.order[:i:i], next.order[i+1:]...)
				break
			}
		}
		return next
	})
}

// UpdateFunctionContext swaps the PredicateEvaluator used for subsequent
// Candidates calls, e.g. when the function registry's underlying bindings
// are refreshed. It does not require rebuilding any formula: predicate
// leaves are opaque expr.Expr, evaluated fresh on every Candidates call.
func (idx *Index) UpdateFunctionContext(eval PredicateEvaluator) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.eval = eval
}

func (idx *Index) enqueue(apply func(*indexSnapshot) *indexSnapshot) {
	idx.liveMu.Lock()
	defer idx.liveMu.Unlock()
	if !idx.live {
		idx.pending = append(idx.pending, apply)
		return
	}
	idx.applyLocked(apply)
}

// applyLocked must be called with liveMu held; it additionally takes mu to
// serialize concurrent writers against the atomic.Value swap.
func (idx *Index) applyLocked(apply func(*indexSnapshot) *indexSnapshot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cur := idx.snapshot.Load().(*indexSnapshot)
	idx.snapshot.Store(apply(cur))
}

func cloneSnapshot(snap *indexSnapshot) *indexSnapshot {
	next := &indexSnapshot{
		candidates: make(map[string]candidate, len(snap.candidates)+1),
		order:      append([]string{}, snap.order...),
	}
	for k, v := range snap.candidates {
		next.candidates[k] = v
	}
	return next
}

// Candidates returns, in submission order, every document whose target
// formula might evaluate to true for sub (over-approximation permitted,
// under-approximation is not, §4.5).
func (idx *Index) Candidates(sub decision.AuthorizationSubscription) ([]*document.PolicyDocument, error) {
	snap := idx.snapshot.Load().(*indexSnapshot)
	idx.mu.Lock()
	eval := idx.eval
	strategy := idx.strategy
	idx.mu.Unlock()

	var memo map[*Arena]map[PredicateRef]predicateResult
	if strategy == PredicateSharingIndex {
		memo = map[*Arena]map[PredicateRef]predicateResult{}
	}

	out := make([]*document.PolicyDocument, 0, len(snap.order))
	for _, id := range snap.order {
		cnd := snap.candidates[id]
		might, err := mightMatch(cnd.arena, cnd.formula, sub, eval, memo)
		if err != nil {
			return nil, err
		}
		if might {
			out = append(out, cnd.doc)
		}
	}
	return out, nil
}
