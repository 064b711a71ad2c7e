package target

import (
	"testing"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/document"
	"github.com/sapl-go/sapl/internal/expr"
)

// alwaysUnknown reports every predicate as undecidable, exercising the
// always-over-approximate path without pulling in CEL for this package's
// own unit tests.
type alwaysUnknown struct{}

func (alwaysUnknown) EvaluatePredicate(decision.AuthorizationSubscription, expr.Expr) (bool, bool, error) {
	return false, false, nil
}

func TestIndexCandidatesOverApproximatesUnknownPredicates(t *testing.T) {
	idx := NewIndex(LinearEvaluator, alwaysUnknown{})
	doc := &document.PolicyDocument{
		ID:         "p1",
		TargetExpr: expr.Comparison{Op: expr.CmpEq, Left: expr.Identifier{Name: "subject"}, Right: expr.Literal{Value: expr.LiteralValue{Text: strPtr("alice")}}},
	}
	if err := idx.Put(doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := idx.Candidates(decision.AuthorizationSubscription{})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("expected p1 to be a candidate, got %+v", got)
	}
}

func TestIndexRemoveDropsDocument(t *testing.T) {
	idx := NewIndex(LinearEvaluator, nil)
	doc := &document.PolicyDocument{ID: "p1"}
	if err := idx.Put(doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	idx.Remove("p1")
	got, err := idx.Candidates(decision.AuthorizationSubscription{})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates after Remove, got %+v", got)
	}
}

func TestIndexBuffersUpdatesWhileNotLive(t *testing.T) {
	idx := NewIndex(LinearEvaluator, nil)
	idx.SetLive(false)
	if err := idx.Put(&document.PolicyDocument{ID: "p1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := idx.Candidates(decision.AuthorizationSubscription{})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected Put to be buffered while not live, got %+v", got)
	}
	idx.SetLive(true)
	got, err = idx.Candidates(decision.AuthorizationSubscription{})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected buffered Put to flush on SetLive(true), got %+v", got)
	}
}

func TestIndexPreservesSubmissionOrderForFirstApplicable(t *testing.T) {
	idx := NewIndex(LinearEvaluator, nil)
	for _, id := range []string{"a", "b", "c"} {
		if err := idx.Put(&document.PolicyDocument{ID: id}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	got, err := idx.Candidates(decision.AuthorizationSubscription{})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	order := []string{got[0].ID, got[1].ID, got[2].ID}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected submission order a,b,c got %v", order)
	}
}

func strPtr(s string) *string { return &s }
