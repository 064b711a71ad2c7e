package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/document"
	"github.com/sapl-go/sapl/internal/expr"
	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/target"
	"github.com/sapl-go/sapl/internal/val"
)

func strLit(s string) expr.Expr {
	return expr.Literal{Value: expr.LiteralValue{Text: &s}}
}

func subjectEquals(s string) expr.Expr {
	return expr.Comparison{Op: expr.CmpEq, Left: expr.Identifier{Name: "subject"}, Right: strLit(s)}
}

func policyDoc(id string, ent document.Entitlement, where expr.Expr) *document.PolicyDocument {
	return &document.PolicyDocument{ID: id, Kind: document.KindPolicy, Entitlement: ent, WhereExpr: where}
}

func subFor(subject string) decision.AuthorizationSubscription {
	return decision.AuthorizationSubscription{Subject: val.Text(subject)}
}

func newTestEngine(t *testing.T, catalog document.PolicyCatalog, algo decision.CombiningAlgorithm) *Engine {
	t.Helper()
	fns, err := registry.NewStaticFunctionRegistry(nil)
	if err != nil {
		t.Fatalf("NewStaticFunctionRegistry: %v", err)
	}
	e, err := New(catalog, target.LinearEvaluator, nil, fns, nil, nil, algo, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func pollUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDecideSinglePolicyPermitsOnlyMatchingSubject(t *testing.T) {
	defer goleak.VerifyNone(t)
	catalog := document.NewMemoryCatalog()
	catalog.Put(policyDoc("p1", document.EntitlementPermit, subjectEquals("alice")))
	algo := decision.CombiningAlgorithm{VotingMode: decision.DenyOverrides, DefaultDecision: decision.NotApplicable}
	e := newTestEngine(t, catalog, algo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := e.DecideOnce(ctx, subFor("alice"))
	if err != nil {
		t.Fatalf("DecideOnce: %v", err)
	}
	if got.Decision != decision.Permit {
		t.Fatalf("expected PERMIT for alice, got %s", got.Decision)
	}

	got, err = e.DecideOnce(ctx, subFor("bob"))
	if err != nil {
		t.Fatalf("DecideOnce: %v", err)
	}
	if got.Decision != decision.NotApplicable {
		t.Fatalf("expected NOT_APPLICABLE for bob, got %s", got.Decision)
	}
}

func TestDecideCombinesMultiplePoliciesWithDenyOverrides(t *testing.T) {
	defer goleak.VerifyNone(t)
	catalog := document.NewMemoryCatalog()
	catalog.Put(policyDoc("permit-all", document.EntitlementPermit, nil))
	catalog.Put(policyDoc("deny-all", document.EntitlementDeny, nil))
	algo := decision.CombiningAlgorithm{VotingMode: decision.DenyOverrides, DefaultDecision: decision.NotApplicable}
	e := newTestEngine(t, catalog, algo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := e.DecideOnce(ctx, subFor("anyone"))
	if err != nil {
		t.Fatalf("DecideOnce: %v", err)
	}
	if got.Decision != decision.Deny {
		t.Fatalf("expected DENY, got %s", got.Decision)
	}
}

func TestDecideWithNoCandidatesReturnsDefaultDecision(t *testing.T) {
	defer goleak.VerifyNone(t)
	catalog := document.NewMemoryCatalog()
	algo := decision.CombiningAlgorithm{VotingMode: decision.DenyOverrides, DefaultDecision: decision.Deny}
	e := newTestEngine(t, catalog, algo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := e.DecideOnce(ctx, subFor("anyone"))
	if err != nil {
		t.Fatalf("DecideOnce: %v", err)
	}
	if got.Decision != decision.Deny {
		t.Fatalf("expected configured default decision DENY, got %s", got.Decision)
	}
}

// A PolicySet's own Combining governs only its children; the top-level
// algorithm still governs how the set's folded result combines with its
// siblings in the catalog.
func TestPolicySetCombiningGovernsOnlyItsChildren(t *testing.T) {
	defer goleak.VerifyNone(t)
	set := &document.PolicyDocument{
		ID:        "set1",
		Kind:      document.KindPolicySet,
		Combining: decision.CombiningAlgorithm{VotingMode: decision.FirstApplicable, DefaultDecision: decision.NotApplicable},
		Children: []*document.PolicyDocument{
			policyDoc("set1.nomatch", document.EntitlementDeny, subjectEquals("nobody")),
			policyDoc("set1.catchall", document.EntitlementPermit, nil),
		},
	}
	catalog := document.NewMemoryCatalog()
	catalog.Put(set)
	catalog.Put(policyDoc("always-deny", document.EntitlementDeny, nil))

	algo := decision.CombiningAlgorithm{VotingMode: decision.PermitOverrides, DefaultDecision: decision.NotApplicable}
	e := newTestEngine(t, catalog, algo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := e.DecideOnce(ctx, subFor("alice"))
	if err != nil {
		t.Fatalf("DecideOnce: %v", err)
	}
	if got.Decision != decision.Permit {
		t.Fatalf("expected PERMIT (set1 folds to PERMIT via its own FIRST_APPLICABLE, then PERMIT_OVERRIDES wins over always-deny), got %s", got.Decision)
	}
}

func TestDecideAllEmitsCombinedSnapshotAcrossSubscriptions(t *testing.T) {
	defer goleak.VerifyNone(t)
	catalog := document.NewMemoryCatalog()
	catalog.Put(policyDoc("p1", document.EntitlementPermit, subjectEquals("alice")))
	algo := decision.CombiningAlgorithm{VotingMode: decision.DenyOverrides, DefaultDecision: decision.NotApplicable}
	e := newTestEngine(t, catalog, algo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	subs := []decision.AuthorizationSubscription{subFor("alice"), subFor("bob")}
	s, err := e.DecideAll(ctx, subs)
	if err != nil {
		t.Fatalf("DecideAll: %v", err)
	}
	md, err := streaming.First(ctx, s)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if len(md.Decisions) != 2 || len(md.CorrelationIDs) != 2 {
		t.Fatalf("expected 2 decisions and 2 correlation ids, got %+v", md)
	}
	if md.Decisions[0].Decision != decision.Permit {
		t.Fatalf("expected PERMIT for alice, got %s", md.Decisions[0].Decision)
	}
	if md.Decisions[1].Decision != decision.NotApplicable {
		t.Fatalf("expected NOT_APPLICABLE for bob, got %s", md.Decisions[1].Decision)
	}
	if md.CorrelationIDs[0] == "" || md.CorrelationIDs[1] == "" || md.CorrelationIDs[0] == md.CorrelationIDs[1] {
		t.Fatalf("expected two distinct non-empty correlation ids, got %v", md.CorrelationIDs)
	}
}

func TestDecideEachForwardsEachSubscriptionIndependently(t *testing.T) {
	defer goleak.VerifyNone(t)
	catalog := document.NewMemoryCatalog()
	catalog.Put(policyDoc("p1", document.EntitlementPermit, subjectEquals("alice")))
	algo := decision.CombiningAlgorithm{VotingMode: decision.DenyOverrides, DefaultDecision: decision.NotApplicable}
	e := newTestEngine(t, catalog, algo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	subs := []decision.AuthorizationSubscription{subFor("alice"), subFor("bob")}
	s, err := e.DecideEach(ctx, subs)
	if err != nil {
		t.Fatalf("DecideEach: %v", err)
	}

	results := map[int]decision.Decision{}
	ids := map[int]string{}
	streaming.Drain(ctx, s, func(td TaggedDecision) {
		results[td.Index] = td.Decision.Decision
		ids[td.Index] = td.CorrelationID
	}, func(err error) {
		t.Fatalf("unexpected error: %v", err)
	})

	if results[0] != decision.Permit {
		t.Fatalf("expected PERMIT at index 0 (alice), got %s", results[0])
	}
	if results[1] != decision.NotApplicable {
		t.Fatalf("expected NOT_APPLICABLE at index 1 (bob), got %s", results[1])
	}
	if ids[0] == "" || ids[1] == "" || ids[0] == ids[1] {
		t.Fatalf("expected two distinct non-empty correlation ids, got %v", ids)
	}
}

func TestIsPermitToDenyTransitionNeverDropsRevocation(t *testing.T) {
	permit := decision.AuthorizationDecision{Decision: decision.Permit}
	deny := decision.AuthorizationDecision{Decision: decision.Deny}
	notApplicable := decision.AuthorizationDecision{Decision: decision.NotApplicable}

	if !isPermitToDenyTransition(permit, deny) {
		t.Fatal("expected PERMIT -> DENY to be a must-keep transition")
	}
	if isPermitToDenyTransition(deny, permit) {
		t.Fatal("DENY -> PERMIT is not the protected transition")
	}
	if isPermitToDenyTransition(notApplicable, deny) {
		t.Fatal("NOT_APPLICABLE -> DENY is not the protected transition")
	}
	if isPermitToDenyTransition(permit, permit) {
		t.Fatal("PERMIT -> PERMIT is not a transition at all")
	}
}

func TestEngineIndexReflectsCatalogAdditionsAfterConstruction(t *testing.T) {
	defer goleak.VerifyNone(t)
	catalog := document.NewMemoryCatalog()
	algo := decision.CombiningAlgorithm{VotingMode: decision.DenyOverrides, DefaultDecision: decision.NotApplicable}
	e := newTestEngine(t, catalog, algo)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := e.DecideOnce(ctx, subFor("alice"))
	if err != nil {
		t.Fatalf("DecideOnce: %v", err)
	}
	if got.Decision != decision.NotApplicable {
		t.Fatalf("expected NOT_APPLICABLE before catalog seeding, got %s", got.Decision)
	}

	catalog.Put(policyDoc("late", document.EntitlementPermit, nil))

	pollUntil(t, time.Second, func() bool {
		d, err := e.DecideOnce(ctx, subFor("alice"))
		return err == nil && d.Decision == decision.Permit
	})
}

func TestEngineIndexStopsReflectingCatalogAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	catalog := document.NewMemoryCatalog()
	algo := decision.CombiningAlgorithm{VotingMode: decision.DenyOverrides, DefaultDecision: decision.NotApplicable}
	fns, err := registry.NewStaticFunctionRegistry(nil)
	if err != nil {
		t.Fatalf("NewStaticFunctionRegistry: %v", err)
	}
	e, err := New(catalog, target.LinearEvaluator, nil, fns, nil, nil, algo, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Close()

	catalog.Put(policyDoc("after-close", document.EntitlementPermit, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	got, err := e.DecideOnce(ctx, subFor("alice"))
	if err != nil {
		t.Fatalf("DecideOnce: %v", err)
	}
	if got.Decision != decision.NotApplicable {
		t.Fatalf("expected catalog updates to stop applying after Close, got %s", got.Decision)
	}
}
