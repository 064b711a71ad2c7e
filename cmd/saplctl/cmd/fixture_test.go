package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sapl-go/sapl/internal/document"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadPoliciesBuildsEqualityWhere(t *testing.T) {
	path := writeTemp(t, "policies.json", `[
		{"id": "p1", "entitlement": "permit", "where": {"field": "subject", "equals": "alice"}},
		{"id": "p2", "entitlement": "deny"}
	]`)

	docs, err := loadPolicies(path)
	if err != nil {
		t.Fatalf("loadPolicies: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(docs))
	}
	if docs[0].Entitlement != document.EntitlementPermit {
		t.Fatalf("expected p1 to be permit")
	}
	if docs[0].WhereExpr == nil {
		t.Fatalf("expected p1 to have a where clause")
	}
	if docs[1].Entitlement != document.EntitlementDeny {
		t.Fatalf("expected p2 to be deny")
	}
	if docs[1].WhereExpr != nil {
		t.Fatalf("expected p2 to have no where clause")
	}
}

func TestLoadPoliciesRejectsUnknownEntitlement(t *testing.T) {
	path := writeTemp(t, "policies.json", `[{"id": "p1", "entitlement": "maybe"}]`)
	if _, err := loadPolicies(path); err == nil {
		t.Fatal("expected an error for an unknown entitlement")
	}
}

func TestLoadSubscriptionParsesFields(t *testing.T) {
	path := writeTemp(t, "sub.json", `{"subject": "alice", "action": "read", "resource": "doc1", "environment": null}`)

	sub, err := loadSubscription(path)
	if err != nil {
		t.Fatalf("loadSubscription: %v", err)
	}
	if s, ok := sub.Subject.AsText(); !ok || s != "alice" {
		t.Fatalf("unexpected subject: %v", sub.Subject)
	}
}

func TestFieldPathBuildsNestedAccess(t *testing.T) {
	path := writeTemp(t, "policies.json", `[
		{"id": "p1", "entitlement": "permit", "where": {"field": "resource.owner", "equals": "alice"}}
	]`)

	docs, err := loadPolicies(path)
	if err != nil {
		t.Fatalf("loadPolicies: %v", err)
	}
	if docs[0].WhereExpr == nil {
		t.Fatal("expected a where clause")
	}
}
