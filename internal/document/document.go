// Package document holds the parsed-policy AST shape the engine consumes
// (§3) and the PolicyCatalog interface/reference implementation the engine
// retrieves documents from (§6.4). The engine never looks at policy source
// text — only this already-parsed shape.
package document

import (
	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/expr"
)

// Kind distinguishes a Policy from a PolicySet.
type Kind int

const (
	KindPolicy Kind = iota
	KindPolicySet
)

// Entitlement is a policy's intrinsic outcome when it matches.
type Entitlement int

const (
	EntitlementPermit Entitlement = iota
	EntitlementDeny
)

// PolicyDocument is the parsed policy AST the engine consumes (§3).
// Invariant: a PolicySet contains only Policies (no nested sets within one
// set); a set's Combining governs its children only.
type PolicyDocument struct {
	ID          string
	Name        string
	Kind        Kind
	TargetExpr  expr.Expr // nil means "true" (always matches)
	WhereExpr   expr.Expr // nil means "true"
	Entitlement Entitlement
	Obligations []expr.Expr
	Advice      []expr.Expr
	Transform   expr.Expr // nil means "no transform"
	Imports     map[string]string
	Children    []*PolicyDocument // non-empty only for KindPolicySet
	Combining   decision.CombiningAlgorithm
}

// Spec adapts a leaf PolicyDocument (Kind == KindPolicy) into the
// expr.PolicySpec shape internal/expr.Pipeline consumes, keeping
// internal/expr free of a dependency on internal/document.
func (d *PolicyDocument) Spec() expr.PolicySpec {
	ent := decision.Deny
	if d.Entitlement == EntitlementPermit {
		ent = decision.Permit
	}
	return expr.PolicySpec{
		TargetExpr:  d.TargetExpr,
		WhereExpr:   d.WhereExpr,
		Entitlement: ent,
		Obligations: d.Obligations,
		Advice:      d.Advice,
		Transform:   d.Transform,
	}
}
