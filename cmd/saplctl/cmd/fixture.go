package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sapl-go/sapl"
	"github.com/sapl-go/sapl/internal/document"
	"github.com/sapl-go/sapl/internal/expr"
)

// policyFixture is the CLI's deliberately minimal stand-in for parsed SAPL
// source: a single field-equality where-clause per policy, no target
// expression, no policy sets, no obligations/advice/transform. A real parser
// is out of scope (§1 of the library's own spec); this shape exists only so
// saplctl has something to load without writing one.
type policyFixture struct {
	ID          string        `json:"id"`
	Entitlement string        `json:"entitlement"`
	Where       *whereFixture `json:"where,omitempty"`
}

type whereFixture struct {
	// Field is a dotted path resolved against the subscription's top-level
	// variables, e.g. "subject" or "resource.owner".
	Field  string          `json:"field"`
	Equals json.RawMessage `json:"equals"`
}

func loadPolicies(path string) ([]*document.PolicyDocument, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policies: %w", err)
	}
	var fixtures []policyFixture
	if err := json.Unmarshal(b, &fixtures); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}

	docs := make([]*document.PolicyDocument, 0, len(fixtures))
	for _, f := range fixtures {
		ent, err := parseEntitlement(f.Entitlement)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", f.ID, err)
		}
		var where expr.Expr
		if f.Where != nil {
			where, err = whereExpr(*f.Where)
			if err != nil {
				return nil, fmt.Errorf("policy %q: %w", f.ID, err)
			}
		}
		docs = append(docs, &document.PolicyDocument{
			ID:          f.ID,
			Kind:        document.KindPolicy,
			Entitlement: ent,
			WhereExpr:   where,
		})
	}
	return docs, nil
}

func parseEntitlement(s string) (document.Entitlement, error) {
	switch s {
	case "permit":
		return document.EntitlementPermit, nil
	case "deny":
		return document.EntitlementDeny, nil
	default:
		return 0, fmt.Errorf("unknown entitlement %q (want \"permit\" or \"deny\")", s)
	}
}

func whereExpr(w whereFixture) (expr.Expr, error) {
	lit, err := literalFromJSON(w.Equals)
	if err != nil {
		return nil, fmt.Errorf("where.equals: %w", err)
	}
	return expr.Comparison{
		Op:    expr.CmpEq,
		Left:  fieldPath(w.Field),
		Right: expr.Literal{Value: lit},
	}, nil
}

// fieldPath turns a dotted field path into an Identifier (for a bare
// top-level variable) or a chain of FieldAccess nodes rooted at one.
func fieldPath(path string) expr.Expr {
	segments := strings.Split(path, ".")
	var node expr.Expr = expr.Identifier{Name: segments[0]}
	for _, seg := range segments[1:] {
		node = expr.FieldAccess{Target: node, Field: seg}
	}
	return node
}

func literalFromJSON(raw json.RawMessage) (expr.LiteralValue, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return expr.LiteralValue{}, err
	}
	switch t := v.(type) {
	case nil:
		return expr.LiteralValue{Null: true}, nil
	case bool:
		return expr.LiteralValue{Bool: &t}, nil
	case float64:
		return expr.LiteralValue{Number: &t}, nil
	case string:
		return expr.LiteralValue{Text: &t}, nil
	default:
		return expr.LiteralValue{}, fmt.Errorf("unsupported literal type %T (only string/number/bool/null)", v)
	}
}

func loadSubscription(path string) (sapl.AuthorizationSubscription, error) {
	// AuthorizationSubscription's fields are val.Val, which carries its own
	// MarshalJSON/UnmarshalJSON, so a fixture file round-trips through
	// encoding/json without any CLI-specific adapter.
	var sub sapl.AuthorizationSubscription
	b, err := os.ReadFile(path)
	if err != nil {
		return sub, fmt.Errorf("read subscription: %w", err)
	}
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, fmt.Errorf("parse subscription: %w", err)
	}
	return sub, nil
}
