// Package celpredicate is a CEL-based fast-path PredicateEvaluator for
// internal/target's PredicateSharingIndex: rather than compiling
// operator-authored CEL source, it renders a target predicate leaf's
// already-parsed expr.Expr into a CEL expression string on the fly and
// compiles/evaluates that, falling back to "cannot decide"
// (over-approximation, §4.5) for any leaf shape CEL cannot represent —
// chiefly attribute finders, which the PRP must never subscribe to.
package celpredicate

import (
	"fmt"
	"strconv"

	"github.com/sapl-go/sapl/internal/expr"
)

// unrepresentable marks a leaf this renderer cannot turn into CEL source.
type unrepresentable struct{ reason string }

func (e unrepresentable) Error() string { return e.reason }

// render produces a CEL expression string equivalent to e, or an
// unrepresentable error if e (or any sub-expression) is outside the
// supported subset (identifiers, field/index access with literal keys,
// literals, arithmetic, comparison, logical, regex match).
func render(e expr.Expr) (string, error) {
	switch n := e.(type) {
	case expr.Literal:
		return renderLiteral(n.Value)
	case expr.Identifier:
		return n.Name, nil
	case expr.FieldAccess:
		target, err := render(n.Target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.%s", target, n.Field), nil
	case expr.Index:
		target, err := render(n.Target)
		if err != nil {
			return "", err
		}
		idx, err := render(n.IndexExpr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", target, idx), nil
	case expr.Arithmetic:
		return renderArithmetic(n)
	case expr.Comparison:
		left, err := render(n.Left)
		if err != nil {
			return "", err
		}
		right, err := render(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, compareOp(n.Op), right), nil
	case expr.Logical:
		return renderLogical(n)
	case expr.RegexMatch:
		target, err := render(n.Target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.matches(%s)", target, strconv.Quote(n.Pattern)), nil
	default:
		return "", unrepresentable{reason: fmt.Sprintf("%T is not CEL-representable", e)}
	}
}

func renderLiteral(lv expr.LiteralValue) (string, error) {
	switch {
	case lv.Null:
		return "null", nil
	case lv.Bool != nil:
		return strconv.FormatBool(*lv.Bool), nil
	case lv.Number != nil:
		return strconv.FormatFloat(*lv.Number, 'g', -1, 64), nil
	case lv.Text != nil:
		return strconv.Quote(*lv.Text), nil
	default:
		return "", unrepresentable{reason: "composite literal is not CEL-representable"}
	}
}

func renderArithmetic(n expr.Arithmetic) (string, error) {
	if n.Op == expr.OpNeg {
		left, err := render(n.Left)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(-%s)", left), nil
	}
	left, err := render(n.Left)
	if err != nil {
		return "", err
	}
	right, err := render(n.Right)
	if err != nil {
		return "", err
	}
	var op string
	switch n.Op {
	case expr.OpAdd:
		op = "+"
	case expr.OpSub:
		op = "-"
	case expr.OpMul:
		op = "*"
	case expr.OpDiv:
		op = "/"
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func renderLogical(n expr.Logical) (string, error) {
	if n.Op == expr.OpNot {
		left, err := render(n.Left)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(!%s)", left), nil
	}
	left, err := render(n.Left)
	if err != nil {
		return "", err
	}
	right, err := render(n.Right)
	if err != nil {
		return "", err
	}
	op := "&&"
	if n.Op == expr.OpOr {
		op = "||"
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func compareOp(op expr.CompareOp) string {
	switch op {
	case expr.CmpEq:
		return "=="
	case expr.CmpNeq:
		return "!="
	case expr.CmpLt:
		return "<"
	case expr.CmpLte:
		return "<="
	case expr.CmpGt:
		return ">"
	case expr.CmpGte:
		return ">="
	default:
		return "=="
	}
}

// rootIdentifiers reports the distinct top-level identifier names e
// references, so the CEL environment only needs to declare variables the
// leaf actually uses.
func rootIdentifiers(e expr.Expr) []string {
	seen := map[string]bool{}
	collectIdentifiers(e, seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

func collectIdentifiers(e expr.Expr, seen map[string]bool) {
	switch n := e.(type) {
	case expr.Identifier:
		seen[n.Name] = true
	case expr.FieldAccess:
		collectIdentifiers(n.Target, seen)
	case expr.Index:
		collectIdentifiers(n.Target, seen)
		collectIdentifiers(n.IndexExpr, seen)
	case expr.Arithmetic:
		collectIdentifiers(n.Left, seen)
		if n.Right != nil {
			collectIdentifiers(n.Right, seen)
		}
	case expr.Comparison:
		collectIdentifiers(n.Left, seen)
		collectIdentifiers(n.Right, seen)
	case expr.Logical:
		collectIdentifiers(n.Left, seen)
		if n.Right != nil {
			collectIdentifiers(n.Right, seen)
		}
	case expr.RegexMatch:
		collectIdentifiers(n.Target, seen)
	}
}
