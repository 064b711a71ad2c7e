package expr

import (
	"context"
	"testing"
	"time"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/evalctx"
	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// staticBroker answers every AttributeStream with a single pre-baked value,
// enough to exercise AttributeFinder evaluation without a real broker.
type staticBroker struct {
	values map[string]val.Val
}

func (b *staticBroker) AttributeStream(ctx context.Context, key registry.AttributeKey, fresh bool, timeout time.Duration) (streaming.Stream[val.Val], error) {
	v, ok := b.values[key.FQName]
	if !ok {
		v = val.Undefined()
	}
	return streaming.Just(ctx, v), nil
}
func (b *staticBroker) PublishAttribute(string, val.Val, val.Val)            {}
func (b *staticBroker) PublishEnvironmentAttribute(string, val.Val)          {}
func (b *staticBroker) RemoveAttribute(string, *val.Val)                    {}
func (b *staticBroker) Dispose()                                             {}

func rootCtx(t *testing.T, funcs registry.FunctionRegistry, attrs registry.AttributeBroker) *evalctx.Context {
	t.Helper()
	goCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return evalctx.Root(goCtx, nil, funcs, attrs, nil)
}

func firstVal(t *testing.T, c *evalctx.Context, s streaming.Stream[val.Val]) val.Val {
	t.Helper()
	v, err := streaming.First(c.Go, s)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	return v
}

func TestEvalLiteralAndArithmetic(t *testing.T) {
	c := rootCtx(t, nil, nil)
	ev := NewEvaluator()
	one := Literal{Value: LiteralValue{Number: float64Ptr(1)}}
	two := Literal{Value: LiteralValue{Number: float64Ptr(2)}}
	sum := Arithmetic{Op: OpAdd, Left: one, Right: two}

	got := firstVal(t, c, ev.Eval(c, sum))
	n, ok := got.AsNumber()
	if !ok {
		t.Fatalf("expected number, got %s", got.Kind)
	}
	if f, _ := n.Float64(); f != 3 {
		t.Fatalf("expected 3, got %v", f)
	}
}

func TestEvalFieldAccessMissingKeyIsUndefined(t *testing.T) {
	c := rootCtx(t, nil, nil)
	ev := NewEvaluator()
	c2, err := c.With("subject", val.Object(map[string]val.Val{"id": val.Text("alice")}))
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	access := FieldAccess{Target: Identifier{Name: "subject"}, Field: "missing"}
	got := firstVal(t, c2, ev.Eval(c2, access))
	if !got.IsUndefined() {
		t.Fatalf("expected undefined, got %v", got.Display())
	}
}

func TestEvalLogicalAndShortCircuitsOnFalseIgnoringOtherError(t *testing.T) {
	c := rootCtx(t, nil, nil)
	ev := NewEvaluator()
	falseLit := Literal{Value: LiteralValue{Bool: boolPtr(false)}}
	erroring := Comparison{Op: CmpLt, Left: Literal{Value: LiteralValue{Text: strPtr("x")}}, Right: Literal{Value: LiteralValue{Number: float64Ptr(1)}}}
	and := Logical{Op: OpAnd, Left: falseLit, Right: erroring}

	got := firstVal(t, c, ev.Eval(c, and))
	b, ok := got.AsBool()
	if !ok || b {
		t.Fatalf("expected false, got %v", got.Display())
	}
}

func TestEvalConditionalSwitchesBranch(t *testing.T) {
	c := rootCtx(t, nil, nil)
	ev := NewEvaluator()
	cond := Conditional{
		If:   Literal{Value: LiteralValue{Bool: boolPtr(true)}},
		Then: Literal{Value: LiteralValue{Text: strPtr("then")}},
		Else: Literal{Value: LiteralValue{Text: strPtr("else")}},
	}
	got := firstVal(t, c, ev.Eval(c, cond))
	s, _ := got.AsText()
	if s != "then" {
		t.Fatalf("expected then, got %s", s)
	}
}

func TestEvalCallLooksUpFunctionByFQName(t *testing.T) {
	funcs, err := registry.NewStaticFunctionRegistry(map[string]registry.Function{
		"string.upper": func(args []val.Val) val.Val {
			s, ok := args[0].AsText()
			if !ok {
				return val.Error("expected text")
			}
			return val.Text(s + s)
		},
	})
	if err != nil {
		t.Fatalf("NewStaticFunctionRegistry: %v", err)
	}
	c := rootCtx(t, funcs, nil)
	ev := NewEvaluator()
	call := Call{FQName: "string.upper", Args: []Expr{Literal{Value: LiteralValue{Text: strPtr("ab")}}}}
	got := firstVal(t, c, ev.Eval(c, call))
	s, _ := got.AsText()
	if s != "abab" {
		t.Fatalf("expected abab, got %s", s)
	}
}

func TestEvalAttributeFinderReadsFromBroker(t *testing.T) {
	broker := &staticBroker{values: map[string]val.Val{"risk.score": val.Number(42)}}
	c := rootCtx(t, nil, broker)
	ev := NewEvaluator()
	finder := AttributeFinder{FQName: "risk.score"}
	got := firstVal(t, c, ev.Eval(c, finder))
	n, ok := got.AsNumber()
	if !ok {
		t.Fatalf("expected number, got %s", got.Kind)
	}
	if f, _ := n.Float64(); f != 42 {
		t.Fatalf("expected 42, got %v", f)
	}
}

func TestPipelineNotApplicableWhenTargetFalse(t *testing.T) {
	c := rootCtx(t, nil, nil)
	ev := NewEvaluator()
	spec := PolicySpec{
		TargetExpr:  Literal{Value: LiteralValue{Bool: boolPtr(false)}},
		Entitlement: decision.Permit,
	}
	d, err := streaming.First(c.Go, Pipeline(c, ev, spec, nil))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if d.Decision != decision.NotApplicable {
		t.Fatalf("expected NOT_APPLICABLE, got %s", d.Decision)
	}
}

func TestPipelineIndeterminateWhenObligationErrors(t *testing.T) {
	c := rootCtx(t, nil, nil)
	ev := NewEvaluator()
	badObligation := Arithmetic{Op: OpAdd, Left: Literal{Value: LiteralValue{Text: strPtr("x")}}, Right: Literal{Value: LiteralValue{Number: float64Ptr(1)}}}
	spec := PolicySpec{
		Entitlement: decision.Permit,
		Obligations: []Expr{badObligation},
	}
	d, err := streaming.First(c.Go, Pipeline(c, ev, spec, nil))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if d.Decision != decision.Indeterminate {
		t.Fatalf("expected INDETERMINATE, got %s", d.Decision)
	}
}

func TestPipelineDropsErroringAdviceButKeepsDecision(t *testing.T) {
	c := rootCtx(t, nil, nil)
	ev := NewEvaluator()
	badAdvice := Arithmetic{Op: OpAdd, Left: Literal{Value: LiteralValue{Text: strPtr("x")}}, Right: Literal{Value: LiteralValue{Number: float64Ptr(1)}}}
	var dropped int
	spec := PolicySpec{
		Entitlement: decision.Permit,
		Advice:      []Expr{badAdvice},
	}
	d, err := streaming.First(c.Go, Pipeline(c, ev, spec, func(error) { dropped++ }))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if d.Decision != decision.Permit {
		t.Fatalf("expected PERMIT, got %s", d.Decision)
	}
	if len(d.Advice) != 0 {
		t.Fatalf("expected no advice, got %v", d.Advice)
	}
	if dropped != 1 {
		t.Fatalf("expected one dropped advice error, got %d", dropped)
	}
}

func float64Ptr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool          { return &b }
func strPtr(s string) *string       { return &s }
