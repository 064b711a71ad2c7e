package expr

import (
	"context"
	"regexp"
	"time"

	"github.com/sapl-go/sapl/internal/evalctx"
	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// Evaluator evaluates Expr trees into streams of val.Val. It holds no state
// of its own; every piece of mutable context travels in the evalctx.Context
// passed to Eval.
type Evaluator struct{}

// NewEvaluator constructs an Evaluator.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Eval dispatches on the concrete type of e and returns a Stream that emits
// the expression's value every time any sub-expression it depends on (a
// variable binding's attribute finder, a function argument, ...) produces a
// new value (§4.4: "an operator with n stream arguments recomputes its
// output every time any input emits").
func (ev *Evaluator) Eval(c *evalctx.Context, e Expr) streaming.Stream[val.Val] {
	switch n := e.(type) {
	case Literal:
		return ev.evalLiteral(c, n)
	case Identifier:
		return streaming.Just(c.Go, c.Lookup(n.Name))
	case FieldAccess:
		return streaming.Map(c.Go, ev.Eval(c, n.Target), func(v val.Val) val.Val {
			return v.Field(n.Field)
		})
	case Index:
		return ev.evalIndex(c, n)
	case Slice:
		return ev.evalSlice(c, n)
	case Filter:
		return ev.evalFilter(c, n)
	case Call:
		return ev.evalCall(c, n)
	case AttributeFinder:
		return ev.evalAttributeFinder(c, n)
	case Arithmetic:
		return ev.evalArithmetic(c, n)
	case Comparison:
		return ev.evalComparison(c, n)
	case Logical:
		return ev.evalLogical(c, n)
	case Conditional:
		return ev.evalConditional(c, n)
	case RegexMatch:
		return ev.evalRegexMatch(c, n)
	case SchemaMatch:
		return streaming.Map(c.Go, ev.Eval(c, n.Target), func(v val.Val) val.Val {
			return matchSchema(v, n.Schema)
		})
	default:
		return streaming.Just(c.Go, val.Error("unknown expression node %T", e))
	}
}

func (ev *Evaluator) evalLiteral(c *evalctx.Context, n Literal) streaming.Stream[val.Val] {
	v, err := ev.evalLiteralValue(c, n.Value)
	if err != nil {
		return streaming.Just(c.Go, val.Error("%s", err.Error()))
	}
	return streaming.Just(c.Go, v)
}

// evalLiteralValue resolves a LiteralValue to a single val.Val. Array and
// object element expressions are sampled once via streaming.First rather
// than kept reactive: literal structure almost never embeds an expression
// whose value changes over the lifetime of one evaluation, and the
// alternative (a CombineLatest per composite literal) would make every
// constant array/object pay a goroutine for no observable benefit.
func (ev *Evaluator) evalLiteralValue(c *evalctx.Context, lv LiteralValue) (val.Val, error) {
	switch {
	case lv.Null:
		return val.Null(), nil
	case lv.Bool != nil:
		return val.Bool(*lv.Bool), nil
	case lv.Number != nil:
		return val.Number(*lv.Number), nil
	case lv.Text != nil:
		return val.Text(*lv.Text), nil
	case lv.Array != nil:
		items := make([]val.Val, len(lv.Array))
		for i, elem := range lv.Array {
			v, err := streaming.First(c.Go, ev.Eval(c, elem))
			if err != nil {
				return val.Val{}, err
			}
			items[i] = v
		}
		return val.Array(items), nil
	case lv.Object != nil:
		fields := make(map[string]val.Val, len(lv.Object))
		for k, elem := range lv.Object {
			v, err := streaming.First(c.Go, ev.Eval(c, elem))
			if err != nil {
				return val.Val{}, err
			}
			fields[k] = v
		}
		return val.Object(fields), nil
	default:
		return val.Null(), nil
	}
}

func (ev *Evaluator) evalIndex(c *evalctx.Context, n Index) streaming.Stream[val.Val] {
	combined := streaming.CombineLatest(c.Go, []streaming.Stream[val.Val]{
		ev.Eval(c, n.Target), ev.Eval(c, n.IndexExpr),
	})
	return streaming.Map(c.Go, combined, func(vs []val.Val) val.Val {
		target, idx := vs[0], vs[1]
		if target.IsError() {
			return target
		}
		if idx.IsError() {
			return idx
		}
		n, ok := idx.AsNumber()
		if !ok {
			return val.Error("index must be a number")
		}
		i, _ := n.Int64()
		return target.Index(int(i))
	})
}

func (ev *Evaluator) evalSlice(c *evalctx.Context, n Slice) streaming.Stream[val.Val] {
	inputs := []streaming.Stream[val.Val]{ev.Eval(c, n.Target)}
	hasFrom, hasTo := n.From != nil, n.To != nil
	if hasFrom {
		inputs = append(inputs, ev.Eval(c, n.From))
	}
	if hasTo {
		inputs = append(inputs, ev.Eval(c, n.To))
	}
	combined := streaming.CombineLatest(c.Go, inputs)
	return streaming.Map(c.Go, combined, func(vs []val.Val) val.Val {
		target := vs[0]
		if target.IsError() {
			return target
		}
		items, ok := target.AsArray()
		if !ok {
			return val.Error("slice target must be an array")
		}
		from, to := 0, len(items)
		next := 1
		if hasFrom {
			v := vs[next]
			next++
			if v.IsError() {
				return v
			}
			b, ok := v.AsNumber()
			if !ok {
				return val.Error("slice bound must be a number")
			}
			i, _ := b.Int64()
			from = int(i)
		}
		if hasTo {
			v := vs[next]
			if v.IsError() {
				return v
			}
			b, ok := v.AsNumber()
			if !ok {
				return val.Error("slice bound must be a number")
			}
			i, _ := b.Int64()
			to = int(i)
		}
		if from < 0 {
			from = 0
		}
		if to > len(items) {
			to = len(items)
		}
		if from > to {
			return val.Error("slice start %d is after end %d", from, to)
		}
		return val.Array(items[from:to])
	})
}

// evalFilter samples Target once it settles and evaluates Predicate once
// per element via streaming.First, rather than re-subscribing reactively
// per element: a per-element attribute finder inside a filter predicate is
// possible per the grammar but not a case the reference evaluator needs to
// keep continuously live, since the filtered array itself is recomputed
// whenever Target changes.
func (ev *Evaluator) evalFilter(c *evalctx.Context, n Filter) streaming.Stream[val.Val] {
	return streaming.Map(c.Go, ev.Eval(c, n.Target), func(target val.Val) val.Val {
		if target.IsError() {
			return target
		}
		items, ok := target.AsArray()
		if !ok {
			return val.Error("filter target must be an array")
		}
		kept := make([]val.Val, 0, len(items))
		for _, item := range items {
			itemCtx, err := c.With("it", item)
			if err != nil {
				return val.Error("%s", err.Error())
			}
			v, err := streaming.First(c.Go, ev.Eval(itemCtx, n.Predicate))
			if err != nil {
				return val.Error("%s", err.Error())
			}
			if v.IsError() {
				return v
			}
			b, ok := v.AsBool()
			if ok && b {
				kept = append(kept, item)
			}
		}
		return val.Array(kept)
	})
}

func (ev *Evaluator) evalCall(c *evalctx.Context, n Call) streaming.Stream[val.Val] {
	fn, ok := c.Functions.Lookup(n.FQName)
	if !ok {
		return streaming.Just(c.Go, val.Error("no function registered for %q", n.FQName))
	}
	if len(n.Args) == 0 {
		return streaming.Just(c.Go, fn(nil))
	}
	argStreams := make([]streaming.Stream[val.Val], len(n.Args))
	for i, a := range n.Args {
		argStreams[i] = ev.Eval(c, a)
	}
	combined := streaming.CombineLatest(c.Go, argStreams)
	return streaming.Map(c.Go, combined, fn)
}

func (ev *Evaluator) evalAttributeFinder(c *evalctx.Context, n AttributeFinder) streaming.Stream[val.Val] {
	timeout := durationFromSeconds(n.InitialTimeout)

	argStreams := make([]streaming.Stream[val.Val], len(n.Args))
	for i, a := range n.Args {
		argStreams[i] = ev.Eval(c, a)
	}
	hasEntity := n.Entity != nil
	inputs := argStreams
	if hasEntity {
		inputs = append([]streaming.Stream[val.Val]{ev.Eval(c, n.Entity)}, argStreams...)
	}

	digest := c.VariablesDigest()
	resolve := func(ctx context.Context, entity *val.Val, args []val.Val) streaming.Stream[val.Val] {
		key := registry.AttributeKey{FQName: n.FQName, Entity: entity, Arguments: args, VariablesDigest: digest}
		s, err := c.Attributes.AttributeStream(ctx, key, n.Fresh, timeout)
		if err != nil {
			return streaming.Just(ctx, val.Error("%s", err.Error()))
		}
		return s
	}

	if len(inputs) == 0 {
		return resolve(c.Go, nil, nil)
	}
	combined := streaming.CombineLatest(c.Go, inputs)
	return streaming.SwitchMap(c.Go, combined, func(ctx context.Context, vs []val.Val) streaming.Stream[val.Val] {
		var entity *val.Val
		args := vs
		if hasEntity {
			e := vs[0]
			entity = &e
			args = vs[1:]
		}
		return resolve(ctx, entity, args)
	})
}

func (ev *Evaluator) evalArithmetic(c *evalctx.Context, n Arithmetic) streaming.Stream[val.Val] {
	if n.Op == OpNeg {
		return streaming.Map(c.Go, ev.Eval(c, n.Left), val.Neg)
	}
	combined := streaming.CombineLatest(c.Go, []streaming.Stream[val.Val]{ev.Eval(c, n.Left), ev.Eval(c, n.Right)})
	return streaming.Map(c.Go, combined, func(vs []val.Val) val.Val {
		switch n.Op {
		case OpAdd:
			return val.Add(vs[0], vs[1])
		case OpSub:
			return val.Sub(vs[0], vs[1])
		case OpMul:
			return val.Mul(vs[0], vs[1])
		case OpDiv:
			return val.Div(vs[0], vs[1])
		default:
			return val.Error("unknown arithmetic operator")
		}
	})
}

func (ev *Evaluator) evalComparison(c *evalctx.Context, n Comparison) streaming.Stream[val.Val] {
	combined := streaming.CombineLatest(c.Go, []streaming.Stream[val.Val]{ev.Eval(c, n.Left), ev.Eval(c, n.Right)})
	return streaming.Map(c.Go, combined, func(vs []val.Val) val.Val {
		if n.Op == CmpEq {
			return val.Equal(vs[0], vs[1])
		}
		if n.Op == CmpNeq {
			return val.Not(val.Equal(vs[0], vs[1]))
		}
		ord, errVal := val.Compare(vs[0], vs[1])
		if errVal.IsError() {
			return errVal
		}
		switch n.Op {
		case CmpLt:
			return val.Bool(ord == val.Less)
		case CmpLte:
			return val.Bool(ord != val.Greater)
		case CmpGt:
			return val.Bool(ord == val.Greater)
		case CmpGte:
			return val.Bool(ord != val.Less)
		default:
			return val.Error("unknown comparison operator")
		}
	})
}

// evalLogical lifts AND/OR/NOT over streams. Both operands of a binary
// logical expression are always subscribed (kept uniform with the rest of
// the n-ary stream-lifted model, §4.4), but the result short-circuits on a
// decisive, non-Error operand: AND with a false, non-error left operand is
// false regardless of what the right operand's latest value is (including
// if it is itself an Error), and symmetrically for OR with a true operand.
// This avoids an unrelated attribute-finder error on the non-decisive side
// from leaking into a result the policy author already settled.
func (ev *Evaluator) evalLogical(c *evalctx.Context, n Logical) streaming.Stream[val.Val] {
	if n.Op == OpNot {
		return streaming.Map(c.Go, ev.Eval(c, n.Left), val.Not)
	}
	combined := streaming.CombineLatest(c.Go, []streaming.Stream[val.Val]{ev.Eval(c, n.Left), ev.Eval(c, n.Right)})
	return streaming.Map(c.Go, combined, func(vs []val.Val) val.Val {
		left, right := vs[0], vs[1]
		decisive := false
		if n.Op == OpAnd {
			decisive = false
		} else {
			decisive = true
		}
		if b, ok := left.AsBool(); ok && b == decisive {
			return left
		}
		if b, ok := right.AsBool(); ok && b == decisive {
			return right
		}
		if left.IsError() {
			return left
		}
		if right.IsError() {
			return right
		}
		lb, lok := left.AsBool()
		rb, rok := right.AsBool()
		if !lok || !rok {
			return val.Error("logical operator requires two bools")
		}
		if n.Op == OpAnd {
			return val.Bool(lb && rb)
		}
		return val.Bool(lb || rb)
	})
}

func (ev *Evaluator) evalConditional(c *evalctx.Context, n Conditional) streaming.Stream[val.Val] {
	return streaming.SwitchMap(c.Go, ev.Eval(c, n.If), func(ctx context.Context, cond val.Val) streaming.Stream[val.Val] {
		branchCtx := c.WithGo(ctx)
		if cond.IsError() {
			return streaming.Just(ctx, cond)
		}
		b, ok := cond.AsBool()
		if !ok {
			return streaming.Just(ctx, val.Error("conditional requires a bool, got %s", cond.Kind))
		}
		if b {
			return ev.Eval(branchCtx, n.Then)
		}
		return ev.Eval(branchCtx, n.Else)
	})
}

func (ev *Evaluator) evalRegexMatch(c *evalctx.Context, n RegexMatch) streaming.Stream[val.Val] {
	re, err := regexp.Compile(n.Pattern)
	if err != nil {
		return streaming.Just(c.Go, val.Error("invalid regular expression %q: %s", n.Pattern, err.Error()))
	}
	return streaming.Map(c.Go, ev.Eval(c, n.Target), func(v val.Val) val.Val {
		if v.IsError() {
			return v
		}
		s, ok := v.AsText()
		if !ok {
			return val.Error("regex match target must be text, got %s", v.Kind)
		}
		return val.Bool(re.MatchString(s))
	})
}

// durationFromSeconds converts an InitialTimeout of 0 (disabled) or a
// positive number of seconds into the time.Duration AttributeStream expects.
func durationFromSeconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
