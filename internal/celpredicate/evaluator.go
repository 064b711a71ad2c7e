package celpredicate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/expr"
	"github.com/sapl-go/sapl/internal/val"
)

// maxCostBudget bounds CEL runtime cost per predicate evaluation.
const maxCostBudget = 100_000

// interruptCheckFreq is how often CEL evaluation polls for cancellation.
const interruptCheckFreq = 100

// evalTimeout bounds a single predicate evaluation.
const evalTimeout = 2 * time.Second

// Evaluator implements internal/target.PredicateEvaluator by rendering a
// predicate leaf to CEL source and compiling/evaluating it fresh, caching
// compiled programs by their rendered source so a predicate shared across
// many subscriptions in a PredicateSharingIndex run only compiles once.
type Evaluator struct {
	programs map[string]cel.Program
	envs     map[string]*cel.Env
}

// NewEvaluator constructs an empty, ready-to-use Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{programs: map[string]cel.Program{}, envs: map[string]*cel.Env{}}
}

// EvaluatePredicate implements target.PredicateEvaluator.
func (e *Evaluator) EvaluatePredicate(sub decision.AuthorizationSubscription, leaf expr.Expr) (bool, bool, error) {
	source, err := render(leaf)
	if err != nil {
		return false, false, nil // not CEL-representable: over-approximate, not an error
	}

	idents := rootIdentifiers(leaf)
	envKey := envCacheKey(idents)
	env, ok := e.envs[envKey]
	if !ok {
		env, err = newEnv(idents)
		if err != nil {
			return false, false, fmt.Errorf("celpredicate: building CEL environment: %w", err)
		}
		e.envs[envKey] = env
	}

	prg, ok := e.programs[source]
	if !ok {
		ast, issues := env.Compile(source)
		if issues != nil && issues.Err() != nil {
			// A rendered-but-uncompilable expression is not CEL-representable
			// either (e.g. a field access CEL's dyn type can't prove safe);
			// over-approximate rather than fail the whole Candidates call.
			return false, false, nil
		}
		prg, err = env.Program(ast, cel.EvalOptions(cel.OptOptimize), cel.CostLimit(maxCostBudget), cel.InterruptCheckFrequency(interruptCheckFreq))
		if err != nil {
			return false, false, nil
		}
		e.programs[source] = prg
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	activation := activationFor(sub, idents)
	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, false, nil
	}
	b, ok := result.Value().(bool)
	if !ok {
		return false, false, nil
	}
	return b, true, nil
}

func newEnv(idents []string) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(idents))
	for _, name := range idents {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	return cel.NewEnv(opts...)
}

func envCacheKey(idents []string) string {
	key := ""
	for _, name := range idents {
		key += name + ","
	}
	return key
}

func activationFor(sub decision.AuthorizationSubscription, idents []string) map[string]interface{} {
	act := make(map[string]interface{}, len(idents))
	for _, name := range idents {
		switch name {
		case "subject":
			act[name] = toNative(sub.Subject)
		case "action":
			act[name] = toNative(sub.Action)
		case "resource":
			act[name] = toNative(sub.Resource)
		case "environment":
			act[name] = toNative(sub.Environment)
		default:
			act[name] = nil
		}
	}
	return act
}

// toNative converts a val.Val into the plain Go value CEL's dynamic type
// adapter expects, mirroring what internal/val's JSON encoder does for
// marshalling but targeting native Go values instead of encoding/json.
func toNative(v val.Val) interface{} {
	switch v.Kind {
	case val.KindNull, val.KindUndefined:
		return nil
	case val.KindBool:
		b, _ := v.AsBool()
		return b
	case val.KindNumber:
		n, _ := v.AsNumber()
		f, _ := n.Float64()
		return f
	case val.KindText:
		s, _ := v.AsText()
		return s
	case val.KindArray:
		items, _ := v.AsArray()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = toNative(item)
		}
		return out
	case val.KindObject:
		fields, _ := v.AsObject()
		out := make(map[string]interface{}, len(fields))
		for k, fv := range fields {
			out[k] = toNative(fv)
		}
		return out
	default:
		return nil
	}
}
