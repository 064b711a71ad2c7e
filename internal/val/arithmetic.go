package val

import "math/big"

// mergeSecret ORs the secret flags of every input into the result (§4.1
// secrecy monotonicity: any derived Val is secret if any input is secret).
func mergeSecret(result Val, inputs ...Val) Val {
	for _, in := range inputs {
		if in.Secret {
			result.Secret = true
			return result
		}
	}
	return result
}

// Add implements "+": numeric addition, text concatenation, or array
// concatenation. Any other combination is an Error.
func Add(a, b Val) Val {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		return mergeSecret(NumberFromBig(new(big.Float).Add(a.numberVal, b.numberVal)), a, b)
	case a.Kind == KindText && b.Kind == KindText:
		return mergeSecret(Text(a.textVal+b.textVal), a, b)
	case a.Kind == KindArray && b.Kind == KindArray:
		return mergeSecret(Array(append(append([]Val{}, a.arrayVal...), b.arrayVal...)), a, b)
	default:
		return Error("cannot add %s and %s", a.Kind, b.Kind)
	}
}

func numericBinary(name string, a, b Val, fn func(x, y *big.Float) (*big.Float, error)) Val {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Error("%s requires two numbers, got %s and %s", name, a.Kind, b.Kind)
	}
	r, err := fn(a.numberVal, b.numberVal)
	if err != nil {
		return Error("%s", err.Error())
	}
	return mergeSecret(NumberFromBig(r), a, b)
}

// Sub implements numeric subtraction.
func Sub(a, b Val) Val {
	return numericBinary("subtraction", a, b, func(x, y *big.Float) (*big.Float, error) {
		return new(big.Float).Sub(x, y), nil
	})
}

// Mul implements numeric multiplication.
func Mul(a, b Val) Val {
	return numericBinary("multiplication", a, b, func(x, y *big.Float) (*big.Float, error) {
		return new(big.Float).Mul(x, y), nil
	})
}

// Div implements numeric division. Division by zero yields Error.
func Div(a, b Val) Val {
	return numericBinary("division", a, b, func(x, y *big.Float) (*big.Float, error) {
		if y.Sign() == 0 {
			return nil, errDivByZero
		}
		return new(big.Float).Quo(x, y), nil
	})
}

type divByZeroError struct{}

func (divByZeroError) Error() string { return "division by zero" }

var errDivByZero = divByZeroError{}

// Neg implements unary numeric negation.
func Neg(a Val) Val {
	if a.IsError() {
		return a
	}
	if a.Kind != KindNumber {
		return Error("negation requires a number, got %s", a.Kind)
	}
	return mergeSecret(NumberFromBig(new(big.Float).Neg(a.numberVal)), a)
}

// Not implements logical negation over Bool; propagates Error and Undefined.
func Not(a Val) Val {
	if a.IsError() {
		return a
	}
	b, ok := a.AsBool()
	if !ok {
		if a.IsUndefined() {
			return a
		}
		return Error("not requires a bool, got %s", a.Kind)
	}
	return mergeSecret(Bool(!b), a)
}
