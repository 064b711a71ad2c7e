// Package val implements the tagged-variant value model shared by every
// expression, attribute stream, and decision in the engine.
package val

import (
	"fmt"
	"math/big"
	"sort"
)

// Kind tags the variant held by a Val.
type Kind int

const (
	KindUndefined Kind = iota
	KindError
	KindNull
	KindBool
	KindNumber
	KindText
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindError:
		return "error"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// SecretPlaceholder replaces any secret value in display/marshal routines.
const SecretPlaceholder = "***SECRET***"

// Val is the universal value type. Exactly one of the payload fields is
// meaningful, selected by Kind. Val is immutable once constructed: every
// operation that "derives" a new Val returns a fresh value rather than
// mutating an existing one.
type Val struct {
	Kind Kind

	boolVal   bool
	numberVal *big.Float
	textVal   string
	arrayVal  []Val
	objectVal map[string]Val
	errMsg    string

	// Secret marks this value (or any value it was derived from) as
	// sensitive. Monotonic: derived values are secret if any input was.
	Secret bool
	// Trace optionally records provenance for this value (§7 trace sink).
	Trace *Trace
}

// Undefined is distinct from Null: it is produced by missing keys, absent
// attributes, or unbound variables.
func Undefined() Val { return Val{Kind: KindUndefined} }

// Null constructs the JSON-null value.
func Null() Val { return Val{Kind: KindNull} }

// Error constructs an error value carrying message. Error propagates through
// all operations unless explicitly caught by a policy.
func Error(format string, args ...interface{}) Val {
	return Val{Kind: KindError, errMsg: fmt.Sprintf(format, args...)}
}

// Bool constructs a boolean value.
func Bool(b bool) Val { return Val{Kind: KindBool, boolVal: b} }

// Number constructs a numeric value from a float64.
func Number(f float64) Val {
	return Val{Kind: KindNumber, numberVal: big.NewFloat(f)}
}

// NumberFromBig constructs a numeric value from an arbitrary-precision float.
func NumberFromBig(f *big.Float) Val {
	return Val{Kind: KindNumber, numberVal: new(big.Float).Copy(f)}
}

// Text constructs a text value.
func Text(s string) Val { return Val{Kind: KindText, textVal: s} }

// Array constructs an array value. The slice is copied defensively.
func Array(items []Val) Val {
	cp := make([]Val, len(items))
	copy(cp, items)
	return Val{Kind: KindArray, arrayVal: cp}
}

// Object constructs an object value. The map is copied defensively.
func Object(fields map[string]Val) Val {
	cp := make(map[string]Val, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Val{Kind: KindObject, objectVal: cp}
}

// IsError reports whether v is an error value.
func (v Val) IsError() bool { return v.Kind == KindError }

// IsUndefined reports whether v is the undefined value.
func (v Val) IsUndefined() bool { return v.Kind == KindUndefined }

// IsNull reports whether v is the null value.
func (v Val) IsNull() bool { return v.Kind == KindNull }

// ErrorMessage returns the error message, or "" if v is not an error.
func (v Val) ErrorMessage() string { return v.errMsg }

// Error implements the error interface so a Val can be wrapped directly.
func (v Val) errorString() string { return v.errMsg }

// Bool returns the boolean payload and whether v is actually a bool.
func (v Val) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.boolVal, true
}

// Number returns the numeric payload and whether v is actually a number.
func (v Val) AsNumber() (*big.Float, bool) {
	if v.Kind != KindNumber {
		return nil, false
	}
	return v.numberVal, true
}

// Text returns the text payload and whether v is actually text.
func (v Val) AsText() (string, bool) {
	if v.Kind != KindText {
		return "", false
	}
	return v.textVal, true
}

// Array returns the array payload and whether v is actually an array.
func (v Val) AsArray() ([]Val, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.arrayVal, true
}

// Object returns the object payload and whether v is actually an object.
func (v Val) AsObject() (map[string]Val, bool) {
	if v.Kind != KindObject {
		return nil, false
	}
	return v.objectVal, true
}

// WithSecret returns a copy of v with the secret flag OR-ed in.
func (v Val) WithSecret(secret bool) Val {
	v.Secret = v.Secret || secret
	return v
}

// WithTrace returns a copy of v carrying the given trace.
func (v Val) WithTrace(t *Trace) Val {
	v.Trace = t
	return v
}

// Field returns the value of a named field on an object, or Undefined if v is
// not an object or the key is absent. The secret flag of v propagates.
func (v Val) Field(name string) Val {
	if v.Kind != KindObject {
		return Undefined().WithSecret(v.Secret)
	}
	f, ok := v.objectVal[name]
	if !ok {
		return Undefined().WithSecret(v.Secret)
	}
	return f.WithSecret(v.Secret || f.Secret)
}

// Index returns the element at i of an array, or Undefined if out of range
// or v is not an array.
func (v Val) Index(i int) Val {
	if v.Kind != KindArray || i < 0 || i >= len(v.arrayVal) {
		return Undefined().WithSecret(v.Secret)
	}
	e := v.arrayVal[i]
	return e.WithSecret(v.Secret || e.Secret)
}

// Display renders v for human-facing output, replacing secret values with
// SecretPlaceholder regardless of kind.
func (v Val) Display() string {
	if v.Secret {
		return SecretPlaceholder
	}
	switch v.Kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindError:
		return "error: " + v.errMsg
	case KindBool:
		return fmt.Sprintf("%v", v.boolVal)
	case KindNumber:
		return v.numberVal.Text('g', -1)
	case KindText:
		return v.textVal
	case KindArray:
		items := make([]string, len(v.arrayVal))
		for i, e := range v.arrayVal {
			items[i] = e.Display()
		}
		return fmt.Sprintf("%v", items)
	case KindObject:
		keys := make([]string, 0, len(v.objectVal))
		for k := range v.objectVal {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s:%s", k, v.objectVal[k].Display())
		}
		return fmt.Sprintf("%v", parts)
	default:
		return ""
	}
}
