// Package registry defines the interfaces the engine consumes for function
// lookup, attribute streaming, and policy retrieval (§6: FunctionRegistry,
// AttributeBroker, PolicyCatalog), plus the fully-qualified-name validation
// shared by all three (§7 RegistrationError).
package registry

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/sapl-go/sapl/internal/val"
)

// fqNamePattern is the fully qualified name regex from §7:
// [A-Za-z][A-Za-z0-9]*('.'[A-Za-z][A-Za-z0-9]*){1,9}
var fqNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(\.[A-Za-z][A-Za-z0-9]*){1,9}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("fqname", validateFQName)
	return v
}

func validateFQName(fl validator.FieldLevel) bool {
	return fqNamePattern.MatchString(fl.Field().String())
}

// ValidateFQName reports whether name satisfies the fully-qualified-name
// grammar required of every registered function and attribute.
func ValidateFQName(name string) error {
	if !fqNamePattern.MatchString(name) {
		return fmt.Errorf("%q is not a valid fully qualified name (expected form a.b[.c...])", name)
	}
	return nil
}

// Validate runs struct-tag validation (including the "fqname" rule) against
// s, shared by internal/config so engine-level configuration and name
// validation go through one validator.Validate instance.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// ParamKind enumerates the parameter validators a function annotation may
// declare (§6.2).
type ParamKind int

const (
	ParamAny ParamKind = iota
	ParamText
	ParamNumber
	ParamBool
	ParamArray
	ParamObject
	ParamInt
	ParamLong
)

// Function is a registered policy function: a pure transform of argument
// Vals into a result Val.
type Function func(args []val.Val) val.Val

// FunctionRegistry resolves fully qualified function names to callable
// implementations. Function bodies are explicitly out of scope (§1); this
// engine only ever calls Lookup.
type FunctionRegistry interface {
	// Lookup returns the function registered under fqName, or ok=false if
	// none is registered.
	Lookup(fqName string) (fn Function, ok bool)
}

// StaticFunctionRegistry is a simple, immutable-after-construction
// FunctionRegistry backed by a map, built via NewStaticFunctionRegistry.
// The function registry is immutable after engine construction (§5).
type StaticFunctionRegistry struct {
	fns map[string]Function
}

// NewStaticFunctionRegistry validates every name against the fully
// qualified name grammar and returns a RegistrationError for the first
// violation or duplicate it finds.
func NewStaticFunctionRegistry(fns map[string]Function) (*StaticFunctionRegistry, error) {
	out := make(map[string]Function, len(fns))
	for name, fn := range fns {
		if err := ValidateFQName(name); err != nil {
			return nil, RegistrationError{Name: name, Cause: err}
		}
		if _, dup := out[name]; dup {
			return nil, RegistrationError{Name: name, Cause: fmt.Errorf("duplicate registration")}
		}
		out[name] = fn
	}
	return &StaticFunctionRegistry{fns: out}, nil
}

// Lookup implements FunctionRegistry.
func (r *StaticFunctionRegistry) Lookup(fqName string) (Function, bool) {
	fn, ok := r.fns[fqName]
	return fn, ok
}

// RegistrationError is produced synchronously at engine construction when a
// function/attribute name is malformed or duplicated (§7).
type RegistrationError struct {
	Name  string
	Cause error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("registration error for %q: %v", e.Name, e.Cause)
}

func (e RegistrationError) Unwrap() error { return e.Cause }
