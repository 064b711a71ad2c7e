package sapl

import (
	"fmt"

	"github.com/sapl-go/sapl/internal/registry"
)

// EvaluationError is produced by expression evaluation; it becomes a
// Val::Error, and a policy whose target/where/transform evaluates to Error
// fails with INDETERMINATE (§7).
type EvaluationError struct {
	Message string
	Cause   error
}

func (e EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evaluation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("evaluation error: %s", e.Message)
}

func (e EvaluationError) Unwrap() error { return e.Cause }

// AttributeError is produced by the Attribute Broker when an upstream PIP
// fails; it surfaces as a Val::Error in the affected stream and does not
// terminate the subscription (§7).
type AttributeError struct {
	FQName string
	Cause  error
}

func (e AttributeError) Error() string {
	return fmt.Sprintf("attribute error: %s: %v", e.FQName, e.Cause)
}

func (e AttributeError) Unwrap() error { return e.Cause }

// ObligationError is produced while evaluating an obligation expression on
// an otherwise-PERMIT decision; it forces the policy to INDETERMINATE
// rather than a silent PERMIT (§7).
type ObligationError struct {
	Cause error
}

func (e ObligationError) Error() string {
	return fmt.Sprintf("obligation error: %v", e.Cause)
}

func (e ObligationError) Unwrap() error { return e.Cause }

// RegistrationError is produced synchronously at PolicyDecisionPoint
// construction when a function or attribute name is malformed (the fully
// qualified name grammar from §7) or duplicated.
type RegistrationError = registry.RegistrationError

// ValidateFQName reports whether name satisfies the fully-qualified-name
// grammar required of every registered function and attribute (§7).
func ValidateFQName(name string) error { return registry.ValidateFQName(name) }

// ConfigurationError is produced for a bad combining algorithm or invalid
// PDP configuration (§7).
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e ConfigurationError) Unwrap() error { return e.Cause }
