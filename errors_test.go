package sapl

import (
	"errors"
	"testing"
)

func TestEvaluationErrorUnwrapsWithErrorsAs(t *testing.T) {
	cause := errors.New("division by zero")
	err := error(EvaluationError{Message: "dividing", Cause: cause})

	var evalErr EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatal("expected errors.As to match EvaluationError")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestAttributeErrorUnwrapsWithErrorsAs(t *testing.T) {
	cause := errors.New("upstream PIP failed")
	err := error(AttributeError{FQName: "company.riskScore", Cause: cause})

	var attrErr AttributeError
	if !errors.As(err, &attrErr) {
		t.Fatal("expected errors.As to match AttributeError")
	}
	if attrErr.FQName != "company.riskScore" {
		t.Fatalf("unexpected FQName: %s", attrErr.FQName)
	}
}

func TestObligationErrorUnwrapsWithErrorsAs(t *testing.T) {
	cause := errors.New("undefined variable")
	err := error(ObligationError{Cause: cause})

	var obErr ObligationError
	if !errors.As(err, &obErr) {
		t.Fatal("expected errors.As to match ObligationError")
	}
}

func TestConfigurationErrorUnwrapsWithErrorsAs(t *testing.T) {
	err := error(ConfigurationError{Message: "missing combining algorithm"})

	var cfgErr ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatal("expected errors.As to match ConfigurationError")
	}
	if cfgErr.Unwrap() != nil {
		t.Fatal("expected a nil Cause to unwrap to nil")
	}
}

func TestValidateFQNameRejectsMalformedNames(t *testing.T) {
	if err := ValidateFQName("no_dot"); err == nil {
		t.Fatal("expected error for a name without a namespace separator")
	}
	if err := ValidateFQName("company.riskScore"); err != nil {
		t.Fatalf("expected a well-formed fqname to validate, got %v", err)
	}
}
