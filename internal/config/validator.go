package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers PDP-specific validation rules. Must be
// called before validating a Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateDuration validates that a field parses with time.ParseDuration.
func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// Validate validates the Config using struct tags and custom cross-field
// rules. Returns an error if validation fails, with actionable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDurations(); err != nil {
		return err
	}

	// The string-keyed combining algorithm must convert cleanly; the oneof
	// tags already constrain the individual fields, so a failure here would
	// mean the two checks have drifted out of sync.
	if _, err := c.Engine.CombiningAlgorithm.CombiningAlgorithm(); err != nil {
		return fmt.Errorf("engine.combining_algorithm: %w", err)
	}

	return nil
}

// validateDurations re-validates BrokerConfig's duration strings outside of
// struct tags, since the "duration" tag above only checks parseability, not
// that the parsed values make sense together (e.g. a negative linger).
func (c *Config) validateDurations() error {
	linger, err := c.Broker.LingerTimeout()
	if err != nil {
		return fmt.Errorf("broker.linger_duration: %w", err)
	}
	if linger < 0 {
		return errors.New("broker.linger_duration: must not be negative")
	}

	initial, err := c.Broker.InitialTimeout()
	if err != nil {
		return fmt.Errorf("broker.default_initial_timeout: %w", err)
	}
	if initial < 0 {
		return errors.New("broker.default_initial_timeout: must not be negative")
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "duration":
		return fmt.Sprintf("%s must be a valid duration (e.g. \"5s\")", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
