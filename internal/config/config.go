// Package config provides the PDP's own configuration: the top-level
// combining algorithm, attribute broker timing, and logging, loaded from a
// YAML file plus environment overrides via a viper+validator split.
//
// This is deliberately small: a library has no server config, no auth, no
// audit sinks. Everything below is config an embedding application needs to
// construct an internal/engine.Engine, nothing more.
package config

import (
	"fmt"
	"time"

	"github.com/sapl-go/sapl/internal/decision"
)

// Config is the top-level PDP configuration.
type Config struct {
	// Engine configures the PDP-level combining algorithm applied across
	// every top-level candidate document.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Broker configures the Attribute Broker's cache/linger behavior.
	Broker BrokerConfig `yaml:"broker" mapstructure:"broker"`

	// Logging configures the PDP's structured logger.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// EngineConfig configures internal/engine.Engine construction.
type EngineConfig struct {
	CombiningAlgorithm CombiningAlgorithmConfig `yaml:"combining_algorithm" mapstructure:"combining_algorithm"`

	// TargetStrategy selects the PRP lookup strategy.
	// Valid values: "linear" or "predicate_sharing". Defaults to "linear".
	TargetStrategy string `yaml:"target_strategy" mapstructure:"target_strategy" validate:"omitempty,oneof=linear predicate_sharing"`
}

// CombiningAlgorithmConfig is the YAML/env-friendly, string-keyed mirror of
// decision.CombiningAlgorithm (§3, §4.6). A string representation is used
// here rather than the decision package's int-backed enums so the config
// file stays human-writable and diffable.
type CombiningAlgorithmConfig struct {
	// VotingMode selects one of the six named combining strategies.
	VotingMode string `yaml:"voting_mode" mapstructure:"voting_mode" validate:"required,oneof=deny_overrides permit_overrides first_applicable only_one_applicable deny_unless_permit permit_unless_deny"`

	// DefaultDecision is returned when no candidate document applies.
	DefaultDecision string `yaml:"default_decision" mapstructure:"default_decision" validate:"required,oneof=not_applicable permit deny indeterminate"`

	// ErrorHandling selects how the combiner treats per-policy evaluation
	// errors. Defaults to "propagate".
	ErrorHandling string `yaml:"error_handling" mapstructure:"error_handling" validate:"omitempty,oneof=propagate treat_as_indeterminate treat_as_not_applicable"`

	// OnlyOneApplicableTreatsIndeterminateAsApplicable resolves the open
	// question on whether INDETERMINATE counts as "applicable" for
	// ONLY_ONE_APPLICABLE (§4.6, §9 open question (ii)). Only meaningful
	// when VotingMode is "only_one_applicable".
	OnlyOneApplicableTreatsIndeterminateAsApplicable bool `yaml:"only_one_applicable_treats_indeterminate_as_applicable" mapstructure:"only_one_applicable_treats_indeterminate_as_applicable"`
}

// BrokerConfig configures internal/broker.New.
type BrokerConfig struct {
	// LingerDuration is how long a shared attribute subscription's upstream
	// stays alive after its last subscriber unsubscribes, before teardown
	// (e.g. "5s"). Defaults to "5s".
	LingerDuration string `yaml:"linger_duration" mapstructure:"linger_duration" validate:"omitempty,duration"`

	// DefaultInitialTimeout is the fallback initial-timeout applied to an
	// attribute finder that does not declare its own (e.g. "0s" disables
	// it). Defaults to "0s".
	DefaultInitialTimeout string `yaml:"default_initial_timeout" mapstructure:"default_initial_timeout" validate:"omitempty,duration"`
}

// LoggingConfig configures the PDP's slog.Logger.
type LoggingConfig struct {
	// Level sets the minimum log level. Defaults to "info".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// SetDefaults applies sensible default values for anything not set by the
// config file or environment.
func (c *Config) SetDefaults() {
	if c.Engine.TargetStrategy == "" {
		c.Engine.TargetStrategy = "linear"
	}
	if c.Engine.CombiningAlgorithm.ErrorHandling == "" {
		c.Engine.CombiningAlgorithm.ErrorHandling = "propagate"
	}
	if c.Broker.LingerDuration == "" {
		c.Broker.LingerDuration = "5s"
	}
	if c.Broker.DefaultInitialTimeout == "" {
		c.Broker.DefaultInitialTimeout = "0s"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// CombiningAlgorithm converts the config's string-keyed representation into
// a decision.CombiningAlgorithm, the shape internal/engine.New consumes.
func (c CombiningAlgorithmConfig) CombiningAlgorithm() (decision.CombiningAlgorithm, error) {
	mode, err := parseVotingMode(c.VotingMode)
	if err != nil {
		return decision.CombiningAlgorithm{}, err
	}
	def, err := parseDecision(c.DefaultDecision)
	if err != nil {
		return decision.CombiningAlgorithm{}, err
	}
	handling, err := parseErrorHandling(c.ErrorHandling)
	if err != nil {
		return decision.CombiningAlgorithm{}, err
	}
	return decision.CombiningAlgorithm{
		VotingMode:      mode,
		DefaultDecision: def,
		ErrorHandling:   handling,
		OnlyOneApplicableTreatsIndeterminateAsApplicable: c.OnlyOneApplicableTreatsIndeterminateAsApplicable,
	}, nil
}

func parseVotingMode(s string) (decision.VotingMode, error) {
	switch s {
	case "deny_overrides":
		return decision.DenyOverrides, nil
	case "permit_overrides":
		return decision.PermitOverrides, nil
	case "first_applicable":
		return decision.FirstApplicable, nil
	case "only_one_applicable":
		return decision.OnlyOneApplicable, nil
	case "deny_unless_permit":
		return decision.DenyUnlessPermit, nil
	case "permit_unless_deny":
		return decision.PermitUnlessDeny, nil
	default:
		return 0, fmt.Errorf("unknown voting mode %q", s)
	}
}

func parseDecision(s string) (decision.Decision, error) {
	switch s {
	case "not_applicable":
		return decision.NotApplicable, nil
	case "permit":
		return decision.Permit, nil
	case "deny":
		return decision.Deny, nil
	case "indeterminate":
		return decision.Indeterminate, nil
	default:
		return 0, fmt.Errorf("unknown decision %q", s)
	}
}

func parseErrorHandling(s string) (decision.ErrorHandling, error) {
	switch s {
	case "", "propagate":
		return decision.Propagate, nil
	case "treat_as_indeterminate":
		return decision.TreatAsIndeterminate, nil
	case "treat_as_not_applicable":
		return decision.TreatAsNotApplicable, nil
	default:
		return 0, fmt.Errorf("unknown error handling %q", s)
	}
}

// LingerTimeout parses BrokerConfig.LingerDuration.
func (b BrokerConfig) LingerTimeout() (time.Duration, error) {
	return time.ParseDuration(b.LingerDuration)
}

// InitialTimeout parses BrokerConfig.DefaultInitialTimeout.
func (b BrokerConfig) InitialTimeout() (time.Duration, error) {
	return time.ParseDuration(b.DefaultInitialTimeout)
}
