// Package decision holds the subscription/decision data model (§3) shared
// by the expression evaluator, combining algorithms, and the engine facade.
// It depends only on val so that internal/expr, internal/combining, and
// internal/document can all import it without creating a cycle.
package decision

import (
	"encoding/json"
	"fmt"

	"github.com/sapl-go/sapl/internal/val"
)

// Decision is the four-valued outcome of policy/combiner evaluation.
type Decision int

const (
	NotApplicable Decision = iota
	Permit
	Deny
	Indeterminate
)

func (d Decision) String() string {
	switch d {
	case Permit:
		return "PERMIT"
	case Deny:
		return "DENY"
	case NotApplicable:
		return "NOT_APPLICABLE"
	case Indeterminate:
		return "INDETERMINATE"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders d as one of the four wire strings from §6.7.
func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses one of the four wire strings from §6.7.
func (d *Decision) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "PERMIT":
		*d = Permit
	case "DENY":
		*d = Deny
	case "NOT_APPLICABLE":
		*d = NotApplicable
	case "INDETERMINATE":
		*d = Indeterminate
	default:
		return fmt.Errorf("decision: unknown value %q", s)
	}
	return nil
}

// VotingMode is one of the six named combining strategies (§4.6).
type VotingMode int

const (
	DenyOverrides VotingMode = iota
	PermitOverrides
	FirstApplicable
	OnlyOneApplicable
	DenyUnlessPermit
	PermitUnlessDeny
)

func (m VotingMode) String() string {
	switch m {
	case DenyOverrides:
		return "DENY_OVERRIDES"
	case PermitOverrides:
		return "PERMIT_OVERRIDES"
	case FirstApplicable:
		return "FIRST_APPLICABLE"
	case OnlyOneApplicable:
		return "ONLY_ONE_APPLICABLE"
	case DenyUnlessPermit:
		return "DENY_UNLESS_PERMIT"
	case PermitUnlessDeny:
		return "PERMIT_UNLESS_DENY"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders m as its wire string (§6.6).
func (m VotingMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON parses m from its wire string (§6.6).
func (m *VotingMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "DENY_OVERRIDES":
		*m = DenyOverrides
	case "PERMIT_OVERRIDES":
		*m = PermitOverrides
	case "FIRST_APPLICABLE":
		*m = FirstApplicable
	case "ONLY_ONE_APPLICABLE":
		*m = OnlyOneApplicable
	case "DENY_UNLESS_PERMIT":
		*m = DenyUnlessPermit
	case "PERMIT_UNLESS_DENY":
		*m = PermitUnlessDeny
	default:
		return fmt.Errorf("votingMode: unknown value %q", s)
	}
	return nil
}

// ErrorHandling selects how a combiner treats per-policy evaluation errors
// (§4.6, orthogonal to VotingMode).
type ErrorHandling int

const (
	Propagate ErrorHandling = iota
	TreatAsIndeterminate
	TreatAsNotApplicable
)

func (h ErrorHandling) String() string {
	switch h {
	case Propagate:
		return "PROPAGATE"
	case TreatAsIndeterminate:
		return "TREAT_AS_INDETERMINATE"
	case TreatAsNotApplicable:
		return "TREAT_AS_NOT_APPLICABLE"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders h as its wire string (§6.6).
func (h ErrorHandling) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses h from its wire string (§6.6).
func (h *ErrorHandling) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "PROPAGATE":
		*h = Propagate
	case "TREAT_AS_INDETERMINATE":
		*h = TreatAsIndeterminate
	case "TREAT_AS_NOT_APPLICABLE":
		*h = TreatAsNotApplicable
	default:
		return fmt.Errorf("errorHandling: unknown value %q", s)
	}
	return nil
}

// CombiningAlgorithm fully parameterizes a combiner (§3). Its JSON shape is
// exactly {"votingMode", "defaultDecision", "errorHandling"} per §6.6, plus
// one additional optional field resolving open question (ii) (§9).
type CombiningAlgorithm struct {
	VotingMode      VotingMode    `json:"votingMode"`
	DefaultDecision Decision      `json:"defaultDecision"`
	ErrorHandling   ErrorHandling `json:"errorHandling"`

	// OnlyOneApplicableTreatsIndeterminateAsApplicable resolves an open
	// question in the ONLY_ONE_APPLICABLE rule: whether an INDETERMINATE
	// sub-decision counts toward "exactly one applicable" (true) or is
	// treated like NOT_APPLICABLE for that count (false, the default).
	// Only meaningful when VotingMode is OnlyOneApplicable.
	OnlyOneApplicableTreatsIndeterminateAsApplicable bool `json:"onlyOneApplicableTreatsIndeterminateAsApplicable,omitempty"`
}

// AuthorizationSubscription is the caller's request (§3). Any field may be
// the Null value.
type AuthorizationSubscription struct {
	Subject     val.Val `json:"subject"`
	Action      val.Val `json:"action"`
	Resource    val.Val `json:"resource"`
	Environment val.Val `json:"environment"`
}

// AuthorizationDecision is one emission of a decision stream (§3, §6.7).
// Invariant: if Decision != Permit then Resource and Obligations must be
// absent (nil); Advice may be present regardless of Decision.
type AuthorizationDecision struct {
	Decision    Decision  `json:"decision"`
	Resource    *val.Val  `json:"resource,omitempty"`
	Obligations []val.Val `json:"obligations,omitempty"`
	Advice      []val.Val `json:"advice,omitempty"`
}

// Equal reports whether two AuthorizationDecisions are structurally equal,
// used by the combiner's consecutive-emission dedup (§4.6).
func (d AuthorizationDecision) Equal(o AuthorizationDecision) bool {
	if d.Decision != o.Decision {
		return false
	}
	if !optionalValEqual(d.Resource, o.Resource) {
		return false
	}
	if !valSliceEqual(d.Obligations, o.Obligations) {
		return false
	}
	return valSliceEqual(d.Advice, o.Advice)
}

func optionalValEqual(a, b *val.Val) bool {
	if a == nil || b == nil {
		return a == b
	}
	eq, _ := val.Equal(*a, *b).AsBool()
	return eq
}

func valSliceEqual(a, b []val.Val) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		eq, ok := val.Equal(a[i], b[i]).AsBool()
		if !ok || !eq {
			return false
		}
	}
	return true
}
