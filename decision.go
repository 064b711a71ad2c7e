package sapl

import (
	"github.com/sapl-go/sapl/internal/decision"
	"github.com/sapl-go/sapl/internal/engine"
)

// Decision is the four-valued outcome of policy/combiner evaluation (§3).
type Decision = decision.Decision

const (
	NotApplicable = decision.NotApplicable
	Permit        = decision.Permit
	Deny          = decision.Deny
	Indeterminate = decision.Indeterminate
)

// VotingMode is one of the six named combining strategies (§4.6).
type VotingMode = decision.VotingMode

const (
	DenyOverrides     = decision.DenyOverrides
	PermitOverrides   = decision.PermitOverrides
	FirstApplicable   = decision.FirstApplicable
	OnlyOneApplicable = decision.OnlyOneApplicable
	DenyUnlessPermit  = decision.DenyUnlessPermit
	PermitUnlessDeny  = decision.PermitUnlessDeny
)

// ErrorHandling selects how a combiner treats per-policy evaluation errors
// (§4.6, orthogonal to VotingMode).
type ErrorHandling = decision.ErrorHandling

const (
	Propagate            = decision.Propagate
	TreatAsIndeterminate = decision.TreatAsIndeterminate
	TreatAsNotApplicable = decision.TreatAsNotApplicable
)

// CombiningAlgorithm fully parameterizes a combiner (§3, §4.6). Its JSON
// shape is exactly {"votingMode", "defaultDecision", "errorHandling"} per
// §6.6, plus one additional optional field resolving open question (ii).
type CombiningAlgorithm = decision.CombiningAlgorithm

// AuthorizationSubscription is a caller's request (§3). Any field may be
// the Undefined value.
type AuthorizationSubscription = decision.AuthorizationSubscription

// AuthorizationDecision is one emission of a decision stream (§3, §6.7).
type AuthorizationDecision = decision.AuthorizationDecision

// MultiDecision is one tick of DecideAll: the latest decision for every
// sub-subscription passed to it, keyed by position.
type MultiDecision = engine.MultiDecision

// TaggedDecision is one tick of DecideEach: a single sub-subscription's
// latest decision, tagged with its index and a correlation id.
type TaggedDecision = engine.TaggedDecision
