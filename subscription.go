package sapl

// Subscription builds an AuthorizationSubscription (§3) from its four
// fields. Any field left unset defaults to Undefined, matching what an
// absent JSON field would decode to.
type Subscription struct {
	subject     Val
	action      Val
	resource    Val
	environment Val
}

// NewSubscription starts a Subscription with subject, action, and resource
// set; call WithEnvironment to add the fourth field before Build.
func NewSubscription(subject, action, resource Val) Subscription {
	return Subscription{subject: subject, action: action, resource: resource, environment: Undefined()}
}

// WithEnvironment returns a copy of s with its environment field set.
func (s Subscription) WithEnvironment(environment Val) Subscription {
	s.environment = environment
	return s
}

// Build produces the AuthorizationSubscription ready to pass to Decide.
func (s Subscription) Build() AuthorizationSubscription {
	return AuthorizationSubscription{
		Subject:     s.subject,
		Action:      s.action,
		Resource:    s.resource,
		Environment: s.environment,
	}
}
