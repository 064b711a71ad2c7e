package registry

import (
	"context"
	"time"

	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// AttributeKey identifies a single attribute subscription: fully qualified
// attribute name, optional entity the attribute is about, positional
// arguments, and a digest of the variables bound in the subscriber's
// evaluation context (§3 AttributeSubscriptionKey). Two keys with equal
// fields are the same subscription for broker sharing purposes.
type AttributeKey struct {
	FQName          string
	Entity          *val.Val
	Arguments       []val.Val
	VariablesDigest uint64
}

// AttributeBroker backs the <attr.name(args)> and |<attr.name> syntax with a
// single, shared, replayable stream per AttributeKey (§4.3). The concrete
// reference implementation lives in internal/broker.
type AttributeBroker interface {
	// AttributeStream returns a Stream for key. If fresh is false and an
	// active upstream exists for key, the returned Stream replays the
	// latest cached value then subsequent updates; if fresh is true a new
	// upstream subscription is allocated regardless of any cache. If the
	// upstream produces nothing within initialTimeout (0 disables the
	// timeout), one Undefined value is emitted before waiting continues.
	AttributeStream(ctx context.Context, key AttributeKey, fresh bool, initialTimeout time.Duration) (streaming.Stream[val.Val], error)

	// PublishAttribute manually feeds a statically published entity
	// attribute.
	PublishAttribute(fqName string, entity val.Val, value val.Val)
	// PublishEnvironmentAttribute manually feeds a statically published
	// environment attribute (no entity).
	PublishEnvironmentAttribute(fqName string, value val.Val)
	// RemoveAttribute unpublishes a previously published attribute; the
	// stream emits Undefined and the key is marked unpublished.
	RemoveAttribute(fqName string, entity *val.Val)

	// Dispose terminates every live stream with completion (not error).
	Dispose()
}
