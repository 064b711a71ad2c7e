// Package broker implements the reference Attribute Broker (C3, §4.3): a
// shared, replayable stream per AttributeKey, backed by caller-supplied
// PIPFunc upstreams, with per-key state machine and linger-based teardown.
package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// PIPFunc resolves a single attribute subscription to an upstream channel of
// values, registered per fully-qualified name (mirrors the shape of
// registry.FunctionRegistry's per-name lookup). The channel may emit any
// number of values over time; closing it tears the subscription down.
type PIPFunc func(ctx context.Context, key registry.AttributeKey) (<-chan val.Val, error)

// Broker is the reference registry.AttributeBroker implementation.
type Broker struct {
	mu       sync.Mutex
	entries  map[uint64]*entry
	byFQName map[string]map[uint64]*entry

	pips      map[string]PIPFunc
	published map[uint64]val.Val

	linger   time.Duration
	logger   *slog.Logger
	disposed bool
}

// New constructs a Broker. linger is how long an entry with zero subscribers
// is kept warm (upstream still running) before its resources are released;
// per §4.3 a re-subscription inside this window cancels the pending
// teardown and reuses the still-running upstream.
func New(linger time.Duration, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		entries:   map[uint64]*entry{},
		byFQName:  map[string]map[uint64]*entry{},
		pips:      map[string]PIPFunc{},
		published: map[uint64]val.Val{},
		linger:    linger,
		logger:    logger,
	}
}

// RegisterPIP associates fqName with the upstream implementation fn. Later
// registrations for the same name replace earlier ones; in-flight entries
// keep using whichever PIPFunc was registered when their upstream started.
func (b *Broker) RegisterPIP(fqName string, fn PIPFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pips[fqName] = fn
}

// AttributeStream implements registry.AttributeBroker.
func (b *Broker) AttributeStream(ctx context.Context, key registry.AttributeKey, fresh bool, initialTimeout time.Duration) (streaming.Stream[val.Val], error) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return streaming.Stream[val.Val]{}, disposedError{}
	}
	pip := b.pips[key.FQName]
	b.mu.Unlock()

	if fresh {
		return b.subscribeFresh(ctx, key, pip, initialTimeout), nil
	}
	return b.subscribeShared(ctx, key, pip, initialTimeout), nil
}

func (b *Broker) getOrCreateEntry(key registry.AttributeKey) *entry {
	digest := keyDigest(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[digest]
	if ok {
		return e
	}
	e = newEntry(key)
	if v, ok := b.published[entityDigest(key.FQName, key.Entity)]; ok {
		e.latest = v
		e.haveLatest = true
	}
	b.entries[digest] = e
	b.index(key.FQName, digest, e)
	return e
}

func (b *Broker) index(fqName string, digest uint64, e *entry) {
	m, ok := b.byFQName[fqName]
	if !ok {
		m = map[uint64]*entry{}
		b.byFQName[fqName] = m
	}
	m[digest] = e
}

func (b *Broker) unindex(key registry.AttributeKey) {
	digest := keyDigest(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, digest)
	if m, ok := b.byFQName[key.FQName]; ok {
		delete(m, digest)
		if len(m) == 0 {
			delete(b.byFQName, key.FQName)
		}
	}
}

func (b *Broker) subscribeShared(ctx context.Context, key registry.AttributeKey, pip PIPFunc, initialTimeout time.Duration) streaming.Stream[val.Val] {
	e := b.getOrCreateEntry(key)

	e.mu.Lock()
	if e.lingerTimer != nil {
		e.lingerTimer.Stop()
		e.lingerTimer = nil
	}
	startUpstream := e.state == stateIdle
	switch e.state {
	case stateIdle:
		e.state = stateLoading
	case stateTearingDown:
		// Upstream was still running during the linger window; resume
		// serving it directly rather than re-announcing as loading.
		e.state = stateActive
	}

	src := streaming.NewSource[val.Val](1)
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = src
	delivered := e.haveLatest
	latest := e.latest
	e.mu.Unlock()

	if delivered {
		src.Emit(ctx, latest)
	}
	if startUpstream {
		b.startUpstream(e, pip)
	}
	b.watchInitialTimeout(ctx, e, src, initialTimeout, delivered)
	go b.watchUnsubscribe(ctx, e, id)

	return src.Stream()
}

// subscribeFresh starts a private, non-cached upstream invocation dedicated
// to this single caller, per §4.3's "if fresh is true a new upstream
// subscription is allocated regardless of any cache". The private entry is
// still indexed by FQName so PublishAttribute/RemoveAttribute reach it, but
// it is never stored in the shared entries map, so no other AttributeStream
// call can observe or reuse it.
func (b *Broker) subscribeFresh(ctx context.Context, key registry.AttributeKey, pip PIPFunc, initialTimeout time.Duration) streaming.Stream[val.Val] {
	e := newEntry(key)
	digest := keyDigest(key)
	b.mu.Lock()
	b.index(key.FQName, digest, e)
	b.mu.Unlock()

	src := streaming.NewSource[val.Val](1)
	e.subscribers[0] = src
	e.state = stateLoading

	b.startUpstream(e, pip)
	b.watchInitialTimeout(ctx, e, src, initialTimeout, false)

	go func() {
		<-ctx.Done()
		if e.cancelUpstream != nil {
			e.cancelUpstream()
		}
		src.Close()
		b.unindex(key)
	}()

	return src.Stream()
}

func (b *Broker) startUpstream(e *entry, pip PIPFunc) {
	if pip == nil {
		e.mu.Lock()
		e.state = stateActive
		e.mu.Unlock()
		return
	}
	upstreamCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancelUpstream = cancel
	e.mu.Unlock()

	ch, err := pip(upstreamCtx, e.key)
	if err != nil {
		b.logger.Error("attribute broker: PIP start failed", "fqname", e.key.FQName, "err", err)
		e.broadcastError(upstreamCtx, err)
		e.mu.Lock()
		e.state = stateIdle
		e.mu.Unlock()
		return
	}
	e.mu.Lock()
	e.state = stateActive
	e.mu.Unlock()

	go func() {
		for {
			select {
			case v, ok := <-ch:
				if !ok {
					e.closeAll()
					return
				}
				e.broadcast(upstreamCtx, v)
			case <-upstreamCtx.Done():
				return
			}
		}
	}()
}

// watchInitialTimeout emits a single Undefined value on src if no real value
// arrives within timeout (§4.3: "if the upstream produces nothing within
// initialTimeout, one Undefined value is emitted before waiting continues").
func (b *Broker) watchInitialTimeout(ctx context.Context, e *entry, src *streaming.Source[val.Val], timeout time.Duration, alreadyDelivered bool) {
	if timeout <= 0 || alreadyDelivered {
		return
	}
	timer := time.NewTimer(timeout)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.C:
			e.mu.Lock()
			have := e.haveLatest
			e.mu.Unlock()
			if !have {
				src.Emit(ctx, val.Undefined())
			}
		case <-ctx.Done():
		}
	}()
}

func (b *Broker) watchUnsubscribe(ctx context.Context, e *entry, id int) {
	<-ctx.Done()
	e.mu.Lock()
	if s, ok := e.subscribers[id]; ok {
		s.Close()
		delete(e.subscribers, id)
	}
	empty := len(e.subscribers) == 0
	activeOrLoading := e.state == stateActive || e.state == stateLoading
	if empty && activeOrLoading {
		e.state = stateTearingDown
		e.lingerTimer = time.AfterFunc(b.linger, func() { b.teardown(e) })
	}
	e.mu.Unlock()
}

func (b *Broker) teardown(e *entry) {
	e.mu.Lock()
	if e.state != stateTearingDown {
		e.mu.Unlock()
		return
	}
	if e.cancelUpstream != nil {
		e.cancelUpstream()
		e.cancelUpstream = nil
	}
	e.state = stateIdle
	e.haveLatest = false
	e.lingerTimer = nil
	key := e.key
	e.mu.Unlock()
	b.unindex(key)
}

// PublishAttribute implements registry.AttributeBroker.
func (b *Broker) PublishAttribute(fqName string, entity val.Val, value val.Val) {
	b.mu.Lock()
	b.published[entityDigest(fqName, &entity)] = value
	targets := b.matchingEntriesLocked(fqName, &entity)
	b.mu.Unlock()
	for _, e := range targets {
		e.broadcast(context.Background(), value)
	}
}

// PublishEnvironmentAttribute implements registry.AttributeBroker.
func (b *Broker) PublishEnvironmentAttribute(fqName string, value val.Val) {
	b.mu.Lock()
	b.published[entityDigest(fqName, nil)] = value
	targets := b.matchingEntriesLocked(fqName, nil)
	b.mu.Unlock()
	for _, e := range targets {
		e.broadcast(context.Background(), value)
	}
}

// RemoveAttribute implements registry.AttributeBroker.
func (b *Broker) RemoveAttribute(fqName string, entity *val.Val) {
	b.mu.Lock()
	delete(b.published, entityDigest(fqName, entity))
	targets := b.matchingEntriesLocked(fqName, entity)
	b.mu.Unlock()
	for _, e := range targets {
		e.broadcast(context.Background(), val.Undefined())
	}
}

// matchingEntriesLocked must be called with b.mu held. It returns every live
// entry for fqName whose key.Entity structurally matches entity, regardless
// of Arguments/VariablesDigest: a published attribute is identified purely
// by name and entity.
func (b *Broker) matchingEntriesLocked(fqName string, entity *val.Val) []*entry {
	m := b.byFQName[fqName]
	if m == nil {
		return nil
	}
	out := make([]*entry, 0, len(m))
	for _, e := range m {
		if entitiesEqual(e.key.Entity, entity) {
			out = append(out, e)
		}
	}
	return out
}

func entitiesEqual(a, b *val.Val) bool {
	if a == nil || b == nil {
		return a == b
	}
	eq, ok := val.Equal(*a, *b).AsBool()
	return ok && eq
}

// Dispose implements registry.AttributeBroker: every live entry's
// subscriber streams complete (not error), and every upstream is cancelled.
func (b *Broker) Dispose() {
	b.mu.Lock()
	b.disposed = true
	entries := make([]*entry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	for _, m := range b.byFQName {
		for _, e := range m {
			entries = append(entries, e)
		}
	}
	b.entries = map[uint64]*entry{}
	b.byFQName = map[string]map[uint64]*entry{}
	b.mu.Unlock()

	seen := map[*entry]bool{}
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		e.mu.Lock()
		if e.cancelUpstream != nil {
			e.cancelUpstream()
		}
		if e.lingerTimer != nil {
			e.lingerTimer.Stop()
		}
		e.mu.Unlock()
		e.closeAll()
	}
}

type disposedError struct{}

func (disposedError) Error() string { return "attribute broker: disposed" }
