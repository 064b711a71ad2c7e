package broker

import (
	"context"
	"sync"
	"time"

	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

// state is a single entry's position in the {idle, loading, active,
// tearing-down, terminated} machine (§4.3).
type state int

const (
	stateIdle state = iota
	stateLoading
	stateActive
	stateTearingDown
	stateTerminated
)

// entry is the shared, per-AttributeKey state backing every non-fresh
// AttributeStream call for that key. One per-key sync.Mutex guards it; the
// broker never holds a global lock while an entry's own mutex is held, so
// concurrent keys never contend with each other (§5 per-key exclusion).
type entry struct {
	mu sync.Mutex

	key   registry.AttributeKey
	state state

	latest     val.Val
	haveLatest bool

	subscribers map[int]*streaming.Source[val.Val]
	nextSubID   int

	cancelUpstream context.CancelFunc
	lingerTimer    *time.Timer
}

func newEntry(key registry.AttributeKey) *entry {
	return &entry{
		key:         key,
		state:       stateIdle,
		subscribers: map[int]*streaming.Source[val.Val]{},
	}
}

// broadcast delivers v to every live subscriber and records it as latest.
func (e *entry) broadcast(ctx context.Context, v val.Val) {
	e.mu.Lock()
	e.latest = v
	e.haveLatest = true
	subs := make([]*streaming.Source[val.Val], 0, len(e.subscribers))
	for _, s := range e.subscribers {
		subs = append(subs, s)
	}
	e.mu.Unlock()
	for _, s := range subs {
		s.Emit(ctx, v)
	}
}

func (e *entry) broadcastError(ctx context.Context, err error) {
	e.mu.Lock()
	subs := make([]*streaming.Source[val.Val], 0, len(e.subscribers))
	for _, s := range e.subscribers {
		subs = append(subs, s)
	}
	e.mu.Unlock()
	for _, s := range subs {
		s.EmitError(ctx, err)
	}
}

// closeAll completes every subscriber stream, used when the entry tears down
// terminally (Dispose, or upstream permanently exhausted).
func (e *entry) closeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, s := range e.subscribers {
		s.Close()
		delete(e.subscribers, id)
	}
	e.state = stateTerminated
}
