package broker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/streaming"
	"github.com/sapl-go/sapl/internal/val"
)

func countingPIP(n *int) PIPFunc {
	return func(ctx context.Context, key registry.AttributeKey) (<-chan val.Val, error) {
		*n++
		ch := make(chan val.Val, 1)
		ch <- val.Number(1)
		return ch, nil
	}
}

func TestAttributeStreamSharesSingleUpstreamAcrossSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(50*time.Millisecond, nil)
	starts := 0
	b.RegisterPIP("test.attr", countingPIP(&starts))

	key := registry.AttributeKey{FQName: "test.attr"}

	ctx1, cancel1 := context.WithCancel(context.Background())
	s1, err := b.AttributeStream(ctx1, key, false, 0)
	if err != nil {
		t.Fatalf("AttributeStream: %v", err)
	}
	first, err := streaming.First(ctx1, s1)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	n, ok := first.AsNumber()
	if !ok {
		t.Fatalf("expected number, got %v", first)
	}
	if f, _ := n.Float64(); f != 1 {
		t.Fatalf("unexpected first value: %v", first)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	s2, err := b.AttributeStream(ctx2, key, false, 0)
	if err != nil {
		t.Fatalf("AttributeStream: %v", err)
	}
	if _, err := streaming.First(ctx2, s2); err != nil {
		t.Fatalf("First (second subscriber): %v", err)
	}

	if starts != 1 {
		t.Fatalf("expected exactly one upstream start, got %d", starts)
	}

	cancel1()
	cancel2()
	b.Dispose()
}

func TestAttributeStreamInitialTimeoutEmitsUndefined(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(50*time.Millisecond, nil)
	b.RegisterPIP("slow.attr", func(ctx context.Context, key registry.AttributeKey) (<-chan val.Val, error) {
		ch := make(chan val.Val)
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := b.AttributeStream(ctx, registry.AttributeKey{FQName: "slow.attr"}, false, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("AttributeStream: %v", err)
	}
	v, err := streaming.First(ctx, s)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if !v.IsUndefined() {
		t.Fatalf("expected Undefined from initial-timeout fallback, got %v", v)
	}
	b.Dispose()
}

func TestPublishAttributeFeedsSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(50*time.Millisecond, nil)

	entity := val.Text("alice")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := b.AttributeStream(ctx, registry.AttributeKey{FQName: "person.age", Entity: &entity}, false, 0)
	if err != nil {
		t.Fatalf("AttributeStream: %v", err)
	}

	b.PublishAttribute("person.age", entity, val.Number(30))

	v, err := streaming.First(ctx, s)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	n, ok := v.AsNumber()
	if !ok {
		t.Fatalf("expected number, got %v", v)
	}
	f, _ := n.Float64()
	if f != 30 {
		t.Fatalf("expected 30, got %v", f)
	}
	b.Dispose()
}

func TestRemoveAttributeEmitsUndefined(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(50*time.Millisecond, nil)
	b.PublishEnvironmentAttribute("clock.now", val.Text("2026-07-31"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := b.AttributeStream(ctx, registry.AttributeKey{FQName: "clock.now"}, false, 0)
	if err != nil {
		t.Fatalf("AttributeStream: %v", err)
	}
	first, err := streaming.First(ctx, s)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if txt, _ := first.AsText(); txt != "2026-07-31" {
		t.Fatalf("expected cached published value, got %v", first)
	}

	b.RemoveAttribute("clock.now", nil)
	second, err := streaming.First(ctx, s)
	if err != nil {
		t.Fatalf("First after remove: %v", err)
	}
	if !second.IsUndefined() {
		t.Fatalf("expected Undefined after RemoveAttribute, got %v", second)
	}
	b.Dispose()
}

func TestFreshBypassesCacheWithPrivateUpstream(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(50*time.Millisecond, nil)
	starts := 0
	b.RegisterPIP("test.attr", countingPIP(&starts))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	key := registry.AttributeKey{FQName: "test.attr"}

	s1, err := b.AttributeStream(ctx, key, false, 0)
	if err != nil {
		t.Fatalf("AttributeStream: %v", err)
	}
	if _, err := streaming.First(ctx, s1); err != nil {
		t.Fatalf("First: %v", err)
	}

	freshCtx, freshCancel := context.WithCancel(context.Background())
	s2, err := b.AttributeStream(freshCtx, key, true, 0)
	if err != nil {
		t.Fatalf("AttributeStream (fresh): %v", err)
	}
	if _, err := streaming.First(freshCtx, s2); err != nil {
		t.Fatalf("First (fresh): %v", err)
	}
	freshCancel()

	if starts != 2 {
		t.Fatalf("expected fresh subscription to start its own upstream, got %d total starts", starts)
	}
	b.Dispose()
}

func TestDisposeCompletesAllStreams(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(50*time.Millisecond, nil)
	b.RegisterPIP("test.attr", func(ctx context.Context, key registry.AttributeKey) (<-chan val.Val, error) {
		ch := make(chan val.Val)
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := b.AttributeStream(ctx, registry.AttributeKey{FQName: "test.attr"}, false, 0)
	if err != nil {
		t.Fatalf("AttributeStream: %v", err)
	}

	b.Dispose()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), time.Second)
	defer doneCancel()
	streaming.Drain(doneCtx, s, func(val.Val) {}, func(error) {})
}
