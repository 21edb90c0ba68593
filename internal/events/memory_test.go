package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/triad/internal/logging"
)

func newTestMemoryBus(t *testing.T) *MemoryBus {
	t.Helper()
	b := NewMemoryBus(logging.NewTestLogger().Logger)
	t.Cleanup(b.Close)
	return b
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := newTestMemoryBus(t)

	received := make(chan []byte, 1)
	_, err := b.Subscribe("workflow.w1.started", func(ctx context.Context, subject string, data []byte) error {
		received <- data
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "workflow.w1.started", []byte(`{"id":"w1"}`)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"id":"w1"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestMemoryBus_ExactSubjectDoesNotMatchOthers(t *testing.T) {
	b := newTestMemoryBus(t)

	var count atomic.Int32
	_, err := b.Subscribe("workflow.w1.started", func(ctx context.Context, subject string, data []byte) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "workflow.w2.started", nil))
	require.NoError(t, b.Publish(context.Background(), "workflow.w1.completed", nil))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}

func TestMemoryBus_WildcardSingleToken(t *testing.T) {
	b := newTestMemoryBus(t)

	var count atomic.Int32
	_, err := b.Subscribe("workflow.*.started", func(ctx context.Context, subject string, data []byte) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "workflow.abc.started", nil))
	require.NoError(t, b.Publish(ctx, "workflow.def.started", nil))
	// "*" spans exactly one token, so these must not match.
	require.NoError(t, b.Publish(ctx, "workflow.abc.task.t1.started", nil))
	require.NoError(t, b.Publish(ctx, "workflow.started", nil))

	require.Eventually(t, func() bool { return count.Load() == 2 },
		2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), count.Load())
}

func TestMemoryBus_WildcardTail(t *testing.T) {
	b := newTestMemoryBus(t)

	var count atomic.Int32
	_, err := b.Subscribe("workflow.abc.>", func(ctx context.Context, subject string, data []byte) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "workflow.abc.completed", nil))
	require.NoError(t, b.Publish(ctx, "workflow.abc.task.t1.started", nil))
	require.NoError(t, b.Publish(ctx, "workflow.other.completed", nil))

	require.Eventually(t, func() bool { return count.Load() == 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	b := newTestMemoryBus(t)

	var first, second atomic.Int32
	_, err := b.Subscribe("topic", func(ctx context.Context, subject string, data []byte) error {
		first.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe("topic", func(ctx context.Context, subject string, data []byte) error {
		second.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "topic", nil))

	require.Eventually(t, func() bool {
		return first.Load() == 1 && second.Load() == 1
	}, 2*time.Second, 10*time.Millisecond, "every subscriber gets its own delivery")
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	b := newTestMemoryBus(t)

	var count atomic.Int32
	sub, err := b.Subscribe("topic", func(ctx context.Context, subject string, data []byte) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, sub.IsValid())

	require.NoError(t, sub.Unsubscribe())
	assert.False(t, sub.IsValid())

	require.NoError(t, b.Publish(context.Background(), "topic", nil))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}

func TestMemoryBus_Close(t *testing.T) {
	b := NewMemoryBus(logging.NewTestLogger().Logger)
	assert.True(t, b.IsConnected())

	sub, err := b.Subscribe("topic", func(ctx context.Context, subject string, data []byte) error {
		return nil
	})
	require.NoError(t, err)

	b.Close()

	assert.False(t, b.IsConnected())
	assert.False(t, sub.IsValid())
	assert.Error(t, b.Publish(context.Background(), "topic", nil))
	_, err = b.Subscribe("topic", func(ctx context.Context, subject string, data []byte) error {
		return nil
	})
	assert.Error(t, err)
}

func TestMemoryBus_HandlerErrorIsLogged(t *testing.T) {
	tl := logging.NewTestLogger()
	b := NewMemoryBus(tl.Logger)
	t.Cleanup(b.Close)

	_, err := b.Subscribe("topic", func(ctx context.Context, subject string, data []byte) error {
		return assert.AnError
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "topic", nil))

	require.Eventually(t, func() bool {
		return tl.FilterMessage("event handler failed").Len() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		match   bool
	}{
		{"a.b.c", "a.b.c", true},
		{"a.b.c", "a.b.d", false},
		{"a.*.c", "a.b.c", true},
		{"a.*.c", "a.b.d.c", false},
		{"a.>", "a.b", true},
		{"a.>", "a.b.c.d", true},
		{"a.>", "a", false},
		{"*.b", "a.b", true},
		{"*.b", "a.c.b", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.subject, func(t *testing.T) {
			got := matches(tt.subject, tt.pattern, compilePattern(tt.pattern))
			assert.Equal(t, tt.match, got)
		})
	}
}
