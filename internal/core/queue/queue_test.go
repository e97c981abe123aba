package queue

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-msgrouter/pkg/types"
)

func envelopeFor(t *testing.T, id string, at time.Time) *Envelope {
	t.Helper()
	msg, err := types.NewMessageBuilder().
		WithID(id).
		From("s").
		To("r").
		ExpiresAt(at.Add(time.Hour)).
		Build()
	require.NoError(t, err)
	return NewEnvelope(msg, types.Outbound, at)
}

// TestDelayQueue_OrderAndFIFO 测试按时间排序，同一时间按入队顺序
func TestDelayQueue_OrderAndFIFO(t *testing.T) {
	mock := clock.NewMock()
	q := New(mock)
	now := mock.Now()

	require.NoError(t, q.Put(envelopeFor(t, "late", now.Add(-time.Second))))
	require.NoError(t, q.Put(envelopeFor(t, "first", now.Add(-2*time.Second))))
	require.NoError(t, q.Put(envelopeFor(t, "tie-1", now)))
	require.NoError(t, q.Put(envelopeFor(t, "tie-2", now)))
	require.NoError(t, q.Put(envelopeFor(t, "tie-3", now)))

	var got []string
	for i := 0; i < 5; i++ {
		env, err := q.Take(context.Background())
		require.NoError(t, err)
		got = append(got, env.Message.ID())
	}
	assert.Equal(t, []string{"first", "late", "tie-1", "tie-2", "tie-3"}, got)
	assert.Equal(t, 0, q.Len())
}

// TestDelayQueue_BlocksUntilReady 测试信封到期前不会出队
func TestDelayQueue_BlocksUntilReady(t *testing.T) {
	mock := clock.NewMock()
	q := New(mock)
	require.NoError(t, q.Put(envelopeFor(t, "delayed", mock.Now().Add(5*time.Second))))

	result := make(chan *Envelope, 1)
	go func() {
		env, err := q.Take(context.Background())
		if err == nil {
			result <- env
		}
	}()
	// 等待 Take 进入阻塞
	time.Sleep(20 * time.Millisecond)

	mock.Add(4 * time.Second)
	select {
	case <-result:
		t.Fatal("envelope delivered before its delivery time")
	case <-time.After(50 * time.Millisecond):
	}

	mock.Add(time.Second)
	select {
	case env := <-result:
		assert.Equal(t, "delayed", env.Message.ID())
	case <-time.After(time.Second):
		t.Fatal("envelope not delivered after its delivery time")
	}
}

// TestDelayQueue_EarlierPutWakesTaker 测试新入队的更早信封唤醒等待者
func TestDelayQueue_EarlierPutWakesTaker(t *testing.T) {
	q := New(nil)
	require.NoError(t, q.Put(envelopeFor(t, "later", time.Now().Add(time.Hour))))

	result := make(chan string, 1)
	go func() {
		env, err := q.Take(context.Background())
		if err == nil {
			result <- env.Message.ID()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Put(envelopeFor(t, "now", time.Now())))

	select {
	case id := <-result:
		assert.Equal(t, "now", id)
	case <-time.After(time.Second):
		t.Fatal("taker was not woken by an earlier envelope")
	}
	assert.Equal(t, 1, q.Len())
}

// TestDelayQueue_ContextCancel 测试取消等待
func TestDelayQueue_ContextCancel(t *testing.T) {
	q := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestDelayQueue_Close 测试关闭唤醒等待者并拒绝入队
func TestDelayQueue_Close(t *testing.T) {
	q := New(nil)
	require.NoError(t, q.Put(envelopeFor(t, "pending", time.Now().Add(time.Hour))))

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Take(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	pending := q.Close()
	require.Len(t, pending, 1)
	assert.Equal(t, "pending", pending[0].Message.ID())
	assert.Empty(t, q.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the taker")
	}

	assert.ErrorIs(t, q.Put(envelopeFor(t, "x", time.Now())), ErrQueueClosed)
	assert.ErrorIs(t, q.Put(nil), ErrNilEnvelope)
}

// TestDelayQueue_Poll 测试带超时的出队
func TestDelayQueue_Poll(t *testing.T) {
	q := New(nil)

	_, ok := q.Poll(10 * time.Millisecond)
	assert.False(t, ok)

	require.NoError(t, q.Put(envelopeFor(t, "ready", time.Now())))
	env, ok := q.Poll(time.Second)
	require.True(t, ok)
	assert.Equal(t, "ready", env.Message.ID())
}

// TestDelayQueue_WaitForDrain 测试等待队列排空
func TestDelayQueue_WaitForDrain(t *testing.T) {
	q := New(nil)
	require.NoError(t, q.WaitForDrain(context.Background()))

	require.NoError(t, q.Put(envelopeFor(t, "a", time.Now())))
	require.NoError(t, q.Put(envelopeFor(t, "b", time.Now())))

	done := make(chan error, 1)
	go func() {
		done <- q.WaitForDrain(context.Background())
	}()

	for i := 0; i < 2; i++ {
		_, err := q.Take(context.Background())
		require.NoError(t, err)
	}

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after the queue drained")
	}

	require.NoError(t, q.Put(envelopeFor(t, "c", time.Now().Add(time.Hour))))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.WaitForDrain(ctx), context.DeadlineExceeded)
}

// TestEnvelope_Pinned 测试派生单地址信封
func TestEnvelope_Pinned(t *testing.T) {
	env := envelopeFor(t, "m", time.Now())
	env.RetryCount = 3
	env.RetryDelay = time.Second
	target := &types.UdsAddress{Path: "/tmp/s"}

	pinned := env.Pinned(target)
	assert.Same(t, env.Message, pinned.Message)
	assert.Equal(t, 3, pinned.RetryCount)
	assert.Equal(t, time.Second, pinned.RetryDelay)
	assert.Same(t, target, pinned.Target)
	assert.Same(t, env.Group, pinned.Group)
	assert.Nil(t, env.Target)
}

// TestGroup_Done 测试分支完成计数
func TestGroup_Done(t *testing.T) {
	g := NewGroup()
	g.Fork(3)
	failure := assert.AnError

	last, _ := g.Done(nil)
	assert.False(t, last)
	last, _ = g.Done(failure)
	assert.False(t, last)
	last, err := g.Done(nil)
	assert.True(t, last)
	assert.Same(t, failure, err)

	// 结束后的重复调用不会再次返回 true
	last, _ = g.Done(nil)
	assert.False(t, last)
}
