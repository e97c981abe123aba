package eventbus

import (
	"sync"
	"testing"
	"time"

	pkgif "github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Value int
}

type otherEvent struct{}

// TestBus_EmitAndReceive 测试事件发射和接收
func TestBus_EmitAndReceive(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	defer em.Close()

	require.NoError(t, em.Emit(testEvent{Value: 7}))

	select {
	case evt := <-sub.Out():
		assert.Equal(t, testEvent{Value: 7}, evt)
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}
}

// TestBus_InvalidTypes 测试类型校验
func TestBus_InvalidTypes(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = bus.Subscribe(testEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	assert.ErrorIs(t, em.Emit(otherEvent{}), ErrWrongEventType)
	assert.ErrorIs(t, em.Emit(&testEvent{}), ErrWrongEventType)
}

// TestBus_SlowConsumerDrops 测试慢消费者丢弃计数
func TestBus_SlowConsumerDrops(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(testEvent), pkgif.BufSize(1))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, em.Emit(testEvent{Value: i}))
	}
	assert.Equal(t, int64(4), bus.Dropped())
	assert.Equal(t, testEvent{Value: 0}, <-sub.Out())
}

// TestBus_Stateful 测试有状态发射器向新订阅者补发最后事件
func TestBus_Stateful(t *testing.T) {
	bus := NewBus()

	em, err := bus.Emitter(new(testEvent), pkgif.Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(testEvent{Value: 1}))
	require.NoError(t, em.Emit(testEvent{Value: 2}))

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	assert.Equal(t, testEvent{Value: 2}, <-sub.Out())
}

// TestBus_Close 测试关闭总线关闭所有订阅
func TestBus_Close(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, open := <-sub.Out()
	assert.False(t, open)

	// 重复关闭安全
	require.NoError(t, sub.Close())
	require.NoError(t, bus.Close())

	_, err = bus.Subscribe(new(testEvent))
	assert.ErrorIs(t, err, ErrClosed)
}

// TestEmitter_Close 测试关闭后的发射器
func TestEmitter_Close(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	require.NoError(t, em.Close())
	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(testEvent{}), ErrClosed)

	bus.mu.RLock()
	assert.Empty(t, bus.nodes)
	bus.mu.RUnlock()
}

// TestBus_ConcurrentSubscribeEmit 测试并发订阅、发射与取消
func TestBus_ConcurrentSubscribeEmit(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	defer em.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub, err := bus.Subscribe(new(testEvent), pkgif.BufSize(2))
				if err == nil {
					_ = sub.Close()
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = em.Emit(testEvent{Value: j})
			}
		}()
	}
	wg.Wait()
}
