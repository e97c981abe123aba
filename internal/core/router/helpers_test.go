package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-msgrouter/internal/core/inprocess"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// testConfig 返回快速重试的测试配置
func testConfig() Config {
	cfg := DefaultConfig().
		WithRetry(10*time.Millisecond, 40*time.Millisecond).
		WithShutdownTimeout(500 * time.Millisecond)
	cfg.MaxParallelSends = 4
	cfg.CleanupInterval = 0
	return cfg
}

type testEnv struct {
	router    *Router
	skeletons *inprocess.SkeletonRegistry
	events    interfaces.Subscription
}

// newTestRouter 创建并启动路由器，测试结束时关闭
func newTestRouter(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	skeletons := inprocess.NewSkeletonRegistry()
	r, err := New(cfg, Deps{Skeletons: skeletons})
	require.NoError(t, err)

	sub, err := r.EventBus().Subscribe(new(interfaces.EvtMessageProcessed), interfaces.BufSize(256))
	require.NoError(t, err)

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() {
		_ = r.Shutdown(context.Background())
	})
	return &testEnv{router: r, skeletons: skeletons, events: sub}
}

// waitProcessed 等待指定消息的处理事件
func waitProcessed(t *testing.T, sub interfaces.Subscription, id string) interfaces.EvtMessageProcessed {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-sub.Out():
			require.True(t, ok, "subscription closed")
			evt := e.(interfaces.EvtMessageProcessed)
			if evt.MessageID == id {
				return evt
			}
		case <-timeout:
			t.Fatalf("message %s was not processed", id)
		}
	}
}

// assertNoMoreEvents 确认一段时间内没有该消息的其他事件
func assertNoMoreEvents(t *testing.T, sub interfaces.Subscription, id string, wait time.Duration) {
	t.Helper()
	timeout := time.After(wait)
	for {
		select {
		case e := <-sub.Out():
			if evt, ok := e.(interfaces.EvtMessageProcessed); ok && evt.MessageID == id {
				t.Fatalf("message %s processed more than once", id)
			}
		case <-timeout:
			return
		}
	}
}

func newMessage(t *testing.T, from, to string, ttl time.Duration) *types.ImmutableMessage {
	t.Helper()
	msg, err := types.NewMessageBuilder().
		From(from).
		To(to).
		ExpiresAt(time.Now().Add(ttl)).
		Build()
	require.NoError(t, err)
	return msg
}

func newMulticast(t *testing.T, provider, multicastID string, ttl time.Duration) *types.ImmutableMessage {
	t.Helper()
	msg, err := types.NewMessageBuilder().
		From(provider).
		To(multicastID).
		OfType(types.MessageTypeMulticast).
		ExpiresAt(time.Now().Add(ttl)).
		Build()
	require.NoError(t, err)
	return msg
}

// collector 记录送达的消息
type collector struct {
	mu   sync.Mutex
	msgs []*types.ImmutableMessage
}

func (c *collector) MessageArrived(msg *types.ImmutableMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// scriptedStub 按脚本决定每次发送的结果
type scriptedStub struct {
	mu       sync.Mutex
	attempts int
	times    []time.Time
	script   func(attempt int, msg *types.ImmutableMessage) error
	block    chan struct{}
}

func (s *scriptedStub) Transmit(msg *types.ImmutableMessage, onSuccess interfaces.SuccessFunc, onFailure interfaces.FailureFunc) {
	s.mu.Lock()
	s.attempts++
	n := s.attempts
	s.times = append(s.times, time.Now())
	s.mu.Unlock()

	if s.block != nil {
		<-s.block
	}
	var err error
	if s.script != nil {
		err = s.script(n, msg)
	}
	if err != nil {
		onFailure(err)
		return
	}
	onSuccess()
}

func (s *scriptedStub) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *scriptedStub) Times() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.times...)
}

// registerStub 让 kind 类型的所有地址都使用同一个 stub
func registerStub(r *Router, kind types.AddressKind, stub interfaces.MessagingStub) {
	r.StubFactory().Register(kind, interfaces.StubFactoryFunc(func(types.Address) (interfaces.MessagingStub, error) {
		return stub, nil
	}))
}

// stubsByAddress 每个地址一个 stub
type stubsByAddress struct {
	mu    sync.Mutex
	stubs map[string]*scriptedStub
	make  func(addr types.Address) *scriptedStub
}

func (f *stubsByAddress) Create(addr types.Address) (interfaces.MessagingStub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stubs == nil {
		f.stubs = make(map[string]*scriptedStub)
	}
	s, ok := f.stubs[addr.Key()]
	if !ok {
		s = f.make(addr)
		f.stubs[addr.Key()] = s
	}
	return s, nil
}

func (f *stubsByAddress) get(addr types.Address) *scriptedStub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stubs[addr.Key()]
}
