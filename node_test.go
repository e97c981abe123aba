package msgrouter

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-msgrouter/internal/core/loopback"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// inbox 记录收到的消息
type inbox struct {
	mu   sync.Mutex
	msgs []*Message
}

func (b *inbox) MessageArrived(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func (b *inbox) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

func newTestNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	node, err := New(append([]Option{WithPreset("testing")}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, node.Start(context.Background()))
	t.Cleanup(func() { _ = node.Close() })
	return node
}

func buildMessage(t *testing.T, from, to string) *Message {
	t.Helper()
	msg, err := NewMessageBuilder().
		From(from).
		To(to).
		OfType(MessageTypeRequest).
		ExpiresAt(time.Now().Add(time.Minute)).
		WithPayload([]byte("ping")).
		Build()
	require.NoError(t, err)
	return msg
}

func awaitProcessed(t *testing.T, sub interfaces.Subscription, id string) EvtMessageProcessed {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-sub.Out():
			evt := e.(EvtMessageProcessed)
			if evt.MessageID == id {
				return evt
			}
		case <-timeout:
			t.Fatalf("no processed event for %s", id)
		}
	}
}

// TestNode_RouteToParticipant 测试本地参与者之间的路由
func TestNode_RouteToParticipant(t *testing.T) {
	ctx := context.Background()
	node := newTestNode(t)

	var backend inbox
	addr, err := node.RegisterParticipant(ctx, "backend", &backend)
	require.NoError(t, err)
	assert.Equal(t, types.KindInProcess, addr.Kind())

	sub, err := node.SubscribeProcessed(16)
	require.NoError(t, err)
	defer sub.Close()

	msg := buildMessage(t, "app", "backend")
	require.NoError(t, node.Route(msg))
	assert.NoError(t, awaitProcessed(t, sub, msg.ID()).Err)
	assert.Equal(t, 1, backend.count())

	ok, err := node.ResolveNextHop(ctx, "backend")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, node.UnregisterParticipant(ctx, "backend"))
	ok, err = node.ResolveNextHop(ctx, "backend")
	require.NoError(t, err)
	assert.False(t, ok)

	t.Log("✅ 本地参与者路由测试通过")
}

// TestNode_NoRoute 测试没有路由的消息
func TestNode_NoRoute(t *testing.T) {
	node := newTestNode(t)
	sub, err := node.SubscribeProcessed(16)
	require.NoError(t, err)
	defer sub.Close()

	msg := buildMessage(t, "app", "nobody")
	require.NoError(t, node.Route(msg))

	evt := awaitProcessed(t, sub, msg.ID())
	assert.ErrorIs(t, evt.Err, ErrNoRoute)
	var routeErr *RouteError
	require.ErrorAs(t, evt.Err, &routeErr)
	assert.Equal(t, "nobody", routeErr.ParticipantID)
}

// TestNode_RelativeTTL 测试相对 TTL 消息被拒绝
func TestNode_RelativeTTL(t *testing.T) {
	node := newTestNode(t)
	msg, err := NewMessageBuilder().From("a").To("b").ExpiresIn(time.Minute).Build()
	require.NoError(t, err)
	assert.ErrorIs(t, node.Route(msg), ErrRelativeTTL)
}

// TestNode_Lifecycle 测试启动与关闭状态
func TestNode_Lifecycle(t *testing.T) {
	ctx := context.Background()
	node, err := New(WithPreset("testing"))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, node.State())

	require.NoError(t, node.Start(ctx))
	assert.Equal(t, StateRunning, node.State())
	assert.ErrorIs(t, node.Start(ctx), ErrAlreadyStarted)
	require.Eventually(t, func() bool { return node.Stats().Workers == 20 }, time.Second, 5*time.Millisecond)

	require.NoError(t, node.Close())
	assert.Equal(t, StateStopped, node.State())
	assert.ErrorIs(t, node.Start(ctx), ErrNodeClosed)
	assert.NoError(t, node.Close())

	select {
	case <-node.Done():
	default:
		t.Fatal("router not done after close")
	}

	assert.ErrorIs(t, node.Route(buildMessage(t, "a", "b")), ErrShuttingDown)
}

// TestNode_CloseWithoutStart 测试未启动的节点关闭
func TestNode_CloseWithoutStart(t *testing.T) {
	node, err := New(WithPreset("testing"))
	require.NoError(t, err)
	require.NoError(t, node.Close())
	assert.Equal(t, StateStopped, node.State())
}

// TestNode_Options 测试选项验证
func TestNode_Options(t *testing.T) {
	_, err := New(WithPreset("unknown"))
	assert.Error(t, err)

	_, err = New(WithIncomingAddress(&types.InProcessAddress{SkeletonID: "x"}))
	assert.ErrorIs(t, err, ErrUnsupportedAddressType)

	_, err = New(WithRetry(0, time.Second))
	assert.Error(t, err)

	_, err = New(WithMaxParallelSends(-1))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)

	_, err = New(WithStubFactory(types.KindMqtt, nil))
	assert.Error(t, err)

	node, err := New(WithPreset("testing"), WithMaxParallelSends(5))
	require.NoError(t, err)
	require.NoError(t, node.Start(context.Background()))
	defer node.Close()
	require.Eventually(t, func() bool { return node.Stats().Workers == 5 }, time.Second, 5*time.Millisecond)
}

// TestNode_RootIsNotChild 测试根节点不能连接父路由器
func TestNode_RootIsNotChild(t *testing.T) {
	node := newTestNode(t)
	assert.False(t, node.IsChild())
	assert.Nil(t, node.IncomingAddress())

	parentAddr := &types.WebSocketAddress{Protocol: "ws", Host: "parent", Port: 80, Path: "/"}
	err := node.SetParentRouter(context.Background(), node.AsParent(), parentAddr, "proxy")
	assert.ErrorIs(t, err, ErrNotChild)
}

// TestNode_Metrics 测试指标注册到外部注册表
func TestNode_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	node := newTestNode(t, WithMetrics(true), WithMetricsRegisterer(reg))

	var backend inbox
	_, err := node.RegisterParticipant(ctx, "backend", &backend)
	require.NoError(t, err)

	sub, err := node.SubscribeProcessed(16)
	require.NoError(t, err)
	defer sub.Close()

	msg := buildMessage(t, "app", "backend")
	require.NoError(t, node.Route(msg))
	awaitProcessed(t, sub, msg.ID())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["msgrouter_messages_routed_total"])
	assert.True(t, names["msgrouter_transmit_attempts_total"])

	stats := node.Stats()
	assert.Equal(t, int64(1), stats.RoutedOut)
	assert.Equal(t, 1, stats.RoutingTableSize)
}

// TestNode_Introspect 测试诊断服务随节点启动
func TestNode_Introspect(t *testing.T) {
	plain := newTestNode(t)
	assert.Empty(t, plain.IntrospectAddr())

	node := newTestNode(t, WithIntrospect("127.0.0.1:0"))
	addr := node.IntrospectAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestNode_ParentChild 测试两个节点通过进程内传输组成父子路由
func TestNode_ParentChild(t *testing.T) {
	ctx := context.Background()
	rootAddr := &types.WebSocketAddress{Protocol: "ws", Host: "root", Port: 4242, Path: "/"}
	childAddr := &types.WebSocketClientAddress{ID: "child-1"}
	lb := loopback.NewTransport()

	root := newTestNode(t, WithStubFactory(types.KindWebSocketClient, lb))
	child := newTestNode(t,
		WithStubFactory(types.KindWebSocket, lb),
		WithIncomingAddress(childAddr),
	)
	lb.Bind(rootAddr, root)
	lb.Bind(childAddr, child)
	assert.True(t, child.IsChild())
	assert.True(t, types.AddressEqual(childAddr, child.IncomingAddress()))

	attached, err := child.EventBus().Subscribe(new(EvtParentAttached), interfaces.BufSize(1))
	require.NoError(t, err)
	defer attached.Close()

	var backend, app inbox
	_, err = root.RegisterParticipant(ctx, "backend", &backend)
	require.NoError(t, err)
	_, err = child.RegisterParticipant(ctx, "app", &app)
	require.NoError(t, err)

	require.NoError(t, child.SetParentRouter(ctx, root.AsParent(), rootAddr, "child-proxy"))
	assert.ErrorIs(t, child.SetParentRouter(ctx, root.AsParent(), rootAddr, "child-proxy"), ErrAlreadyAttached)

	select {
	case e := <-attached.Out():
		evt := e.(EvtParentAttached)
		assert.Equal(t, "child-proxy", evt.ProxyParticipantID)
		assert.Equal(t, 1, evt.Replayed)
	case <-time.After(time.Second):
		t.Fatal("no attach event")
	}

	rootEvents, err := root.SubscribeProcessed(16)
	require.NoError(t, err)
	defer rootEvents.Close()

	reply := buildMessage(t, "backend", "app")
	require.NoError(t, root.Route(reply))
	assert.NoError(t, awaitProcessed(t, rootEvents, reply.ID()).Err)
	require.Eventually(t, func() bool { return app.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	request := buildMessage(t, "app", "backend")
	require.NoError(t, child.Route(request))
	require.Eventually(t, func() bool { return backend.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	t.Log("✅ 父子节点测试通过")
}

// TestVersionInfo 测试版本信息
func TestVersionInfo(t *testing.T) {
	assert.Contains(t, VersionInfo(), Version)

	GitCommit = "0123456789abcdef"
	defer func() { GitCommit = "" }()
	assert.Contains(t, VersionInfo(), "(01234567)")
}
