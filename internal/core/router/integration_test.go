package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-msgrouter/internal/core/inprocess"
	"github.com/dep2p/go-msgrouter/internal/core/loopback"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// TestIntegration_ParentChild 测试同一进程中的父子路由器
func TestIntegration_ParentChild(t *testing.T) {
	ctx := context.Background()
	rootAddr := &types.WebSocketAddress{Protocol: "ws", Host: "root", Port: 4242, Path: "/"}
	childAddr := &types.WebSocketClientAddress{ID: "child-1"}

	rootSkeletons := inprocess.NewSkeletonRegistry()
	root, err := New(testConfig(), Deps{Skeletons: rootSkeletons})
	require.NoError(t, err)
	childSkeletons := inprocess.NewSkeletonRegistry()
	child, err := NewChild(testConfig(), Deps{Skeletons: childSkeletons}, childAddr)
	require.NoError(t, err)

	lb := loopback.NewTransport()
	lb.Bind(rootAddr, root)
	lb.Bind(childAddr, child)
	root.StubFactory().Register(types.KindWebSocketClient, lb)
	child.StubFactory().Register(types.KindWebSocket, lb)

	rootEvents, err := root.EventBus().Subscribe(new(interfaces.EvtMessageProcessed), interfaces.BufSize(64))
	require.NoError(t, err)
	childEvents, err := child.EventBus().Subscribe(new(interfaces.EvtMessageProcessed), interfaces.BufSize(64))
	require.NoError(t, err)

	require.NoError(t, root.Start(ctx))
	require.NoError(t, child.Start(ctx))
	defer func() {
		assert.NoError(t, child.Shutdown(ctx))
		assert.NoError(t, root.Shutdown(ctx))
	}()

	var backend, app collector
	backendAddr, err := rootSkeletons.Register("backend", &backend)
	require.NoError(t, err)
	require.NoError(t, root.AddNextHop(ctx, "backend", backendAddr, true))

	// 连接前注册，连接时重放
	appAddr, err := childSkeletons.Register("app", &app)
	require.NoError(t, err)
	require.NoError(t, child.AddNextHop(ctx, "app", appAddr, false))
	require.NoError(t, child.AddMulticastReceiver(ctx, "backend/news", "app", "backend"))

	require.NoError(t, child.SetParentRouter(ctx, NewLocalParent(root), rootAddr, "child-proxy"))

	for _, id := range []string{"child-proxy", "app"} {
		addr, ok := root.RoutingTable().Get(id)
		require.True(t, ok, id)
		assert.True(t, types.AddressEqual(childAddr, addr), id)
	}

	// 子到父
	request := newMessage(t, "app", "backend", time.Minute)
	require.NoError(t, child.RouteOut(request))
	assert.NoError(t, waitProcessed(t, childEvents, request.ID()).Err)
	assert.NoError(t, waitProcessed(t, rootEvents, request.ID()).Err)
	assert.Equal(t, 1, backend.count())

	// 父到子
	reply := newMessage(t, "backend", "app", time.Minute)
	require.NoError(t, root.RouteOut(reply))
	assert.NoError(t, waitProcessed(t, rootEvents, reply.ID()).Err)
	assert.NoError(t, waitProcessed(t, childEvents, reply.ID()).Err)
	assert.Equal(t, 1, app.count())

	// 父路由器上发布的组播到达子路由器的订阅者
	news := newMulticast(t, "backend", "backend/news", time.Minute)
	require.NoError(t, root.RouteOut(news))
	assert.NoError(t, waitProcessed(t, rootEvents, news.ID()).Err)
	assert.NoError(t, waitProcessed(t, childEvents, news.ID()).Err)
	assert.Equal(t, 2, app.count())

	t.Log("✅ 父子路由器集成测试通过")
}
