package msgrouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-msgrouter/internal/core/inprocess"
	"github.com/dep2p/go-msgrouter/internal/core/metrics"
	"github.com/dep2p/go-msgrouter/internal/core/router"
	"github.com/dep2p/go-msgrouter/internal/debug/introspect"
	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
)

var log = logger.Logger("msgrouter")

const (
	// startTimeout 启动 Fx 应用的超时
	startTimeout = 30 * time.Second

	// closeTimeout Close 使用的关闭超时
	closeTimeout = 10 * time.Second
)

// Node 消息路由节点
//
// Node 持有一个根路由器或子路由器（设置了 WithIncomingAddress 时），
// 以及进程内参与者注册表与事件总线。
//
// 使用示例：
//
//	node, _ := msgrouter.New()
//	node.Start(ctx)
//	defer node.Close()
//
//	node.RegisterParticipant(ctx, "backend", handler)
//	node.Route(msg)
type Node struct {
	// app Fx 应用
	app *fx.App

	// ────────────────────────────────────────────────────────────────────────
	// 核心组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	router        *router.Router
	messageRouter interfaces.MessageRouter
	child         *router.ChildRouter
	skeletons     *inprocess.SkeletonRegistry
	bus           interfaces.EventBus
	metrics       *metrics.Metrics
	introspect    *introspect.Server

	// ────────────────────────────────────────────────────────────────────────
	// 生命周期状态
	// ────────────────────────────────────────────────────────────────────────

	mu    sync.Mutex
	state NodeState
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// New 创建节点
//
// 创建节点但不启动，需要调用 Start() 启动 worker。
//
// 示例：
//
//	node, err := msgrouter.New(
//	    msgrouter.WithPreset("server"),
//	    msgrouter.WithStubFactory(types.KindWebSocketClient, wsFactory),
//	)
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	node := &Node{state: StateIdle}
	app, err := buildFxApp(o, node)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	node.app = app
	return node, nil
}

// Start 快捷启动函数，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopping, StateStopped:
		return ErrNodeClosed
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := n.app.Start(startCtx); err != nil {
		log.Error("节点启动失败", "err", err)
		n.state = StateStopped
		return fmt.Errorf("start failed: %w", err)
	}

	n.state = StateRunning
	log.Info("节点已启动", "child", n.child != nil, "workers", n.router.Config().Workers())
	return nil
}

// Stop 关闭节点
//
// 停止接受新消息，队列中未发送的消息以 ErrShuttingDown 结束。
// 路由器不能重新启动。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.state == StateStopping || n.state == StateStopped {
		n.mu.Unlock()
		return nil
	}
	wasRunning := n.state == StateRunning
	n.state = StateStopping
	n.mu.Unlock()

	var err error
	if wasRunning {
		err = n.app.Stop(ctx)
	} else {
		// 未启动时仍需释放路由器与事件总线
		err = n.messageRouter.Shutdown(ctx)
		if closeErr := n.bus.Close(); err == nil {
			err = closeErr
		}
	}

	n.mu.Lock()
	n.state = StateStopped
	n.mu.Unlock()

	if err != nil {
		log.Warn("节点关闭出错", "err", err)
		return err
	}
	log.Info("节点已关闭")
	return nil
}

// Close 使用默认超时关闭节点
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return n.Stop(ctx)
}

// PrepareForShutdown 等待队列排空或 ctx 结束，不拒绝新消息
func (n *Node) PrepareForShutdown(ctx context.Context) error {
	return n.router.PrepareForShutdown(ctx)
}

// State 返回节点状态
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Done 返回路由器关闭完成后关闭的通道
func (n *Node) Done() <-chan struct{} {
	return n.router.Done()
}

// ════════════════════════════════════════════════════════════════════════════
//                              消息路由
// ════════════════════════════════════════════════════════════════════════════

// Route 路由本地发出的消息
func (n *Node) Route(msg *Message) error {
	return n.messageRouter.RouteOut(msg)
}

// RouteIn 路由从传输收到的消息
func (n *Node) RouteIn(msg *Message) error {
	return n.messageRouter.RouteIn(msg)
}

// RouteOut 路由本地发出的消息
func (n *Node) RouteOut(msg *Message) error {
	return n.messageRouter.RouteOut(msg)
}

// ════════════════════════════════════════════════════════════════════════════
//                              参与者与路由表
// ════════════════════════════════════════════════════════════════════════════

// RegisterParticipant 注册本地参与者
//
// 在进程内注册表中创建 skeleton，并把参与者 ID 注册为指向它的下一跳。
// 子路由器会把注册转发给父路由器（未连接时记录，连接时重放）。
func (n *Node) RegisterParticipant(ctx context.Context, participantID string, d Dispatcher) (Address, error) {
	addr, err := n.skeletons.Register(participantID, d)
	if err != nil {
		return nil, err
	}
	if err := n.messageRouter.AddNextHop(ctx, participantID, addr, false); err != nil {
		n.skeletons.Unregister(participantID)
		return nil, err
	}
	return addr, nil
}

// UnregisterParticipant 注销本地参与者
func (n *Node) UnregisterParticipant(ctx context.Context, participantID string) error {
	err := n.messageRouter.RemoveNextHop(ctx, participantID)
	n.skeletons.Unregister(participantID)
	return err
}

// AddNextHop 注册参与者的下一跳，已注册的参与者保留原地址
func (n *Node) AddNextHop(ctx context.Context, participantID string, addr Address, isGloballyVisible bool) error {
	return n.messageRouter.AddNextHop(ctx, participantID, addr, isGloballyVisible)
}

// RemoveNextHop 移除参与者的下一跳
func (n *Node) RemoveNextHop(ctx context.Context, participantID string) error {
	return n.messageRouter.RemoveNextHop(ctx, participantID)
}

// ResolveNextHop 判断参与者是否可路由
func (n *Node) ResolveNextHop(ctx context.Context, participantID string) (bool, error) {
	return n.messageRouter.ResolveNextHop(ctx, participantID)
}

// AddMulticastReceiver 注册组播接收者
func (n *Node) AddMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error {
	return n.messageRouter.AddMulticastReceiver(ctx, multicastID, subscriberID, providerID)
}

// RemoveMulticastReceiver 移除组播接收者
func (n *Node) RemoveMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error {
	return n.messageRouter.RemoveMulticastReceiver(ctx, multicastID, subscriberID, providerID)
}

// ════════════════════════════════════════════════════════════════════════════
//                              父子路由
// ════════════════════════════════════════════════════════════════════════════

// IsChild 是否以子路由器模式运行
func (n *Node) IsChild() bool {
	return n.child != nil
}

// IncomingAddress 返回子路由器入口地址，根路由器返回 nil
func (n *Node) IncomingAddress() Address {
	if n.child == nil {
		return nil
	}
	return n.child.IncomingAddress()
}

// SetParentRouter 连接父路由器，只能调用一次
//
// 在父路由器上注册 proxyParticipantID 指向本节点入口地址，
// 然后按顺序重放连接前记录的注册。
func (n *Node) SetParentRouter(ctx context.Context, parent ParentRouter, parentAddress Address, proxyParticipantID string) error {
	if n.child == nil {
		return ErrNotChild
	}
	return n.child.SetParentRouter(ctx, parent, parentAddress, proxyParticipantID)
}

// AsParent 返回进程内父路由器代理，供同一进程中的子节点连接
func (n *Node) AsParent() ParentRouter {
	return router.NewLocalParent(n.messageRouter)
}

// ════════════════════════════════════════════════════════════════════════════
//                              观测
// ════════════════════════════════════════════════════════════════════════════

// EventBus 返回事件总线，可订阅 EvtMessageProcessed 与 EvtParentAttached
func (n *Node) EventBus() interfaces.EventBus {
	return n.bus
}

// SubscribeProcessed 订阅消息处理完成事件
func (n *Node) SubscribeProcessed(bufSize int) (interfaces.Subscription, error) {
	return n.bus.Subscribe(new(EvtMessageProcessed), interfaces.BufSize(bufSize))
}

// Stats 返回统计快照，关闭指标时只有队列、worker 与路由表字段有效
func (n *Node) Stats() Stats {
	s := n.metrics.Snapshot()
	return Stats{
		RoutedIn:         s.RoutedIn,
		RoutedOut:        s.RoutedOut,
		PayloadRateIn:    s.PayloadRateIn,
		PayloadRateOut:   s.PayloadRateOut,
		TransmitAttempts: s.TransmitAttempts,
		TransmitFailures: s.TransmitFailures,
		Retries:          s.Retries,
		QueueLength:      n.router.QueueLen(),
		Workers:          n.router.Workers(),
		RoutingTableSize: n.router.RoutingTable().Len(),
	}
}

// IntrospectAddr 返回诊断服务的监听地址，未启用时返回空字符串
func (n *Node) IntrospectAddr() string {
	if n.introspect == nil {
		return ""
	}
	return n.introspect.Addr()
}
