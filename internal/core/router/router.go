package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-msgrouter/internal/core/addressing"
	"github.com/dep2p/go-msgrouter/internal/core/eventbus"
	"github.com/dep2p/go-msgrouter/internal/core/metrics"
	"github.com/dep2p/go-msgrouter/internal/core/multicast"
	"github.com/dep2p/go-msgrouter/internal/core/queue"
	"github.com/dep2p/go-msgrouter/internal/core/routingtable"
	"github.com/dep2p/go-msgrouter/internal/core/stubfactory"
	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

var log = logger.Logger("router")

// Deps 路由器依赖，零值字段使用默认实现
type Deps struct {
	// Table 路由表
	Table *routingtable.Table

	// Registry 组播接收者注册表
	Registry *multicast.Registry

	// Stubs stub 工厂，为 nil 时按 Skeletons 与 StubCacheSize 创建
	Stubs *stubfactory.Factory

	// Skeletons 本地 skeleton 查询
	Skeletons interfaces.SkeletonFactory

	// Calculator 组播额外地址计算
	Calculator interfaces.MulticastAddressCalculator

	// EventBus 事件总线，为 nil 时使用内部总线并在关闭时一并关闭
	EventBus interfaces.EventBus

	// Metrics 指标，可为 nil
	Metrics *metrics.Metrics

	// Clock 时间源
	Clock clock.Clock
}

// Router 消息路由器
//
// 消息先进入延迟队列，由固定数量的 worker 取出、解析地址并交给 stub 发送。
// 暂时失败按指数退避重新入队，直到成功、永久失败或过期。
// 每条消息最终恰好产生一个 EvtMessageProcessed 事件。
type Router struct {
	cfg     Config
	clock   clock.Clock
	backoff Backoff

	table     *routingtable.Table
	registry  *multicast.Registry
	addresses *addressing.Manager
	stubs     *stubfactory.Factory
	skeletons interfaces.SkeletonFactory
	queue     *queue.DelayQueue
	sweeper   *routingtable.Sweeper
	metrics   *metrics.Metrics

	bus     interfaces.EventBus
	ownsBus bool
	emitter interfaces.Emitter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started      atomic.Bool
	shuttingDown atomic.Bool
	workers      atomic.Int32

	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
}

var _ interfaces.MessageRouter = (*Router)(nil)

// New 创建路由器，需要调用 Start 启动 worker
func New(cfg Config, deps Deps) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := deps.Clock
	if c == nil {
		c = clock.New()
	}
	table := deps.Table
	if table == nil {
		table = routingtable.New(
			routingtable.WithClock(c),
			routingtable.WithGracePeriod(cfg.RoutingTableGracePeriod),
		)
	}
	registry := deps.Registry
	if registry == nil {
		registry = multicast.NewRegistry()
	}
	stubs := deps.Stubs
	if stubs == nil {
		var err error
		if stubs, err = stubfactory.New(deps.Skeletons, cfg.StubCacheSize); err != nil {
			return nil, fmt.Errorf("create stub factory: %w", err)
		}
	}

	bus, ownsBus := deps.EventBus, false
	if bus == nil {
		bus, ownsBus = eventbus.NewBus(), true
	}
	emitter, err := bus.Emitter(new(interfaces.EvtMessageProcessed))
	if err != nil {
		return nil, fmt.Errorf("create event emitter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:       cfg,
		clock:     c,
		backoff:   NewBackoff(cfg.BaseRetryInterval, cfg.MaxRetryDelay),
		table:     table,
		registry:  registry,
		addresses: addressing.NewManager(table, registry, deps.Calculator),
		stubs:     stubs,
		skeletons: deps.Skeletons,
		queue:     queue.New(c),
		metrics:   deps.Metrics,
		bus:       bus,
		ownsBus:   ownsBus,
		emitter:   emitter,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		r.sweeper = routingtable.NewSweeper(table, cfg.CleanupInterval)
	}
	return r, nil
}

// Start 启动 worker 与路由表清理，重复调用无效果
func (r *Router) Start(_ context.Context) error {
	if r.shuttingDown.Load() {
		return ErrShuttingDown
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}

	n := r.cfg.Workers()
	for i := 0; i < n; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	if r.sweeper != nil {
		r.sweeper.Start(r.ctx)
	}

	log.Info("路由器已启动", "workers", n)
	return nil
}

// ============================================================================
//                              消息路由
// ============================================================================

// RouteIn 路由从传输收到的消息
func (r *Router) RouteIn(msg *types.ImmutableMessage) error {
	return r.route(msg, types.Inbound)
}

// RouteOut 路由本地发出的消息
func (r *Router) RouteOut(msg *types.ImmutableMessage) error {
	return r.route(msg, types.Outbound)
}

// Route 等同于 RouteOut
func (r *Router) Route(msg *types.ImmutableMessage) error {
	return r.RouteOut(msg)
}

func (r *Router) route(msg *types.ImmutableMessage, dir types.Direction) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidArgument)
	}
	if r.shuttingDown.Load() {
		return ErrShuttingDown
	}
	if !msg.IsTTLAbsolute() {
		r.metrics.Dropped(metrics.DropRelativeTTL)
		log.Warn("拒绝相对 TTL 消息", "msg", msg.TrackingInfo())
		return ErrRelativeTTL
	}
	if msg.IsExpired(r.clock.Now()) {
		r.metrics.Dropped(metrics.DropExpired)
		r.finalize(msg, ErrMessageExpired)
		return ErrMessageExpired
	}

	r.metrics.MessageRouted(dir, msg.PayloadLen())
	if err := r.queue.Put(queue.NewEnvelope(msg, dir, r.clock.Now())); err != nil {
		if errors.Is(err, queue.ErrQueueClosed) {
			return ErrShuttingDown
		}
		return err
	}
	r.metrics.SetQueueLength(r.queue.Len())

	log.Debug("消息入队", "msg", msg.TrackingInfo(), "direction", dir.String())
	return nil
}

// finalize 报告消息的最终结果
//
// 每次路由恰好调用一次，由信封的 Group 保证。
func (r *Router) finalize(msg *types.ImmutableMessage, err error) {
	if err != nil {
		log.Debug("消息处理失败", "msg", msg.TrackingInfo(), "err", err)
	}
	r.releaseRoutes(msg, err)
	if emitErr := r.emitter.Emit(interfaces.EvtMessageProcessed{MessageID: msg.ID(), Err: err}); emitErr != nil {
		log.Debug("消息处理事件未发出", "messageID", msg.ID(), "err", emitErr)
	}
}

// releaseRoutes 释放只为本次交互注册的远端路由
//
// 请求路由失败后不再需要发送方的回复路由；回复发出后不再需要接收方的路由。
// 进程内参与者的记录不受影响。订阅回复只在发送方是进程内参与者时释放。
func (r *Router) releaseRoutes(msg *types.ImmutableMessage, err error) {
	typ := msg.Type()
	switch {
	case err != nil && typ.IsRequest():
		r.releaseRemote(msg.Sender())
	case typ.IsReply():
		if typ == types.MessageTypeSubscriptionReply && !r.isInProcess(msg.Sender()) {
			return
		}
		r.releaseRemote(msg.Recipient())
	}
}

func (r *Router) releaseRemote(participantID string) {
	addr, ok := r.table.Get(participantID)
	if !ok || addr.Kind() == types.KindInProcess {
		return
	}
	if !r.table.Release(participantID) {
		return
	}
	if !r.addressInUse(addr) {
		r.stubs.Evict(addr)
	}
	log.Debug("释放远端路由", "participantID", participantID, "address", addr.String())
}

func (r *Router) isInProcess(participantID string) bool {
	addr, ok := r.table.Get(participantID)
	return ok && addr.Kind() == types.KindInProcess
}

// ============================================================================
//                              路由表操作
// ============================================================================

// AddNextHop 注册下一跳，参与者已注册时保留原地址
func (r *Router) AddNextHop(_ context.Context, participantID string, addr types.Address, isGloballyVisible bool) error {
	if participantID == "" || addr == nil {
		return fmt.Errorf("%w: participant id and address are required", ErrInvalidArgument)
	}
	r.AddToRoutingTable(participantID, addr, isGloballyVisible, time.Time{}, false)
	return nil
}

// AddToRoutingTable 注册带过期时间与粘性标记的下一跳，返回是否新增
func (r *Router) AddToRoutingTable(participantID string, addr types.Address, isGloballyVisible bool, expiry time.Time, sticky bool) bool {
	added := r.table.PutEntry(routingtable.Entry{
		ParticipantID:     participantID,
		Address:           addr,
		IsGloballyVisible: isGloballyVisible,
		ExpiryDate:        expiry,
		IsSticky:          sticky,
	})
	if added {
		log.Debug("添加下一跳",
			"participantID", participantID,
			"address", addr.String(),
			"global", isGloballyVisible)
	}
	return added
}

// RemoveNextHop 移除下一跳，没有其他参与者使用该地址时丢弃缓存的 stub
func (r *Router) RemoveNextHop(_ context.Context, participantID string) error {
	addr, ok := r.table.Get(participantID)
	if !ok || !r.table.Remove(participantID) {
		return nil
	}
	if !r.addressInUse(addr) {
		r.stubs.Evict(addr)
	}
	log.Debug("移除下一跳", "participantID", participantID, "address", addr.String())
	return nil
}

func (r *Router) addressInUse(addr types.Address) bool {
	for _, e := range r.table.Snapshot() {
		if types.AddressEqual(e.Address, addr) {
			return true
		}
	}
	return false
}

// ResolveNextHop 判断参与者在本地路由表中是否有下一跳
func (r *Router) ResolveNextHop(_ context.Context, participantID string) (bool, error) {
	return r.table.ContainsKey(participantID), nil
}

// ============================================================================
//                              组播
// ============================================================================

// AddMulticastReceiver 注册组播接收者
//
// 同一组播 id 的首个接收者会在提供者的 skeleton 上登记组播订阅。
func (r *Router) AddMulticastReceiver(_ context.Context, multicastID, subscriberID, providerID string) error {
	return r.addMulticastReceiver(multicastID, subscriberID, providerID, true)
}

// addMulticastReceiver 登记接收者；knownProvider 要求提供者已在路由表中
func (r *Router) addMulticastReceiver(multicastID, subscriberID, providerID string, knownProvider bool) error {
	if err := multicast.ValidateMulticastID(multicastID); err != nil {
		return err
	}
	if subscriberID == "" || providerID == "" {
		return fmt.Errorf("%w: subscriber and provider ids are required", ErrInvalidArgument)
	}
	if knownProvider && !r.table.ContainsKey(providerID) {
		log.Warn("组播提供者未知，不添加接收者",
			"multicastID", multicastID,
			"subscriberID", subscriberID,
			"providerID", providerID)
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	first := r.registry.Register(multicast.Registration{
		MulticastID:  multicastID,
		SubscriberID: subscriberID,
		ProviderID:   providerID,
	})
	if first {
		if sub := r.multicastSubscriber(providerID); sub != nil {
			sub.RegisterMulticastSubscription(multicastID)
		}
	}
	return nil
}

// RemoveMulticastReceiver 移除组播接收者
//
// 登记总是先被移除；提供者不在路由表中时随后返回 ErrUnknownProvider。
func (r *Router) RemoveMulticastReceiver(_ context.Context, multicastID, subscriberID, providerID string) error {
	return r.removeMulticastReceiver(multicastID, subscriberID, providerID, true)
}

func (r *Router) removeMulticastReceiver(multicastID, subscriberID, providerID string, knownProvider bool) error {
	last := r.registry.Unregister(multicast.Registration{
		MulticastID:  multicastID,
		SubscriberID: subscriberID,
		ProviderID:   providerID,
	})
	if knownProvider && !r.table.ContainsKey(providerID) {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	if last {
		if sub := r.multicastSubscriber(providerID); sub != nil {
			sub.UnregisterMulticastSubscription(multicastID)
		}
	}
	return nil
}

func (r *Router) multicastSubscriber(providerID string) interfaces.MulticastSubscriber {
	if r.skeletons == nil {
		return nil
	}
	addr, ok := r.table.Get(providerID)
	if !ok {
		return nil
	}
	skeleton, ok := r.skeletons.Skeleton(addr)
	if !ok {
		return nil
	}
	sub, _ := skeleton.(interfaces.MulticastSubscriber)
	return sub
}

// ============================================================================
//                              关闭
// ============================================================================

// PrepareForShutdown 等待队列排空或 ctx 结束，期间仍接受新消息
func (r *Router) PrepareForShutdown(ctx context.Context) error {
	return r.queue.WaitForDrain(ctx)
}

// Shutdown 关闭路由器
//
// 拒绝新消息，停止 worker 并在 ShutdownTimeout 内等待其退出。
// 队列中剩余的消息以 ErrShuttingDown 结束。
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.shutdownErr = r.shutdown(ctx)
		close(r.done)
	})
	return r.shutdownErr
}

func (r *Router) shutdown(ctx context.Context) error {
	r.shuttingDown.Store(true)
	log.Info("路由器开始关闭")

	if r.sweeper != nil {
		r.sweeper.Stop()
	}
	r.cancel()

	pending := r.queue.Close()
	for _, env := range pending {
		r.metrics.Dropped(metrics.DropShutdown)
		r.branchDone(env, ErrShuttingDown)
	}
	r.metrics.SetQueueLength(0)

	var err error
	stopped := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(stopped)
	}()
	timer := r.clock.Timer(r.cfg.ShutdownTimeout)
	select {
	case <-stopped:
		timer.Stop()
	case <-timer.C:
		err = ErrShutdownTimeout
	case <-ctx.Done():
		timer.Stop()
		err = fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}

	if closeErr := r.stubs.Close(); closeErr != nil {
		log.Warn("关闭 stub 失败", "err", closeErr)
	}
	_ = r.emitter.Close()
	if r.ownsBus {
		_ = r.bus.Close()
	}

	if err != nil {
		log.Warn("路由器关闭超时，仍有 worker 未退出", "workers", r.workers.Load())
		return err
	}
	log.Info("路由器已关闭", "dropped", len(pending))
	return nil
}

// Done 关闭完成后被关闭
func (r *Router) Done() <-chan struct{} {
	return r.done
}

// ============================================================================
//                              查询
// ============================================================================

// Workers 返回运行中的 worker 数量
func (r *Router) Workers() int {
	return int(r.workers.Load())
}

// QueueLen 返回队列中等待投递的信封数
func (r *Router) QueueLen() int {
	return r.queue.Len()
}

// EventBus 返回路由器发布事件使用的总线
func (r *Router) EventBus() interfaces.EventBus {
	return r.bus
}

// RoutingTable 返回路由表
func (r *Router) RoutingTable() *routingtable.Table {
	return r.table
}

// StubFactory 返回 stub 工厂，用于注册传输类型
func (r *Router) StubFactory() *stubfactory.Factory {
	return r.stubs
}

// Config 返回路由器配置
func (r *Router) Config() Config {
	return r.cfg
}
