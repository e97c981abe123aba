package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-msgrouter/internal/core/routingtable"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// ============================================================================
//                              延迟调用
// ============================================================================

type callKind uint8

const (
	callAddHop callKind = iota
	callRemoveHop
	callAddMulticast
	callRemoveMulticast
)

func (k callKind) String() string {
	switch k {
	case callAddHop:
		return "addNextHop"
	case callRemoveHop:
		return "removeNextHop"
	case callAddMulticast:
		return "addMulticastReceiver"
	case callRemoveMulticast:
		return "removeMulticastReceiver"
	default:
		return "unknown"
	}
}

// deferredCall 连接父路由器前记录的注册操作
type deferredCall struct {
	kind              callKind
	participantID     string
	isGloballyVisible bool
	multicastID       string
	subscriberID      string
	providerID        string
}

// apply 把调用转发给父路由器，下一跳统一注册为子路由器的入站地址
func (d deferredCall) apply(ctx context.Context, parent interfaces.ParentRouter, incoming types.Address) error {
	var err error
	switch d.kind {
	case callAddHop:
		err = parent.AddNextHop(ctx, d.participantID, incoming, d.isGloballyVisible)
	case callRemoveHop:
		err = parent.RemoveNextHop(ctx, d.participantID)
	case callAddMulticast:
		err = parent.AddMulticastReceiver(ctx, d.multicastID, d.subscriberID, d.providerID)
	case callRemoveMulticast:
		err = parent.RemoveMulticastReceiver(ctx, d.multicastID, d.subscriberID, d.providerID)
	}
	if err != nil {
		return fmt.Errorf("%s at parent: %w", d.kind, err)
	}
	return nil
}

// ============================================================================
//                              ChildRouter
// ============================================================================

// attachment 已连接的父路由器，连接后不再改变
type attachment struct {
	parent        interfaces.ParentRouter
	parentAddress types.Address
	proxyID       string
}

// ChildRouter 层级路由器中的子路由器
//
// 连接父路由器前，注册只在本地生效并被记录下来；SetParentRouter 按顺序
// 重放这些记录。连接后每次注册同步转发给父路由器，本地无路由时询问父路由器。
type ChildRouter struct {
	*Router

	incoming types.Address

	// attached 连接成功后发布一次，地址解析无锁读取
	attached atomic.Pointer[attachment]

	// mu 串行化注册的记录、转发与重放，地址解析不获取它
	mu       sync.Mutex
	deferred []deferredCall

	attachedEmitter interfaces.Emitter
}

// NewChild 创建子路由器，incoming 是父路由器回连本路由器使用的地址
func NewChild(cfg Config, deps Deps, incoming types.Address) (*ChildRouter, error) {
	if incoming == nil {
		return nil, ErrNoIncomingAddress
	}
	r, err := New(cfg, deps)
	if err != nil {
		return nil, err
	}
	emitter, err := r.bus.Emitter(new(interfaces.EvtParentAttached), interfaces.Stateful())
	if err != nil {
		return nil, fmt.Errorf("create event emitter: %w", err)
	}

	c := &ChildRouter{
		Router:          r,
		incoming:        incoming,
		attachedEmitter: emitter,
	}
	r.addresses.SetResolver(parentResolver{c})
	return c, nil
}

// IncomingAddress 返回本路由器的入站地址
func (c *ChildRouter) IncomingAddress() types.Address {
	return c.incoming
}

// Attached 是否已连接父路由器
func (c *ChildRouter) Attached() bool {
	return c.attached.Load() != nil
}

// PendingCalls 返回等待重放的注册数
func (c *ChildRouter) PendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred)
}

// SetParentRouter 连接父路由器
//
// 先在父路由器上注册 proxyParticipantID 到本路由器入站地址的路由，
// 成功后按记录顺序重放未连接期间的注册。重放错误被聚合返回，但连接仍然生效。
func (c *ChildRouter) SetParentRouter(ctx context.Context, parent interfaces.ParentRouter, parentAddress types.Address, proxyParticipantID string) error {
	if parent == nil || parentAddress == nil || proxyParticipantID == "" {
		return fmt.Errorf("%w: parent, parent address and proxy participant id are required", ErrInvalidArgument)
	}
	if !types.IsParentHopKind(c.incoming.Kind()) {
		return fmt.Errorf("%w: %s", ErrUnsupportedAddressType, c.incoming.Kind())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attached.Load() != nil {
		return ErrAlreadyAttached
	}
	if err := parent.AddNextHop(ctx, proxyParticipantID, c.incoming, false); err != nil {
		return fmt.Errorf("register proxy at parent: %w", err)
	}

	// 新注册在 mu 上等待重放结束，之后直接转发
	c.attached.Store(&attachment{
		parent:        parent,
		parentAddress: parentAddress,
		proxyID:       proxyParticipantID,
	})

	var errs error
	replayed := len(c.deferred)
	for _, call := range c.deferred {
		errs = multierr.Append(errs, call.apply(ctx, parent, c.incoming))
	}
	c.deferred = nil

	log.Info("已连接父路由器",
		"proxyParticipantID", proxyParticipantID,
		"incoming", c.incoming.String(),
		"parent", parentAddress.String(),
		"replayed", replayed,
		"errors", len(multierr.Errors(errs)))

	if err := c.attachedEmitter.Emit(interfaces.EvtParentAttached{
		ProxyParticipantID: proxyParticipantID,
		IncomingAddress:    c.incoming,
		ParentAddress:      parentAddress,
		Replayed:           replayed,
	}); err != nil {
		log.Debug("连接事件未发出", "err", err)
	}
	return errs
}

// forward 已连接时转发给父路由器，否则记录下来，调用方持有 mu
func (c *ChildRouter) forward(ctx context.Context, call deferredCall) error {
	a := c.attached.Load()
	if a == nil {
		c.deferred = append(c.deferred, call)
		return nil
	}
	return call.apply(ctx, a.parent, c.incoming)
}

// AddNextHop 注册本地下一跳，并以本路由器入站地址注册到父路由器
func (c *ChildRouter) AddNextHop(ctx context.Context, participantID string, addr types.Address, isGloballyVisible bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Router.AddNextHop(ctx, participantID, addr, isGloballyVisible); err != nil {
		return err
	}
	return c.forward(ctx, deferredCall{
		kind:              callAddHop,
		participantID:     participantID,
		isGloballyVisible: isGloballyVisible,
	})
}

// RemoveNextHop 移除本地下一跳，并从父路由器移除
func (c *ChildRouter) RemoveNextHop(ctx context.Context, participantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Router.RemoveNextHop(ctx, participantID); err != nil {
		return err
	}
	return c.forward(ctx, deferredCall{kind: callRemoveHop, participantID: participantID})
}

// AddMulticastReceiver 注册本地组播接收者，并转发给父路由器
func (c *ChildRouter) AddMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 提供者可能只在父路由器一侧
	if err := c.Router.addMulticastReceiver(multicastID, subscriberID, providerID, false); err != nil {
		return err
	}
	return c.forward(ctx, deferredCall{
		kind:         callAddMulticast,
		multicastID:  multicastID,
		subscriberID: subscriberID,
		providerID:   providerID,
	})
}

// RemoveMulticastReceiver 移除本地组播接收者，并转发给父路由器
func (c *ChildRouter) RemoveMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Router.removeMulticastReceiver(multicastID, subscriberID, providerID, false); err != nil {
		return err
	}
	return c.forward(ctx, deferredCall{
		kind:         callRemoveMulticast,
		multicastID:  multicastID,
		subscriberID: subscriberID,
		providerID:   providerID,
	})
}

// ResolveNextHop 先查本地路由表，再询问父路由器
func (c *ChildRouter) ResolveNextHop(ctx context.Context, participantID string) (bool, error) {
	if c.table.ContainsKey(participantID) {
		return true, nil
	}
	a := c.attached.Load()
	if a == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ParentResolveTimeout)
	defer cancel()
	return a.parent.ResolveNextHop(ctx, participantID)
}

// Shutdown 关闭子路由器
func (c *ChildRouter) Shutdown(ctx context.Context) error {
	_ = c.attachedEmitter.Close()
	return c.Router.Shutdown(ctx)
}

// ============================================================================
//                              父路由解析
// ============================================================================

// parentResolver 本地路由表未命中时向父路由器查询
type parentResolver struct {
	c *ChildRouter
}

// ResolveNextHop 父路由器确认可达时缓存并返回父路由器地址
func (p parentResolver) ResolveNextHop(ctx context.Context, participantID string) (types.Address, error) {
	c := p.c
	a := c.attached.Load()
	if a == nil {
		return nil, fmt.Errorf("%w: %s (no parent router)", ErrNoRoute, participantID)
	}
	parentAddress := a.parentAddress

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ParentResolveTimeout)
	defer cancel()
	ok, err := a.parent.ResolveNextHop(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s at parent: %w", participantID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (unknown to parent)", ErrNoRoute, participantID)
	}

	var expiry time.Time
	if ttl := c.cfg.ParentRouteCacheTTL; ttl > 0 {
		expiry = c.clock.Now().Add(ttl)
	}
	c.table.PutEntry(routingtable.Entry{
		ParticipantID: participantID,
		Address:       parentAddress,
		ExpiryDate:    expiry,
	})
	log.Debug("缓存父路由器路由", "participantID", participantID, "parent", parentAddress.String())
	return parentAddress, nil
}
