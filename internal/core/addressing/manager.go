// Package addressing 计算消息的目标地址集合
package addressing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dep2p/go-msgrouter/internal/core/multicast"
	"github.com/dep2p/go-msgrouter/internal/core/routingtable"
	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

var log = logger.Logger("addressing")

// ErrNoRoute 找不到任何目标地址
var ErrNoRoute = errors.New("no route to participant")

// NextHopResolver 本地路由表未命中时的后备解析
//
// 子路由器以父路由器实现它。无路由时返回 ErrNoRoute。
type NextHopResolver interface {
	ResolveNextHop(ctx context.Context, participantID string) (types.Address, error)
}

// Manager 地址管理器
type Manager struct {
	table      *routingtable.Table
	registry   *multicast.Registry
	calculator interfaces.MulticastAddressCalculator

	resolver atomic.Pointer[resolverHolder]
}

type resolverHolder struct {
	r NextHopResolver
}

// NewManager 创建地址管理器，calculator 可为 nil
func NewManager(table *routingtable.Table, registry *multicast.Registry, calculator interfaces.MulticastAddressCalculator) *Manager {
	return &Manager{
		table:      table,
		registry:   registry,
		calculator: calculator,
	}
}

// SetResolver 安装后备解析器，nil 表示移除
func (m *Manager) SetResolver(r NextHopResolver) {
	if r == nil {
		m.resolver.Store(nil)
		return
	}
	m.resolver.Store(&resolverHolder{r: r})
}

// Addresses 返回消息的目标地址，按 Key 去重
//
// 单播消息查路由表，未命中时使用后备解析器。组播消息取所有匹配注册中
// 提供者等于发送方的订阅者地址；非全局来源的组播还会加上 calculator 给出的地址。
// 从全局传输入站的消息不会再发回全局传输。
func (m *Manager) Addresses(ctx context.Context, msg *types.ImmutableMessage, dir types.Direction) ([]types.Address, error) {
	bounce := dir == types.Inbound && msg.IsReceivedFromGlobal()

	if msg.Type().IsMulticast() {
		return m.multicastAddresses(msg, bounce)
	}

	addr, ok := m.table.Get(msg.Recipient())
	if !ok {
		h := m.resolver.Load()
		if h == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoRoute, msg.Recipient())
		}
		var err error
		if addr, err = h.r.ResolveNextHop(ctx, msg.Recipient()); err != nil {
			return nil, err
		}
	}
	if bounce && types.IsGlobalTransport(addr.Kind()) {
		return nil, fmt.Errorf("%w: %s is only reachable through a global transport", ErrNoRoute, msg.Recipient())
	}
	return []types.Address{addr}, nil
}

func (m *Manager) multicastAddresses(msg *types.ImmutableMessage, bounce bool) ([]types.Address, error) {
	seen := make(map[string]struct{})
	var out []types.Address
	add := func(addr types.Address) {
		if addr == nil {
			return
		}
		if bounce && types.IsGlobalTransport(addr.Kind()) {
			return
		}
		if _, dup := seen[addr.Key()]; dup {
			return
		}
		seen[addr.Key()] = struct{}{}
		out = append(out, addr)
	}

	for _, reg := range m.registry.Receivers(msg.Recipient()) {
		if reg.ProviderID != msg.Sender() {
			continue
		}
		addr, ok := m.table.Get(reg.SubscriberID)
		if !ok {
			log.Debug("组播订阅者没有下一跳",
				"multicastID", msg.Recipient(),
				"subscriberID", reg.SubscriberID)
			continue
		}
		add(addr)
	}

	if !msg.IsReceivedFromGlobal() && m.calculator != nil {
		for _, addr := range m.calculator.Calculate(msg) {
			add(addr)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: multicast %s", ErrNoRoute, msg.Recipient())
	}
	return out, nil
}
