package interfaces

import (
	"context"

	"github.com/dep2p/go-msgrouter/pkg/types"
)

// MessageRouter 消息路由器
//
// 负责把消息排队、解析接收方地址、通过 stub 投递并在失败时重试。
type MessageRouter interface {
	// RouteIn 路由从远端传输收到的消息
	RouteIn(msg *types.ImmutableMessage) error

	// RouteOut 路由本地发出的消息
	RouteOut(msg *types.ImmutableMessage) error

	// AddNextHop 注册参与者的下一跳地址
	AddNextHop(ctx context.Context, participantID string, addr types.Address, isGloballyVisible bool) error

	// RemoveNextHop 移除参与者的下一跳
	RemoveNextHop(ctx context.Context, participantID string) error

	// ResolveNextHop 判断参与者是否可路由
	ResolveNextHop(ctx context.Context, participantID string) (bool, error)

	// AddMulticastReceiver 注册组播接收者
	AddMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error

	// RemoveMulticastReceiver 移除组播接收者
	RemoveMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error

	// Shutdown 关闭路由器
	Shutdown(ctx context.Context) error
}

// ParentRouter 父路由器代理
//
// 子路由器通过它把注册转发给父路由器，并在本地无路由时询问父路由器。
// 语义与 MessageRouter 的同名方法一致，实现通常是远程调用。
type ParentRouter interface {
	AddNextHop(ctx context.Context, participantID string, addr types.Address, isGloballyVisible bool) error
	RemoveNextHop(ctx context.Context, participantID string) error
	ResolveNextHop(ctx context.Context, participantID string) (bool, error)
	AddMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error
	RemoveMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error
}

// MulticastAddressCalculator 计算组播消息的额外目标地址
//
// 典型实现把本地发布的组播消息映射到全局代理上的主题。
type MulticastAddressCalculator interface {
	Calculate(msg *types.ImmutableMessage) []types.Address
}
