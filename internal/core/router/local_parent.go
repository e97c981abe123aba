package router

import (
	"context"

	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// LocalParent 把同一进程中的路由器适配为子路由器的父路由器代理
//
// 调用前检查 ctx，行为与远程代理在调用被取消时一致。
type LocalParent struct {
	target interfaces.ParentRouter
}

var _ interfaces.ParentRouter = (*LocalParent)(nil)

// NewLocalParent 创建本地父路由器代理，target 通常是 *Router 或 *ChildRouter
func NewLocalParent(target interfaces.ParentRouter) *LocalParent {
	return &LocalParent{target: target}
}

// AddNextHop 在父路由器上注册下一跳
func (p *LocalParent) AddNextHop(ctx context.Context, participantID string, addr types.Address, isGloballyVisible bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debug("父路由器注册下一跳", "participantID", participantID, "address", addr.String())
	return p.target.AddNextHop(ctx, participantID, addr, isGloballyVisible)
}

// RemoveNextHop 从父路由器移除下一跳
func (p *LocalParent) RemoveNextHop(ctx context.Context, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.target.RemoveNextHop(ctx, participantID)
}

// ResolveNextHop 询问父路由器参与者是否可达
func (p *LocalParent) ResolveNextHop(ctx context.Context, participantID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.target.ResolveNextHop(ctx, participantID)
}

// AddMulticastReceiver 在父路由器上注册组播接收者
func (p *LocalParent) AddMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.target.AddMulticastReceiver(ctx, multicastID, subscriberID, providerID)
}

// RemoveMulticastReceiver 从父路由器移除组播接收者
func (p *LocalParent) RemoveMulticastReceiver(ctx context.Context, multicastID, subscriberID, providerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.target.RemoveMulticastReceiver(ctx, multicastID, subscriberID, providerID)
}
