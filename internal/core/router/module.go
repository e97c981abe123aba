package router

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-msgrouter/config"
	"github.com/dep2p/go-msgrouter/internal/core/metrics"
	"github.com/dep2p/go-msgrouter/internal/core/stubfactory"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// StubFactoryRegistration 注册到路由器的传输 stub 工厂
//
// 以 group:"stub_factories" 提供：
//
//	fx.Supply(fx.Annotate(reg, fx.ResultTags(`group:"stub_factories"`)))
type StubFactoryRegistration struct {
	Kind    types.AddressKind
	Factory interfaces.StubFactory
}

// ============================================================================
//                              模块输入依赖
// ============================================================================

// configInput 统一配置输入
type configInput struct {
	fx.In

	Unified *config.Config `optional:"true"`
}

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config     Config
	Skeletons  interfaces.SkeletonFactory            `optional:"true"`
	Calculator interfaces.MulticastAddressCalculator `optional:"true"`
	EventBus   interfaces.EventBus                   `optional:"true"`
	Metrics    *metrics.Metrics                      `optional:"true"`
	Clock      clock.Clock                           `optional:"true"`

	// Incoming 非空时以子路由器模式运行
	Incoming types.Address `name:"incoming_address" optional:"true"`

	StubFactories []StubFactoryRegistration `group:"stub_factories"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Router        *Router
	MessageRouter interfaces.MessageRouter

	// Child 根路由器模式下为 nil
	Child *ChildRouter
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("router",
		fx.Provide(
			ConfigFromUnified,
			ProvideRouter,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigFromUnified 从统一配置创建路由器配置
func ConfigFromUnified(in configInput) Config {
	cfg := DefaultConfig()
	u := in.Unified
	if u == nil {
		return cfg
	}

	cfg.MaxParallelSends = u.Router.MaxParallelSends
	cfg.BaseRetryInterval = u.Router.BaseRetryInterval.Duration()
	cfg.MaxRetryDelay = u.Router.MaxRetryDelay.Duration()
	cfg.MaxRetryCount = u.Router.MaxRetryCount
	cfg.ShutdownTimeout = u.Router.ShutdownTimeout.Duration()
	cfg.RoutingTableGracePeriod = u.RoutingTable.GracePeriod.Duration()
	cfg.CleanupInterval = u.RoutingTable.CleanupInterval.Duration()
	if u.StubCache.Size > 0 {
		cfg.StubCacheSize = u.StubCache.Size
	}
	cfg.ParentResolveTimeout = u.Hierarchy.ParentResolveTimeout.Duration()
	cfg.ParentRouteCacheTTL = u.Hierarchy.ParentRouteCacheTTL.Duration()
	return cfg
}

// ProvideRouter 创建路由器，Incoming 非空时创建子路由器
func ProvideRouter(input ModuleInput) (ModuleOutput, error) {
	stubs, err := stubfactory.New(input.Skeletons, input.Config.StubCacheSize)
	if err != nil {
		return ModuleOutput{}, err
	}
	for _, reg := range input.StubFactories {
		stubs.Register(reg.Kind, reg.Factory)
	}

	deps := Deps{
		Stubs:      stubs,
		Skeletons:  input.Skeletons,
		Calculator: input.Calculator,
		EventBus:   input.EventBus,
		Metrics:    input.Metrics,
		Clock:      input.Clock,
	}

	if input.Incoming != nil {
		child, err := NewChild(input.Config, deps, input.Incoming)
		if err != nil {
			return ModuleOutput{}, err
		}
		return ModuleOutput{Router: child.Router, MessageRouter: child, Child: child}, nil
	}

	r, err := New(input.Config, deps)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Router: r, MessageRouter: r}, nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC            fx.Lifecycle
	Router        *Router
	MessageRouter interfaces.MessageRouter
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Router.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return input.MessageRouter.Shutdown(ctx)
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "router"
	// Description 模块描述
	Description = "消息路由模块，提供延迟队列、worker 池、重试与层级路由"
)
