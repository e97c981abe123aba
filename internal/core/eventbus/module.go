package eventbus

import (
	"context"

	pkgif "github.com/dep2p/go-msgrouter/pkg/interfaces"
	"go.uber.org/fx"
)

// ============================================================================
//                              Fx 模块
// ============================================================================

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	EventBus pkgif.EventBus
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供 EventBus 实例
func ProvideEventBus() Result {
	return Result{EventBus: NewBus()}
}

type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	EventBus pkgif.EventBus
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if dropped := input.EventBus.Dropped(); dropped > 0 {
				log.Info("事件总线关闭", "dropped", dropped)
			}
			return input.EventBus.Close()
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
	Name = "eventbus"
	// Description 模块描述
	Description = "事件总线模块，提供按类型分发的事件发布/订阅"
)
