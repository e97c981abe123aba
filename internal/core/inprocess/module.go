package inprocess

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-msgrouter/pkg/interfaces"
)

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Registry 进程内 skeleton 注册表
	Registry *SkeletonRegistry

	// SkeletonFactory 供 stub 工厂查询本地 skeleton
	SkeletonFactory interfaces.SkeletonFactory
}

// ProvideServices 提供模块服务
func ProvideServices() ModuleOutput {
	reg := NewSkeletonRegistry()
	return ModuleOutput{
		Registry:        reg,
		SkeletonFactory: reg,
	}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("inprocess",
		fx.Provide(ProvideServices),
	)
}

// ============================================================================
//                              模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "inprocess"
	// Description 模块描述
	Description = "进程内传输模块，提供本地 skeleton 注册与直连 stub"
)
