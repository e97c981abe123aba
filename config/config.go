// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//   - 支持预设配置（minimal/server/testing）
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Router.MaxParallelSends = 8
//
//	// 应用预设到现有配置
//	config.ApplyPreset(cfg, "server")
//
//	// 从 JSON 文件加载
//	cfg, err := config.LoadFile("msgrouter.json")
package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("config: invalid config")

// Config 是消息路由器的完整配置结构
//
// 配置按照功能模块组织：
//   - Router: 队列、worker 与重试
//   - RoutingTable: 路由表过期清理
//   - StubCache: stub 缓存
//   - Hierarchy: 父子路由器
//   - Metrics: 指标
//   - Diagnostics: 自省服务
type Config struct {
	// Router 路由器配置
	Router RouterConfig `json:"router"`

	// RoutingTable 路由表配置
	RoutingTable RoutingTableConfig `json:"routing_table"`

	// StubCache stub 缓存配置
	StubCache StubCacheConfig `json:"stub_cache"`

	// Hierarchy 层级路由配置
	Hierarchy HierarchyConfig `json:"hierarchy"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Diagnostics 诊断配置
	Diagnostics DiagnosticsConfig `json:"diagnostics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Router:       DefaultRouterConfig(),
		RoutingTable: DefaultRoutingTableConfig(),
		StubCache:    DefaultStubCacheConfig(),
		Hierarchy:    DefaultHierarchyConfig(),
		Metrics:      DefaultMetricsConfig(),
		Diagnostics:  DefaultDiagnosticsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置，返回聚合后的全部错误。
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	return multierr.Combine(
		prefixed("router", c.Router.Validate()),
		prefixed("routing_table", c.RoutingTable.Validate()),
		prefixed("stub_cache", c.StubCache.Validate()),
		prefixed("hierarchy", c.Hierarchy.Validate()),
		prefixed("diagnostics", c.Diagnostics.Validate()),
	)
}

func prefixed(section string, err error) error {
	if err == nil {
		return nil
	}
	errs := multierr.Errors(err)
	out := make([]error, 0, len(errs))
	for _, e := range errs {
		out = append(out, fmt.Errorf("%s: %w", section, e))
	}
	return multierr.Combine(out...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
