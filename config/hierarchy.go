package config

import (
	"time"

	"go.uber.org/multierr"
)

// HierarchyConfig 层级路由配置
//
// 只对子路由器生效。
type HierarchyConfig struct {
	// ParentResolveTimeout 向父路由器查询路由的超时
	ParentResolveTimeout Duration `json:"parent_resolve_timeout"`

	// ParentRouteCacheTTL 父路由查询结果在本地路由表中的有效期
	// 0 表示在路由器生命周期内一直有效
	ParentRouteCacheTTL Duration `json:"parent_route_cache_ttl,omitempty"`
}

// DefaultHierarchyConfig 返回默认层级路由配置
func DefaultHierarchyConfig() HierarchyConfig {
	return HierarchyConfig{
		ParentResolveTimeout: Duration(5 * time.Second),
	}
}

// Validate 验证层级路由配置
func (c HierarchyConfig) Validate() error {
	var errs error
	if c.ParentResolveTimeout <= 0 {
		errs = multierr.Append(errs, invalid("parent_resolve_timeout must be positive"))
	}
	if c.ParentRouteCacheTTL < 0 {
		errs = multierr.Append(errs, invalid("parent_route_cache_ttl must not be negative"))
	}
	return errs
}
