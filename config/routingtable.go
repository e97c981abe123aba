package config

import "time"

// RoutingTableConfig 路由表配置
type RoutingTableConfig struct {
	// GracePeriod 过期条目在清理前的保留时间
	GracePeriod Duration `json:"grace_period"`

	// CleanupInterval 清理间隔，0 表示不清理
	CleanupInterval Duration `json:"cleanup_interval"`
}

// DefaultRoutingTableConfig 返回默认路由表配置
func DefaultRoutingTableConfig() RoutingTableConfig {
	return RoutingTableConfig{
		GracePeriod:     Duration(60 * time.Second),
		CleanupInterval: Duration(60 * time.Second),
	}
}

// Validate 验证路由表配置
func (c RoutingTableConfig) Validate() error {
	if c.GracePeriod < 0 {
		return invalid("grace_period must not be negative")
	}
	if c.CleanupInterval < 0 {
		return invalid("cleanup_interval must not be negative")
	}
	return nil
}
