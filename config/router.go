package config

import (
	"time"

	"go.uber.org/multierr"
)

// RouterConfig 路由器配置
//
// 配置消息投递：
//   - worker 并行数
//   - 重试退避与次数
//   - 关闭等待时间
type RouterConfig struct {
	// MaxParallelSends 并行发送的 worker 数量，小于 2 时按 2 处理
	MaxParallelSends int `json:"max_parallel_sends"`

	// BaseRetryInterval 退避基准间隔
	// 第 n 次重试等待 [base*2^(n-1), base*2^n)
	BaseRetryInterval Duration `json:"base_retry_interval"`

	// MaxRetryDelay 单次重试延迟上限
	MaxRetryDelay Duration `json:"max_retry_delay"`

	// MaxRetryCount 最大重试次数，-1 表示只受消息 TTL 约束
	MaxRetryCount int `json:"max_retry_count"`

	// ShutdownTimeout 关闭时等待 worker 退出的时间
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// DefaultRouterConfig 返回默认路由器配置
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxParallelSends:  20,
		BaseRetryInterval: Duration(3 * time.Second),
		MaxRetryDelay:     Duration(60 * time.Second),
		MaxRetryCount:     -1,
		ShutdownTimeout:   Duration(1500 * time.Millisecond),
	}
}

// Validate 验证路由器配置
func (c RouterConfig) Validate() error {
	var errs error
	if c.BaseRetryInterval <= 0 {
		errs = multierr.Append(errs, invalid("base_retry_interval must be positive"))
	}
	if c.MaxRetryDelay < c.BaseRetryInterval {
		errs = multierr.Append(errs, invalid("max_retry_delay %s below base_retry_interval %s", c.MaxRetryDelay, c.BaseRetryInterval))
	}
	if c.MaxRetryCount < -1 {
		errs = multierr.Append(errs, invalid("max_retry_count must be >= -1"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, invalid("shutdown_timeout must be positive"))
	}
	return errs
}

// WithMaxParallelSends 设置并行发送数
func (c RouterConfig) WithMaxParallelSends(n int) RouterConfig {
	c.MaxParallelSends = n
	return c
}

// WithRetry 设置退避参数
func (c RouterConfig) WithRetry(base, maxDelay time.Duration) RouterConfig {
	c.BaseRetryInterval = Duration(base)
	c.MaxRetryDelay = Duration(maxDelay)
	return c
}
