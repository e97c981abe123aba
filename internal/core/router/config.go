package router

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-msgrouter/internal/core/stubfactory"
)

// minWorkers worker 数量下限
const minWorkers = 2

// Config 路由器配置
type Config struct {
	// MaxParallelSends 并行发送的 worker 数量
	//
	// 小于 2 时按 2 处理
	MaxParallelSends int

	// BaseRetryInterval 重试退避基准间隔
	// 默认值: 3 秒
	BaseRetryInterval time.Duration

	// MaxRetryDelay 单次重试延迟上限
	// 默认值: 60 秒
	MaxRetryDelay time.Duration

	// MaxRetryCount 最大重试次数，-1 表示不限（只受 TTL 约束）
	MaxRetryCount int

	// ShutdownTimeout 关闭时等待 worker 退出的时间
	// 默认值: 1.5 秒
	ShutdownTimeout time.Duration

	// RoutingTableGracePeriod 过期路由条目的保留时间
	RoutingTableGracePeriod time.Duration

	// CleanupInterval 路由表清理间隔，0 表示不启动清理
	CleanupInterval time.Duration

	// StubCacheSize stub 缓存容量
	StubCacheSize int

	// ParentResolveTimeout 向父路由器查询路由的超时
	ParentResolveTimeout time.Duration

	// ParentRouteCacheTTL 父路由查询结果的缓存时间，0 表示路由器生命周期
	ParentRouteCacheTTL time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxParallelSends:        20,
		BaseRetryInterval:       3 * time.Second,
		MaxRetryDelay:           60 * time.Second,
		MaxRetryCount:           -1,
		ShutdownTimeout:         1500 * time.Millisecond,
		RoutingTableGracePeriod: 60 * time.Second,
		CleanupInterval:         60 * time.Second,
		StubCacheSize:           stubfactory.DefaultCacheSize,
		ParentResolveTimeout:    5 * time.Second,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	var errs error
	if c.BaseRetryInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: base retry interval must be positive", ErrInvalidConfig))
	}
	if c.MaxRetryDelay < c.BaseRetryInterval {
		errs = multierr.Append(errs, fmt.Errorf("%w: max retry delay below base retry interval", ErrInvalidConfig))
	}
	if c.MaxRetryCount < -1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: max retry count must be >= -1", ErrInvalidConfig))
	}
	if c.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig))
	}
	if c.RoutingTableGracePeriod < 0 || c.CleanupInterval < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: routing table intervals must not be negative", ErrInvalidConfig))
	}
	if c.StubCacheSize < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: stub cache size must not be negative", ErrInvalidConfig))
	}
	if c.ParentResolveTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: parent resolve timeout must be positive", ErrInvalidConfig))
	}
	if c.ParentRouteCacheTTL < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: parent route cache ttl must not be negative", ErrInvalidConfig))
	}
	return errs
}

// Workers 返回实际启动的 worker 数量
func (c Config) Workers() int {
	return max(c.MaxParallelSends, minWorkers)
}

// WithMaxParallelSends 设置并行发送数
func (c Config) WithMaxParallelSends(n int) Config {
	c.MaxParallelSends = n
	return c
}

// WithRetry 设置退避参数
func (c Config) WithRetry(base, maxDelay time.Duration) Config {
	c.BaseRetryInterval = base
	c.MaxRetryDelay = maxDelay
	return c
}

// WithShutdownTimeout 设置关闭超时
func (c Config) WithShutdownTimeout(d time.Duration) Config {
	c.ShutdownTimeout = d
	return c
}
