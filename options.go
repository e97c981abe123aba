package msgrouter

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dep2p/go-msgrouter/config"
	"github.com/dep2p/go-msgrouter/internal/core/router"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 统一配置，选项在其上覆盖
	config *config.Config

	// 子路由器入口地址，非空时以子路由器模式运行
	incoming types.Address

	// 传输 stub 工厂
	stubFactories []router.StubFactoryRegistration

	// 组播额外地址计算
	calculator MulticastAddressCalculator

	// 指标注册表，为 nil 时使用私有注册表
	registerer prometheus.Registerer

	// 时间源
	clock clock.Clock

	// Fx 事件日志，为 nil 时不输出
	fxLogger *zap.Logger

	// 用户扩展 Fx 选项
	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{
		config: config.NewConfig(),
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置
//
// 配置会被复制，之后的选项在副本上覆盖。应放在其他配置类选项之前。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 应用预设配置（minimal、server、testing）
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithMaxParallelSends 设置并发发送数（worker 数量，至少为 2）
func WithMaxParallelSends(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("max parallel sends must be >= 0, got %d", n)
		}
		o.config.Router.MaxParallelSends = n
		return nil
	}
}

// WithRetry 设置重试基础间隔与最大延迟
func WithRetry(base, maxDelay time.Duration) Option {
	return func(o *options) error {
		if base <= 0 {
			return fmt.Errorf("retry interval must be positive, got %s", base)
		}
		o.config.Router.BaseRetryInterval = config.Duration(base)
		o.config.Router.MaxRetryDelay = config.Duration(maxDelay)
		return nil
	}
}

// WithMetrics 启用或关闭指标收集
func WithMetrics(enable bool) Option {
	return func(o *options) error {
		o.config.Metrics.Enabled = enable
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输与层级
// ════════════════════════════════════════════════════════════════════════════

// WithStubFactory 为一类地址注册传输 stub 工厂
//
// 进程内参与者不需要工厂；其他地址类型没有工厂时，发往它们的消息永久失败。
func WithStubFactory(kind AddressKind, factory StubFactory) Option {
	return func(o *options) error {
		if factory == nil {
			return fmt.Errorf("stub factory for %s is nil", kind)
		}
		o.stubFactories = append(o.stubFactories, router.StubFactoryRegistration{
			Kind:    kind,
			Factory: factory,
		})
		return nil
	}
}

// WithIncomingAddress 以子路由器模式运行
//
// addr 是父路由器到达本节点所用的地址，连接父路由器时注册到父路由器。
func WithIncomingAddress(addr Address) Option {
	return func(o *options) error {
		if addr == nil {
			return errors.New("incoming address is nil")
		}
		if !types.IsParentHopKind(addr.Kind()) {
			return fmt.Errorf("%w: %s", ErrUnsupportedAddressType, addr.Kind())
		}
		o.incoming = addr
		return nil
	}
}

// WithMulticastAddressCalculator 设置组播额外地址计算
func WithMulticastAddressCalculator(calc MulticastAddressCalculator) Option {
	return func(o *options) error {
		o.calculator = calc
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              观测与扩展
// ════════════════════════════════════════════════════════════════════════════

// WithIntrospect 在 addr 上启用本地诊断 HTTP 服务，addr 为空时使用默认地址
func WithIntrospect(addr string) Option {
	return func(o *options) error {
		o.config.Diagnostics.EnableIntrospect = true
		if addr != "" {
			o.config.Diagnostics.IntrospectAddr = addr
		}
		return nil
	}
}

// WithMetricsRegisterer 把指标注册到 reg
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithClock 设置时间源，主要用于测试
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithFxLogging 把 Fx 容器事件输出到 logger
func WithFxLogging(logger *zap.Logger) Option {
	return func(o *options) error {
		o.fxLogger = logger
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
