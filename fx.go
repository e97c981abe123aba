package msgrouter

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-msgrouter/internal/core/eventbus"
	"github.com/dep2p/go-msgrouter/internal/core/inprocess"
	"github.com/dep2p/go-msgrouter/internal/core/metrics"
	"github.com/dep2p/go-msgrouter/internal/core/router"
	"github.com/dep2p/go-msgrouter/internal/debug/introspect"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. EventBus → InProcess → Metrics
//  2. Router（根或子路由器，取决于是否设置入口地址）
//  3. Introspect（diagnostics.enable_introspect 开启时）
//  4. 用户扩展与 Node 组件注入
//
// 生命周期按相反顺序停止：路由器先于事件总线关闭，关闭期间的处理事件仍能发出。
func buildFxApp(o *options, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础组件
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(o.config),
		fx.Supply(&metrics.Config{Enabled: o.config.Metrics.Enabled}),

		eventbus.Module(),
		inprocess.Module(),
		metrics.Module(),
	}

	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}
	if o.clock != nil {
		c := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return c }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 路由器与诊断服务
	// ════════════════════════════════════════════════════════════════════════
	for _, reg := range o.stubFactories {
		modules = append(modules, fx.Provide(
			fx.Annotate(
				func() router.StubFactoryRegistration { return reg },
				fx.ResultTags(`group:"stub_factories"`),
			),
		))
	}
	if o.calculator != nil {
		calc := o.calculator
		modules = append(modules, fx.Provide(func() interfaces.MulticastAddressCalculator { return calc }))
	}
	if o.incoming != nil {
		incoming := o.incoming
		modules = append(modules, fx.Provide(
			fx.Annotate(
				func() types.Address { return incoming },
				fx.ResultTags(`name:"incoming_address"`),
			),
		))
	}
	modules = append(modules,
		router.Module(),
		introspect.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. Node 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectNodeComponents(node)))

	// ════════════════════════════════════════════════════════════════════════
	// 6. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	fxLogger := o.fxLogger
	if fxLogger == nil {
		fxLogger = zap.NewNop()
	}
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: fxLogger}
	}))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Router        *router.Router
	MessageRouter interfaces.MessageRouter
	Child         *router.ChildRouter
	Skeletons     *inprocess.SkeletonRegistry
	EventBus      interfaces.EventBus
	Metrics       *metrics.Metrics   `optional:"true"`
	Introspect    *introspect.Server `optional:"true"`
}

// injectNodeComponents 把 Fx 构建的组件注入 Node
func injectNodeComponents(node *Node) func(nodeInjectParams) {
	return func(p nodeInjectParams) {
		node.router = p.Router
		node.messageRouter = p.MessageRouter
		node.child = p.Child
		node.skeletons = p.Skeletons
		node.bus = p.EventBus
		node.metrics = p.Metrics
		node.introspect = p.Introspect
	}
}
