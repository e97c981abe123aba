// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的路由器诊断信息，用于调试和监控。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// # 端点
//
//	GET /debug/introspect         - 完整诊断报告 (JSON)
//	GET /debug/introspect/router  - 路由器状态（worker、队列、父子连接）
//	GET /debug/introspect/routes  - 路由表
//	GET /debug/introspect/traffic - 消息统计
//	GET /debug/introspect/runtime - Go 运行时信息
//	GET /metrics                  - Prometheus 指标（启用指标时）
//	GET /debug/pprof/*            - Go pprof 端点
//	GET /health                   - 健康检查
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:   "127.0.0.1:6060",
//	    Router: r,
//	})
//	server.Start(ctx)
//	defer server.Stop()
//
//	// 访问 http://127.0.0.1:6060/debug/introspect
//
// 通过 config.Diagnostics.EnableIntrospect 配置启用。
package introspect
