// Package loopback 实现进程内的路由器间传输
//
// 地址绑定到另一个路由器的 RouteIn，发送即入队到目标路由器。
// 用于同一进程中的父子路由器，以及集成测试。
//
//	lb := loopback.NewTransport()
//	lb.Bind(&types.WebSocketClientAddress{ID: "child"}, child)
//	root.StubFactory().Register(types.KindWebSocketClient, lb)
package loopback
