// Package interfaces 定义 msgrouter 的公共接口
//
// # 文件组织
//
//   - router.go    - MessageRouter 与 ParentRouter（父路由器代理）
//   - stub.go      - 传输 stub/skeleton 契约、Dispatcher
//   - events.go    - 路由器发布的事件类型
//   - errors.go    - stub 失败分类错误
//   - eventbus.go  - 事件总线
//
// 具体实现位于 internal/core 下的同名目录。
package interfaces
