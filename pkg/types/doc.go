// Package types 定义 msgrouter 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
//
// # 文件组织
//
//   - address.go  - AddressKind 与各传输地址（封闭的标签联合）
//   - message.go  - ImmutableMessage、MessageType、MessageBuilder
//   - direction.go - 消息方向（入站/出站）
//   - errors.go   - 公共错误定义
//
// # 地址
//
// 路由器对地址内容不做解释，只根据 Kind 分发：
//
//	switch addr.Kind() {
//	case types.KindInProcess:
//	    // 进程内投递
//	}
//
// 比较与缓存统一使用 Key()。
package types
