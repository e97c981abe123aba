// Package msgrouter 提供参与者之间的异步消息路由
//
// 路由器把消息放入延迟队列，由固定数量的 worker 取出、按路由表解析接收方地址，
// 再通过与地址类型对应的 stub 发送。暂时失败按指数退避重试，直到成功、
// 永久失败或消息过期；每条消息最终恰好报告一次处理结果。
//
// # 核心概念
//
//   - Node: 路由节点，用户交互的主入口
//   - 参与者: 由字符串 ID 标识的消息端点，本地参与者通过 RegisterParticipant 注册
//   - 下一跳: 参与者 ID 到传输地址的映射，先注册者生效
//   - 组播: provider/broadcast[/partition...] 形式的组播 ID，分区支持 + 与 * 通配
//   - 父子路由: 子路由器把注册转发给父路由器，本地无路由时询问父路由器
//
// # 快速开始
//
//	import "github.com/dep2p/go-msgrouter"
//
//	node, err := msgrouter.New(
//	    msgrouter.WithPreset("server"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := node.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	// 注册本地参与者
//	node.RegisterParticipant(ctx, "backend", msgrouter.DispatcherFunc(handle))
//
//	// 发送消息
//	msg, _ := msgrouter.NewMessageBuilder().
//	    From("app").To("backend").
//	    OfType(msgrouter.MessageTypeRequest).
//	    ExpiresAt(time.Now().Add(time.Minute)).
//	    WithPayload(payload).
//	    Build()
//	node.Route(msg)
//
// # 父子路由
//
//	child, _ := msgrouter.New(msgrouter.WithIncomingAddress(childAddr))
//	child.Start(ctx)
//	child.SetParentRouter(ctx, parentProxy, parentAddr, "child-proxy")
//
// 连接父路由器之前的注册会被记录，连接时按顺序重放。
//
// # 文件组织
//
//   - node.go    - Node 与路由 API
//   - options.go - 配置选项
//   - fx.go      - 模块装配
//   - types.go   - 公共类型别名
//   - errors.go  - 公共错误
//   - version.go - 版本信息
package msgrouter
