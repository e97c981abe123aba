// Package router 实现消息路由器
//
// 路由器接收本地发出（RouteOut）或从传输收到（RouteIn）的消息，放入按投递时间
// 排序的延迟队列，由 worker 池取出后解析接收方地址并通过 stub 发送。
//
// # 失败处理
//
// stub 通过回调报告结果，每次尝试只接受第一个回调：
//   - 包装 ErrMessageNotSent 的错误是永久失败
//   - *DelayError 按指定延迟重试
//   - 其他错误按指数退避重试，直到消息过期或超过 MaxRetryCount
//
// 组播消息扇出到多个地址时，失败只重试对应地址。每条消息最终在事件总线上
// 产生一个 interfaces.EvtMessageProcessed。
//
// # 层级路由
//
// ChildRouter 在连接父路由器前记录注册操作，SetParentRouter 时按顺序重放；
// 本地无路由时向父路由器查询并缓存结果。
//
// # 使用示例
//
//	r, err := router.New(router.DefaultConfig(), router.Deps{Skeletons: skeletons})
//	if err != nil {
//	    return err
//	}
//	_ = r.Start(ctx)
//	defer r.Shutdown(context.Background())
//
//	_ = r.AddNextHop(ctx, "provider", addr, false)
//	_ = r.RouteOut(msg)
package router
