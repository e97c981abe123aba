// Package eventbus 实现进程内事件总线
//
// 事件按具体 Go 类型分发，发射不阻塞：订阅者缓冲区满时事件被丢弃并计数。
// 路由器用它发布 EvtMessageProcessed 与 EvtParentAttached。
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(interfaces.EvtMessageProcessed), interfaces.BufSize(64))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(interfaces.EvtMessageProcessed)
//	        _ = e.Err
//	    }
//	}()
//
//	em, _ := bus.Emitter(new(interfaces.EvtMessageProcessed))
//	_ = em.Emit(interfaces.EvtMessageProcessed{MessageID: id})
package eventbus
