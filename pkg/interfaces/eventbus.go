package interfaces

// EventBus 事件总线
//
// 事件按具体类型分发，订阅与发射时传入类型的 nil 指针：
//
//	sub, _ := bus.Subscribe(new(EvtMessageProcessed))
//	em, _ := bus.Emitter(new(EvtMessageProcessed))
//	em.Emit(EvtMessageProcessed{MessageID: id})
type EventBus interface {
	// Subscribe 订阅指定类型的事件
	Subscribe(eventType any, opts ...SubscriptionOpt) (Subscription, error)

	// Emitter 获取指定事件类型的发射器
	Emitter(eventType any, opts ...EmitterOpt) (Emitter, error)

	// Dropped 返回因订阅者缓冲区满而丢弃的事件总数
	Dropped() int64

	// Close 关闭总线及其全部订阅
	Close() error
}

// Subscription 事件订阅
type Subscription interface {
	// Out 返回接收事件的通道，Close 后通道被关闭
	Out() <-chan any

	// Close 取消订阅
	Close() error
}

// Emitter 事件发射器
type Emitter interface {
	// Emit 发射事件，不阻塞
	Emit(event any) error

	// Close 关闭发射器
	Close() error
}

// SubscriptionOpt 订阅选项
type SubscriptionOpt func(*SubscriptionSettings)

// EmitterOpt 发射器选项
type EmitterOpt func(*EmitterSettings)

// SubscriptionSettings 订阅设置
type SubscriptionSettings struct {
	Buffer int
}

// EmitterSettings 发射器设置
type EmitterSettings struct {
	// Stateful 新订阅者会先收到最后一次发射的事件
	Stateful bool
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}

// Stateful 设置发射器为有状态模式
func Stateful() EmitterOpt {
	return func(s *EmitterSettings) {
		s.Stateful = true
	}
}
