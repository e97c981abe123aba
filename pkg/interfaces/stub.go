package interfaces

import "github.com/dep2p/go-msgrouter/pkg/types"

// SuccessFunc 投递成功回调
type SuccessFunc func()

// FailureFunc 投递失败回调
type FailureFunc func(err error)

// MessagingStub 绑定到单个地址的发送器
//
// Transmit 是异步的：实现不得阻塞调用方等待传输往返，
// 且必须恰好调用一次 onSuccess 或 onFailure。
type MessagingStub interface {
	Transmit(msg *types.ImmutableMessage, onSuccess SuccessFunc, onFailure FailureFunc)
}

// StubFactory 为某一类地址创建 stub
type StubFactory interface {
	Create(addr types.Address) (MessagingStub, error)
}

// StubFactoryFunc 函数形式的 StubFactory
type StubFactoryFunc func(addr types.Address) (MessagingStub, error)

// Create 实现 StubFactory
func (f StubFactoryFunc) Create(addr types.Address) (MessagingStub, error) {
	return f(addr)
}

// MessagingSkeleton 接收端
//
// 进程内 skeleton 可被直接调用，从而绕过 stub 工厂。
type MessagingSkeleton interface {
	Transmit(msg *types.ImmutableMessage, onSuccess SuccessFunc, onFailure FailureFunc)
}

// MulticastSubscriber 支持组播订阅的 skeleton
//
// 路由器在某组播 ID 的第一个接收者注册时调用 Register，
// 最后一个接收者移除时调用 Unregister。
type MulticastSubscriber interface {
	RegisterMulticastSubscription(multicastID string)
	UnregisterMulticastSubscription(multicastID string)
}

// SkeletonFactory 查询地址对应的本地 skeleton
type SkeletonFactory interface {
	// Skeleton 返回地址对应的本地 skeleton，不存在时 ok 为 false
	Skeleton(addr types.Address) (MessagingSkeleton, bool)
}

// Dispatcher 本地应用层分发器
type Dispatcher interface {
	// MessageArrived 消息到达本地参与者
	MessageArrived(msg *types.ImmutableMessage)
}

// DispatcherFunc 函数形式的 Dispatcher
type DispatcherFunc func(msg *types.ImmutableMessage)

// MessageArrived 实现 Dispatcher
func (f DispatcherFunc) MessageArrived(msg *types.ImmutableMessage) {
	f(msg)
}
