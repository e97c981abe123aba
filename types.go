package msgrouter

import (
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              消息
// ════════════════════════════════════════════════════════════════════════════

// Message 不可变消息
type Message = types.ImmutableMessage

// MessageType 消息类型
type MessageType = types.MessageType

// 消息类型常量
const (
	MessageTypeRequest                      = types.MessageTypeRequest
	MessageTypeReply                        = types.MessageTypeReply
	MessageTypeOneWay                       = types.MessageTypeOneWay
	MessageTypeSubscriptionRequest          = types.MessageTypeSubscriptionRequest
	MessageTypeBroadcastSubscriptionRequest = types.MessageTypeBroadcastSubscriptionRequest
	MessageTypeMulticastSubscriptionRequest = types.MessageTypeMulticastSubscriptionRequest
	MessageTypeSubscriptionReply            = types.MessageTypeSubscriptionReply
	MessageTypeSubscriptionStop             = types.MessageTypeSubscriptionStop
	MessageTypePublication                  = types.MessageTypePublication
	MessageTypeMulticast                    = types.MessageTypeMulticast
)

// NewMessageBuilder 创建消息构建器
func NewMessageBuilder() *types.MessageBuilder {
	return types.NewMessageBuilder()
}

// ════════════════════════════════════════════════════════════════════════════
//                              地址与传输
// ════════════════════════════════════════════════════════════════════════════

// Address 传输地址
type Address = types.Address

// AddressKind 地址类型
type AddressKind = types.AddressKind

// Dispatcher 本地参与者的消息分发器
type Dispatcher = interfaces.Dispatcher

// DispatcherFunc 函数形式的 Dispatcher
type DispatcherFunc = interfaces.DispatcherFunc

// StubFactory 为某一类地址创建 stub
type StubFactory = interfaces.StubFactory

// ParentRouter 父路由器代理
type ParentRouter = interfaces.ParentRouter

// MulticastAddressCalculator 组播额外地址计算
type MulticastAddressCalculator = interfaces.MulticastAddressCalculator

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// EvtMessageProcessed 消息处理完成事件
type EvtMessageProcessed = interfaces.EvtMessageProcessed

// EvtParentAttached 子路由器已连接父路由器
type EvtParentAttached = interfaces.EvtParentAttached

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// NodeState 节点状态
type NodeState int

const (
	// StateIdle 已创建，未启动
	StateIdle NodeState = iota

	// StateRunning 运行中
	StateRunning

	// StateStopping 关闭中
	StateStopping

	// StateStopped 已关闭，不能重新启动
	StateStopped
)

// String 返回状态的字符串表示
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats 节点统计快照
type Stats struct {
	RoutedIn         int64   // 入站消息数
	RoutedOut        int64   // 出站消息数
	PayloadRateIn    float64 // 入站负载速率（字节/秒）
	PayloadRateOut   float64 // 出站负载速率（字节/秒）
	TransmitAttempts int64
	TransmitFailures int64
	Retries          int64
	QueueLength      int
	Workers          int
	RoutingTableSize int
}
