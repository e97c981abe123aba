package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
//                              AddressKind - 地址类型
// ============================================================================

// AddressKind 传输地址类型
//
// 地址类型是封闭集合：新增传输类型需要同时更新本文件中的所有 switch。
type AddressKind uint8

const (
	// KindUnknown 未知类型（零值，不是合法地址）
	KindUnknown AddressKind = iota
	// KindInProcess 进程内地址
	KindInProcess
	// KindWebSocket WebSocket 服务端地址
	KindWebSocket
	// KindWebSocketClient WebSocket 客户端地址
	KindWebSocketClient
	// KindMqtt MQTT 代理地址
	KindMqtt
	// KindChannel HTTP 长轮询通道地址
	KindChannel
	// KindBrowser 浏览器窗口地址
	KindBrowser
	// KindBinder Android Binder 地址
	KindBinder
	// KindUds Unix 域套接字服务端地址
	KindUds
	// KindUdsClient Unix 域套接字客户端地址
	KindUdsClient
)

// String 返回类型名称
func (k AddressKind) String() string {
	switch k {
	case KindInProcess:
		return "inprocess"
	case KindWebSocket:
		return "websocket"
	case KindWebSocketClient:
		return "websocket-client"
	case KindMqtt:
		return "mqtt"
	case KindChannel:
		return "channel"
	case KindBrowser:
		return "browser"
	case KindBinder:
		return "binder"
	case KindUds:
		return "uds"
	case KindUdsClient:
		return "uds-client"
	default:
		return "unknown"
	}
}

// AllAddressKinds 返回所有合法的地址类型
func AllAddressKinds() []AddressKind {
	return []AddressKind{
		KindInProcess,
		KindWebSocket,
		KindWebSocketClient,
		KindMqtt,
		KindChannel,
		KindBrowser,
		KindBinder,
		KindUds,
		KindUdsClient,
	}
}

// IsParentHopKind 判断该类型的地址能否作为子路由器的入站地址注册到父路由器
//
// 父路由器只能通过面向连接的本地传输回连子路由器；
// 进程内地址在父进程中没有意义，MQTT 与长轮询通道属于全局传输。
func IsParentHopKind(k AddressKind) bool {
	switch k {
	case KindWebSocket, KindWebSocketClient, KindBinder, KindBrowser,
		KindUds, KindUdsClient:
		return true
	case KindInProcess, KindMqtt, KindChannel:
		return false
	case KindUnknown:
		return false
	}
	return false
}

// IsGlobalTransport 判断该类型是否属于全局（后端）传输
func IsGlobalTransport(k AddressKind) bool {
	switch k {
	case KindMqtt, KindChannel:
		return true
	case KindInProcess, KindWebSocket, KindWebSocketClient, KindBrowser,
		KindBinder, KindUds, KindUdsClient, KindUnknown:
		return false
	}
	return false
}

// ============================================================================
//                              Address - 传输地址
// ============================================================================

// Address 传输地址
//
// Address 是封闭的标签联合：只有本包定义的地址结构体实现了该接口。
// 路由器只关心 Kind() 用于分发，Key() 用于缓存与比较。
type Address interface {
	// Kind 返回地址类型
	Kind() AddressKind

	// Key 返回规范化的地址键
	Key() string

	// String 返回可读表示
	String() string

	address()
}

// AddressEqual 判断两个地址是否相同
func AddressEqual(a, b Address) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

func joinKey(k AddressKind, parts ...string) string {
	return k.String() + ":" + strings.Join(parts, "|")
}

// InProcessAddress 进程内地址
type InProcessAddress struct {
	// SkeletonID 进程内 skeleton 标识
	SkeletonID string `json:"skeleton_id"`
}

func (a *InProcessAddress) Kind() AddressKind { return KindInProcess }
func (a *InProcessAddress) Key() string       { return joinKey(KindInProcess, a.SkeletonID) }
func (a *InProcessAddress) String() string    { return "inprocess://" + a.SkeletonID }
func (a *InProcessAddress) address()          {}

// WebSocketAddress WebSocket 服务端地址
type WebSocketAddress struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Path     string `json:"path"`
}

func (a *WebSocketAddress) Kind() AddressKind { return KindWebSocket }
func (a *WebSocketAddress) Key() string {
	return joinKey(KindWebSocket, a.Protocol, a.Host, strconv.Itoa(a.Port), a.Path)
}
func (a *WebSocketAddress) String() string {
	proto := a.Protocol
	if proto == "" {
		proto = "ws"
	}
	return fmt.Sprintf("%s://%s:%d%s", proto, a.Host, a.Port, a.Path)
}
func (a *WebSocketAddress) address() {}

// WebSocketClientAddress WebSocket 客户端地址
type WebSocketClientAddress struct {
	ID string `json:"id"`
}

func (a *WebSocketClientAddress) Kind() AddressKind { return KindWebSocketClient }
func (a *WebSocketClientAddress) Key() string       { return joinKey(KindWebSocketClient, a.ID) }
func (a *WebSocketClientAddress) String() string    { return "ws-client://" + a.ID }
func (a *WebSocketClientAddress) address()          {}

// MqttAddress MQTT 地址
//
// BrokerURI 对应全局后端标识（GBID），Topic 为接收主题。
type MqttAddress struct {
	BrokerURI string `json:"broker_uri"`
	Topic     string `json:"topic"`
}

func (a *MqttAddress) Kind() AddressKind { return KindMqtt }
func (a *MqttAddress) Key() string       { return joinKey(KindMqtt, a.BrokerURI, a.Topic) }
func (a *MqttAddress) String() string    { return a.BrokerURI + "/" + a.Topic }
func (a *MqttAddress) address()          {}

// ChannelAddress HTTP 长轮询通道地址
type ChannelAddress struct {
	EndpointURL string `json:"endpoint_url"`
	ChannelID   string `json:"channel_id"`
}

func (a *ChannelAddress) Kind() AddressKind { return KindChannel }
func (a *ChannelAddress) Key() string       { return joinKey(KindChannel, a.EndpointURL, a.ChannelID) }
func (a *ChannelAddress) String() string    { return a.EndpointURL + "#" + a.ChannelID }
func (a *ChannelAddress) address()          {}

// BrowserAddress 浏览器窗口地址
type BrowserAddress struct {
	WindowID string `json:"window_id"`
}

func (a *BrowserAddress) Kind() AddressKind { return KindBrowser }
func (a *BrowserAddress) Key() string       { return joinKey(KindBrowser, a.WindowID) }
func (a *BrowserAddress) String() string    { return "browser://" + a.WindowID }
func (a *BrowserAddress) address()          {}

// BinderAddress Binder 地址
type BinderAddress struct {
	PackageName string `json:"package_name"`
	UserID      int    `json:"user_id"`
}

func (a *BinderAddress) Kind() AddressKind { return KindBinder }
func (a *BinderAddress) Key() string {
	return joinKey(KindBinder, a.PackageName, strconv.Itoa(a.UserID))
}
func (a *BinderAddress) String() string {
	return fmt.Sprintf("binder://%s@%d", a.PackageName, a.UserID)
}
func (a *BinderAddress) address() {}

// UdsAddress Unix 域套接字服务端地址
type UdsAddress struct {
	Path string `json:"path"`
}

func (a *UdsAddress) Kind() AddressKind { return KindUds }
func (a *UdsAddress) Key() string       { return joinKey(KindUds, a.Path) }
func (a *UdsAddress) String() string    { return "unix://" + a.Path }
func (a *UdsAddress) address()          {}

// UdsClientAddress Unix 域套接字客户端地址
type UdsClientAddress struct {
	ID string `json:"id"`
}

func (a *UdsClientAddress) Kind() AddressKind { return KindUdsClient }
func (a *UdsClientAddress) Key() string       { return joinKey(KindUdsClient, a.ID) }
func (a *UdsClientAddress) String() string    { return "unix-client://" + a.ID }
func (a *UdsClientAddress) address()          {}

// 确保实现接口
var (
	_ Address = (*InProcessAddress)(nil)
	_ Address = (*WebSocketAddress)(nil)
	_ Address = (*WebSocketClientAddress)(nil)
	_ Address = (*MqttAddress)(nil)
	_ Address = (*ChannelAddress)(nil)
	_ Address = (*BrowserAddress)(nil)
	_ Address = (*BinderAddress)(nil)
	_ Address = (*UdsAddress)(nil)
	_ Address = (*UdsClientAddress)(nil)
)
