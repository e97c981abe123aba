package types

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
//                              MessageType - 消息类型
// ============================================================================

// MessageType 消息类型
type MessageType string

const (
	MessageTypeRequest                      MessageType = "request"
	MessageTypeReply                        MessageType = "reply"
	MessageTypeOneWay                       MessageType = "oneWay"
	MessageTypeSubscriptionRequest          MessageType = "subscriptionRequest"
	MessageTypeBroadcastSubscriptionRequest MessageType = "broadcastSubscriptionRequest"
	MessageTypeMulticastSubscriptionRequest MessageType = "multicastSubscriptionRequest"
	MessageTypeSubscriptionReply            MessageType = "subscriptionReply"
	MessageTypeSubscriptionStop             MessageType = "subscriptionStop"
	MessageTypePublication                  MessageType = "publication"
	MessageTypeMulticast                    MessageType = "multicast"
)

// IsRequest 是否为请求类消息（期待回复）
func (t MessageType) IsRequest() bool {
	switch t {
	case MessageTypeRequest, MessageTypeSubscriptionRequest,
		MessageTypeBroadcastSubscriptionRequest, MessageTypeMulticastSubscriptionRequest:
		return true
	}
	return false
}

// IsReply 是否为回复类消息
func (t MessageType) IsReply() bool {
	return t == MessageTypeReply || t == MessageTypeSubscriptionReply
}

// IsMulticast 是否为组播消息
func (t MessageType) IsMulticast() bool {
	return t == MessageTypeMulticast
}

// ============================================================================
//                              ImmutableMessage - 不可变消息
// ============================================================================

// ImmutableMessage 已序列化的不可变消息
//
// 构造后除内部的处理标记外不再变化，可在多个 worker 间安全共享。
// 组播消息的接收方是组播 ID。
type ImmutableMessage struct {
	id                 string
	sender             string
	recipient          string
	typ                MessageType
	expiryDate         time.Time
	ttlAbsolute        bool
	receivedFromGlobal bool
	replyTo            string
	payload            []byte
	headers            map[string]string
}

// ID 返回消息 ID
func (m *ImmutableMessage) ID() string { return m.id }

// Sender 返回发送方参与者 ID
func (m *ImmutableMessage) Sender() string { return m.sender }

// Recipient 返回接收方参与者 ID（组播消息为组播 ID）
func (m *ImmutableMessage) Recipient() string { return m.recipient }

// Type 返回消息类型
func (m *ImmutableMessage) Type() MessageType { return m.typ }

// ExpiryDate 返回过期时间
func (m *ImmutableMessage) ExpiryDate() time.Time { return m.expiryDate }

// IsTTLAbsolute 过期时间是否为绝对时间
func (m *ImmutableMessage) IsTTLAbsolute() bool { return m.ttlAbsolute }

// IsReceivedFromGlobal 是否来自全局传输
func (m *ImmutableMessage) IsReceivedFromGlobal() bool { return m.receivedFromGlobal }

// ReplyTo 返回回复地址（序列化后的地址描述）
func (m *ImmutableMessage) ReplyTo() string { return m.replyTo }

// Payload 返回负载的副本
func (m *ImmutableMessage) Payload() []byte {
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out
}

// PayloadLen 返回负载长度
func (m *ImmutableMessage) PayloadLen() int { return len(m.payload) }

// Header 返回自定义头
func (m *ImmutableMessage) Header(key string) (string, bool) {
	v, ok := m.headers[key]
	return v, ok
}

// Headers 返回自定义头的副本
func (m *ImmutableMessage) Headers() map[string]string {
	return maps.Clone(m.headers)
}

// IsExpired 判断消息在 now 时刻是否已过期，到达过期时间即视为过期
//
// 相对 TTL 不受支持，按已过期处理。
func (m *ImmutableMessage) IsExpired(now time.Time) bool {
	if !m.ttlAbsolute {
		return true
	}
	return !now.Before(m.expiryDate)
}

// TrackingInfo 返回用于日志的消息摘要
func (m *ImmutableMessage) TrackingInfo() string {
	return fmt.Sprintf("messageID=%s sender=%s recipient=%s type=%s expiry=%s",
		m.id, m.sender, m.recipient, m.typ, m.expiryDate.Format(time.RFC3339Nano))
}

// String 实现 fmt.Stringer
func (m *ImmutableMessage) String() string {
	return m.TrackingInfo()
}

// ============================================================================
//                              MessageBuilder - 构建器
// ============================================================================

// MessageBuilder ImmutableMessage 构建器
type MessageBuilder struct {
	msg ImmutableMessage
}

// NewMessageBuilder 创建构建器
//
// 默认类型为 oneWay，未设置过期时间时 Build 失败。
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msg: ImmutableMessage{typ: MessageTypeOneWay}}
}

// WithID 设置消息 ID，未设置时自动生成
func (b *MessageBuilder) WithID(id string) *MessageBuilder {
	b.msg.id = id
	return b
}

// From 设置发送方
func (b *MessageBuilder) From(sender string) *MessageBuilder {
	b.msg.sender = sender
	return b
}

// To 设置接收方
func (b *MessageBuilder) To(recipient string) *MessageBuilder {
	b.msg.recipient = recipient
	return b
}

// OfType 设置消息类型
func (b *MessageBuilder) OfType(t MessageType) *MessageBuilder {
	b.msg.typ = t
	return b
}

// ExpiresAt 设置绝对过期时间
func (b *MessageBuilder) ExpiresAt(t time.Time) *MessageBuilder {
	b.msg.expiryDate = t
	b.msg.ttlAbsolute = true
	return b
}

// ExpiresIn 设置相对 TTL
//
// 路由器不接受相对 TTL，仅用于表示来自旧客户端的消息。
func (b *MessageBuilder) ExpiresIn(d time.Duration) *MessageBuilder {
	b.msg.expiryDate = time.Unix(0, 0).Add(d)
	b.msg.ttlAbsolute = false
	return b
}

// ReceivedFromGlobal 标记消息来自全局传输
func (b *MessageBuilder) ReceivedFromGlobal(v bool) *MessageBuilder {
	b.msg.receivedFromGlobal = v
	return b
}

// WithReplyTo 设置回复地址
func (b *MessageBuilder) WithReplyTo(replyTo string) *MessageBuilder {
	b.msg.replyTo = replyTo
	return b
}

// WithPayload 设置负载（会被复制）
func (b *MessageBuilder) WithPayload(p []byte) *MessageBuilder {
	b.msg.payload = append([]byte(nil), p...)
	return b
}

// WithHeader 设置自定义头
func (b *MessageBuilder) WithHeader(key, value string) *MessageBuilder {
	if b.msg.headers == nil {
		b.msg.headers = make(map[string]string)
	}
	b.msg.headers[key] = value
	return b
}

// Build 构建消息
func (b *MessageBuilder) Build() (*ImmutableMessage, error) {
	if b.msg.sender == "" {
		return nil, ErrEmptySender
	}
	if b.msg.recipient == "" {
		return nil, ErrEmptyRecipient
	}
	if b.msg.expiryDate.IsZero() {
		return nil, ErrMissingExpiry
	}

	m := &ImmutableMessage{
		id:                 b.msg.id,
		sender:             b.msg.sender,
		recipient:          b.msg.recipient,
		typ:                b.msg.typ,
		expiryDate:         b.msg.expiryDate,
		ttlAbsolute:        b.msg.ttlAbsolute,
		receivedFromGlobal: b.msg.receivedFromGlobal,
		replyTo:            b.msg.replyTo,
		payload:            b.msg.payload,
		headers:            maps.Clone(b.msg.headers),
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	return m, nil
}
