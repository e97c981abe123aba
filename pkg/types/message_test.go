package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMessageBuilder_Build 测试消息构建
func TestMessageBuilder_Build(t *testing.T) {
	expiry := time.Now().Add(time.Minute)
	payload := []byte("hello")

	msg, err := NewMessageBuilder().
		From("sender").
		To("recipient").
		OfType(MessageTypeRequest).
		ExpiresAt(expiry).
		WithPayload(payload).
		WithHeader("z-trace", "abc").
		Build()
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID())
	assert.Equal(t, "sender", msg.Sender())
	assert.Equal(t, "recipient", msg.Recipient())
	assert.True(t, msg.Type().IsRequest())
	assert.True(t, msg.IsTTLAbsolute())
	assert.Equal(t, expiry, msg.ExpiryDate())

	// 负载被复制
	payload[0] = 'j'
	assert.Equal(t, []byte("hello"), msg.Payload())

	v, ok := msg.Header("z-trace")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

// TestMessageBuilder_Validation 测试构建校验
func TestMessageBuilder_Validation(t *testing.T) {
	_, err := NewMessageBuilder().To("r").ExpiresAt(time.Now()).Build()
	assert.ErrorIs(t, err, ErrEmptySender)

	_, err = NewMessageBuilder().From("s").ExpiresAt(time.Now()).Build()
	assert.ErrorIs(t, err, ErrEmptyRecipient)

	_, err = NewMessageBuilder().From("s").To("r").Build()
	assert.ErrorIs(t, err, ErrMissingExpiry)
}

// TestImmutableMessage_IsExpired 测试过期判断
func TestImmutableMessage_IsExpired(t *testing.T) {
	now := time.Now()

	msg, err := NewMessageBuilder().From("s").To("r").ExpiresAt(now.Add(time.Second)).Build()
	require.NoError(t, err)
	assert.False(t, msg.IsExpired(now))
	assert.True(t, msg.IsExpired(now.Add(2*time.Second)))
	assert.True(t, msg.IsExpired(msg.ExpiryDate()), "expiry instant counts as expired")
	assert.False(t, msg.IsExpired(msg.ExpiryDate().Add(-time.Nanosecond)))

	rel, err := NewMessageBuilder().From("s").To("r").ExpiresIn(time.Hour).Build()
	require.NoError(t, err)
	assert.False(t, rel.IsTTLAbsolute())
	assert.True(t, rel.IsExpired(now), "relative TTL is treated as expired")
}

// TestMessageType_Classification 测试消息类型分类
func TestMessageType_Classification(t *testing.T) {
	assert.True(t, MessageTypeMulticast.IsMulticast())
	assert.False(t, MessageTypePublication.IsMulticast())
	assert.True(t, MessageTypeSubscriptionReply.IsReply())
	assert.False(t, MessageTypeOneWay.IsRequest())
}
