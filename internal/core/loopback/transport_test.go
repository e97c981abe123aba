package loopback

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

type receiverFunc func(msg *types.ImmutableMessage) error

func (f receiverFunc) RouteIn(msg *types.ImmutableMessage) error { return f(msg) }

func transmit(t *testing.T, tr *Transport, addr types.Address) error {
	t.Helper()
	msg, err := types.NewMessageBuilder().From("a").To("b").ExpiresAt(time.Now().Add(time.Minute)).Build()
	require.NoError(t, err)

	st, err := tr.Create(addr)
	require.NoError(t, err)

	var result error
	called := 0
	st.Transmit(msg, func() { called++ }, func(err error) { called++; result = err })
	require.Equal(t, 1, called, "exactly one callback")
	return result
}

// TestTransport_Delivery 测试绑定地址后的投递
func TestTransport_Delivery(t *testing.T) {
	tr := NewTransport()
	addr := &types.WebSocketClientAddress{ID: "child"}

	err := transmit(t, tr, addr)
	assert.ErrorIs(t, err, ErrNotBound)

	var got int
	tr.Bind(addr, receiverFunc(func(*types.ImmutableMessage) error {
		got++
		return nil
	}))
	assert.NoError(t, transmit(t, tr, addr))
	assert.Equal(t, 1, got)

	tr.Unbind(addr)
	assert.ErrorIs(t, transmit(t, tr, addr), ErrNotBound)
}

// TestTransport_Classify 测试接收方错误的分类
func TestTransport_Classify(t *testing.T) {
	tr := NewTransport()
	addr := &types.UdsClientAddress{ID: "c"}

	tr.Bind(addr, receiverFunc(func(*types.ImmutableMessage) error {
		return errors.New("rejected")
	}))
	assert.ErrorIs(t, transmit(t, tr, addr), interfaces.ErrMessageNotSent)

	tr.Bind(addr, receiverFunc(func(*types.ImmutableMessage) error {
		return interfaces.ErrTransportShutdown
	}))
	err := transmit(t, tr, addr)
	assert.ErrorIs(t, err, interfaces.ErrTransportShutdown)
	assert.NotErrorIs(t, err, interfaces.ErrMessageNotSent)
}
