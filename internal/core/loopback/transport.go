package loopback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

var log = logger.Logger("loopback")

// ErrNotBound 地址没有绑定接收方
var ErrNotBound = errors.New("loopback: address not bound")

// Receiver 接收转发消息的路由器
type Receiver interface {
	RouteIn(msg *types.ImmutableMessage) error
}

// Transport 进程内路由器间传输，实现 interfaces.StubFactory
type Transport struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
}

var _ interfaces.StubFactory = (*Transport)(nil)

// NewTransport 创建传输
func NewTransport() *Transport {
	return &Transport{receivers: make(map[string]Receiver)}
}

// Bind 把地址绑定到接收方，重复绑定覆盖旧值
func (t *Transport) Bind(addr types.Address, r Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receivers[addr.Key()] = r
	log.Debug("绑定地址", "address", addr.String())
}

// Unbind 解除绑定
func (t *Transport) Unbind(addr types.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.receivers, addr.Key())
}

func (t *Transport) receiver(key string) (Receiver, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.receivers[key]
	return r, ok
}

// Create 为地址创建 stub，接收方在发送时才查找，之后绑定的地址同样可用
func (t *Transport) Create(addr types.Address) (interfaces.MessagingStub, error) {
	if addr == nil {
		return nil, fmt.Errorf("%w: nil address", ErrNotBound)
	}
	return &stub{transport: t, addr: addr}, nil
}

// stub 把消息交给目标路由器的 RouteIn
type stub struct {
	transport *Transport
	addr      types.Address
}

func (s *stub) Transmit(msg *types.ImmutableMessage, onSuccess interfaces.SuccessFunc, onFailure interfaces.FailureFunc) {
	r, ok := s.transport.receiver(s.addr.Key())
	if !ok {
		onFailure(fmt.Errorf("%w: %s", ErrNotBound, s.addr))
		return
	}
	if err := r.RouteIn(msg); err != nil {
		onFailure(classify(err))
		return
	}
	onSuccess()
}

// classify 目标路由器拒收的消息不会因重试而成功
func classify(err error) error {
	if errors.Is(err, interfaces.ErrTransportShutdown) {
		return err
	}
	return fmt.Errorf("%w: %w", interfaces.ErrMessageNotSent, err)
}
