package inprocess

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

var log = logger.Logger("inprocess")

// ============================================================================
//                              Skeleton
// ============================================================================

// Skeleton 进程内接收端，把消息交给 Dispatcher
type Skeleton struct {
	addr       *types.InProcessAddress
	dispatcher interfaces.Dispatcher
	closed     atomic.Bool

	mu         sync.Mutex
	multicasts map[string]struct{}
}

func newSkeleton(id string, d interfaces.Dispatcher) *Skeleton {
	return &Skeleton{
		addr:       &types.InProcessAddress{SkeletonID: id},
		dispatcher: d,
		multicasts: make(map[string]struct{}),
	}
}

// Address 返回 skeleton 地址
func (s *Skeleton) Address() *types.InProcessAddress {
	return s.addr
}

// Transmit 同步交给 Dispatcher，Dispatcher panic 视为投递失败
func (s *Skeleton) Transmit(msg *types.ImmutableMessage, onSuccess interfaces.SuccessFunc, onFailure interfaces.FailureFunc) {
	if s.closed.Load() {
		onFailure(ErrSkeletonClosed)
		return
	}

	if err := s.dispatch(msg); err != nil {
		log.Warn("进程内投递失败", "skeleton", s.addr.SkeletonID, "messageID", msg.ID(), "err", err)
		onFailure(err)
		return
	}
	onSuccess()
}

func (s *Skeleton) dispatch(msg *types.ImmutableMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	s.dispatcher.MessageArrived(msg)
	return nil
}

// RegisterMulticastSubscription 实现 interfaces.MulticastSubscriber
func (s *Skeleton) RegisterMulticastSubscription(multicastID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multicasts[multicastID] = struct{}{}
}

// UnregisterMulticastSubscription 实现 interfaces.MulticastSubscriber
func (s *Skeleton) UnregisterMulticastSubscription(multicastID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.multicasts, multicastID)
}

// MulticastSubscriptions 返回当前订阅的组播 ID（已排序）
func (s *Skeleton) MulticastSubscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.multicasts))
	for id := range s.multicasts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var (
	_ interfaces.MessagingSkeleton   = (*Skeleton)(nil)
	_ interfaces.MulticastSubscriber = (*Skeleton)(nil)
)

// ============================================================================
//                              Stub
// ============================================================================

// Stub 绑定到进程内 Skeleton 的发送器
type Stub struct {
	skeleton interfaces.MessagingSkeleton
}

// NewStub 创建进程内 stub
func NewStub(skeleton interfaces.MessagingSkeleton) *Stub {
	return &Stub{skeleton: skeleton}
}

// Transmit 实现 interfaces.MessagingStub
func (s *Stub) Transmit(msg *types.ImmutableMessage, onSuccess interfaces.SuccessFunc, onFailure interfaces.FailureFunc) {
	s.skeleton.Transmit(msg, onSuccess, onFailure)
}

var _ interfaces.MessagingStub = (*Stub)(nil)
