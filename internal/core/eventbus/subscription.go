package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// ============================================================================
//                              Subscription 实现
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan any
	closeOnce sync.Once
}

// Out 返回事件通道
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Close 取消订阅并关闭通道，可重复调用
func (s *Subscription) Close() error {
	// 先从节点移除，保证关闭通道时没有并发发送
	s.bus.removeSub(s)
	s.closeChan()
	return nil
}

func (s *Subscription) closeChan() {
	s.closeOnce.Do(func() { close(s.out) })
}

// ============================================================================
//                              Emitter 实现
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	node      *node
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件
func (e *Emitter) Emit(event any) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if reflect.TypeOf(event) != e.node.typ {
		return ErrWrongEventType
	}
	e.node.emit(e.bus, event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.node.mu.Lock()
		e.node.nEmitters--
		e.node.mu.Unlock()
		e.bus.release(e.node.typ)
	})
	return nil
}
