package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-msgrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-msgrouter/pkg/interfaces"
)

var log = logger.Logger("eventbus")

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrClosed 事件总线或发射器已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("event type must be passed as a pointer")
	// ErrWrongEventType 发射的事件与发射器类型不符
	ErrWrongEventType = errors.New("emitted event does not match emitter type")
)

// defaultBufSize 订阅默认缓冲区大小
const defaultBufSize = 16

// ============================================================================
//                              Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu     sync.RWMutex
	nodes  map[reflect.Type]*node
	closed bool

	dropped atomic.Int64
}

// node 一种事件类型的订阅者集合
type node struct {
	mu        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription
	nEmitters int
	keepLast  bool
	last      any
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{nodes: make(map[reflect.Type]*node)}
}

var _ pkgif.EventBus = (*Bus)(nil)

func elemType(eventType any) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType any, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := pkgif.SubscriptionSettings{Buffer: defaultBufSize}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Buffer < 0 {
		return nil, fmt.Errorf("invalid buffer size %d", settings.Buffer)
	}

	sub := &Subscription{bus: b, typ: typ, out: make(chan any, settings.Buffer)}
	err = b.withNode(typ, func(n *node) {
		n.sinks = append(n.sinks, sub)
		if n.keepLast && n.last != nil {
			select {
			case sub.out <- n.last:
			default:
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType any, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	var target *node
	err = b.withNode(typ, func(n *node) {
		target = n
		n.nEmitters++
		if settings.Stateful {
			n.keepLast = true
		}
	})
	if err != nil {
		return nil, err
	}
	return &Emitter{bus: b, node: target}, nil
}

// Dropped 返回丢弃的事件总数
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close 关闭总线，关闭全部订阅通道
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	nodes := b.nodes
	b.nodes = make(map[reflect.Type]*node)
	b.mu.Unlock()

	for _, n := range nodes {
		n.mu.Lock()
		sinks := n.sinks
		n.sinks = nil
		n.mu.Unlock()
		for _, s := range sinks {
			s.closeChan()
		}
	}
	return nil
}

// ============================================================================
//                              内部方法
// ============================================================================

// withNode 在节点锁内执行 cb，节点不存在时创建
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}
	n.mu.Lock()
	b.mu.Unlock()

	cb(n)
	n.mu.Unlock()
	return nil
}

// release 节点没有订阅者与发射器时删除
func (b *Bus) release(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}
	n.mu.Lock()
	idle := len(n.sinks) == 0 && n.nEmitters == 0
	n.mu.Unlock()
	if idle {
		delete(b.nodes, typ)
	}
}

func (b *Bus) removeSub(sub *Subscription) bool {
	b.mu.RLock()
	n, ok := b.nodes[sub.typ]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	n.mu.Lock()
	found := false
	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			found = true
			break
		}
	}
	n.mu.Unlock()

	if found {
		b.release(sub.typ)
	}
	return found
}

// emit 非阻塞地发送到所有订阅者，缓冲区满的订阅者丢弃该事件
func (n *node) emit(b *Bus, event any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.keepLast {
		n.last = event
	}

	for _, sub := range n.sinks {
		select {
		case sub.out <- event:
		default:
			dropped := b.dropped.Add(1)
			// 每丢弃 100 个事件警告一次
			if dropped%100 == 1 {
				log.Warn("慢消费者检测",
					"dropped", dropped,
					"type", n.typ.String(),
					"reason", "subscriber buffer full")
			}
		}
	}
}
