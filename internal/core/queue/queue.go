// Package queue 实现按投递时间排序的阻塞延迟队列
//
// Take 阻塞到最早的信封到期，同一时间的信封按入队顺序出队。
// 队列是路由器唯一的背压点：重试中的信封只受消息 TTL 约束，
// TTL 在出队时才检查。
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-msgrouter/internal/util/logger"
)

var log = logger.Logger("queue")

var (
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("message queue closed")

	// ErrNilEnvelope 信封为空
	ErrNilEnvelope = errors.New("envelope is nil")
)

// DelayQueue 延迟队列
type DelayQueue struct {
	clock clock.Clock

	mu      sync.Mutex
	items   envelopeHeap
	seq     uint64
	closed  bool
	changed chan struct{}
}

// New 创建延迟队列，c 为 nil 时使用系统时钟
func New(c clock.Clock) *DelayQueue {
	if c == nil {
		c = clock.New()
	}
	return &DelayQueue{
		clock:   c,
		changed: make(chan struct{}),
	}
}

// broadcast 唤醒所有等待者，调用方持有 mu
func (q *DelayQueue) broadcast() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Put 入队
func (q *DelayQueue) Put(env *Envelope) error {
	if env == nil {
		return ErrNilEnvelope
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.seq++
	env.seq = q.seq
	heap.Push(&q.items, env)
	q.broadcast()
	return nil
}

// Take 阻塞直到有信封到期、ctx 结束或队列关闭
func (q *DelayQueue) Take(ctx context.Context) (*Envelope, error) {
	return q.take(ctx, nil)
}

// Poll 最多等待 timeout，超时返回 (nil, false)
func (q *DelayQueue) Poll(timeout time.Duration) (*Envelope, bool) {
	t := q.clock.Timer(timeout)
	defer t.Stop()

	env, err := q.take(context.Background(), t.C)
	if err != nil {
		return nil, false
	}
	return env, true
}

var errPollTimeout = errors.New("poll timeout")

func (q *DelayQueue) take(ctx context.Context, deadline <-chan time.Time) (*Envelope, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}

		var wait time.Duration
		if len(q.items) > 0 {
			head := q.items[0]
			wait = head.NextDeliveryTime.Sub(q.clock.Now())
			if wait <= 0 {
				env := heap.Pop(&q.items).(*Envelope)
				if len(q.items) == 0 {
					q.broadcast()
				}
				q.mu.Unlock()
				return env, nil
			}
		}
		changed := q.changed
		empty := len(q.items) == 0
		q.mu.Unlock()

		var timer *clock.Timer
		var ready <-chan time.Time
		if !empty {
			timer = q.clock.Timer(wait)
			ready = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil, ctx.Err()
		case <-deadline:
			stopTimer(timer)
			return nil, errPollTimeout
		case <-changed:
		case <-ready:
		}
		stopTimer(timer)
	}
}

func stopTimer(t *clock.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Len 返回队列长度
func (q *DelayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close 关闭队列，唤醒所有等待者，返回未投递的信封
func (q *DelayQueue) Close() []*Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	pending := []*Envelope(q.items)
	q.items = nil
	q.broadcast()

	if len(pending) > 0 {
		log.Info("队列关闭，剩余信封未投递", "pending", len(pending))
	}
	return pending
}

// WaitForDrain 等待队列变空
func (q *DelayQueue) WaitForDrain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
