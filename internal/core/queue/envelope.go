package queue

import (
	"sync"
	"time"

	"github.com/dep2p/go-msgrouter/pkg/types"
)

// Envelope 待投递的消息及其重试状态
//
// 失败时由路由器更新 RetryCount 与 NextDeliveryTime 后重新放回队列，
// 重试调度完全体现为这两个字段，不为单条消息创建定时器。
type Envelope struct {
	// Message 消息
	Message *types.ImmutableMessage

	// RetryCount 已重试次数
	RetryCount int

	// RetryDelay 上一次退避等待的时间
	RetryDelay time.Duration

	// NextDeliveryTime 最早投递时间
	NextDeliveryTime time.Time

	// Direction 消息方向
	Direction types.Direction

	// Target 非空时只投递到该地址（组播部分失败后的单地址重试）
	Target types.Address

	// Group 同一次路由的所有投递分支共享的完成状态
	Group *Group

	seq   uint64
	index int
}

// NewEnvelope 创建立即可投递的信封
func NewEnvelope(msg *types.ImmutableMessage, dir types.Direction, now time.Time) *Envelope {
	return &Envelope{
		Message:          msg,
		NextDeliveryTime: now,
		Direction:        dir,
		Group:            NewGroup(),
	}
}

// Pinned 派生只投递到 target 的信封，重试状态沿用当前值
func (e *Envelope) Pinned(target types.Address) *Envelope {
	return &Envelope{
		Message:          e.Message,
		RetryCount:       e.RetryCount,
		RetryDelay:       e.RetryDelay,
		NextDeliveryTime: e.NextDeliveryTime,
		Direction:        e.Direction,
		Target:           target,
		Group:            e.Group,
	}
}

// Group 一次路由的投递分支
//
// 新建时只有一个分支；扇出到多个地址时用 Fork 增加分支。
// 每个分支结束（成功或最终失败）时调用 Done，恰好一次调用返回 true。
type Group struct {
	mu       sync.Mutex
	pending  int
	finished bool
	err      error
}

// NewGroup 创建只有一个分支的组
func NewGroup() *Group {
	return &Group{pending: 1}
}

// Fork 把一个分支拆成 n 个
func (g *Group) Fork(n int) {
	if n <= 1 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending += n - 1
}

// Done 结束一个分支，返回是否为最后一个分支以及首个失败原因
func (g *Group) Done(err error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil && g.err == nil {
		g.err = err
	}
	if g.finished {
		return false, nil
	}
	g.pending--
	if g.pending > 0 {
		return false, nil
	}
	g.finished = true
	return true, g.err
}

// envelopeHeap 按 (NextDeliveryTime, seq) 排序的最小堆
type envelopeHeap []*Envelope

func (h envelopeHeap) Len() int { return len(h) }

func (h envelopeHeap) Less(i, j int) bool {
	if h[i].NextDeliveryTime.Equal(h[j].NextDeliveryTime) {
		return h[i].seq < h[j].seq
	}
	return h[i].NextDeliveryTime.Before(h[j].NextDeliveryTime)
}

func (h envelopeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *envelopeHeap) Push(x any) {
	e := x.(*Envelope)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
