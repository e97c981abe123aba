package router

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-msgrouter/internal/core/metrics"
	"github.com/dep2p/go-msgrouter/internal/core/queue"
	"github.com/dep2p/go-msgrouter/internal/core/stubfactory"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// transmitOutcome 一次发送尝试的结果
type transmitOutcome struct {
	env  *queue.Envelope
	addr types.Address
	err  error
}

// worker 循环取出到期信封并处理，直到队列关闭
func (r *Router) worker(id int) {
	defer r.wg.Done()

	r.workers.Add(1)
	r.metrics.AddWorkers(1)
	defer func() {
		r.workers.Add(-1)
		r.metrics.AddWorkers(-1)
	}()

	for {
		env, err := r.queue.Take(r.ctx)
		if err != nil {
			log.Debug("worker 退出", "worker", id, "err", err)
			return
		}
		r.metrics.SetQueueLength(r.queue.Len())
		r.process(env)
	}
}

// process 处理一个信封，单条消息的失败不会终止 worker
func (r *Router) process(env *queue.Envelope) {
	fanned := false
	defer func() {
		if p := recover(); p != nil {
			log.Error("处理消息时发生 panic", "msg", env.Message.TrackingInfo(), "panic", p)
			if fanned {
				// 各分支自行结束
				return
			}
			r.reschedule(env, fmt.Errorf("panic while routing: %v", p), 0)
		}
	}()

	msg := env.Message
	if msg.IsExpired(r.clock.Now()) {
		log.Debug("消息出队时已过期", "msg", msg.TrackingInfo())
		r.metrics.Dropped(metrics.DropExpired)
		r.branchDone(env, ErrMessageExpired)
		return
	}

	if env.Target != nil {
		r.transmit(env, env.Target)
		return
	}

	addrs, err := r.addresses.Addresses(r.ctx, msg, env.Direction)
	if err != nil {
		if errors.Is(err, ErrNoRoute) {
			log.Debug("消息没有路由", "msg", msg.TrackingInfo(), "err", err)
			r.metrics.Dropped(metrics.DropNoRoute)
			r.branchDone(env, &RouteError{MessageID: msg.ID(), ParticipantID: msg.Recipient(), Cause: err})
			return
		}
		r.reschedule(env, err, 0)
		return
	}

	if len(addrs) == 1 {
		r.transmit(env, addrs[0])
		return
	}

	// 多地址扇出：每个地址一个分支，失败时只重试该地址
	env.Group.Fork(len(addrs))
	fanned = true
	for _, addr := range addrs {
		r.transmit(env.Pinned(addr), addr)
	}
}

// transmit 通过 stub 发送到一个地址
func (r *Router) transmit(env *queue.Envelope, addr types.Address) {
	stub, err := r.stubs.Create(addr)
	if err != nil {
		if errors.Is(err, stubfactory.ErrNoStubFactory) {
			err = fmt.Errorf("%w: %w", ErrMessageNotSent, err)
		}
		r.handleOutcome(transmitOutcome{env: env, addr: addr, err: err})
		return
	}

	var fired atomic.Bool
	settle := func(err error) {
		if !fired.CompareAndSwap(false, true) {
			log.Debug("忽略重复的发送回调", "msg", env.Message.TrackingInfo())
			return
		}
		r.handleOutcome(transmitOutcome{env: env, addr: addr, err: err})
	}

	r.metrics.TransmitAttempt()
	func() {
		defer func() {
			if p := recover(); p != nil {
				settle(fmt.Errorf("stub panic: %v", p))
			}
		}()
		stub.Transmit(env.Message,
			func() { settle(nil) },
			func(err error) {
				if err == nil {
					err = errors.New("transmit failed")
				}
				settle(err)
			})
	}()
}

// handleOutcome 根据发送结果结束分支或安排重试
func (r *Router) handleOutcome(o transmitOutcome) {
	if o.err == nil {
		log.Debug("消息已发送", "msg", o.env.Message.TrackingInfo(), "address", o.addr.String())
		r.branchDone(o.env, nil)
		return
	}

	r.metrics.TransmitFailure()
	var delayErr *DelayError
	switch {
	case errors.Is(o.err, ErrMessageNotSent):
		log.Warn("消息发送永久失败",
			"msg", o.env.Message.TrackingInfo(),
			"address", o.addr.String(),
			"err", o.err)
		r.metrics.Dropped(metrics.DropPermanent)
		r.branchDone(o.env, o.err)
	case errors.Is(o.err, interfaces.ErrTransportShutdown):
		r.metrics.Dropped(metrics.DropShutdown)
		r.branchDone(o.env, o.err)
	case errors.As(o.err, &delayErr):
		r.reschedule(o.env, o.err, delayErr.Delay)
	default:
		r.reschedule(o.env, o.err, 0)
	}
}

// reschedule 按退避延迟重新入队，delay 为 0 时使用退避策略
func (r *Router) reschedule(env *queue.Envelope, cause error, delay time.Duration) {
	msg := env.Message
	if r.shuttingDown.Load() {
		r.metrics.Dropped(metrics.DropShutdown)
		r.branchDone(env, ErrShuttingDown)
		return
	}
	if r.cfg.MaxRetryCount >= 0 && env.RetryCount >= r.cfg.MaxRetryCount {
		r.metrics.Dropped(metrics.DropMaxRetries)
		r.branchDone(env, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, cause))
		return
	}

	env.RetryCount++
	if delay <= 0 {
		delay = r.backoff.Delay(env.RetryCount, env.RetryDelay)
		env.RetryDelay = delay
	}
	next := r.clock.Now().Add(delay)
	if next.After(msg.ExpiryDate()) {
		log.Debug("重试时间晚于消息过期时间，丢弃",
			"msg", msg.TrackingInfo(),
			"retry", env.RetryCount,
			"err", cause)
		r.metrics.Dropped(metrics.DropExpired)
		r.branchDone(env, fmt.Errorf("%w: %w", ErrMessageExpired, cause))
		return
	}

	env.NextDeliveryTime = next
	if err := r.queue.Put(env); err != nil {
		r.metrics.Dropped(metrics.DropShutdown)
		r.branchDone(env, ErrShuttingDown)
		return
	}
	r.metrics.Retry()
	r.metrics.SetQueueLength(r.queue.Len())

	log.Debug("消息发送失败，稍后重试",
		"msg", msg.TrackingInfo(),
		"retry", env.RetryCount,
		"delay", delay,
		"err", cause)
}

// branchDone 结束信封对应的投递分支，最后一个分支结束时报告消息结果
func (r *Router) branchDone(env *queue.Envelope, err error) {
	if env.Group != nil {
		last, first := env.Group.Done(err)
		if !last {
			return
		}
		err = first
	}
	r.finalize(env.Message, err)
}
