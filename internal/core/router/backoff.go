package router

import (
	"math"
	"math/rand/v2"
	"time"
)

// maxBackoffExponent 指数上限，避免溢出
const maxBackoffExponent = 30

// Backoff 指数退避
//
// 第 n 次重试（n >= 1）的延迟落在 [Base*2^(n-1), Base*2^n) 区间。
// 超过 Max 的重试在 [max(Max/2, prev), Max) 内随机取值，prev 为同一消息
// 上一次的延迟，因此连续的重试延迟单调不减，且达到上限后仍带抖动。
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// jitter 返回 [0, 1) 的随机数，为 nil 时使用 math/rand/v2
	jitter func() float64
}

// NewBackoff 创建退避策略
func NewBackoff(base, maxDelay time.Duration) Backoff {
	return Backoff{Base: base, Max: maxDelay}
}

// Delay 返回第 retry 次重试的等待时间，prev 为上一次重试的延迟
func (b Backoff) Delay(retry int, prev time.Duration) time.Duration {
	if retry < 1 {
		retry = 1
	}

	var d float64
	if exp := retry - 1; exp >= maxBackoffExponent {
		d = float64(b.Base) * math.Ldexp(1, maxBackoffExponent+1)
	} else {
		low := float64(b.Base) * math.Ldexp(1, exp)
		d = low + low*b.random()
	}

	if b.Max > 0 && d >= float64(b.Max) {
		return b.capped(prev)
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// capped 在上限附近抖动，不低于 prev
func (b Backoff) capped(prev time.Duration) time.Duration {
	floor := max(b.Max/2, prev)
	if floor >= b.Max {
		return b.Max
	}
	return floor + time.Duration(float64(b.Max-floor)*b.random())
}

func (b Backoff) random() float64 {
	if b.jitter != nil {
		return b.jitter()
	}
	return rand.Float64()
}
