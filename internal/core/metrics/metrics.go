package metrics

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-msgrouter/pkg/types"
)

const namespace = "msgrouter"

// 丢弃原因
const (
	DropExpired     = "expired"
	DropNoRoute     = "no_route"
	DropPermanent   = "permanent"
	DropMaxRetries  = "max_retries"
	DropShutdown    = "shutdown"
	DropRelativeTTL = "relative_ttl"
)

// Stats 路由统计快照
type Stats struct {
	RoutedIn         int64   // 入站消息数
	RoutedOut        int64   // 出站消息数
	PayloadRateIn    float64 // 入站负载速率（字节/秒）
	PayloadRateOut   float64 // 出站负载速率（字节/秒）
	TransmitAttempts int64
	TransmitFailures int64
	Retries          int64
}

// Metrics 路由器指标
//
// nil *Metrics 的所有方法都是空操作，关闭指标时直接传 nil。
type Metrics struct {
	routed   *prometheus.CounterVec
	attempts prometheus.Counter
	failures prometheus.Counter
	retries  prometheus.Counter
	dropped  *prometheus.CounterVec
	queueLen prometheus.Gauge
	workers  prometheus.Gauge

	payloadIn  *RateMeter
	payloadOut *RateMeter
	routedIn   *RateMeter
	routedOut  *RateMeter
	attemptsN  *RateMeter
	failuresN  *RateMeter
	retriesN   *RateMeter

	gatherer prometheus.Gatherer
}

// New 创建指标并注册到 reg，reg 为 nil 时使用私有注册表
func New(reg prometheus.Registerer, c clock.Clock) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer, _ := reg.(prometheus.Gatherer)

	m := &Metrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Messages accepted for routing, by direction.",
		}, []string{"direction"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmit_attempts_total",
			Help:      "Transmit calls issued to messaging stubs.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmit_failures_total",
			Help:      "Transmit attempts that reported failure.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Envelopes rescheduled after a transient failure.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages dropped without delivery, by reason.",
		}, []string{"reason"}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Envelopes waiting in the delay queue.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Running worker loops.",
		}),
		payloadIn:  NewRateMeter(c),
		payloadOut: NewRateMeter(c),
		routedIn:   NewRateMeter(c),
		routedOut:  NewRateMeter(c),
		attemptsN:  NewRateMeter(c),
		failuresN:  NewRateMeter(c),
		retriesN:   NewRateMeter(c),
		gatherer:   gatherer,
	}

	collectors := []prometheus.Collector{
		m.routed, m.attempts, m.failures, m.retries, m.dropped, m.queueLen, m.workers,
	}
	var errs []error
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return m, nil
}

// MessageRouted 记录一条被接受的消息
func (m *Metrics) MessageRouted(dir types.Direction, payloadBytes int) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(dir.String()).Inc()
	if dir == types.Inbound {
		m.routedIn.Add(1)
		m.payloadIn.Add(int64(payloadBytes))
	} else {
		m.routedOut.Add(1)
		m.payloadOut.Add(int64(payloadBytes))
	}
}

// TransmitAttempt 记录一次 Transmit 调用
func (m *Metrics) TransmitAttempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
	m.attemptsN.Add(1)
}

// TransmitFailure 记录一次失败回调
func (m *Metrics) TransmitFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
	m.failuresN.Add(1)
}

// Retry 记录一次重新调度
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
	m.retriesN.Add(1)
}

// Dropped 记录一条被丢弃的消息
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// SetQueueLength 设置队列长度
func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLen.Set(float64(n))
}

// AddWorkers 调整运行中的 worker 数
func (m *Metrics) AddWorkers(delta int) {
	if m == nil {
		return
	}
	m.workers.Add(float64(delta))
}

// Gatherer 返回可采集本指标的注册表，注册表不支持采集时为 nil
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// Snapshot 返回统计快照
func (m *Metrics) Snapshot() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		RoutedIn:         m.routedIn.Total(),
		RoutedOut:        m.routedOut.Total(),
		PayloadRateIn:    m.payloadIn.Rate(),
		PayloadRateOut:   m.payloadOut.Rate(),
		TransmitAttempts: m.attemptsN.Total(),
		TransmitFailures: m.failuresN.Total(),
		Retries:          m.retriesN.Total(),
	}
}
