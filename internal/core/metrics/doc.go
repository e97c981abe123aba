// Package metrics 提供路由器指标
//
// Prometheus 指标（前缀 msgrouter_）:
//   - messages_routed_total{direction}
//   - transmit_attempts_total / transmit_failures_total / retries_total
//   - messages_dropped_total{reason}
//   - queue_length / workers
//
// 另外用 RateMeter 维护最近 60 秒的负载速率，供 Snapshot 与日志使用：
//
//	m, _ := metrics.New(prometheus.DefaultRegisterer, nil)
//	m.MessageRouted(types.Outbound, len(payload))
//	stats := m.Snapshot()
package metrics
