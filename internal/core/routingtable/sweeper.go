package routingtable

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ============================================================================
//                              Sweeper - 周期清理
// ============================================================================

// Sweeper 周期性调用 Table.Purge
type Sweeper struct {
	table    *Table
	interval time.Duration
	clock    clock.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper 创建清理器，interval <= 0 时 Start 不做任何事
func NewSweeper(table *Table, interval time.Duration) *Sweeper {
	return &Sweeper{
		table:    table,
		interval: interval,
		clock:    table.clock,
	}
}

// Start 启动清理协程，重复调用无效
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ticker := s.clock.Ticker(s.interval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.table.Purge()
			}
		}
	}()
	log.Debug("路由表清理器已启动", "interval", s.interval)
}

// Stop 停止清理协程并等待其退出
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
