package routingtable

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSweeper_PurgesOnInterval 测试清理器按周期清理
func TestSweeper_PurgesOnInterval(t *testing.T) {
	mock := clock.NewMock()
	tbl := New(WithClock(mock))
	tbl.PutEntry(Entry{ParticipantID: "A", Address: wsAddr(1), ExpiryDate: mock.Now().Add(time.Second)})

	sw := NewSweeper(tbl, time.Minute)
	sw.Start(context.Background())
	defer sw.Stop()

	mock.Add(time.Minute)
	require.Eventually(t, func() bool {
		return !tbl.ContainsKey("A")
	}, time.Second, 5*time.Millisecond)
}

// TestSweeper_StopIdempotent 测试重复启动与停止
func TestSweeper_StopIdempotent(t *testing.T) {
	tbl := New()
	sw := NewSweeper(tbl, time.Hour)

	sw.Start(context.Background())
	sw.Start(context.Background())
	sw.Stop()
	sw.Stop()

	// 间隔为 0 时不启动
	disabled := NewSweeper(tbl, 0)
	disabled.Start(context.Background())
	disabled.Stop()
	assert.Equal(t, 0, tbl.Len())
}
