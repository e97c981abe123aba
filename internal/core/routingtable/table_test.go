package routingtable

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-msgrouter/pkg/types"
)

func wsAddr(port int) types.Address {
	return &types.WebSocketAddress{Protocol: "ws", Host: "localhost", Port: port, Path: "/"}
}

// TestTable_PutGet 测试注册与查询
func TestTable_PutGet(t *testing.T) {
	tbl := New()

	assert.True(t, tbl.Put("A", wsAddr(1), true))
	addr, ok := tbl.Get("A")
	require.True(t, ok)
	assert.True(t, types.AddressEqual(wsAddr(1), addr))

	global, err := tbl.IsGloballyVisible("A")
	require.NoError(t, err)
	assert.True(t, global)

	_, err = tbl.IsGloballyVisible("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok = tbl.Get("missing")
	assert.False(t, ok)
	assert.True(t, tbl.ContainsKey("A"))
	assert.Equal(t, 1, tbl.Len())
}

// TestTable_FirstRegistrationWins 测试先注册者胜出
func TestTable_FirstRegistrationWins(t *testing.T) {
	tbl := New()

	assert.True(t, tbl.Put("A", wsAddr(1), false))
	assert.False(t, tbl.Put("A", wsAddr(2), true))

	addr, _ := tbl.Get("A")
	assert.True(t, types.AddressEqual(wsAddr(1), addr))
	global, _ := tbl.IsGloballyVisible("A")
	assert.False(t, global)

	// Remove 后可以替换
	assert.True(t, tbl.Remove("A"))
	assert.False(t, tbl.Remove("A"))
	assert.True(t, tbl.Put("A", wsAddr(2), true))
	addr, _ = tbl.Get("A")
	assert.True(t, types.AddressEqual(wsAddr(2), addr))
}

// TestTable_InvalidEntry 测试无效记录被拒绝
func TestTable_InvalidEntry(t *testing.T) {
	tbl := New()
	assert.False(t, tbl.Put("", wsAddr(1), false))
	assert.False(t, tbl.Put("A", nil, false))
	assert.Equal(t, 0, tbl.Len())
}

// TestTable_MergeSameAddress 测试相同地址重复注册时合并过期时间与粘性
func TestTable_MergeSameAddress(t *testing.T) {
	mock := clock.NewMock()
	tbl := New(WithClock(mock))

	t1 := mock.Now().Add(time.Minute)
	t2 := mock.Now().Add(time.Hour)

	require.True(t, tbl.PutEntry(Entry{ParticipantID: "A", Address: wsAddr(1), ExpiryDate: t1}))
	assert.False(t, tbl.PutEntry(Entry{ParticipantID: "A", Address: wsAddr(1), ExpiryDate: t2, IsSticky: true}))

	e, ok := tbl.GetEntry("A")
	require.True(t, ok)
	assert.Equal(t, t2, e.ExpiryDate)
	assert.True(t, e.IsSticky)
	assert.Equal(t, mock.Now(), e.RegisteredAt)

	// 零过期时间表示永不过期
	assert.False(t, tbl.PutEntry(Entry{ParticipantID: "A", Address: wsAddr(1)}))
	e, _ = tbl.GetEntry("A")
	assert.True(t, e.ExpiryDate.IsZero())
}

// TestTable_Release 测试引用计数归零时删除记录
func TestTable_Release(t *testing.T) {
	tbl := New()

	require.True(t, tbl.Put("A", wsAddr(1), false))
	assert.False(t, tbl.Put("A", wsAddr(1), false))
	assert.False(t, tbl.Put("A", wsAddr(2), false), "other address does not add a reference")
	e, _ := tbl.GetEntry("A")
	assert.Equal(t, 2, e.RefCount)

	assert.False(t, tbl.Release("A"))
	assert.True(t, tbl.ContainsKey("A"))
	assert.True(t, tbl.Release("A"))
	assert.False(t, tbl.ContainsKey("A"))
	assert.False(t, tbl.Release("A"))

	// 粘性记录不被释放
	tbl.PutEntry(Entry{ParticipantID: "S", Address: wsAddr(3), IsSticky: true})
	assert.False(t, tbl.Release("S"))
	assert.True(t, tbl.ContainsKey("S"))
}

// TestTable_ConcurrentPutSameID 测试并发注册同一 ID 时只保留一条记录
func TestTable_ConcurrentPutSameID(t *testing.T) {
	tbl := New()

	const writers = 64
	var wg sync.WaitGroup
	inserted := make(chan int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if tbl.Put("p", wsAddr(i), false) {
				inserted <- i
			}
		}(i)
	}
	wg.Wait()
	close(inserted)

	var winners []int
	for i := range inserted {
		winners = append(winners, i)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, 1, tbl.Len())

	addr, _ := tbl.Get("p")
	assert.True(t, types.AddressEqual(wsAddr(winners[0]), addr))
}

// TestTable_Purge 测试宽限期清理
func TestTable_Purge(t *testing.T) {
	mock := clock.NewMock()
	tbl := New(WithClock(mock), WithGracePeriod(10*time.Second))

	now := mock.Now()
	tbl.PutEntry(Entry{ParticipantID: "expiring", Address: wsAddr(1), ExpiryDate: now.Add(time.Second)})
	tbl.PutEntry(Entry{ParticipantID: "sticky", Address: wsAddr(2), ExpiryDate: now.Add(time.Second), IsSticky: true})
	tbl.PutEntry(Entry{ParticipantID: "forever", Address: wsAddr(3)})

	// 过期但仍在宽限期内
	mock.Add(5 * time.Second)
	assert.Equal(t, 0, tbl.Purge())

	mock.Add(10 * time.Second)
	assert.Equal(t, 1, tbl.Purge())
	assert.False(t, tbl.ContainsKey("expiring"))
	assert.True(t, tbl.ContainsKey("sticky"))
	assert.True(t, tbl.ContainsKey("forever"))
}

// TestTable_Snapshot 测试快照覆盖所有分片
func TestTable_Snapshot(t *testing.T) {
	tbl := New()
	for i := 0; i < 100; i++ {
		tbl.Put(fmt.Sprintf("p-%d", i), wsAddr(i), i%2 == 0)
	}

	snap := tbl.Snapshot()
	assert.Len(t, snap, 100)

	seen := make(map[string]bool, len(snap))
	for _, e := range snap {
		seen[e.ParticipantID] = true
	}
	assert.Len(t, seen, 100)
}
