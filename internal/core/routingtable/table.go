package routingtable

import (
	"hash/maphash"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

var log = logger.Logger("routingtable")

// shardCount 分片数（2 的幂）
const shardCount = 32

// ============================================================================
//                              Entry
// ============================================================================

// Entry 路由表记录
type Entry struct {
	// ParticipantID 参与者 ID
	ParticipantID string

	// Address 下一跳地址
	Address types.Address

	// IsGloballyVisible 是否全局可见
	IsGloballyVisible bool

	// RegisteredAt 注册时间
	RegisteredAt time.Time

	// ExpiryDate 过期时间，零值表示永不过期
	ExpiryDate time.Time

	// IsSticky 粘性记录不参与过期清理，也不被 Release 删除
	IsSticky bool

	// RefCount 引用计数，相同地址的重复注册各计一次
	RefCount int
}

// expired 判断记录在 now 时刻是否已超过宽限期
func (e *Entry) expired(now time.Time, grace time.Duration) bool {
	if e.IsSticky || e.ExpiryDate.IsZero() {
		return false
	}
	return now.After(e.ExpiryDate.Add(grace))
}

// ============================================================================
//                              Table
// ============================================================================

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Table 路由表
type Table struct {
	seed   maphash.Seed
	shards [shardCount]shard
	clock  clock.Clock
	grace  time.Duration
}

// Option 路由表选项
type Option func(*Table)

// WithClock 设置时间源（测试使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(t *Table) {
		t.clock = c
	}
}

// WithGracePeriod 设置过期宽限期
func WithGracePeriod(d time.Duration) Option {
	return func(t *Table) {
		t.grace = d
	}
}

// New 创建路由表
func New(opts ...Option) *Table {
	t := &Table{
		seed:  maphash.MakeSeed(),
		clock: clock.New(),
	}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*Entry)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) shardFor(id string) *shard {
	return &t.shards[maphash.String(t.seed, id)&(shardCount-1)]
}

// Put 注册下一跳，已存在时返回 false
func (t *Table) Put(participantID string, addr types.Address, isGloballyVisible bool) bool {
	return t.PutEntry(Entry{
		ParticipantID:     participantID,
		Address:           addr,
		IsGloballyVisible: isGloballyVisible,
	})
}

// PutEntry 注册完整记录，已存在时返回 false
//
// 已存在且地址相同时，引用计数加一，并合并过期时间（取较晚者，任一永不过期则永不过期）
// 与粘性标记；地址不同时保留原记录。
func (t *Table) PutEntry(e Entry) bool {
	if e.ParticipantID == "" || e.Address == nil {
		log.Warn("忽略无效路由记录", "participantID", e.ParticipantID, "hasAddress", e.Address != nil)
		return false
	}
	if e.RegisteredAt.IsZero() {
		e.RegisteredAt = t.clock.Now()
	}

	s := t.shardFor(e.ParticipantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[e.ParticipantID]
	if !ok {
		e.RefCount = 1
		s.entries[e.ParticipantID] = &e
		return true
	}

	if types.AddressEqual(existing.Address, e.Address) {
		existing.RefCount++
		switch {
		case existing.ExpiryDate.IsZero(), e.ExpiryDate.IsZero():
			existing.ExpiryDate = time.Time{}
		case e.ExpiryDate.After(existing.ExpiryDate):
			existing.ExpiryDate = e.ExpiryDate
		}
		existing.IsSticky = existing.IsSticky || e.IsSticky
		return false
	}

	log.Debug("参与者已注册其他地址，保留原记录",
		"participantID", e.ParticipantID,
		"existing", existing.Address.String(),
		"rejected", e.Address.String())
	return false
}

// Get 查询下一跳地址
func (t *Table) Get(participantID string) (types.Address, bool) {
	e, ok := t.GetEntry(participantID)
	if !ok {
		return nil, false
	}
	return e.Address, true
}

// GetEntry 查询完整记录（副本）
func (t *Table) GetEntry(participantID string) (Entry, bool) {
	s := t.shardFor(participantID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[participantID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// IsGloballyVisible 查询记录的全局可见性
func (t *Table) IsGloballyVisible(participantID string) (bool, error) {
	e, ok := t.GetEntry(participantID)
	if !ok {
		return false, ErrNotFound
	}
	return e.IsGloballyVisible, nil
}

// Remove 删除记录，不存在时返回 false
func (t *Table) Remove(participantID string) bool {
	s := t.shardFor(participantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[participantID]; !ok {
		return false
	}
	delete(s.entries, participantID)
	return true
}

// Release 引用计数减一，归零时删除记录，返回记录是否被删除
//
// 粘性记录不受影响。
func (t *Table) Release(participantID string) bool {
	s := t.shardFor(participantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[participantID]
	if !ok || e.IsSticky {
		return false
	}
	e.RefCount--
	if e.RefCount > 0 {
		return false
	}
	delete(s.entries, participantID)
	return true
}

// ContainsKey 是否存在记录
func (t *Table) ContainsKey(participantID string) bool {
	s := t.shardFor(participantID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[participantID]
	return ok
}

// Len 返回记录数
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Snapshot 返回所有记录的副本，顺序不确定
func (t *Table) Snapshot() []Entry {
	out := make([]Entry, 0, t.Len())
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			out = append(out, *e)
		}
		s.mu.RUnlock()
	}
	return out
}

// Purge 清理超过宽限期的非粘性记录，返回清理数量
func (t *Table) Purge() int {
	now := t.clock.Now()
	removed := 0

	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for id, e := range s.entries {
			if e.expired(now, t.grace) {
				delete(s.entries, id)
				removed++
			}
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		log.Debug("清理过期路由记录", "removed", removed)
	}
	return removed
}
