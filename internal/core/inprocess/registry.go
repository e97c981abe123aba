package inprocess

import (
	"sync"

	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

// SkeletonRegistry 进程内 skeleton 注册表
type SkeletonRegistry struct {
	mu        sync.RWMutex
	skeletons map[string]*Skeleton
}

// NewSkeletonRegistry 创建注册表
func NewSkeletonRegistry() *SkeletonRegistry {
	return &SkeletonRegistry{skeletons: make(map[string]*Skeleton)}
}

// Register 注册 Dispatcher，返回其进程内地址
func (r *SkeletonRegistry) Register(id string, d interfaces.Dispatcher) (*types.InProcessAddress, error) {
	if id == "" {
		return nil, ErrEmptySkeletonID
	}
	if d == nil {
		return nil, ErrNilDispatcher
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.skeletons[id]; ok {
		return nil, ErrDuplicateSkeleton
	}
	sk := newSkeleton(id, d)
	r.skeletons[id] = sk
	log.Debug("注册进程内 skeleton", "id", id)
	return sk.addr, nil
}

// Unregister 注销 skeleton，之后投递到它的消息失败
func (r *SkeletonRegistry) Unregister(id string) bool {
	r.mu.Lock()
	sk, ok := r.skeletons[id]
	delete(r.skeletons, id)
	r.mu.Unlock()

	if ok {
		sk.closed.Store(true)
	}
	return ok
}

// Lookup 按 ID 查询 skeleton
func (r *SkeletonRegistry) Lookup(id string) (*Skeleton, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sk, ok := r.skeletons[id]
	return sk, ok
}

// Skeleton 实现 interfaces.SkeletonFactory
func (r *SkeletonRegistry) Skeleton(addr types.Address) (interfaces.MessagingSkeleton, bool) {
	ip, ok := addr.(*types.InProcessAddress)
	if !ok {
		return nil, false
	}
	sk, ok := r.Lookup(ip.SkeletonID)
	if !ok {
		return nil, false
	}
	return sk, true
}

// Len 返回注册数
func (r *SkeletonRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skeletons)
}

var _ interfaces.SkeletonFactory = (*SkeletonRegistry)(nil)
