// Package stubfactory 按地址创建并缓存传输 stub
//
// 每个地址至多一个 stub 实例：缓存以 Address.Key() 为键，并发的首次创建
// 经 singleflight 合并。地址存在本地 skeleton 时直接返回进程内 stub。
package stubfactory

import (
	"errors"
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-msgrouter/internal/core/inprocess"
	"github.com/dep2p/go-msgrouter/internal/util/logger"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/dep2p/go-msgrouter/pkg/types"
)

var log = logger.Logger("stubfactory")

var (
	// ErrNoStubFactory 没有为该地址类型注册工厂
	ErrNoStubFactory = errors.New("no stub factory for address kind")

	// ErrNilAddress 地址为空
	ErrNilAddress = errors.New("address is nil")

	// ErrClosed 工厂已关闭
	ErrClosed = errors.New("stub factory closed")
)

// DefaultCacheSize 默认缓存容量
const DefaultCacheSize = 1024

// Factory stub 工厂
type Factory struct {
	skeletons interfaces.SkeletonFactory

	mu        sync.RWMutex
	factories map[types.AddressKind]interfaces.StubFactory
	closed    bool

	cache *lru.Cache[string, interfaces.MessagingStub]
	group singleflight.Group
}

// New 创建 stub 工厂，skeletons 可为 nil
func New(skeletons interfaces.SkeletonFactory, cacheSize int) (*Factory, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.NewWithEvict(cacheSize, func(key string, stub interfaces.MessagingStub) {
		closeStub(key, stub)
	})
	if err != nil {
		return nil, fmt.Errorf("create stub cache: %w", err)
	}
	return &Factory{
		skeletons: skeletons,
		factories: make(map[types.AddressKind]interfaces.StubFactory),
		cache:     cache,
	}, nil
}

// Register 注册某类地址的工厂，重复注册覆盖
func (f *Factory) Register(kind types.AddressKind, factory interfaces.StubFactory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factories[kind] = factory
}

// Create 返回地址对应的 stub
func (f *Factory) Create(addr types.Address) (interfaces.MessagingStub, error) {
	if addr == nil {
		return nil, ErrNilAddress
	}
	key := addr.Key()
	if stub, ok := f.cache.Get(key); ok {
		return stub, nil
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		// 合并窗口之外可能已有其他调用者完成创建
		if stub, ok := f.cache.Get(key); ok {
			return stub, nil
		}
		stub, err := f.build(addr)
		if err != nil {
			return nil, err
		}

		f.mu.RLock()
		closed := f.closed
		if !closed {
			f.cache.Add(key, stub)
		}
		f.mu.RUnlock()
		if closed {
			closeStub(key, stub)
			return nil, ErrClosed
		}
		return stub, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(interfaces.MessagingStub), nil
}

func (f *Factory) build(addr types.Address) (interfaces.MessagingStub, error) {
	if f.skeletons != nil {
		if sk, ok := f.skeletons.Skeleton(addr); ok {
			return inprocess.NewStub(sk), nil
		}
	}

	f.mu.RLock()
	factory, ok := f.factories[addr.Kind()]
	closed := f.closed
	f.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoStubFactory, addr.Kind())
	}

	stub, err := factory.Create(addr)
	if err != nil {
		return nil, fmt.Errorf("create stub for %s: %w", addr, err)
	}
	log.Debug("创建 stub", "address", addr.String())
	return stub, nil
}

// Evict 移除地址对应的缓存 stub
func (f *Factory) Evict(addr types.Address) bool {
	if addr == nil {
		return false
	}
	return f.cache.Remove(addr.Key())
}

// Len 返回缓存的 stub 数
func (f *Factory) Len() int {
	return f.cache.Len()
}

// Close 关闭所有缓存的 stub，之后 Create 返回 ErrClosed
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	f.cache.Purge()
	return nil
}

func closeStub(key string, stub interfaces.MessagingStub) {
	c, ok := stub.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("关闭 stub 失败", "key", key, "err", err)
	}
}
