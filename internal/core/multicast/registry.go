// Package multicast 维护组播 ID 到（订阅者, 提供者）的注册关系
//
// 组播 ID 形如 provider/broadcast[/partition...]。注册时分区位置可使用通配符：
//   - "+" 匹配恰好一个分区
//   - "*" 匹配任意数量的尾部分区（包括零个），只能出现在最后
package multicast

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dep2p/go-msgrouter/internal/util/logger"
)

var log = logger.Logger("multicast")

const (
	separator      = "/"
	singleWildcard = "+"
	multiWildcard  = "*"
)

// Registration 组播注册
type Registration struct {
	MulticastID  string
	SubscriberID string
	ProviderID   string
}

// ValidateMulticastID 校验组播 ID 或通配模式
func ValidateMulticastID(id string) error {
	if id == "" {
		return ErrEmptyMulticastID
	}
	segs := strings.Split(id, separator)
	for i, seg := range segs {
		switch seg {
		case "":
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidMulticastID, id)
		case multiWildcard:
			if i != len(segs)-1 {
				return fmt.Errorf("%w: %q must be the last segment in %q", ErrInvalidMulticastID, multiWildcard, id)
			}
			fallthrough
		case singleWildcard:
			if i < 2 {
				return fmt.Errorf("%w: wildcard in provider/broadcast position of %q", ErrInvalidMulticastID, id)
			}
		}
	}
	return nil
}

func isPattern(id string) bool {
	return strings.Contains(id, singleWildcard) || strings.Contains(id, multiWildcard)
}

// Matches 判断组播 ID 是否匹配注册模式
func Matches(pattern, multicastID string) bool {
	if pattern == multicastID {
		return true
	}
	if !isPattern(pattern) {
		return false
	}

	p := strings.Split(pattern, separator)
	s := strings.Split(multicastID, separator)
	for i, seg := range p {
		if seg == multiWildcard {
			return true
		}
		if i >= len(s) {
			return false
		}
		if seg != singleWildcard && seg != s[i] {
			return false
		}
	}
	return len(p) == len(s)
}

// ============================================================================
//                              Registry
// ============================================================================

// Registry 组播接收者注册表
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]map[Registration]struct{}
	patterns map[string]struct{}
	total    int
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]map[Registration]struct{}),
		patterns: make(map[string]struct{}),
	}
}

// Register 添加注册，返回该组播 ID 是否由此获得第一个接收者
//
// 重复注册是幂等的，返回 false。
func (r *Registry) Register(reg Registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byID[reg.MulticastID]
	if !ok {
		set = make(map[Registration]struct{})
		r.byID[reg.MulticastID] = set
		if isPattern(reg.MulticastID) {
			r.patterns[reg.MulticastID] = struct{}{}
		}
	}
	if _, dup := set[reg]; dup {
		return false
	}
	set[reg] = struct{}{}
	r.total++

	log.Debug("添加组播接收者",
		"multicastID", reg.MulticastID,
		"subscriberID", reg.SubscriberID,
		"providerID", reg.ProviderID)
	return len(set) == 1
}

// Unregister 移除注册，返回该组播 ID 是否由此失去最后一个接收者
func (r *Registry) Unregister(reg Registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byID[reg.MulticastID]
	if !ok {
		return false
	}
	if _, found := set[reg]; !found {
		return false
	}
	delete(set, reg)
	r.total--

	if len(set) > 0 {
		return false
	}
	delete(r.byID, reg.MulticastID)
	delete(r.patterns, reg.MulticastID)
	return true
}

// Receivers 返回所有与组播 ID 匹配的注册
func (r *Registry) Receivers(multicastID string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Registration
	for reg := range r.byID[multicastID] {
		out = append(out, reg)
	}
	for pattern := range r.patterns {
		if pattern == multicastID || !Matches(pattern, multicastID) {
			continue
		}
		for reg := range r.byID[pattern] {
			out = append(out, reg)
		}
	}
	return out
}

// HasReceivers 组播 ID（精确）是否有接收者
func (r *Registry) HasReceivers(multicastID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID[multicastID]) > 0
}

// Len 返回注册总数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
