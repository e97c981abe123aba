package config

// StubCacheConfig stub 缓存配置
type StubCacheConfig struct {
	// Size 缓存的 stub 数量上限，0 使用默认值
	Size int `json:"size"`
}

// DefaultStubCacheConfig 返回默认 stub 缓存配置
func DefaultStubCacheConfig() StubCacheConfig {
	return StubCacheConfig{Size: 1024}
}

// Validate 验证 stub 缓存配置
func (c StubCacheConfig) Validate() error {
	if c.Size < 0 {
		return invalid("size must not be negative")
	}
	return nil
}
