package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "router": {"max_parallel_sends": 8, "base_retry_interval": "1s"},
//	  "routing_table": {"grace_period": "30s"},
//	  "metrics": {"enabled": false}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载并验证配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "minimal": 嵌入式场景，少量 worker 与小缓存
//   - "server": 高并发转发
//   - "testing": 快速重试与关闭，用于测试
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "minimal":
		cfg.Router.MaxParallelSends = 2
		cfg.StubCache.Size = 64
		cfg.RoutingTable.CleanupInterval = Duration(5 * time.Minute)
	case "server":
		cfg.Router.MaxParallelSends = 64
		cfg.StubCache.Size = 4096
	case "testing":
		cfg.Router.BaseRetryInterval = Duration(10 * time.Millisecond)
		cfg.Router.MaxRetryDelay = Duration(100 * time.Millisecond)
		cfg.Router.ShutdownTimeout = Duration(500 * time.Millisecond)
		cfg.RoutingTable.CleanupInterval = Duration(time.Second)
		cfg.Hierarchy.ParentResolveTimeout = Duration(time.Second)
		cfg.Metrics.Enabled = false
	case "":
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
	return nil
}

// CloneConfig 克隆配置
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	return &cloned
}
