package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量名
const (
	EnvLogLevel     = "MSGROUTER_LOG_LEVEL"
	EnvLogFormat    = "MSGROUTER_LOG_FORMAT"
	EnvLogAddSource = "MSGROUTER_LOG_ADD_SOURCE"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定子系统的日志级别
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	configCache *Config
	configOnce  sync.Once
)

// ConfigFromEnv 从环境变量解析配置
//
// 环境变量:
//   - MSGROUTER_LOG_LEVEL: 格式 子系统=级别,...,默认级别，如 router=debug,queue=warn,info
//   - MSGROUTER_LOG_FORMAT: text 或 json
//   - MSGROUTER_LOG_ADD_SOURCE: true 或 false
//
// 无法识别的级别会被忽略。
func ConfigFromEnv() *Config {
	configOnce.Do(func() {
		cfg := &Config{
			DefaultLevel:    slog.LevelInfo,
			SubsystemLevels: make(map[string]slog.Level),
			Format:          FormatText,
		}
		if spec := os.Getenv(EnvLogLevel); spec != "" {
			_ = applyLevelSpec(cfg, spec)
		}
		if strings.EqualFold(os.Getenv(EnvLogFormat), "json") {
			cfg.Format = FormatJSON
		}
		if v := os.Getenv(EnvLogAddSource); v != "" {
			cfg.AddSource = v != "false" && v != "0"
		}
		configCache = cfg
	})
	return configCache
}

// ParseLevelSpec 解析级别配置字符串
//
// 与 ConfigFromEnv 不同，遇到无法识别的级别时返回错误。
func ParseLevelSpec(spec string) (*Config, error) {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
	}
	if err := applyLevelSpec(cfg, spec); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyLevelSpec(cfg *Config, spec string) error {
	var firstErr error
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		subsystem, name, scoped := strings.Cut(part, "=")
		if !scoped {
			name = subsystem
		}
		level, ok := parseLevel(strings.TrimSpace(name))
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("unknown log level %q", name)
			}
			continue
		}
		if scoped {
			cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = level
		} else {
			cfg.DefaultLevel = level
		}
	}
	return firstErr
}

// parseLevel 解析日志级别名称
func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig 重置配置缓存（仅用于测试）
func ResetConfig() {
	configOnce = sync.Once{}
	configCache = nil
}
