// Package logger 提供 msgrouter 的统一日志系统
//
// 基于标准库 log/slog，每个子系统一个缓存的 Logger，级别可按子系统配置：
//
//	var log = logger.Logger("router")
//
//	log.Info("消息已入队", "messageID", msg.ID(), "retry", env.RetryCount)
//
// 环境变量配置:
//
//	# router 子系统 debug，其余 info
//	MSGROUTER_LOG_LEVEL=router=debug,info
//
//	# JSON 输出
//	MSGROUTER_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	h := newHandler(subsystem, ConfigFromEnv())
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
//
// 子系统的 Logger 尚未创建时，会先创建再设置。
func SetLevel(subsystem string, level slog.Level) {
	Logger(subsystem)
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).level.Set(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).level.Set(level)
		return true
	})
}

// Level 返回子系统当前的日志级别
func Level(subsystem string) slog.Level {
	Logger(subsystem)
	h, _ := handlers.Load(subsystem)
	return h.(*subsystemHandler).level.Level()
}

// ApplyLevelSpec 按级别配置字符串调整已创建及后续创建的子系统
//
// 例如 "router=debug,queue=warn,info"。
func ApplyLevelSpec(spec string) error {
	cfg, err := ParseLevelSpec(spec)
	if err != nil {
		return err
	}
	env := ConfigFromEnv()
	env.DefaultLevel = cfg.DefaultLevel
	for name, lvl := range cfg.SubsystemLevels {
		env.SubsystemLevels[name] = lvl
	}
	handlers.Range(func(key, value any) bool {
		value.(*subsystemHandler).level.Set(env.LevelForSubsystem(key.(string)))
		return true
	})
	return nil
}

// Discard 返回一个丢弃所有日志的 Logger（主要用于测试）
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样会切换到新的输出。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
