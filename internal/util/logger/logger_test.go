package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetOutput 测试输出重定向
func TestSetOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log := Logger("test-output")
	log.Info("test message", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "test message")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "subsystem=test-output")
}

// TestSetOutput_ExistingLogger 测试已创建的 Logger 跟随输出切换
func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test-existing")

	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log.Info("after switch")
	assert.Contains(t, buf.String(), "after switch")
}

// TestSetLevel_SharedByDerivedLoggers 测试 With 派生的 Logger 共享级别
func TestSetLevel_SharedByDerivedLoggers(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	derived := Logger("test-level").With("peer", "p1")

	SetLevel("test-level", slog.LevelError)
	derived.Warn("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	SetLevel("test-level", slog.LevelDebug)
	derived.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "peer=p1")
}

// TestParseLevelSpec 测试级别配置解析
func TestParseLevelSpec(t *testing.T) {
	cfg, err := ParseLevelSpec("router=debug, queue=warn,error")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("router"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("queue"))
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("other"))

	_, err = ParseLevelSpec("router=loud")
	assert.Error(t, err)
}

// TestApplyLevelSpec 测试运行时应用级别配置
func TestApplyLevelSpec(t *testing.T) {
	Logger("test-apply")
	require.NoError(t, ApplyLevelSpec("test-apply=warn"))
	assert.Equal(t, slog.LevelWarn, Level("test-apply"))
	assert.Error(t, ApplyLevelSpec("bogus"))
}

// TestConfigFromEnv 测试环境变量解析
func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "router=debug,warn")
	t.Setenv(EnvLogFormat, "json")
	ResetConfig()
	defer ResetConfig()

	cfg := ConfigFromEnv()
	assert.Equal(t, slog.LevelWarn, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("router"))
	assert.Equal(t, FormatJSON, cfg.Format)
}

// TestDiscard 测试丢弃 Logger
func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
