package router

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-msgrouter/internal/core/addressing"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
)

// 路由器错误定义
var (
	// ErrRelativeTTL 不支持相对 TTL 的消息
	ErrRelativeTTL = errors.New("router: relative ttl not supported")

	// ErrMessageExpired 消息在投递前已过期
	ErrMessageExpired = errors.New("router: message expired")

	// ErrShuttingDown 路由器正在关闭
	ErrShuttingDown = fmt.Errorf("router: %w", interfaces.ErrTransportShutdown)

	// ErrShutdownTimeout 关闭超时，仍有 worker 未退出
	ErrShutdownTimeout = errors.New("router: shutdown timed out")

	// ErrMaxRetriesExceeded 超过最大重试次数
	ErrMaxRetriesExceeded = errors.New("router: max retries exceeded")

	// ErrUnsupportedAddressType 入站地址类型不能注册到父路由器
	ErrUnsupportedAddressType = errors.New("router: unsupported incoming address type")

	// ErrAlreadyAttached 已经连接父路由器
	ErrAlreadyAttached = errors.New("router: parent router already attached")

	// ErrNoIncomingAddress 子路由器缺少入站地址
	ErrNoIncomingAddress = errors.New("router: no incoming address")

	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = errors.New("router: invalid argument")

	// ErrUnknownProvider 组播提供者不在路由表中
	ErrUnknownProvider = errors.New("router: unknown multicast provider")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("router: invalid config")

	// ErrNoRoute 没有可用路由
	ErrNoRoute = addressing.ErrNoRoute

	// ErrMessageNotSent stub 报告的永久失败
	ErrMessageNotSent = interfaces.ErrMessageNotSent
)

// DelayError 要求按指定延迟重试
type DelayError = interfaces.DelayError

// RouteError 消息无法路由到参与者
type RouteError struct {
	MessageID     string
	ParticipantID string
	Cause         error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("router: cannot route message %s to %s: %v", e.MessageID, e.ParticipantID, e.Cause)
}

func (e *RouteError) Unwrap() error {
	return e.Cause
}
