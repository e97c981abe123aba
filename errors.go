package msgrouter

import (
	"errors"

	"github.com/dep2p/go-msgrouter/internal/core/router"
	"github.com/dep2p/go-msgrouter/pkg/interfaces"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ErrNotChild 节点不是子路由器
	ErrNotChild = errors.New("node has no incoming address")

	// ────────────────────────────────────────────────────────────────────────
	// 路由错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrRelativeTTL 消息使用相对 TTL
	ErrRelativeTTL = router.ErrRelativeTTL

	// ErrMessageExpired 消息已过期
	ErrMessageExpired = router.ErrMessageExpired

	// ErrShuttingDown 路由器正在关闭
	ErrShuttingDown = router.ErrShuttingDown

	// ErrShutdownTimeout 关闭时 worker 未在超时内结束
	ErrShutdownTimeout = router.ErrShutdownTimeout

	// ErrNoRoute 没有到接收方的路由
	ErrNoRoute = router.ErrNoRoute

	// ErrMaxRetriesExceeded 重试次数用尽
	ErrMaxRetriesExceeded = router.ErrMaxRetriesExceeded

	// ErrAlreadyAttached 子路由器已连接父路由器
	ErrAlreadyAttached = router.ErrAlreadyAttached

	// ErrUnknownProvider 组播提供者未知
	ErrUnknownProvider = router.ErrUnknownProvider

	// ErrUnsupportedAddressType 入口地址类型不能注册到父路由器
	ErrUnsupportedAddressType = router.ErrUnsupportedAddressType

	// ────────────────────────────────────────────────────────────────────────
	// stub 失败分类
	// ────────────────────────────────────────────────────────────────────────

	// ErrMessageNotSent 永久发送失败，包装此错误的失败不再重试
	ErrMessageNotSent = interfaces.ErrMessageNotSent

	// ErrTransportShutdown 传输已关闭
	ErrTransportShutdown = interfaces.ErrTransportShutdown
)

// DelayError 要求在指定延迟后重试的发送失败
type DelayError = interfaces.DelayError

// RouteError 无法为消息找到路由
type RouteError = router.RouteError
