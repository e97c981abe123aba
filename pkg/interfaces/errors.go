package interfaces

import (
	"errors"
	"fmt"
	"time"
)

// stub 通过 FailureFunc 报告的错误按以下规则分类：
//   - 包装 ErrMessageNotSent：永久失败，不再重试
//   - *DelayError：按指定延迟重试
//   - 包装 ErrTransportShutdown：传输已关闭，不再重试
//   - 其他：暂时失败，按退避策略重试直到消息过期
var (
	// ErrMessageNotSent 消息无法发送且重试无意义
	ErrMessageNotSent = errors.New("message not sent")

	// ErrTransportShutdown 传输正在关闭
	ErrTransportShutdown = errors.New("transport shutting down")
)

// DelayError 要求在指定延迟后重试
type DelayError struct {
	Delay time.Duration
	Cause error
}

func (e *DelayError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("retry after %s", e.Delay)
	}
	return fmt.Sprintf("retry after %s: %v", e.Delay, e.Cause)
}

func (e *DelayError) Unwrap() error {
	return e.Cause
}
