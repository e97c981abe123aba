package types

import "errors"

// ============================================================================
//                              消息构建错误
// ============================================================================

var (
	// ErrEmptySender 发送方为空
	ErrEmptySender = errors.New("message sender is empty")

	// ErrEmptyRecipient 接收方为空
	ErrEmptyRecipient = errors.New("message recipient is empty")

	// ErrMissingExpiry 未设置过期时间
	ErrMissingExpiry = errors.New("message expiry is not set")
)
