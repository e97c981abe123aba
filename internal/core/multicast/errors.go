package multicast

import "errors"

var (
	// ErrEmptyMulticastID 组播 ID 为空
	ErrEmptyMulticastID = errors.New("multicast id is empty")

	// ErrInvalidMulticastID 组播 ID 格式无效
	ErrInvalidMulticastID = errors.New("invalid multicast id")
)
