package inprocess

import "errors"

var (
	// ErrDuplicateSkeleton skeleton ID 已注册
	ErrDuplicateSkeleton = errors.New("in-process skeleton already registered")

	// ErrEmptySkeletonID skeleton ID 为空
	ErrEmptySkeletonID = errors.New("in-process skeleton id is empty")

	// ErrNilDispatcher dispatcher 为空
	ErrNilDispatcher = errors.New("dispatcher is nil")

	// ErrSkeletonClosed skeleton 已注销
	ErrSkeletonClosed = errors.New("in-process skeleton unregistered")
)
