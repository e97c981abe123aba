package routingtable

import "errors"

var (
	// ErrNotFound 参与者不在路由表中
	ErrNotFound = errors.New("participant not found in routing table")

	// ErrEmptyParticipantID 参与者 ID 为空
	ErrEmptyParticipantID = errors.New("participant id is empty")

	// ErrNilAddress 地址为空
	ErrNilAddress = errors.New("address is nil")
)
