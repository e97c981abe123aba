package interfaces

import "github.com/dep2p/go-msgrouter/pkg/types"

// EvtMessageProcessed 消息处理完成事件
//
// 每条消息恰好发布一次：成功时 Err 为 nil，否则为最终失败原因。
type EvtMessageProcessed struct {
	MessageID string
	Err       error
}

// EvtParentAttached 子路由器已连接到父路由器
type EvtParentAttached struct {
	ProxyParticipantID string
	IncomingAddress    types.Address
	ParentAddress      types.Address
	// Replayed 重放的延迟调用数
	Replayed int
}
