package types

// Direction 消息方向
type Direction uint8

const (
	// Outbound 本地发出
	Outbound Direction = iota
	// Inbound 从远端传输收到
	Inbound
)

// String 返回方向名称
func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}
