package valueobject

// SenderRole 消息发送方
type SenderRole string

const (
	RoleCustomer  SenderRole = "customer"
	RoleAssistant SenderRole = "assistant"
)

// Valid 是否为已知角色
func (r SenderRole) Valid() bool {
	return r == RoleCustomer || r == RoleAssistant
}

// ChannelType 渠道类型
type ChannelType string

const (
	ChannelMessenger ChannelType = "messenger"
	ChannelTelegram  ChannelType = "telegram"
	ChannelConsole   ChannelType = "console"
)
