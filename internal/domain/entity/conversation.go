package entity

import "time"

// Conversation 会话聚合根: one customer on one channel
type Conversation struct {
	id             string
	channelID      string
	senderID       string
	createdAt      time.Time
	lastActivityAt time.Time
}

// NewConversation 创建会话
func NewConversation(id, channelID, senderID string) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidConversationID
	}
	if channelID == "" {
		return nil, ErrInvalidChannelID
	}
	if senderID == "" {
		return nil, ErrInvalidSenderID
	}
	now := time.Now()
	return &Conversation{
		id:             id,
		channelID:      channelID,
		senderID:       senderID,
		createdAt:      now,
		lastActivityAt: now,
	}, nil
}

// ReconstructConversation 从持久化层恢复
func ReconstructConversation(id, channelID, senderID string, createdAt, lastActivityAt time.Time) *Conversation {
	return &Conversation{
		id:             id,
		channelID:      channelID,
		senderID:       senderID,
		createdAt:      createdAt,
		lastActivityAt: lastActivityAt,
	}
}

func (c *Conversation) ID() string                { return c.id }
func (c *Conversation) ChannelID() string         { return c.channelID }
func (c *Conversation) SenderID() string          { return c.senderID }
func (c *Conversation) CreatedAt() time.Time      { return c.createdAt }
func (c *Conversation) LastActivityAt() time.Time { return c.lastActivityAt }

// Touch 更新最后活跃时间
func (c *Conversation) Touch(at time.Time) {
	if at.After(c.lastActivityAt) {
		c.lastActivityAt = at
	}
}
