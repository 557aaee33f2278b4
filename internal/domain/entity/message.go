package entity

import (
	"time"

	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// Message 消息实体
type Message struct {
	id             string
	conversationID string
	role           valueobject.SenderRole
	text           string
	imageURL       string
	createdAt      time.Time
}

// NewMessage 创建新消息（工厂方法）
func NewMessage(id, conversationID string, role valueobject.SenderRole, text, imageURL string) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if text == "" && imageURL == "" {
		return nil, ErrEmptyMessage
	}

	return &Message{
		id:             id,
		conversationID: conversationID,
		role:           role,
		text:           text,
		imageURL:       imageURL,
		createdAt:      time.Now(),
	}, nil
}

// ReconstructMessage 重建消息（用于从持久化层恢复）
func ReconstructMessage(id, conversationID string, role valueobject.SenderRole, text, imageURL string, createdAt time.Time) *Message {
	return &Message{
		id:             id,
		conversationID: conversationID,
		role:           role,
		text:           text,
		imageURL:       imageURL,
		createdAt:      createdAt,
	}
}

// ID 返回消息ID
func (m *Message) ID() string {
	return m.id
}

// ConversationID 返回会话ID
func (m *Message) ConversationID() string {
	return m.conversationID
}

// Role 返回发送方
func (m *Message) Role() valueobject.SenderRole {
	return m.role
}

// Text 返回文本
func (m *Message) Text() string {
	return m.text
}

// ImageURL 返回图片链接
func (m *Message) ImageURL() string {
	return m.imageURL
}

// CreatedAt 返回创建时间
func (m *Message) CreatedAt() time.Time {
	return m.createdAt
}

// IsFromCustomer 判断是否来自顾客
func (m *Message) IsFromCustomer() bool {
	return m.role == valueobject.RoleCustomer
}
