package models

import "time"

// ConversationModel 数据库会话模型
type ConversationModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	ChannelID      string `gorm:"uniqueIndex:idx_conversations_channel_sender;size:64;not null"`
	SenderID       string `gorm:"uniqueIndex:idx_conversations_channel_sender;size:128;not null"`
	CreatedAt      time.Time
	LastActivityAt time.Time `gorm:"index"`
}

// TableName 指定表名
func (ConversationModel) TableName() string {
	return "conversations"
}
