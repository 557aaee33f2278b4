package models

import "time"

// MessageModel 数据库消息模型
type MessageModel struct {
	// Seq breaks created_at ties so reads keep insertion order.
	Seq            uint64    `gorm:"primaryKey;autoIncrement"`
	ID             string    `gorm:"uniqueIndex;size:64;not null"`
	ConversationID string    `gorm:"index:idx_messages_conv_created,priority:1;size:64;not null"`
	Role           string    `gorm:"size:16;not null"` // customer, assistant
	Text           string    `gorm:"type:text"`
	ImageURL       string    `gorm:"size:1024"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conv_created,priority:2"`
}

// TableName 指定表名
func (MessageModel) TableName() string {
	return "messages"
}
