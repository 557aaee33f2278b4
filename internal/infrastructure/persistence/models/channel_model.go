package models

import "time"

// ChannelModel 渠道凭据
type ChannelModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Type        string `gorm:"size:16;not null"`
	Name        string `gorm:"size:128"`
	AccessToken string `gorm:"type:text"`
	Enabled     bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定表名
func (ChannelModel) TableName() string {
	return "channels"
}
