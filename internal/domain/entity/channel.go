package entity

import "github.com/chatcommerce/gateway/internal/domain/valueobject"

// Channel 渠道凭据
type Channel struct {
	ID          string
	Type        valueobject.ChannelType
	Name        string
	AccessToken string
	Enabled     bool
}
