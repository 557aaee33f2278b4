package entity

import "errors"

var (
	// Message errors
	ErrInvalidMessageID      = errors.New("invalid message id")
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrInvalidRole           = errors.New("invalid sender role")
	ErrEmptyMessage          = errors.New("message has neither text nor image")

	// Conversation errors
	ErrInvalidChannelID = errors.New("invalid channel id")
	ErrInvalidSenderID  = errors.New("invalid sender id")

	// Order errors
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 100")
	ErrEmptyOrderItem  = errors.New("order requires exactly one item")
)
