package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// DefaultHistoryLimit caps the turns handed to the prompt builder.
const DefaultHistoryLimit = 20

// Turn is one prior conversation line.
type Turn struct {
	Role valueobject.SenderRole
	Text string
}

// Line renders the turn as "role: text".
func (t Turn) Line() string {
	return fmt.Sprintf("%s: %s", t.Role, t.Text)
}

// ContextAssembler loads prior turns of a conversation.
type ContextAssembler struct {
	messages repository.MessageRepository
	limit    int
	logger   *zap.Logger
}

// NewContextAssembler 创建上下文组装器
func NewContextAssembler(messages repository.MessageRepository, limit int, logger *zap.Logger) *ContextAssembler {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &ContextAssembler{
		messages: messages,
		limit:    limit,
		logger:   logger.With(zap.String("component", "context")),
	}
}

// LoadHistory returns prior turns in creation order, without the in-flight
// customer message. An empty result means first contact.
func (a *ContextAssembler) LoadHistory(ctx context.Context, conversationID, excludeText string) ([]Turn, error) {
	msgs, err := a.messages.FindByConversationID(ctx, conversationID, 0, 0)
	if err != nil {
		return nil, err
	}

	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text()
		if text == "" && m.ImageURL() != "" {
			text = "[image] " + m.ImageURL()
		}
		turns = append(turns, Turn{Role: m.Role(), Text: text})
	}

	turns = removeLastCustomerTurn(turns, excludeText)

	if len(turns) > a.limit {
		turns = turns[len(turns)-a.limit:]
	}

	a.logger.Debug("History loaded",
		zap.String("conversation_id", conversationID),
		zap.Int("turns", len(turns)),
	)
	return turns, nil
}

// removeLastCustomerTurn drops at most one customer turn equal to text,
// searching from the end.
func removeLastCustomerTurn(turns []Turn, text string) []Turn {
	want := strings.TrimSpace(text)
	if want == "" {
		return turns
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == valueobject.RoleCustomer && strings.TrimSpace(turns[i].Text) == want {
			return append(turns[:i:i], turns[i+1:]...)
		}
	}
	return turns
}

// FirstContact reports whether history is empty.
func FirstContact(history []Turn) bool {
	return len(history) == 0
}
