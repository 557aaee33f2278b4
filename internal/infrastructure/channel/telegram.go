package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// telegramChunkLimit leaves room for the tags added by ToTelegramHTML.
const telegramChunkLimit = TelegramTextLimit - 512

// BotSender is the part of *tgbotapi.BotAPI used for delivery.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates a bot client for a token.
type BotFactory func(token string) (BotSender, error)

// NewBotAPI is the production BotFactory.
func NewBotAPI(token string) (BotSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// TelegramSender delivers replies through the Bot API, one client per token.
type TelegramSender struct {
	newBot BotFactory
	mu     sync.Mutex
	bots   map[string]BotSender
	logger *zap.Logger
}

// NewTelegramSender 创建 Telegram 发送器
func NewTelegramSender(newBot BotFactory, logger *zap.Logger) *TelegramSender {
	if newBot == nil {
		newBot = NewBotAPI
	}
	return &TelegramSender{
		newBot: newBot,
		bots:   make(map[string]BotSender),
		logger: logger.With(zap.String("component", "telegram-sender")),
	}
}

// Use registers an already authorized bot for its token, so the polling
// adapter and the sender share one client.
func (t *TelegramSender) Use(token string, bot BotSender) {
	t.mu.Lock()
	t.bots[token] = bot
	t.mu.Unlock()
}

func (t *TelegramSender) bot(token string) (BotSender, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bots[token]; ok {
		return b, nil
	}
	b, err := t.newBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	t.bots[token] = b
	return b, nil
}

// Send implements Sender. recipientID is the numeric chat id.
func (t *TelegramSender) Send(ctx context.Context, ch *entity.Channel, recipientID, text string) error {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", recipientID, err)
	}
	if ch.AccessToken == "" {
		return fmt.Errorf("telegram channel %s has no bot token", ch.ID)
	}
	bot, err := t.bot(ch.AccessToken)
	if err != nil {
		return err
	}

	for _, chunk := range Chunk(text, telegramChunkLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.sendChunk(bot, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// sendChunk sends one chunk as HTML. If Telegram rejects the markup the
// chunk is resent as plain text.
func (t *TelegramSender) sendChunk(bot BotSender, chatID int64, chunk string) error {
	msg := tgbotapi.NewMessage(chatID, ToTelegramHTML(chunk))
	msg.ParseMode = tgbotapi.ModeHTML

	_, err := bot.Send(msg)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		t.logger.Warn("HTML parse failed, retrying as plain text",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		msg = tgbotapi.NewMessage(chatID, ToPlainText(chunk))
		_, err = bot.Send(msg)
	}
	return err
}
