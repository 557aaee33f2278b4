package telegram

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/application/usecase"
	"github.com/chatcommerce/gateway/pkg/safego"
)

// Config Telegram 适配器配置
type Config struct {
	ChannelID string // channels 表中的行 ID
	Timeout   int    // long polling 秒数
}

// UpdateSource is the polling half of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// ReplyHandler 回复流水线
type ReplyHandler interface {
	Reserve(ctx context.Context, ev usecase.InboundEvent) (func() (*usecase.Result, error), error)
}

// Adapter Telegram 入站适配器 (轮询模式)
//
// Each update is reserved in the sender's queue on the polling goroutine and
// then handled on its own goroutine, so one chat's replies follow update order.
type Adapter struct {
	source  UpdateSource
	replies ReplyHandler
	config  Config
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter 创建 Telegram 适配器
func NewAdapter(source UpdateSource, replies ReplyHandler, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.ChannelID == "" {
		cfg.ChannelID = "telegram"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60
	}
	return &Adapter{
		source:  source,
		replies: replies,
		config:  cfg,
		logger:  logger.With(zap.String("component", "telegram")),
	}
}

// Start 启动轮询
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.config.Timeout

	innerCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	updates := a.source.GetUpdatesChan(u)
	a.logger.Info("Starting Telegram polling", zap.String("channel_id", a.config.ChannelID))

	go func() {
		defer close(a.done)
		for {
			select {
			case <-innerCtx.Done():
				a.source.StopReceivingUpdates()
				a.logger.Info("Telegram adapter stopped")
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := a.toEvent(update)
				if !ok {
					continue
				}
				a.dispatch(innerCtx, ev)
			}
		}
	}()
	return nil
}

// Stop 停止轮询; in-flight events keep running to completion.
func (a *Adapter) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (a *Adapter) dispatch(ctx context.Context, ev usecase.InboundEvent) {
	run, err := a.replies.Reserve(context.WithoutCancel(ctx), ev)
	if err != nil {
		a.logger.Warn("Telegram event rejected",
			zap.String("sender_id", ev.SenderID),
			zap.Error(err),
		)
		return
	}
	safego.Go(a.logger, "telegram-update", func() {
		res, err := run()
		if err != nil {
			a.logger.Warn("Telegram event failed",
				zap.String("sender_id", ev.SenderID),
				zap.Error(err),
			)
			return
		}
		a.logger.Debug("Telegram event handled",
			zap.String("sender_id", ev.SenderID),
			zap.String("status", res.Status),
		)
	})
}

// toEvent 转换 Telegram 消息; commands and empty updates are skipped.
func (a *Adapter) toEvent(update tgbotapi.Update) (usecase.InboundEvent, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return usecase.InboundEvent{}, false
	}
	if msg.IsCommand() {
		a.logger.Debug("Ignoring command", zap.String("command", msg.Command()))
		return usecase.InboundEvent{}, false
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}

	var imageURL string
	if len(msg.Photo) > 0 {
		// 最后一个尺寸最大
		largest := msg.Photo[len(msg.Photo)-1]
		url, err := a.source.GetFileDirectURL(largest.FileID)
		if err != nil {
			a.logger.Warn("Failed to resolve photo URL",
				zap.String("file_id", largest.FileID),
				zap.Error(err),
			)
		} else {
			imageURL = url
		}
	}

	if text == "" && imageURL == "" {
		return usecase.InboundEvent{}, false
	}

	ts := time.Now()
	if msg.Date > 0 {
		ts = time.Unix(int64(msg.Date), 0)
	}
	return usecase.InboundEvent{
		SenderID:  strconv.FormatInt(msg.Chat.ID, 10),
		ChannelID: a.config.ChannelID,
		Text:      text,
		ImageURL:  imageURL,
		Timestamp: ts,
	}, true
}
