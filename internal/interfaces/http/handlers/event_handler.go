package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/application/usecase"
	"github.com/chatcommerce/gateway/pkg/errors"
	"github.com/chatcommerce/gateway/pkg/safego"
)

// ReplyHandler runs the reply pipeline for one event. Reserve takes the
// event's place in its sender's queue before the work moves to a goroutine.
type ReplyHandler interface {
	Handle(ctx context.Context, ev usecase.InboundEvent) (*usecase.Result, error)
	Reserve(ctx context.Context, ev usecase.InboundEvent) (func() (*usecase.Result, error), error)
}

// EventHandler 入站事件处理器
type EventHandler struct {
	replies ReplyHandler
	logger  *zap.Logger
}

// NewEventHandler 创建入站事件处理器
func NewEventHandler(replies ReplyHandler, logger *zap.Logger) *EventHandler {
	return &EventHandler{replies: replies, logger: logger}
}

// PostEventRequest is an already normalized inbound message.
type PostEventRequest struct {
	SenderID       string    `json:"sender_id" binding:"required"`
	ChannelID      string    `json:"channel_id" binding:"required"`
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text"`
	ImageURL       string    `json:"image_url"`
	Timestamp      time.Time `json:"timestamp"`
}

// PostEvent accepts an inbound event.
// POST /api/v1/events[?wait=true]
//
// By default the pipeline runs in the background and 202 is returned at
// once. With wait=true the call blocks and returns the outcome.
func (h *EventHandler) PostEvent(c *gin.Context) {
	var req PostEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := usecase.InboundEvent{
		SenderID:       req.SenderID,
		ChannelID:      req.ChannelID,
		ConversationID: req.ConversationID,
		Text:           req.Text,
		ImageURL:       req.ImageURL,
		Timestamp:      req.Timestamp,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := ev.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errors.CodeOf(err)})
		return
	}

	if c.Query("wait") != "true" {
		run, err := h.replies.Reserve(context.WithoutCancel(c.Request.Context()), ev)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "code": errors.CodeOf(err)})
			return
		}
		safego.Go(h.logger, "inbound-event", func() {
			if _, err := run(); err != nil {
				h.logger.Warn("Event processing failed",
					zap.String("sender_id", ev.SenderID),
					zap.String("channel_id", ev.ChannelID),
					zap.Error(err),
				)
			}
		})
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
		return
	}

	res, err := h.replies.Handle(c.Request.Context(), ev)
	if err != nil {
		h.logger.Error("Failed to process event", zap.String("sender_id", ev.SenderID), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "code": errors.CodeOf(err)})
		return
	}
	c.JSON(http.StatusOK, res)
}

func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound, errors.CodeProductNotFound:
		return http.StatusNotFound
	case errors.CodeGenerationFailed, errors.CodeDeliveryFailed:
		return http.StatusBadGateway
	case errors.CodeServiceUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
