package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/infrastructure/llm"
	"github.com/chatcommerce/gateway/pkg/errors"
)

// QueryHandler serves read-only views of conversations, orders and
// generation providers.
type QueryHandler struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	orders        repository.OrderRepository
	providers     ProviderLister
	logger        *zap.Logger
}

// ProviderLister 生成后端状态
type ProviderLister interface {
	ListProviders() []llm.ProviderStatus
}

// NewQueryHandler 创建查询处理器
func NewQueryHandler(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	orders repository.OrderRepository,
	providers ProviderLister,
	logger *zap.Logger,
) *QueryHandler {
	return &QueryHandler{
		conversations: conversations,
		messages:      messages,
		orders:        orders,
		providers:     providers,
		logger:        logger,
	}
}

type messageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetMessages 获取会话消息
// GET /api/v1/conversations/:id/messages?limit=&offset=
func (h *QueryHandler) GetMessages(c *gin.Context) {
	id := c.Param("id")
	conv, err := h.conversations.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := h.messages.FindByConversationID(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView{
			ID:        m.ID(),
			Role:      string(m.Role()),
			Text:      m.Text(),
			ImageURL:  m.ImageURL(),
			CreatedAt: m.CreatedAt(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id":  conv.ID(),
		"channel_id":       conv.ChannelID(),
		"sender_id":        conv.SenderID(),
		"last_activity_at": conv.LastActivityAt(),
		"messages":         views,
		"count":            len(views),
	})
}

// GetOrder 获取订单
// GET /api/v1/orders/:number
func (h *QueryHandler) GetOrder(c *gin.Context) {
	order, items, err := h.orders.FindByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}

	lines := make([]gin.H, 0, len(items))
	for _, it := range items {
		lines = append(lines, gin.H{
			"product_id":   it.ProductID,
			"product_name": it.ProductName,
			"size":         it.Size,
			"color":        it.Color,
			"quantity":     it.Quantity,
			"unit_price":   it.UnitPrice.Float64(),
			"line_total":   it.LineTotal.Float64(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"number":          order.Number,
		"conversation_id": order.ConversationID,
		"customer_name":   order.CustomerName,
		"phone":           order.Phone,
		"address":         order.Address,
		"subtotal":        order.Subtotal.Float64(),
		"shipping":        order.Shipping.Float64(),
		"total":           order.Total.Float64(),
		"currency":        order.Currency,
		"status":          order.Status,
		"payment_status":  order.PaymentStatus,
		"created_at":      order.CreatedAt,
		"items":           lines,
	})
}

// GetProviders 获取生成后端状态
// GET /api/v1/providers
func (h *QueryHandler) GetProviders(c *gin.Context) {
	if h.providers == nil {
		c.JSON(http.StatusOK, gin.H{"providers": []any{}, "count": 0})
		return
	}
	list := h.providers.ListProviders()
	c.JSON(http.StatusOK, gin.H{"providers": list, "count": len(list)})
}

func (h *QueryHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Query failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.CodeOf(err)})
}
