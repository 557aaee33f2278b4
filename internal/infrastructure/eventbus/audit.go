package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/service"
)

// AuditLogger writes every domain event to the log. Failed deliveries and
// failed generations are logged at warn level for manual follow-up.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger 创建审计订阅者
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With(zap.String("component", "audit"))}
}

// Attach subscribes the audit logger to all events on bus.
func (a *AuditLogger) Attach(bus *InMemoryBus) {
	bus.Subscribe(WildcardType, a.Handle)
}

// Handle 处理单个事件
func (a *AuditLogger) Handle(_ context.Context, event Event) {
	fields := []zap.Field{
		zap.String("event", event.Type()),
		zap.Time("at", event.Timestamp()),
		zap.Any("payload", event.Payload()),
	}
	switch event.Type() {
	case service.EventDeliveryFailed, service.EventReplyFailed:
		a.logger.Warn("Audit event", fields...)
	default:
		a.logger.Info("Audit event", fields...)
	}
}
