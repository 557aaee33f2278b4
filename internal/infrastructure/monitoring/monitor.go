package monitoring

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/service"
	"github.com/chatcommerce/gateway/internal/infrastructure/eventbus"
)

// Metrics 指标收集器
type Metrics struct {
	// 流水线计数
	MessagesReceived uint64
	RepliesDelivered uint64
	RepliesFailed    uint64
	DeliveryFailed   uint64

	// 订单
	OrdersCreated uint64
	OrderUnits    uint64

	// 启动时间
	StartTime time.Time
}

// Monitor counts pipeline outcomes from domain events.
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger

	mu           sync.Mutex
	failedStages map[string]uint64
	revenue      map[string]float64 // 币种 → 订单总额
	currency     string
}

// NewMonitor 创建监控器
func NewMonitor(currency string, logger *zap.Logger) *Monitor {
	return &Monitor{
		metrics:      &Metrics{StartTime: time.Now()},
		logger:       logger.With(zap.String("component", "monitor")),
		failedStages: make(map[string]uint64),
		revenue:      make(map[string]float64),
		currency:     currency,
	}
}

// Attach subscribes the monitor to the pipeline events on bus.
func (m *Monitor) Attach(bus *eventbus.InMemoryBus) {
	for _, t := range []string{
		service.EventMessageReceived,
		service.EventReplyDelivered,
		service.EventReplyFailed,
		service.EventDeliveryFailed,
		service.EventOrderCreated,
	} {
		bus.Subscribe(t, m.Handle)
	}
}

// Handle 处理单个事件
func (m *Monitor) Handle(_ context.Context, event eventbus.Event) {
	switch event.Type() {
	case service.EventMessageReceived:
		atomic.AddUint64(&m.metrics.MessagesReceived, 1)
	case service.EventReplyDelivered:
		atomic.AddUint64(&m.metrics.RepliesDelivered, 1)
	case service.EventReplyFailed:
		atomic.AddUint64(&m.metrics.RepliesFailed, 1)
		m.failedStage(event.Payload())
	case service.EventDeliveryFailed:
		atomic.AddUint64(&m.metrics.DeliveryFailed, 1)
		m.failedStage(event.Payload())
	case service.EventOrderCreated:
		atomic.AddUint64(&m.metrics.OrdersCreated, 1)
		if p, ok := event.Payload().(service.OrderCreatedPayload); ok {
			atomic.AddUint64(&m.metrics.OrderUnits, uint64(p.Quantity))
			m.mu.Lock()
			m.revenue[m.currency] += p.Total
			m.mu.Unlock()
		}
	}
}

func (m *Monitor) failedStage(payload any) {
	stage := "unknown"
	if p, ok := payload.(service.ReplyPayload); ok && p.Stage != "" {
		stage = p.Stage
	}
	m.mu.Lock()
	m.failedStages[stage]++
	m.mu.Unlock()
}

// stageCount is one labelled failure counter.
type stageCount struct {
	Stage string
	Count uint64
}

func (m *Monitor) stages() []stageCount {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]stageCount, 0, len(m.failedStages))
	for s, n := range m.failedStages {
		out = append(out, stageCount{Stage: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// GetStats 获取当前统计
func (m *Monitor) GetStats() map[string]any {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.Lock()
	revenue := m.revenue[m.currency]
	m.mu.Unlock()

	return map[string]any{
		"uptime_seconds":    time.Since(m.metrics.StartTime).Seconds(),
		"messages_received": atomic.LoadUint64(&m.metrics.MessagesReceived),
		"replies_delivered": atomic.LoadUint64(&m.metrics.RepliesDelivered),
		"replies_failed":    atomic.LoadUint64(&m.metrics.RepliesFailed),
		"delivery_failed":   atomic.LoadUint64(&m.metrics.DeliveryFailed),
		"orders_created":    atomic.LoadUint64(&m.metrics.OrdersCreated),
		"order_units":       atomic.LoadUint64(&m.metrics.OrderUnits),
		"order_revenue":     revenue,
		"currency":          m.currency,
		"memory_mb":         float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":        runtime.NumGoroutine(),
	}
}
