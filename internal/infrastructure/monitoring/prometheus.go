package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler returns an http.Handler that serves Prometheus text format metrics.
// Mount it at "/metrics" in the HTTP server.
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		m.mu.Lock()
		revenue := m.revenue[m.currency]
		m.mu.Unlock()

		lines := []struct {
			name string
			help string
			typ  string
			val  any
		}{
			// Pipeline counters
			{"chatcommerce_messages_received_total", "Inbound customer messages accepted", "counter", atomic.LoadUint64(&m.metrics.MessagesReceived)},
			{"chatcommerce_replies_delivered_total", "Replies delivered to a channel", "counter", atomic.LoadUint64(&m.metrics.RepliesDelivered)},
			{"chatcommerce_replies_failed_total", "Replies abandoned before delivery", "counter", atomic.LoadUint64(&m.metrics.RepliesFailed)},
			{"chatcommerce_delivery_failed_total", "Channel sends that failed", "counter", atomic.LoadUint64(&m.metrics.DeliveryFailed)},

			// Orders
			{"chatcommerce_orders_created_total", "Orders created from assistant commands", "counter", atomic.LoadUint64(&m.metrics.OrdersCreated)},
			{"chatcommerce_order_units_total", "Units sold through created orders", "counter", atomic.LoadUint64(&m.metrics.OrderUnits)},

			// Gauges
			{"chatcommerce_uptime_seconds", "Process uptime in seconds", "gauge", time.Since(m.metrics.StartTime).Seconds()},

			// Runtime metrics
			{"chatcommerce_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"chatcommerce_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
			{"chatcommerce_gc_cycles_total", "Total number of completed GC cycles", "counter", memStats.NumGC},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			case uint32:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "# HELP chatcommerce_order_revenue_total Order totals including shipping\n")
		fmt.Fprintf(w, "# TYPE chatcommerce_order_revenue_total counter\n")
		fmt.Fprintf(w, "chatcommerce_order_revenue_total{currency=%q} %f\n\n", m.currency, revenue)

		stages := m.stages()
		if len(stages) > 0 {
			fmt.Fprintf(w, "# HELP chatcommerce_stage_failures_total Pipeline failures by stage\n")
			fmt.Fprintf(w, "# TYPE chatcommerce_stage_failures_total counter\n")
			for _, s := range stages {
				fmt.Fprintf(w, "chatcommerce_stage_failures_total{stage=%q} %d\n", s.Stage, s.Count)
			}
			fmt.Fprintln(w)
		}
	})
}
