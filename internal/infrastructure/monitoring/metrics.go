// Package monitoring Prometheus 指标
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

const namespace = "iafleet"

// Metrics 指标集合，注册在独立的 Registry 上，测试之间互不干扰
type Metrics struct {
	registry *prometheus.Registry

	// OperationsTotal 按操作与结果码统计的领域操作次数
	OperationsTotal *prometheus.CounterVec
	// OperationDuration 领域操作耗时
	OperationDuration *prometheus.HistogramVec
	// HTTPRequestsTotal 按路由与状态码统计的 HTTP 请求
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec
	// EventsPublished 已发布的变更事件
	EventsPublished *prometheus.CounterVec
	// WebsocketClients 当前连接的 websocket 客户端数
	WebsocketClients prometheus.Gauge
}

// NewMetrics 创建并注册全部指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fleet",
				Name:      "operations_total",
				Help:      "Total number of fleet operations by operation and result code",
			},
			[]string{"operation", "code"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fleet",
				Name:      "operation_duration_seconds",
				Help:      "Duration of fleet operations in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of change events published",
			},
			[]string{"type"},
		),
		WebsocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "websocket",
				Name:      "clients",
				Help:      "Number of connected websocket clients",
			},
		),
	}
}

// ObserveOperation 记录一次领域操作，code 取自错误码，成功为 OK
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	code := "OK"
	if err != nil {
		code = string(domainErrors.CodeOf(err))
		if code == "" {
			code = string(domainErrors.CodeInternal)
		}
	}
	m.OperationsTotal.WithLabelValues(operation, code).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
