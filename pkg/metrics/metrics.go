// Package metrics 提供 Prometheus helper，包含订单/结算核心的业务指标
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/tradingcore/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 订单提交计数
	OrdersSubmitted prometheus.Counter
	// 订单被券商策略拒绝计数
	OrdersRejected prometheus.Counter
	// 订单成交（含部分成交）计数
	FillsApplied prometheus.Counter
	// 活跃（非终态）订单数
	OrdersActive prometheus.Gauge

	// 已结算现金释放计数
	CashSettlementsTotal prometheus.Counter
	// 当前未结算现金记录数
	UnsettledRecords prometheus.Gauge
	// 结算扫描耗时
	SettlementScanDuration prometheus.Histogram
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "orders_submitted_total",
			Help:      "Total orders submitted",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "orders_rejected_total",
			Help:      "Total orders rejected by brokerage policy",
		}),
		FillsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "fills_applied_total",
			Help:      "Total fills applied to orders",
		}),
		OrdersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "orders_active",
			Help:      "Number of orders in a non-terminal state",
		}),
		CashSettlementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "cash_settlements_total",
			Help:      "Total unsettled cash records released to settled cash",
		}),
		UnsettledRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "unsettled_cash_records",
			Help:      "Number of unsettled cash records pending settlement",
		}),
		SettlementScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradingcore",
			Subsystem: serviceName,
			Name:      "settlement_scan_duration_seconds",
			Help:      "Duration of settlement scans in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
	}
}

// Register 注册所有指标到默认 registry
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.FillsApplied,
		m.OrdersActive,
		m.CashSettlementsTotal,
		m.UnsettledRecords,
		m.SettlementScanDuration,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()
}
