// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイやチャット、コネクタの各コントローラから利用する。
type MetricsCollector interface {
	RecordRequest(method, outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordChatSubmit(outcome string)
	RecordConnectorAction(action, outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests         *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	chatSubmits      *prometheus.CounterVec
	connectorActions *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sbadash_api_requests_total",
			Help: "バックエンドAPI呼び出しの合計数（メソッド・結果別）",
		}, []string{"method", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sbadash_api_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sbadash_api_request_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		chatSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sbadash_chat_submits_total",
			Help: "チャット送信の合計数（結果別）",
		}, []string{"outcome"}),
		connectorActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sbadash_connector_actions_total",
			Help: "コネクタ操作の合計数（操作・結果別）",
		}, []string{"action", "outcome"}),
	}

	reg.MustRegister(
		c.requests,
		c.httpStatus,
		c.requestLatency,
		c.chatSubmits,
		c.connectorActions,
	)

	return c
}

// RecordRequest はAPI呼び出し1回分の結果とレイテンシを記録する。
func (c *Collector) RecordRequest(method, outcome string, duration time.Duration) {
	c.requests.WithLabelValues(method, outcome).Inc()
	c.requestLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordChatSubmit はチャット送信の結果を記録する。
func (c *Collector) RecordChatSubmit(outcome string) {
	c.chatSubmits.WithLabelValues(outcome).Inc()
}

// RecordConnectorAction はコネクタ操作（load, connect, disconnect）の結果を記録する。
func (c *Collector) RecordConnectorAction(action, outcome string) {
	c.connectorActions.WithLabelValues(action, outcome).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordRequest(string, string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                        {}
func (Nop) RecordChatSubmit(string)                     {}
func (Nop) RecordConnectorAction(string, string)        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
