// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値。
const (
	OutcomeSuccess      = "success"
	OutcomeEmpty        = "empty"
	OutcomeInvalidURL   = "invalid_url"
	OutcomeInvalidInput = "invalid_input"
	OutcomeUnauthorized = "unauthenticated"
	OutcomeResolving    = "resolving"
	OutcomeRejected     = "rejected"
	OutcomeTransport    = "transport_failure"
	OutcomeSuperseded   = "superseded"
	OutcomeFailure      = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ビューステートマシンや認証サービスから利用する。
type MetricsCollector interface {
	RecordSubmission(outcome string)
	RecordSummaryFetch(outcome string, duration time.Duration)
	RecordAuthAttempt(action, outcome string)
	RecordHTTPStatus(statusCode int)
	SetActiveViews(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	submissions  *prometheus.CounterVec
	summaryFetch *prometheus.CounterVec
	fetchLatency prometheus.Histogram
	authAttempts *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	activeViews  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decodetube_submissions_total",
			Help: "URL送信の結果別件数",
		}, []string{"outcome"}),
		summaryFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decodetube_summary_fetch_total",
			Help: "要約取得の結果別件数",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "decodetube_summary_fetch_latency_seconds",
			Help:    "要約取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decodetube_auth_attempts_total",
			Help: "認証操作の種類・結果別件数",
		}, []string{"action", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decodetube_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		activeViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "decodetube_active_views",
			Help: "保持中のクライアント別ビュー数",
		}),
	}

	reg.MustRegister(
		c.submissions,
		c.summaryFetch,
		c.fetchLatency,
		c.authAttempts,
		c.httpStatus,
		c.activeViews,
	)

	return c
}

// RecordSubmission はURL送信の結果を記録する。
func (c *Collector) RecordSubmission(outcome string) {
	c.submissions.WithLabelValues(outcome).Inc()
}

// RecordSummaryFetch は要約取得の結果とレイテンシを記録する。
func (c *Collector) RecordSummaryFetch(outcome string, duration time.Duration) {
	c.summaryFetch.WithLabelValues(outcome).Inc()
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordAuthAttempt は認証操作の結果を記録する。
func (c *Collector) RecordAuthAttempt(action, outcome string) {
	c.authAttempts.WithLabelValues(action, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetActiveViews は保持中のビュー数を設定する。
func (c *Collector) SetActiveViews(count int) {
	c.activeViews.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordSubmission(string) {}
func (Nop) RecordSummaryFetch(string, time.Duration) {}
func (Nop) RecordAuthAttempt(string, string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) SetActiveViews(int) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
