// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// authパッケージのSessionMetricsとsightingパッケージのSagaMetricsを満たす。
type Collector struct {
	sessionCreated     prometheus.Counter
	sessionRenewed     prometheus.Counter
	sessionInvalidated prometheus.Counter
	submissionSuccess  *prometheus.CounterVec
	submissionFail     *prometheus.CounterVec
	compensationFail   prometheus.Counter
	uploadLatency      prometheus.Histogram
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slothspotter_sessions_created_total",
			Help: "発行されたセッションの合計数",
		}),
		sessionRenewed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slothspotter_sessions_renewed_total",
			Help: "スライディング更新されたセッションの合計数",
		}),
		sessionInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slothspotter_sessions_invalidated_total",
			Help: "破棄されたセッションの合計数",
		}),
		submissionSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slothspotter_submission_success_total",
			Help: "報告送信成功の合計数",
		}, []string{"sighting_type"}),
		submissionFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slothspotter_submission_fail_total",
			Help: "報告送信失敗の合計数",
		}, []string{"sighting_type"}),
		compensationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slothspotter_compensation_fail_total",
			Help: "巻き戻し処理が完遂できなかった回数",
		}),
		uploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slothspotter_image_upload_latency_seconds",
			Help:    "画像アップロードのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slothspotter_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sessionCreated,
		c.sessionRenewed,
		c.sessionInvalidated,
		c.submissionSuccess,
		c.submissionFail,
		c.compensationFail,
		c.uploadLatency,
		c.httpStatus,
	)

	return c
}

// RecordSessionCreated はセッション発行を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionCreated.Inc()
}

// RecordSessionRenewed はセッションのスライディング更新を記録する。
func (c *Collector) RecordSessionRenewed() {
	c.sessionRenewed.Inc()
}

// RecordSessionInvalidated はセッションの破棄を記録する。
func (c *Collector) RecordSessionInvalidated() {
	c.sessionInvalidated.Inc()
}

// RecordSubmissionSuccess は報告送信の成功を記録する。
func (c *Collector) RecordSubmissionSuccess(sightingType string) {
	c.submissionSuccess.WithLabelValues(sightingType).Inc()
}

// RecordSubmissionFailure は報告送信の失敗を記録する。
func (c *Collector) RecordSubmissionFailure(sightingType string) {
	c.submissionFail.WithLabelValues(sightingType).Inc()
}

// RecordCompensationFailure は巻き戻し処理の不完遂を記録する。
func (c *Collector) RecordCompensationFailure() {
	c.compensationFail.Inc()
}

// ObserveUploadDuration は画像アップロードのレイテンシを記録する。
func (c *Collector) ObserveUploadDuration(seconds float64) {
	c.uploadLatency.Observe(seconds)
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
