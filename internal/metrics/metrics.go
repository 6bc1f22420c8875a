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
// フェッチャーとディスパッチャから利用する。
type MetricsCollector interface {
	RecordHandleSuccess()
	RecordHandleFailure(reasonCode string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordPostsFetched(count int)
	RecordCacheHit()
	RecordCacheMiss()
	RecordScanStarted()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	handleSuccess prometheus.Counter
	handleFail    *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	postsFetched  prometheus.Counter
	cacheHit      prometheus.Counter
	cacheMiss     prometheus.Counter
	scansStarted  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		handleSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reachscan_handle_success_total",
			Help: "ハンドル取得成功の合計数",
		}),
		handleFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reachscan_handle_fail_total",
			Help: "理由コード別のハンドル取得失敗数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reachscan_upstream_http_status_total",
			Help: "上流APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reachscan_fetch_latency_seconds",
			Help:    "ハンドル1件分のフェッチレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		postsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reachscan_posts_fetched_total",
			Help: "取得した投稿レコードの合計数",
		}),
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reachscan_profile_cache_hit_total",
			Help: "プロフィールキャッシュのヒット数",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reachscan_profile_cache_miss_total",
			Help: "プロフィールキャッシュのミス数",
		}),
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reachscan_scans_started_total",
			Help: "開始したスキャンの合計数",
		}),
	}

	reg.MustRegister(
		c.handleSuccess,
		c.handleFail,
		c.httpStatus,
		c.fetchLatency,
		c.postsFetched,
		c.cacheHit,
		c.cacheMiss,
		c.scansStarted,
	)

	return c
}

// RecordHandleSuccess はハンドル取得成功を記録する。
func (c *Collector) RecordHandleSuccess() {
	c.handleSuccess.Inc()
}

// RecordHandleFailure は理由コード付きでハンドル取得失敗を記録する。
func (c *Collector) RecordHandleFailure(reasonCode string) {
	c.handleFail.WithLabelValues(reasonCode).Inc()
}

// RecordHTTPStatus は上流APIのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はハンドル1件分のフェッチレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordPostsFetched は取得した投稿数を記録する。
func (c *Collector) RecordPostsFetched(count int) {
	c.postsFetched.Add(float64(count))
}

// RecordCacheHit はプロフィールキャッシュのヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHit.Inc()
}

// RecordCacheMiss はプロフィールキャッシュのミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMiss.Inc()
}

// RecordScanStarted はスキャン開始を記録する。
func (c *Collector) RecordScanStarted() {
	c.scansStarted.Inc()
}

// Nop は何も記録しないMetricsCollector。CLIモードとテストで使う。
type Nop struct{}

// RecordHandleSuccess は何もしない。
func (Nop) RecordHandleSuccess() {}

// RecordHandleFailure は何もしない。
func (Nop) RecordHandleFailure(reasonCode string) {}

// RecordHTTPStatus は何もしない。
func (Nop) RecordHTTPStatus(statusCode int) {}

// RecordFetchLatency は何もしない。
func (Nop) RecordFetchLatency(duration time.Duration) {}

// RecordPostsFetched は何もしない。
func (Nop) RecordPostsFetched(count int) {}

// RecordCacheHit は何もしない。
func (Nop) RecordCacheHit() {}

// RecordCacheMiss は何もしない。
func (Nop) RecordCacheMiss() {}

// RecordScanStarted は何もしない。
func (Nop) RecordScanStarted() {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
