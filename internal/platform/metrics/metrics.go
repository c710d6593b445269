// Package metrics はリポジトリ取り込み・アウトライン生成の Prometheus メトリクスを提供する
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo_outliner_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repo_outliner_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ツリー走査
	directoriesListedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo_outliner_directories_listed_total",
			Help: "Total directory listing calls against the source provider",
		},
		[]string{"status"},
	)

	entriesClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo_outliner_entries_classified_total",
			Help: "Total tree entries classified, by decision reason",
		},
		[]string{"kind", "reason"},
	)

	// アップロード
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo_outliner_uploads_total",
			Help: "Total file uploads to the remote index, by outcome",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "repo_outliner_upload_bytes_total",
			Help: "Total bytes uploaded to the remote index",
		},
	)

	uploadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "repo_outliner_upload_retries_total",
			Help: "Total retried upload or attach attempts",
		},
	)

	uploadRateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repo_outliner_upload_rate_limit_wait_seconds",
			Help:    "Time uploads spent waiting for the rate limiter",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	// インデックス構築
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo_outliner_builds_total",
			Help: "Total index/assistant resolutions, by result",
		},
		[]string{"result"},
	)

	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repo_outliner_build_duration_seconds",
			Help:    "Time to build an index and assistant for a repository",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// SSE
	streamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "repo_outliner_streams_active",
			Help: "Number of active outline streams",
		},
	)

	streamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo_outliner_stream_events_total",
			Help: "Total stream events delivered to clients",
		},
		[]string{"type"},
	)
)

// Handler は Prometheus メトリクスの HTTP ハンドラを返す
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest は HTTP リクエストを記録する
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDirectoryListing はディレクトリ一覧取得を記録する
func RecordDirectoryListing(success bool) {
	directoriesListedTotal.WithLabelValues(status(success)).Inc()
}

// RecordClassification はエントリの分類結果を記録する
// kind は "file" または "dir"
func RecordClassification(kind, reason string) {
	entriesClassifiedTotal.WithLabelValues(kind, reason).Inc()
}

// RecordUpload はファイルアップロードの結果を記録する
// outcome は "attached" / "skipped" / "error"
func RecordUpload(outcome string, bytes int) {
	uploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == "attached" {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// RecordUploadRetry はリトライを記録する
func RecordUploadRetry() {
	uploadRetriesTotal.Inc()
}

// RecordRateLimitWait はレート制限による待機時間を記録する
func RecordRateLimitWait(wait time.Duration) {
	uploadRateLimitWait.Observe(wait.Seconds())
}

// RecordBuild はインデックス解決の結果を記録する
// result は "reused" / "built" / "error"
func RecordBuild(result string, duration time.Duration) {
	buildsTotal.WithLabelValues(result).Inc()
	if result == "built" {
		buildDuration.Observe(duration.Seconds())
	}
}

// StreamStarted はストリーム開始を記録し、終了時に呼ぶ関数を返す
func StreamStarted() func() {
	streamsActive.Inc()
	return streamsActive.Dec
}

// RecordStreamEvent はストリームイベントの送出を記録する
func RecordStreamEvent(eventType string) {
	streamEventsTotal.WithLabelValues(eventType).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter はステータスコードを記録する http.ResponseWriter のラッパー
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush は SSE のために下位の Flusher へ委譲する
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware はリクエストメトリクスを記録する HTTP ミドルウェアを返す
// パスのラベルにはルーティングパターンを使い、カーディナリティを抑える
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
