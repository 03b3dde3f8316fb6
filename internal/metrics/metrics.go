// Package metrics 暴露 update-hub 的 Prometheus 指标：请求量、下载来源与 Releases 目录访问结果。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 下载来源标签。
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
	SourceNone   = "none"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_hub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "update_hub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds (until headers are written)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_hub_downloads_total",
			Help: "Download requests by the source that answered them",
		},
		[]string{"source"},
	)

	directoryFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_hub_directory_fetches_total",
			Help: "Release directory lookups by result",
		},
		[]string{"result"},
	)

	directoryFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "update_hub_directory_fetch_duration_seconds",
			Help:    "Time spent fetching the release list from upstream",
			Buckets: prometheus.DefBuckets,
		},
	)

	pathTraversalTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "update_hub_path_traversal_rejections_total",
			Help: "Requests rejected because they resolved outside the releases directory",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest 记录一次请求的状态码与耗时。
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDownload 记录下载管线的最终来源（local/remote/none）。
func RecordDownload(source string) {
	downloadsTotal.WithLabelValues(source).Inc()
}

// RecordDirectoryCacheHit 记录一次未触发网络访问的目录查询。
func RecordDirectoryCacheHit() {
	directoryFetchesTotal.WithLabelValues("cache_hit").Inc()
}

// RecordDirectoryFetch 记录一次真实的上游访问，result 为 success 或错误码。
func RecordDirectoryFetch(result string, duration time.Duration) {
	directoryFetchesTotal.WithLabelValues(result).Inc()
	directoryFetchDuration.Observe(duration.Seconds())
}

// RecordPathTraversal 记录被拒绝的越界路径。
func RecordPathTraversal() {
	pathTraversalTotal.Inc()
}
