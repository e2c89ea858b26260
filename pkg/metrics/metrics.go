package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	PublishedJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "api_published_dispatch_jobs_total", Help: "Dispatch jobs published to queue"},
	)

	DispatchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_runs_total", Help: "Dispatch invocations by result"},
		[]string{"result"},
	)
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_run_duration_seconds",
			Help:    "Time spent on one dispatch invocation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)
	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_sends_total", Help: "Recipient sends by outcome"},
		[]string{"outcome"},
	)
	SendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Transport call latency",
			Buckets: prometheus.DefBuckets,
		},
	)
	TrackingWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_tracking_write_errors_total", Help: "Swallowed tracking store failures"},
		[]string{"op"},
	)

	WorkerJobsConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_jobs_consumed_total", Help: "Dispatch jobs consumed"},
	)
	WorkerJobsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_jobs_dropped_total", Help: "Dispatch jobs dropped as unusable"},
	)
	WorkerProcessDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_job_process_duration_seconds",
			Help:    "Time spent processing a dispatch job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration, PublishedJobsTotal,
		DispatchRunsTotal, DispatchDuration, SendsTotal, SendDuration, TrackingWriteErrors,
		WorkerJobsConsumed, WorkerJobsDropped, WorkerProcessDuration,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
