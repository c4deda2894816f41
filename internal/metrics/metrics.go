// Package metrics exposes Prometheus collectors for HTTP traffic and regrade batches.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/quiz-overview/internal/regrade"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	RegradeBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regrade_batches_total",
			Help: "Regrade and close batches by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	RegradeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regrade_attempts_total",
			Help: "Attempts processed by regrade batches",
		},
		[]string{"result"},
	)

	RegradeDeltas = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regrade_deltas_total",
			Help: "Slot fraction changes recorded by regrade batches",
		},
		[]string{"dry_run"},
	)

	RegradeBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regrade_batch_duration_seconds",
			Help:    "Duration of regrade batches",
			Buckets: []float64{0.5, 1, 5, 15, 60, 300},
		},
		[]string{"mode"},
	)
)

// Init registers every collector with the default registry.
func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RegradeBatches)
	prometheus.MustRegister(RegradeAttempts)
	prometheus.MustRegister(RegradeDeltas)
	prometheus.MustRegister(RegradeBatchDuration)
}

// Batch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// ObserveBatch records one finished batch.
func ObserveBatch(mode string, res *regrade.BatchResult, err error, elapsed time.Duration) {
	RegradeBatchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())

	if err != nil || res == nil {
		RegradeBatches.WithLabelValues(mode, OutcomeError).Inc()
		return
	}

	outcome := OutcomeSuccess
	if len(res.Failed) > 0 {
		outcome = OutcomePartial
	}
	RegradeBatches.WithLabelValues(mode, outcome).Inc()
	RegradeAttempts.WithLabelValues("regraded").Add(float64(res.Regraded))
	RegradeAttempts.WithLabelValues("failed").Add(float64(len(res.Failed)))
	RegradeDeltas.WithLabelValues(strconv.FormatBool(res.DryRun)).Add(float64(res.Deltas))
}

// Middleware counts requests and their latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

// Handler serves the default registry in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
