// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exampin"

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	PinsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pins_generated_total",
		Help:      "Pins created by batch generation",
	})

	PinRedemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pin_redemptions_total",
		Help:      "Pin redemption attempts by outcome",
	}, []string{"outcome"})

	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exam_submissions_total",
		Help:      "Scored exam submissions by trigger",
	}, []string{"reason"})

	ScorePercentage = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "exam_score_percentage",
		Help:      "Distribution of submission percentages",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})

	ResultsPersisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_persisted_total",
		Help:      "Results written to PostgreSQL by the result worker",
	}, []string{"mode"})

	LiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_sessions",
		Help:      "Exam sessions held in the in-process registry",
	})
)

// Init registers every collector on the default registry. Call once.
func Init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		PinsGenerated,
		PinRedemptions,
		Submissions,
		ScorePercentage,
		ResultsPersisted,
		LiveSessions,
	)
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
