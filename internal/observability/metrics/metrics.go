package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

var (
	once                           sync.Once
	metricsRouter                  *chi.Mux
	clientRequestDurationHistogram *prometheus.HistogramVec
	duneClientLatency              *prometheus.HistogramVec
	dbLatency                      *prometheus.HistogramVec
	analysisDurationHistogram      *prometheus.HistogramVec
	pollerDurationHistogram        *prometheus.HistogramVec
	chartRenderErrorCounter        *prometheus.CounterVec
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics initializes and register the Prometheus metrics.
func registerMetrics() {
	defaultHistogramBucketsSeconds := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

	// client requests are the ones sending to other service
	clientRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Histogram of outgoing client request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"baseurl", "method", "path", "status"},
	)

	duneClientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dune_client_latency_seconds",
			Help:    "Histogram of Dune client durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_latency_seconds",
			Help:    "Histogram of db operation durations in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "status"},
	)

	analysisDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Histogram of full analysis run durations in seconds.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"module", "status"},
	)

	pollerDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Histogram of poller durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"type", "status"},
	)

	chartRenderErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_render_error_count",
			Help: "The total number of chart rendering failures",
		},
		[]string{"chart"},
	)

	prometheus.MustRegister(
		clientRequestDurationHistogram,
		duneClientLatency,
		dbLatency,
		analysisDurationHistogram,
		pollerDurationHistogram,
		chartRenderErrorCounter,
	)
}

// RecordHttpClientRequestDuration records a single outgoing HTTP request.
// The path label must be the route template, never the expanded path, to keep
// label cardinality bounded.
func RecordHttpClientRequestDuration(baseURL, method, path string, statusCode int, duration time.Duration) {
	if clientRequestDurationHistogram == nil {
		return
	}
	clientRequestDurationHistogram.WithLabelValues(
		baseURL, method, path, strconv.Itoa(statusCode),
	).Observe(duration.Seconds())
}

func RecordDuneClientLatency(method string, duration time.Duration, err error) {
	if duneClientLatency == nil {
		return
	}
	duneClientLatency.WithLabelValues(method, outcome(err).String()).Observe(duration.Seconds())
}

func RecordDbLatency(method string, duration time.Duration, err error) {
	if dbLatency == nil {
		return
	}
	dbLatency.WithLabelValues(method, outcome(err).String()).Observe(duration.Seconds())
}

// RecordAnalysisDuration wraps a full analysis run with a duration histogram.
func RecordAnalysisDuration(module string, run func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		err := run(ctx)
		if analysisDurationHistogram != nil {
			analysisDurationHistogram.WithLabelValues(module, outcome(err).String()).Observe(time.Since(start).Seconds())
		}
		return err
	}
}

// RecordPollerDuration wraps a poll method with a duration histogram.
func RecordPollerDuration(pollerName string, pollMethod func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		err := pollMethod(ctx)
		if pollerDurationHistogram != nil {
			pollerDurationHistogram.WithLabelValues(pollerName, outcome(err).String()).Observe(time.Since(start).Seconds())
		}
		return err
	}
}

func RecordChartRenderError(chart string) {
	if chartRenderErrorCounter == nil {
		return
	}
	chartRenderErrorCounter.WithLabelValues(chart).Inc()
}

func outcome(err error) Outcome {
	if err != nil {
		return Error
	}
	return Success
}
