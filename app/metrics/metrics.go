package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lysyi3m/content-comb/app/ingest"
)

const namespace = "contentcomb"

var _ ingest.Recorder = (*Collector)(nil)

// Collector owns a private registry with run, source and HTTP metrics.
type Collector struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	sourceItems  *prometheus.CounterVec
	sourceErrors *prometheus.CounterVec

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by mode and outcome.",
		}, []string{"mode", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		sourceItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_items_total",
			Help:      "Upstream entries processed per source, by outcome.",
		}, []string{"source", "outcome"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed source runs by error kind.",
		}, []string{"source", "kind"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
	}

	collectors := []prometheus.Collector{
		c.runsTotal, c.runDuration, c.sourceItems, c.sourceErrors,
		c.requestDuration, c.requestTotal,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency. Paths are labelled
// by route template so per-source URLs share a series.
func (c *Collector) InstrumentHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		method := ctx.Request.Method

		c.requestTotal.WithLabelValues(method, path, status).Inc()
		c.requestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) RecordRun(mode ingest.ModeKind, status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(string(mode), status).Inc()
	c.runDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
}

func (c *Collector) RecordSource(summary ingest.SourceSummary) {
	outcomes := map[string]int{
		"new":          summary.New,
		"duplicate":    summary.Duplicate,
		"out_of_range": summary.OutOfRange,
		"filtered":     summary.Filtered,
	}
	for outcome, count := range outcomes {
		if count > 0 {
			c.sourceItems.WithLabelValues(summary.SourceID, outcome).Add(float64(count))
		}
	}

	if summary.ErrorKind != "" {
		c.sourceErrors.WithLabelValues(summary.SourceID, string(summary.ErrorKind)).Inc()
	}
}
