package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results used as the "result" label of FeedBuilds.
const (
	ResultOK          = "ok"
	ResultFetchError  = "fetch_error"
	ResultDecodeError = "decode_error"
	ResultError       = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikical_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wikical_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	feedBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikical_feed_builds_total",
		Help: "Feed builds by outcome.",
	}, []string{"result"})

	feedBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wikical_feed_build_duration_seconds",
		Help:    "Time spent fetching the events page and rendering the calendar.",
		Buckets: prometheus.DefBuckets,
	})

	eventsExtracted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wikical_events_extracted",
		Help: "Events extracted from the events page by the last successful build.",
	})

	eventsRendered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wikical_events_rendered",
		Help: "VEVENTs written by the last successful build, including per-day copies.",
	})
)

// Middleware records request count and latency per route.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBuild records the outcome of one feed build. extracted and rendered
// are only recorded for successful builds.
func ObserveBuild(result string, start time.Time, extracted, rendered int) {
	feedBuilds.WithLabelValues(result).Inc()
	feedBuildDuration.Observe(time.Since(start).Seconds())
	if result == ResultOK {
		eventsExtracted.Set(float64(extracted))
		eventsRendered.Set(float64(rendered))
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
