// Package metrics exposes Prometheus RED metrics for the gRPC and HTTP
// surfaces along with flag resolution counters.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "grapio"

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds every collector registered on its own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	GRPCHandledTotal     *prometheus.CounterVec
	GRPCHandlingDuration *prometheus.HistogramVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	DetectionsTotal      *prometheus.CounterVec
	ConflictsTotal       prometheus.Counter
	WritesTotal          *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		GRPCHandledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_server_handled_total",
				Help:      "Total number of RPCs completed on the server",
			},
			[]string{"grpc_service", "grpc_method", "grpc_code"},
		),
		GRPCHandlingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grpc_server_handling_seconds",
				Help:      "Histogram of response latency of gRPC",
				Buckets:   latencyBuckets,
			},
			[]string{"grpc_service", "grpc_method"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request latency",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route"},
		),
		DetectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flag_detections_total",
				Help:      "Flag values served, by detected type",
			},
			[]string{"type"},
		),
		ConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flag_conflicts_total",
				Help:      "Set requests rejected for mixing universal and specific consumers",
			},
		),
		WritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flag_writes_total",
				Help:      "Successful flag writes, by operation",
			},
			[]string{"op"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GRPCHandledTotal,
		m.GRPCHandlingDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DetectionsTotal,
		m.ConflictsTotal,
		m.WritesTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveDetection counts a served flag value of the given type.
func (m *Metrics) ObserveDetection(typ string) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(typ).Inc()
}

// ObserveConflict counts a rejected set request.
func (m *Metrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.ConflictsTotal.Inc()
}

// ObserveWrite counts a successful set or unset.
func (m *Metrics) ObserveWrite(op string) {
	if m == nil {
		return
	}
	m.WritesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) observeRPC(fullMethod string, start time.Time, err error) {
	if m == nil {
		return
	}
	service, method := splitMethod(fullMethod)
	m.GRPCHandledTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
	m.GRPCHandlingDuration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
}

// UnaryServerInterceptor records RPC counts and latency for unary calls.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.observeRPC(info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor records RPC counts and latency for streaming calls.
func (m *Metrics) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		m.observeRPC(info.FullMethod, start, err)
		return err
	}
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// splitMethod splits "/pkg.Service/Method" into its service and method names.
func splitMethod(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[:i], fullMethod[i+1:]
	}
	return "unknown", fullMethod
}
