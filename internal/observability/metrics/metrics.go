package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// collector bundles the Prometheus collectors registered on its own registry.
type collector struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	jobs     *prometheus.CounterVec
}

func newCollector() *collector {
	reg := prometheus.NewRegistry()

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_git_llm_requests_total",
		Help: "Total number of provider calls.",
	}, []string{"provider", "model", "code"})

	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_git_llm_request_errors_total",
		Help: "Provider calls that failed or returned an error status.",
	}, []string{"provider"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_git_llm_request_duration_seconds",
		Help:    "Provider call duration in seconds.",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"provider"})

	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_git_batch_jobs_total",
		Help: "Batch jobs by outcome.",
	}, []string{"status"})

	reg.MustRegister(calls, errs, latency, jobs)
	return &collector{registry: reg, calls: calls, errors: errs, latency: latency, jobs: jobs}
}

var defaultCollector = newCollector()

// ObserveLLMCall records one provider round-trip. A status of 0 means the
// request never produced an HTTP response.
func ObserveLLMCall(provider, model string, status int, duration time.Duration) {
	defaultCollector.observeCall(provider, model, status, duration)
}

// ObserveJob counts batch jobs reaching a terminal or retry state.
func ObserveJob(status string) {
	defaultCollector.observeJob(status)
}

func (c *collector) observeCall(provider, model string, status int, duration time.Duration) {
	if provider == "" {
		provider = "unknown"
	}
	c.calls.WithLabelValues(provider, model, strconv.Itoa(status)).Inc()
	if status == 0 || status >= 400 {
		c.errors.WithLabelValues(provider).Inc()
	}
	c.latency.WithLabelValues(provider).Observe(duration.Seconds())
}

func (c *collector) observeJob(status string) {
	if status == "" {
		status = "unknown"
	}
	c.jobs.WithLabelValues(status).Inc()
}

func (c *collector) handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return defaultCollector.handler()
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
