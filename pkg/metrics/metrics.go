// Package metrics exposes evaluation counters in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/kass/echo-trails/pkg/unlock"
)

const namespace = "echotrails"

// Recorder counts watcher activity on its own registry. A nil *Recorder
// discards every observation.
type Recorder struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	evaluated     prometheus.Counter
	unlocked      prometheus.Counter
	skipped       *prometheus.CounterVec
	notifications prometheus.Counter
	fetchErrors   prometheus.Counter
	tickDuration  prometheus.Histogram
}

// NewRecorder creates a Recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Watcher ticks by outcome.",
		}, []string{"outcome"}),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_evaluated_total",
			Help:      "Drops passed through the unlock predicate.",
		}),
		unlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_unlocked_total",
			Help:      "Drops found unlocked.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_skipped_total",
			Help:      "Drops excluded before evaluation, by reason.",
		}, []string{"reason"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Unlock notifications sent.",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed drop fetches.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one watcher tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	r.registry.MustRegister(
		r.ticks,
		r.evaluated,
		r.unlocked,
		r.skipped,
		r.notifications,
		r.fetchErrors,
		r.tickDuration,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveReport adds the counts of one Filter pass
func (r *Recorder) ObserveReport(report unlock.Report) {
	if r == nil {
		return
	}
	r.evaluated.Add(float64(report.Evaluated()))
	r.unlocked.Add(float64(report.Unlocked))
	r.skipped.WithLabelValues(unlock.ReasonMalformed).Add(float64(report.Malformed))
	r.skipped.WithLabelValues(unlock.ReasonIncomplete).Add(float64(report.Incomplete))
}

// Tick records a finished tick. outcome is "ok", "error" or "skipped".
func (r *Recorder) Tick(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.ticks.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		r.tickDuration.Observe(d.Seconds())
	}
}

// Notified counts one notification
func (r *Recorder) Notified() {
	if r == nil {
		return
	}
	r.notifications.Inc()
}

// FetchFailed counts one failed fetch
func (r *Recorder) FetchFailed() {
	if r == nil {
		return
	}
	r.fetchErrors.Inc()
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Starting metrics server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "metrics server shutdown")
		}
		return nil
	}
}
