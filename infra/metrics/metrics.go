// Package metrics holds the prometheus collectors of the exchange and the
// HTTP endpoint that serves them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"clob/config/encoding"
	"clob/infra/logging"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clob"

type Config struct {
	Enabled encoding.Bool `long:"enabled"`
	Address string        `long:"address" description:"listen address of the metrics endpoint"`
	Path    string        `long:"path"`
}

func NewDefaultConfig() Config {
	return Config{
		Address: "127.0.0.1:2112",
		Path:    "/metrics",
	}
}

// Metrics is the set of collectors updated by the service and jobs. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	orders      *prometheus.CounterVec
	fills       *prometheus.CounterVec
	cranks      *prometheus.CounterVec
	pending     *prometheus.GaugeVec
	reports     *prometheus.GaugeVec
	published   *prometheus.CounterVec
	invocations *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders submitted, by type and outcome.",
		}, []string{"type", "outcome"}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Fills executed, by instrument.",
		}, []string{"instrument"}),
		cranks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crank_passes_total",
			Help:      "Crank invocations, by outcome.",
		}, []string{"outcome"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_work_depth",
			Help:      "Items on the pending-work ring of a group.",
		}, []string{"group"}),
		reports: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_ring_depth",
			Help:      "Undrained execution reports of an instrument.",
		}, []string{"instrument"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Execution reports handed to the publisher, by outcome.",
		}, []string{"outcome"}),
		invocations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_seconds",
			Help:      "Latency of service invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{m.orders, m.fills, m.cranks, m.pending, m.reports, m.published, m.invocations} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering collector")
		}
	}
	return m, nil
}

func (m *Metrics) OrderSubmitted(orderType, outcome string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(orderType, outcome).Inc()
}

func (m *Metrics) Fills(instrument string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.fills.WithLabelValues(instrument).Add(float64(n))
}

func (m *Metrics) Crank(outcome string) {
	if m == nil {
		return
	}
	m.cranks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PendingDepth(group string, n uint64) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues(group).Set(float64(n))
}

func (m *Metrics) ReportDepth(instrument string, n uint64) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(instrument).Set(float64(n))
}

func (m *Metrics) Published(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.published.WithLabelValues(outcome).Add(float64(n))
}

// Observe records the time spent in op since start.
func (m *Metrics) Observe(op string, start time.Time) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Serve exposes the collectors of g over HTTP until ctx is done.
func Serve(ctx context.Context, log *logging.Logger, cfg Config, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", logging.String("address", cfg.Address), logging.String("path", cfg.Path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}
