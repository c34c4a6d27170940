// Package metrics exposes engine statistics to Prometheus.
package metrics

import (
	"context"
	"github.com/icinga/icingacore/pkg/engine"
	"github.com/icinga/icingacore/pkg/events"
	"github.com/icinga/icingacore/pkg/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"net/http"
	"time"
)

const namespace = "icingacore"

// StatsSource provides engine statistics, e.g. *engine.Engine.
type StatsSource interface {
	Stats() engine.Stats
}

// Collector implements prometheus.Collector on top of a StatsSource.
type Collector struct {
	source StatsSource

	queued          *prometheus.Desc
	scheduled       *prometheus.Desc
	activeDowntimes *prometheus.Desc
	flapping        *prometheus.Desc
	pendingResults  *prometheus.Desc
	pendingCommands *prometheus.Desc
	handled         *prometheus.Desc
}

// NewCollector returns a new Collector.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		queued: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "events"),
			"Number of queued timed events by priority.", []string{"priority"}, nil,
		),
		scheduled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scheduler", "scheduled_objects"),
			"Number of objects with actively scheduled checks by type.", []string{"type"}, nil,
		),
		activeDowntimes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "downtime", "active"),
			"Number of downtimes in effect.", nil, nil,
		),
		flapping: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "flapping", "objects"),
			"Number of flapping objects.", nil, nil,
		),
		pendingResults: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "checks", "pending_results"),
			"Number of check results waiting for the reaper.", nil, nil,
		),
		pendingCommands: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "commands", "pending"),
			"Number of buffered external commands.", nil, nil,
		),
		handled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "handled_total"),
			"Timed events handled since startup by type.", []string{"type"}, nil,
		),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.queued, c.scheduled, c.activeDowntimes, c.flapping, c.pendingResults, c.pendingCommands, c.handled,
	} {
		ch <- d
	}
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.QueuedNormal), events.Normal.String())
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.QueuedHigh), events.High.String())
	ch <- prometheus.MustNewConstMetric(c.scheduled, prometheus.GaugeValue, float64(s.ScheduledHosts), "host")
	ch <- prometheus.MustNewConstMetric(c.scheduled, prometheus.GaugeValue, float64(s.ScheduledServices), "service")
	ch <- prometheus.MustNewConstMetric(c.activeDowntimes, prometheus.GaugeValue, float64(s.ActiveDowntimes))
	ch <- prometheus.MustNewConstMetric(c.flapping, prometheus.GaugeValue, float64(s.FlappingObjects))
	ch <- prometheus.MustNewConstMetric(c.pendingResults, prometheus.GaugeValue, float64(s.PendingResults))
	ch <- prometheus.MustNewConstMetric(c.pendingCommands, prometheus.GaugeValue, float64(s.PendingCommands))

	for _, t := range events.Types() {
		ch <- prometheus.MustNewConstMetric(c.handled, prometheus.CounterValue, float64(s.Handled[t]), t.String())
	}
}

// Counter is anything counting occurrences, e.g. *broker.Fanout failures.
type Counter func() uint64

// Register registers a Collector for source and a counter for each of counters by metric name.
func Register(reg prometheus.Registerer, source StatsSource, counters map[string]Counter) error {
	if err := reg.Register(NewCollector(source)); err != nil {
		return errors.Wrap(err, "can't register engine collector")
	}

	for name, count := range counters {
		count := count
		cf := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      name,
			Help:      "Broker " + name + " since startup.",
		}, func() float64 {
			return float64(count())
		})

		if err := reg.Register(cf); err != nil {
			return errors.Wrapf(err, "can't register counter %q", name)
		}
	}

	return nil
}

// Serve exposes the metrics gathered by g on addr at /metrics until ctx is canceled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("Can't shut down metrics endpoint cleanly", zap.Error(err))
		}
	}()

	logger.Infow("Serving metrics", zap.String("address", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics endpoint failed")
	}

	return ctx.Err()
}
