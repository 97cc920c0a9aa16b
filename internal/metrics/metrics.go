// Package metrics pushes the outcome of an import run to a Prometheus
// Pushgateway. Runs are short-lived batch jobs, so metrics are pushed once at
// the end instead of being scraped.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JonMunkholm/meterload/internal/core"
)

const namespace = "usage_import"

// runMetrics is a fresh registry describing one run.
type runMetrics struct {
	registry *prometheus.Registry

	rows        *prometheus.GaugeVec
	customers   prometheus.Gauge
	meters      prometheus.Gauge
	readings    prometheus.Gauge
	failures    *prometheus.GaugeVec
	duration    prometheus.Gauge
	success     prometheus.Gauge
	completedAt prometheus.Gauge
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Rows by outcome in the last run.",
		}, []string{"outcome"}),
		customers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "customers_created",
			Help:      "Customers created by the last run.",
		}),
		meters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "meters_created",
			Help:      "Meters created by the last run.",
		}),
		readings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readings_written",
			Help:      "Readings inserted or updated by the last run.",
		}),
		failures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failed_rows",
			Help:      "Failed rows by error kind in the last run.",
		}, []string{"kind"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "success",
			Help:      "1 when the last run completed, 0 when it failed.",
		}),
		completedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_completion_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	m.registry.MustRegister(m.rows, m.customers, m.meters, m.readings,
		m.failures, m.duration, m.success, m.completedAt)
	return m
}

func (m *runMetrics) observe(res *core.Result, now time.Time) {
	c := res.Counters
	m.rows.WithLabelValues("processed").Set(float64(c.RowsProcessed))
	m.rows.WithLabelValues("imported").Set(float64(c.RowsImported))
	m.rows.WithLabelValues("failed").Set(float64(c.RowsFailed))
	m.customers.Set(float64(c.CustomersCreated))
	m.meters.Set(float64(c.MetersCreated))
	m.readings.Set(float64(c.ReadingsWritten))
	for kind, n := range res.Failures {
		m.failures.WithLabelValues(kind.String()).Set(float64(n))
	}
	m.duration.Set(res.Duration.Seconds())
	if res.Status == core.StatusCompleted {
		m.success.Set(1)
	}
	m.completedAt.Set(float64(now.Unix()))
}

// Pusher sends run results to a Pushgateway.
type Pusher struct {
	endpoint string
	job      string
}

// NewPusher returns a Pusher. An empty endpoint disables pushing.
func NewPusher(endpoint, job string) *Pusher {
	return &Pusher{
		endpoint: strings.TrimSpace(endpoint),
		job:      strings.TrimSpace(job),
	}
}

// Enabled reports whether Push sends anything.
func (p *Pusher) Enabled() bool {
	return p != nil && p.endpoint != ""
}

// Push replaces the metrics grouped under this job and file with res.
func (p *Pusher) Push(ctx context.Context, res *core.Result) error {
	if !p.Enabled() || res == nil {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	m := newRunMetrics()
	m.observe(res, time.Now())

	pusher := push.New(p.endpoint, p.job).Gatherer(m.registry)
	if res.FileName != "" {
		pusher = pusher.Grouping("file", res.FileName)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
