package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
)

const metricsJob = "news_digest"

// Metrics records one run for a Pushgateway push.
type Metrics struct {
	reg         *prometheus.Registry
	runs        *prometheus.CounterVec
	fetched     *prometheus.GaugeVec
	fetchTime   *prometheus.HistogramVec
	sent        prometheus.Gauge
	sendTime    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewMetrics registers the digest collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Digest runs by outcome.",
		}, []string{"status"}),
		fetched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "digest_articles_fetched",
			Help: "Articles returned per section in the last run.",
		}, []string{"section"}),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "digest_fetch_duration_seconds",
			Help:    "Time spent fetching one section.",
			Buckets: prometheus.DefBuckets,
		}, []string{"section"}),
		sent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digest_articles_sent",
			Help: "Articles included in the last sent digest.",
		}),
		sendTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digest_send_duration_seconds",
			Help: "Time spent delivering the last digest over SMTP.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digest_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
	}
	m.reg.MustRegister(m.runs, m.fetched, m.fetchTime, m.sent, m.sendTime, m.lastSuccess)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) observeFetch(section string, took time.Duration, articles int) {
	if m == nil {
		return
	}
	m.fetchTime.WithLabelValues(section).Observe(took.Seconds())
	m.fetched.WithLabelValues(section).Set(float64(articles))
}

func (m *Metrics) observeSend(took time.Duration, articles int) {
	if m == nil {
		return
	}
	m.sendTime.Set(took.Seconds())
	m.sent.Set(float64(articles))
}

func (m *Metrics) observeRun(status string, at time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	if status != statusFailed {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

// Push sends every collected metric to the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, metricsJob).Gatherer(m.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Snapshot flattens the current counter and gauge values for logging. Series
// with labels are keyed as name{value}.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	if m == nil {
		return nil, nil
	}
	families, err := m.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			if labels := metric.GetLabel(); len(labels) > 0 {
				key += "{" + labels[0].GetValue() + "}"
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key+"_count"] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
