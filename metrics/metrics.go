// Package metrics exposes aggregation counters for Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/caseflow/caseflow/model"
)

const (
	Namespace = "caseflow"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	artifactsRead    prometheus.Counter
	artifactsSkipped prometheus.Counter
	cases            *prometheus.CounterVec
	retries          prometheus.Counter
	uploads          *prometheus.CounterVec
	lastUpload       prometheus.Gauge
}

// New registers the aggregation metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		artifactsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "artifacts_read_total",
			Help:      "Session artifacts parsed by the aggregator",
		}),
		artifactsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "artifacts_skipped_total",
			Help:      "Files in the temp directory that were not valid artifacts",
		}),
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cases_total",
			Help:      "Canonical test cases uploaded, by result",
		}, []string{
			"result",
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retries_total",
			Help:      "Retried executions folded into canonical cases",
		}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upload_total",
			Help:      "Upload attempts, by outcome",
		}, []string{
			"outcome",
		}),
		lastUpload: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_upload_timestamp_seconds",
			Help:      "Unix time of the last upload attempt",
		}),
	}
}

// Gatherer returns the registry holding the metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) RecordArtifact(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.artifactsRead.Inc()
	} else {
		m.artifactsSkipped.Inc()
	}
}

func (m *Metrics) RecordCases(cases []model.TestCase, retries int) {
	if m == nil {
		return
	}
	for _, tc := range cases {
		m.cases.WithLabelValues(string(model.ParseResult(string(tc.Result)))).Inc()
	}
	m.retries.Add(float64(retries))
}

func (m *Metrics) RecordUpload(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
	m.lastUpload.Set(float64(at.Unix()))
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
