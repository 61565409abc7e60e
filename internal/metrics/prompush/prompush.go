// Package prompush adapts the metrics backend interface to a Prometheus
// Pushgateway. The warehouse build is a batch job with no scrape surface, so
// collectors accumulate in a private registry and one Push at the end of the
// run delivers them. All Prometheus dependencies stay inside this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"crashdw/internal/metrics"
)

// Backend pushes run metrics to a Prometheus Pushgateway.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec
	stageDuration *prometheus.SummaryVec
	rowCounter    *prometheus.CounterVec
	tableCounter  *prometheus.CounterVec
}

// NewBackend builds a Pushgateway backend. jobName becomes the Pushgateway
// grouping job; gatewayURL is required.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "crashdw"
	}

	reg := prometheus.NewRegistry()
	stageCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crashdw_stage_total",
		Help: "Pipeline stage executions by stage and status.",
	}, []string{"stage", "status"})
	stageDuration := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "crashdw_stage_duration_seconds",
		Help:       "Pipeline stage duration in seconds by stage and status.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"stage", "status"})
	rowCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crashdw_rows_total",
		Help: "Row-accounting counts by kind (merged, crash_missing, fact_rows, ...).",
	}, []string{"kind"})
	tableCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crashdw_table_rows_loaded_total",
		Help: "Rows loaded into each warehouse table.",
	}, []string{"table"})

	for _, c := range []prometheus.Collector{stageCounter, stageDuration, rowCounter, tableCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		rowCounter:    rowCounter,
		tableCounter:  tableCounter,
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "crashdw_stage_total":
		b.stageCounter.WithLabelValues(labels["stage"], labels["status"]).Add(delta)
	case "crashdw_rows_total":
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "crashdw_table_rows_loaded_total":
		b.tableCounter.WithLabelValues(labels["table"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name == "crashdw_stage_duration_seconds" {
		b.stageDuration.WithLabelValues(labels["stage"], labels["status"]).Observe(value)
	}
}

// Flush pushes the accumulated registry to the gateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
