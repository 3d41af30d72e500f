package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the ingestion/attribution counter sink. A nil *Metrics is valid
// and drops everything, so tests and embedded callers can opt out.
type Metrics struct {
	recordsFetched   *prometheus.CounterVec
	eventsNormalized *prometheus.CounterVec
	recordErrors     *prometheus.CounterVec
	commissionLines  *prometheus.CounterVec
	unitFailures     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		recordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakeledger_provider_records_fetched_total",
		}, []string{"chain", "kind"}),
		eventsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakeledger_events_normalized_total",
		}, []string{"chain", "kind"}),
		recordErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakeledger_record_errors_total",
		}, []string{"chain", "kind"}),
		commissionLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakeledger_commission_lines_total",
		}, []string{"chain", "level"}),
		unitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakeledger_ingestion_unit_failures_total",
		}, []string{"chain", "kind"}),
	}
	reg.MustRegister(m.recordsFetched, m.eventsNormalized, m.recordErrors, m.commissionLines, m.unitFailures)
	return m
}

func (m *Metrics) IncrRecordsFetched(chain string, kind string, count int) {
	if m == nil {
		return
	}
	m.recordsFetched.WithLabelValues(chain, kind).Add(float64(count))
}

func (m *Metrics) IncrEventsNormalized(chain string, kind string, count int) {
	if m == nil {
		return
	}
	m.eventsNormalized.WithLabelValues(chain, kind).Add(float64(count))
}

func (m *Metrics) IncrRecordErrors(chain string, kind string, count int) {
	if m == nil {
		return
	}
	m.recordErrors.WithLabelValues(chain, kind).Add(float64(count))
}

func (m *Metrics) IncrCommissionLines(chain string, level string, count int) {
	if m == nil {
		return
	}
	m.commissionLines.WithLabelValues(chain, level).Add(float64(count))
}

func (m *Metrics) IncrUnitFailures(chain string, kind string) {
	if m == nil {
		return
	}
	m.unitFailures.WithLabelValues(chain, kind).Inc()
}
