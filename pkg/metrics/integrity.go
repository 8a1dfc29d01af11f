package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IntegrityMetrics counts ledger anomalies and event delivery failures.
type IntegrityMetrics struct {
	debitClamps        *prometheus.CounterVec
	reservationDenials *prometheus.CounterVec
	publishFailures    *prometheus.CounterVec
}

// NewIntegrityMetrics registers the integrity metrics on the provided registerer.
func NewIntegrityMetrics(reg prometheus.Registerer) *IntegrityMetrics {
	if reg == nil {
		return &IntegrityMetrics{}
	}
	debitClamps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reseller_stock_debit_clamps_total",
		Help: "Reseller stock debits that would have gone negative and were clamped to zero.",
	}, []string{"operation"})
	reservationDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_reservation_denials_total",
		Help: "Warehouse reservations denied for insufficient stock.",
	}, []string{"operation"})
	publishFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed.",
	}, []string{"audience"})
	reg.MustRegister(debitClamps, reservationDenials, publishFailures)
	return &IntegrityMetrics{
		debitClamps:        debitClamps,
		reservationDenials: reservationDenials,
		publishFailures:    publishFailures,
	}
}

// IncDebitClamp records a clamped reseller stock debit for the named operation.
func (m *IntegrityMetrics) IncDebitClamp(operation string) {
	if m == nil || m.debitClamps == nil {
		return
	}
	m.debitClamps.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncReservationDenial records a reservation denied for insufficient stock.
func (m *IntegrityMetrics) IncReservationDenial(operation string) {
	if m == nil || m.reservationDenials == nil {
		return
	}
	m.reservationDenials.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncPublishFailure records a failed outbox publish for the audience channel.
func (m *IntegrityMetrics) IncPublishFailure(audience string) {
	if m == nil || m.publishFailures == nil {
		return
	}
	m.publishFailures.WithLabelValues(normalizeLabel(audience)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
