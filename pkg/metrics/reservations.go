package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReservationMetrics tracks the soft-hold lifecycle and payment reconciliation.
type ReservationMetrics struct {
	holdsCreated  prometheus.Counter
	holdsReleased *prometheus.CounterVec
	paymentEvents *prometheus.CounterVec
	stockConflict prometheus.Counter
}

// NewReservationMetrics registers the reservation metrics on the provided registerer.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	holdsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_holds_created_total",
		Help: "Soft holds placed on cart additions.",
	})
	holdsReleased := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_holds_released_total",
		Help: "Soft holds released, by reason.",
	}, []string{"reason"})
	paymentEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_total",
		Help: "Payment provider events processed, by outcome.",
	}, []string{"outcome"})
	stockConflict := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Checkouts rejected by the conditional stock decrement.",
	})
	reg.MustRegister(holdsCreated, holdsReleased, paymentEvents, stockConflict)
	return &ReservationMetrics{
		holdsCreated:  holdsCreated,
		holdsReleased: holdsReleased,
		paymentEvents: paymentEvents,
		stockConflict: stockConflict,
	}
}

// IncHoldCreated counts a new soft hold.
func (r *ReservationMetrics) IncHoldCreated() {
	if r == nil || r.holdsCreated == nil {
		return
	}
	r.holdsCreated.Inc()
}

// IncHoldReleased counts a released hold with the release reason
// (checkout, removal, expired).
func (r *ReservationMetrics) IncHoldReleased(reason string) {
	if r == nil || r.holdsReleased == nil {
		return
	}
	r.holdsReleased.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncPaymentEvent counts a processed payment event by outcome
// (captured, failed, duplicate, unknown_order).
func (r *ReservationMetrics) IncPaymentEvent(outcome string) {
	if r == nil || r.paymentEvents == nil {
		return
	}
	r.paymentEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStockConflict counts a checkout lost to a concurrent decrement.
func (r *ReservationMetrics) IncStockConflict() {
	if r == nil || r.stockConflict == nil {
		return
	}
	r.stockConflict.Inc()
}
