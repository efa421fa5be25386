// Package metrics exposes lifecycle and ledger counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the lifecycle services report to. Nop satisfies it.
type Recorder interface {
	RecordAppointmentTransition(status string)
	RecordBloodRequestTransition(status string, autoRejected bool)
	RecordStockUnits(bloodGroup string, units int)
	RecordOTPVerification(success bool)
	RecordSideEffectFailure(task string)
}

type Collector struct {
	appointmentTransitions  *prometheus.CounterVec
	bloodRequestTransitions *prometheus.CounterVec
	stockUnits              *prometheus.GaugeVec
	otpVerifications        *prometheus.CounterVec
	sideEffectFailures      *prometheus.CounterVec
}

// NewCollector registers the collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		appointmentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_appointment_transitions_total",
			Help: "Donation appointment status transitions by resulting status",
		}, []string{"status"}),
		bloodRequestTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_blood_request_transitions_total",
			Help: "Blood request status transitions by resulting status",
		}, []string{"status", "auto_rejected"}),
		stockUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bloodbank_stock_units",
			Help: "Units in stock per blood group after the last ledger mutation",
		}, []string{"blood_group"}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_otp_verifications_total",
			Help: "One-time code verification attempts by result",
		}, []string{"result"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_side_effect_failures_total",
			Help: "Best-effort side effects (mail, certificates, archival) that failed",
		}, []string{"task"}),
	}

	reg.MustRegister(
		c.appointmentTransitions,
		c.bloodRequestTransitions,
		c.stockUnits,
		c.otpVerifications,
		c.sideEffectFailures,
	)
	return c
}

func (c *Collector) RecordAppointmentTransition(status string) {
	c.appointmentTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) RecordBloodRequestTransition(status string, autoRejected bool) {
	auto := "false"
	if autoRejected {
		auto = "true"
	}
	c.bloodRequestTransitions.WithLabelValues(status, auto).Inc()
}

func (c *Collector) RecordStockUnits(bloodGroup string, units int) {
	c.stockUnits.WithLabelValues(bloodGroup).Set(float64(units))
}

func (c *Collector) RecordOTPVerification(success bool) {
	result := "invalid"
	if success {
		result = "success"
	}
	c.otpVerifications.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSideEffectFailure(task string) {
	c.sideEffectFailures.WithLabelValues(task).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAppointmentTransition(string)        {}
func (Nop) RecordBloodRequestTransition(string, bool) {}
func (Nop) RecordStockUnits(string, int)              {}
func (Nop) RecordOTPVerification(bool)                {}
func (Nop) RecordSideEffectFailure(string)            {}
