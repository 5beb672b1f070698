// Package metrics exposes Prometheus collectors for OTP issuance, message
// delivery and messaging-session health.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	otpIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otpmd_otp_issued_total",
			Help: "Total one-time codes issued",
		},
	)
	otpVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpmd_otp_verifications_total",
			Help: "Verification attempts by result",
		},
		[]string{"result"},
	)
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpmd_messages_total",
			Help: "Outbound messages by kind and delivery status",
		},
		[]string{"kind", "status"},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otpmd_reconnects_scheduled_total",
			Help: "Reconnection attempts scheduled after a transient disconnect",
		},
	)
	sessionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "otpmd_session_open",
			Help: "1 while the messaging session is open",
		},
	)
)

func init() {
	prometheus.MustRegister(
		otpIssued,
		otpVerifications,
		messagesSent,
		reconnects,
		sessionOpen,
	)
}

// IncOTPIssued counts a newly issued code.
func IncOTPIssued() { otpIssued.Inc() }

// IncVerification counts a verification outcome.
func IncVerification(result string) { otpVerifications.WithLabelValues(result).Inc() }

// IncMessage counts an outbound message of kind ("otp", "text", "admin")
// with status "success" or "failure".
func IncMessage(kind, status string) { messagesSent.WithLabelValues(kind, status).Inc() }

// IncReconnect counts a scheduled reconnection.
func IncReconnect() { reconnects.Inc() }

// SetSessionOpen records whether the session is currently open.
func SetSessionOpen(open bool) {
	if open {
		sessionOpen.Set(1)
		return
	}
	sessionOpen.Set(0)
}

// Handler returns an HTTP handler that exposes Prometheus metrics.
func Handler() http.Handler { return promhttp.Handler() }
