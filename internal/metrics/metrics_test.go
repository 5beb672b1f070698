package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(otpIssued)
	IncOTPIssued()
	require.Equal(t, before+1, testutil.ToFloat64(otpIssued))

	beforeVerify := testutil.ToFloat64(otpVerifications.WithLabelValues("success"))
	IncVerification("success")
	require.Equal(t, beforeVerify+1, testutil.ToFloat64(otpVerifications.WithLabelValues("success")))

	beforeMsg := testutil.ToFloat64(messagesSent.WithLabelValues("text", "failure"))
	IncMessage("text", "failure")
	require.Equal(t, beforeMsg+1, testutil.ToFloat64(messagesSent.WithLabelValues("text", "failure")))

	beforeReconnect := testutil.ToFloat64(reconnects)
	IncReconnect()
	require.Equal(t, beforeReconnect+1, testutil.ToFloat64(reconnects))
}

func TestSessionGauge(t *testing.T) {
	SetSessionOpen(true)
	require.Equal(t, float64(1), testutil.ToFloat64(sessionOpen))
	SetSessionOpen(false)
	require.Equal(t, float64(0), testutil.ToFloat64(sessionOpen))
}
