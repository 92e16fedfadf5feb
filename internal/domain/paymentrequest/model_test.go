package paymentrequest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestPaymentRequest_ReadyForRetry_NeverAttempted(t *testing.T) {
	pr := &PaymentRequest{Status: types.PaymentRequestStatusPending}
	require.True(t, pr.ReadyForRetry(time.Now(), 24*time.Hour))
}

func TestPaymentRequest_ReadyForRetry_IntervalElapsed(t *testing.T) {
	last := time.Now().Add(-25 * time.Hour)
	pr := &PaymentRequest{Status: types.PaymentRequestStatusPending, LastAttemptAt: &last}
	require.True(t, pr.ReadyForRetry(time.Now(), 24*time.Hour))
}

func TestPaymentRequest_ReadyForRetry_IntervalNotElapsed(t *testing.T) {
	last := time.Now().Add(-time.Hour)
	pr := &PaymentRequest{Status: types.PaymentRequestStatusPending, LastAttemptAt: &last}
	require.False(t, pr.ReadyForRetry(time.Now(), 24*time.Hour))
}

func TestPaymentRequest_ReadyForRetry_NotPending(t *testing.T) {
	pr := &PaymentRequest{Status: types.PaymentRequestStatusSucceeded}
	require.False(t, pr.ReadyForRetry(time.Now(), 24*time.Hour))
}
