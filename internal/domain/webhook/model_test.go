package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestEndpoint_Active(t *testing.T) {
	require.True(t, (&Endpoint{Status: types.EndpointStatusActive}).Active())
	require.False(t, (&Endpoint{Status: types.EndpointStatus("disabled")}).Active())
}

func TestNextBackoff_DoublesEachRetry(t *testing.T) {
	base := time.Minute
	require.Equal(t, base, NextBackoff(base, 0))
	require.Equal(t, 2*base, NextBackoff(base, 1))
	require.Equal(t, 4*base, NextBackoff(base, 2))
}

func TestNextBackoff_CapsAtThirtyMinutes(t *testing.T) {
	require.Equal(t, 30*time.Minute, NextBackoff(time.Minute, 10))
}
