package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestNew_BuildsZeroedDraftInvoice(t *testing.T) {
	now := time.Now()
	inv := New("tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", now, now.AddDate(0, 1, 0), now.AddDate(0, 1, 30))

	require.Equal(t, types.InvoiceStatusDraft, inv.Status)
	require.True(t, inv.SubtotalCents.IsZero())
	require.True(t, inv.TotalCents.IsZero())
}

func TestInvoice_IsPayable_OnlyWhenFinalized(t *testing.T) {
	require.True(t, (&Invoice{Status: types.InvoiceStatusFinalized}).IsPayable())
	require.False(t, (&Invoice{Status: types.InvoiceStatusDraft}).IsPayable())
}
