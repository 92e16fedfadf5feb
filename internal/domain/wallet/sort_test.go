package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestSortForDraw_OrdersByPriorityThenCreatedAt(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	w1 := &Wallet{ID: "w_low_priority_newer", Priority: 1, BaseModel: types.BaseModel{CreatedAt: newer}}
	w2 := &Wallet{ID: "w_high_priority", Priority: 0, BaseModel: types.BaseModel{CreatedAt: newer}}
	w3 := &Wallet{ID: "w_low_priority_older", Priority: 1, BaseModel: types.BaseModel{CreatedAt: older}}

	wallets := []*Wallet{w1, w2, w3}
	SortForDraw(wallets)

	require.Equal(t, []string{"w_high_priority", "w_low_priority_older", "w_low_priority_newer"},
		[]string{wallets[0].ID, wallets[1].ID, wallets[2].ID})
}
