package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name           string
		quantity       int64
		threshold      int64
		allowBackorder bool
		want           StockStatus
	}{
		{"above threshold", 50, 10, false, StatusInStock},
		{"at threshold", 10, 10, false, StatusLowStock},
		{"below threshold", 3, 10, false, StatusLowStock},
		{"zero", 0, 10, false, StatusOutOfStock},
		{"negative backorder", -5, 10, true, StatusInStock},
		{"zero backorder", 0, 10, true, StatusInStock},
		{"zero threshold", 1, 0, false, StatusInStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveStatus(tc.quantity, tc.threshold, tc.allowBackorder))
		})
	}
}

func TestDeriveStatusDeterministic(t *testing.T) {
	// Same inputs, same answer, no matter what happened before.
	first := DeriveStatus(7, 10, false)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, DeriveStatus(7, 10, false))
	}
}

func TestNextStatusKeepsDiscontinued(t *testing.T) {
	rec := Record{Status: StatusDiscontinued, LowStockThreshold: 10}
	require.Equal(t, StatusDiscontinued, nextStatus(rec, 100))
	require.Equal(t, StatusDiscontinued, nextStatus(rec, 0))

	rec.Status = StatusOutOfStock
	require.Equal(t, StatusInStock, nextStatus(rec, 100))
}
