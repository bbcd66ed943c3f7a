package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrder_IsPaid(t *testing.T) {
	tests := []struct {
		status OrderStatus
		paid   bool
	}{
		{OrderStatusPending, false},
		{OrderStatusProcessing, true},
		{OrderStatusCompleted, true},
		{OrderStatusFailed, false},
		{OrderStatusCancelled, false},
	}
	for _, tt := range tests {
		o := Order{Status: tt.status}
		require.Equal(t, tt.paid, o.IsPaid(), "status %s", tt.status)
	}
}

func TestOrder_ContainsRecurringItem(t *testing.T) {
	require.False(t, (&Order{}).ContainsRecurringItem())
	require.True(t, (&Order{Recurring: &Recurring{Period: "month", Interval: 1}}).ContainsRecurringItem())
}
