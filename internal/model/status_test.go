package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineStatusFor(t *testing.T) {
	require.Equal(t, PurchaseStatusPending, LineStatusFor(1000, 1000))
	require.Equal(t, PurchaseStatusPartial, LineStatusFor(999, 1000))
	require.Equal(t, PurchaseStatusPartial, LineStatusFor(1, 1000))
	require.Equal(t, PurchaseStatusPaid, LineStatusFor(0, 1000))
	require.Equal(t, PurchaseStatusPaid, LineStatusFor(0, 0))
}

func TestCustomerStatusFor(t *testing.T) {
	require.Equal(t, CustomerStatusPaid, CustomerStatusFor(0))
	require.Equal(t, CustomerStatusPending, CustomerStatusFor(1))
	require.Equal(t, CustomerStatusPending, CustomerStatusFor(139000))
}
