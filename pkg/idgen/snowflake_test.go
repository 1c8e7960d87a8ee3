package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextIDUnique(t *testing.T) {
	const n = 10000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, n)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/8; j++ {
				id := NextID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
}

func TestNumberPrefixes(t *testing.T) {
	require.True(t, strings.HasPrefix(GeneratePurchaseNo(), "PUR"))
	require.True(t, strings.HasPrefix(GeneratePaymentNo(), "PMT"))
	require.True(t, strings.HasPrefix(GenerateRefundNo(), "REF"))
	require.Positive(t, GenerateCustomerID())
}
