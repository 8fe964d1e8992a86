package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const orderIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateOrderID produces an order id in the historical storefront format:
// unix-millisecond timestamp plus a short random suffix. Existing orders in
// the document store use this shape, so it must not change.
func GenerateOrderID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), randomSuffix(9))
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(orderIDAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; fall back to a time-derived index.
			b[i] = orderIDAlphabet[time.Now().UnixNano()%int64(len(orderIDAlphabet))]
			continue
		}
		b[i] = orderIDAlphabet[idx.Int64()]
	}
	return string(b)
}
