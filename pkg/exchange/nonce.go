package exchange

import (
	"sync/atomic"
	"time"
)

// NonceSource issues strictly increasing nonces anchored to the unix
// millisecond clock. The exchange requires every nonce for an account to be
// unused and newer than the oldest of its recent nonces, so all goroutines
// signing for one key must share a single source.
type NonceSource struct {
	prev atomic.Int64
}

// Next returns the next nonce. Safe for concurrent use; two calls never
// return the same value even within one millisecond.
func (n *NonceSource) Next() uint64 {
	for {
		prev := n.prev.Load()
		curr := time.Now().UnixMilli()
		if curr <= prev {
			curr = prev + 1
		}
		if n.prev.CompareAndSwap(prev, curr) {
			return uint64(curr)
		}
	}
}
