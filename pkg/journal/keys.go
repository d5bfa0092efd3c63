package journal

import "fmt"

// Key schema. The nonce (or close timestamp) is zero-padded to 20 digits so
// lexicographic key order is submission order:
//
//   order:<coin>:<nonce>          → OrderRecord (every submitted action)
//   fill:<coin>:<nonce>           → FillRecord  (confirmed executions)
//   trade:<coin>:<ts_ms>:<oid>    → TradeRecord (closed round trips)

const (
	prefixOrder = "order:"
	prefixFill  = "fill:"
	prefixTrade = "trade:"
)

func orderKey(coin string, nonce uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixOrder, coin, nonce))
}

func orderPrefix(coin string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOrder, coin))
}

func fillKey(coin string, nonce uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixFill, coin, nonce))
}

func fillPrefix(coin string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixFill, coin))
}

func tradeKey(coin string, tsMillis int64, oid int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%d", prefixTrade, coin, tsMillis, oid))
}

func tradePrefix(coin string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, coin))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
