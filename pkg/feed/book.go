package feed

import (
	"math"
	"sync"
	"time"
)

// Level is one price level of the order book.
type Level struct {
	Px float64
	Sz float64
}

// Book is the live two-sided order book for one coin. Each l2 frame is a
// full snapshot, so updates replace the sides wholesale.
type Book struct {
	mu      sync.RWMutex
	coin    string
	bids    []Level
	asks    []Level
	updated time.Time
}

func NewBook(coin string) *Book {
	return &Book{coin: coin}
}

func (b *Book) Coin() string { return b.coin }

// Update replaces both sides with a new snapshot.
func (b *Book) Update(bids, asks []Level, at time.Time) {
	b.mu.Lock()
	b.bids = bids
	b.asks = asks
	b.updated = at
	b.mu.Unlock()
}

// BestBid returns the top bid level, ok=false on an empty side.
func (b *Book) BestBid() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return Level{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the top ask level, ok=false on an empty side.
func (b *Book) BestAsk() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return Level{}, false
	}
	return b.asks[0], true
}

// Mid returns the midpoint of the best bid and ask.
func (b *Book) Mid() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return 0, false
	}
	return (b.bids[0].Px + b.asks[0].Px) / 2, true
}

// Imbalance returns the bid/ask size ratio summed over the top depth levels
// of each side. A one-sided book returns +Inf; an empty book returns 1.
func (b *Book) Imbalance(depth int) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var bidSz, askSz float64
	for i := 0; i < depth && i < len(b.bids); i++ {
		bidSz += b.bids[i].Sz
	}
	for i := 0; i < depth && i < len(b.asks); i++ {
		askSz += b.asks[i].Sz
	}
	if askSz == 0 {
		if bidSz == 0 {
			return 1
		}
		return math.Inf(1)
	}
	return bidSz / askSz
}

// Updated reports when the last snapshot arrived, for staleness checks.
func (b *Book) Updated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// Depth returns the current level counts per side.
func (b *Book) Depth() (bids, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bids), len(b.asks)
}
