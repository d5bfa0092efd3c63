package journal

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/cockroachdb/pebble"
)

// OrderRecord is one submitted action, written before the outcome is known
// and overwritten with the result once the exchange answers.
type OrderRecord struct {
	Time   time.Time `json:"time"`
	Coin   string    `json:"coin"`
	Nonce  uint64    `json:"nonce"`
	Kind   string    `json:"kind"` // entry | close | cancel | flip_entry
	Side   string    `json:"side"`
	Px     string    `json:"px"`
	Sz     string    `json:"sz"`
	Result string    `json:"result"` // filled | resting | rejected | timeout | error:<msg>
	Oid    int64     `json:"oid,omitempty"`
}

// FillRecord is a confirmed execution, sizes and prices verbatim from the
// exchange response.
type FillRecord struct {
	Time    time.Time `json:"time"`
	Coin    string    `json:"coin"`
	Nonce   uint64    `json:"nonce"`
	Side    string    `json:"side"`
	TotalSz string    `json:"totalSz"`
	AvgPx   string    `json:"avgPx"`
	Oid     int64     `json:"oid"`
}

// TradeRecord is a closed round trip.
type TradeRecord struct {
	Time     time.Time `json:"time"`
	Coin     string    `json:"coin"`
	Side     string    `json:"side"` // direction of the round trip
	Size     string    `json:"size"`
	EntryPx  string    `json:"entryPx"`
	ExitPx   string    `json:"exitPx"`
	Pnl      float64   `json:"pnl"`
	HoldSecs float64   `json:"holdSecs"`
	Oid      int64     `json:"oid"` // oid of the closing fill
}

// Journal is the pebble-backed order flow log behind the monitor API. One
// Journal per bot process; safe for concurrent use (pebble handles locking).
type Journal struct {
	db *pebble.DB
}

// Open opens or creates a journal at path.
func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// PutOrder records a submitted action. Order intents are written NoSync;
// losing the last intent on a crash is acceptable, fills are not.
func (j *Journal) PutOrder(rec OrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal order record: %w", err)
	}
	if err := j.db.Set(orderKey(rec.Coin, rec.Nonce), data, pebble.NoSync); err != nil {
		return fmt.Errorf("save order record: %w", err)
	}
	return nil
}

// PutFill records a confirmed execution, synced before returning.
func (j *Journal) PutFill(rec FillRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal fill record: %w", err)
	}
	if err := j.db.Set(fillKey(rec.Coin, rec.Nonce), data, pebble.Sync); err != nil {
		return fmt.Errorf("save fill record: %w", err)
	}
	return nil
}

// PutTrade records a closed round trip, synced before returning.
func (j *Journal) PutTrade(rec TradeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal trade record: %w", err)
	}
	key := tradeKey(rec.Coin, rec.Time.UnixMilli(), rec.Oid)
	if err := j.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("save trade record: %w", err)
	}
	return nil
}

// ListOrders returns the most recent submitted actions for a coin in
// chronological order, at most limit.
func (j *Journal) ListOrders(coin string, limit int) ([]OrderRecord, error) {
	var out []OrderRecord
	err := j.listRecent(orderPrefix(coin), limit, func(val []byte) error {
		var rec OrderRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	slices.Reverse(out)
	return out, err
}

// ListFills returns the most recent executions for a coin in chronological
// order, at most limit.
func (j *Journal) ListFills(coin string, limit int) ([]FillRecord, error) {
	var out []FillRecord
	err := j.listRecent(fillPrefix(coin), limit, func(val []byte) error {
		var rec FillRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	slices.Reverse(out)
	return out, err
}

// ListTrades returns the most recent closed round trips for a coin in
// chronological order, at most limit.
func (j *Journal) ListTrades(coin string, limit int) ([]TradeRecord, error) {
	var out []TradeRecord
	err := j.listRecent(tradePrefix(coin), limit, func(val []byte) error {
		var rec TradeRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	slices.Reverse(out)
	return out, err
}

// listRecent walks a prefix backwards so the newest limit records are
// visited first; callers reverse to restore chronological order.
func (j *Journal) listRecent(prefix []byte, limit int, visit func(val []byte) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("journal iterator: %w", err)
	}
	defer iter.Close()

	count := 0
	for ok := iter.Last(); ok && (limit <= 0 || count < limit); ok = iter.Prev() {
		if err := visit(iter.Value()); err != nil {
			continue // skip records that no longer parse
		}
		count++
	}
	return nil
}
