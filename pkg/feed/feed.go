package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/metrics"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/util"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

const (
	DefaultURL = "wss://api.hyperliquid.xyz/ws"

	defaultPingInterval  = 20 * time.Second
	defaultReadTimeout   = 60 * time.Second
	defaultReconnectWait = 5 * time.Second
)

// Trade is one public fill from the trades channel. Side is the aggressor
// side as the venue reports it: "B" for buy, "A" for sell.
type Trade struct {
	Coin string
	Side string
	Px   float64
	Sz   float64
	Time time.Time
}

// Config controls a Feed. Zero values pick the defaults above.
type Config struct {
	URL           string
	Coin          string
	PingInterval  time.Duration
	ReadTimeout   time.Duration
	ReconnectWait time.Duration

	// OnTrade, when set, is called from the read loop for every public
	// trade. Handlers must not block.
	OnTrade func(Trade)
}

// Feed maintains a live order book over the venue websocket. It dials,
// subscribes to l2Book and trades for one coin, and reconnects with a full
// resubscribe whenever the connection drops.
type Feed struct {
	cfg   Config
	book  *Book
	clock util.Clock
	log   *zap.SugaredLogger
}

func NewFeed(cfg Config, clock util.Clock, log *zap.SugaredLogger) *Feed {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = defaultReconnectWait
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Feed{
		cfg:   cfg,
		book:  NewBook(cfg.Coin),
		clock: clock,
		log:   log,
	}
}

// Book returns the feed's live book. Safe for concurrent reads while the
// feed is running.
func (f *Feed) Book() *Book { return f.book }

// Run dials the websocket and pumps frames until ctx is cancelled. Dropped
// connections are redialed after the configured wait; the subscription set
// is replayed on every new connection.
func (f *Feed) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warnw("ws_disconnected", "coin", f.cfg.Coin, "err", err)
		metrics.WsReconnects.Inc()
		select {
		case <-f.clock.After(f.cfg.ReconnectWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feed) session(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()

	for _, typ := range []string{"l2Book", "trades"} {
		sub := subscription{
			Method: "subscribe",
			Subscription: map[string]any{
				"type": typ,
				"coin": f.cfg.Coin,
			},
		}
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("subscribe %s: %w", typ, err)
		}
	}
	f.log.Infow("ws_subscribed", "coin", f.cfg.Coin, "url", f.cfg.URL)

	// keepAlive is the only writer once the subscriptions are sent, and it
	// closes the connection on cancellation to unblock ReadMessage.
	stop := make(chan struct{})
	defer close(stop)
	go f.keepAlive(ctx, conn, stop)

	for {
		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.dispatch(data)
	}
}

func (f *Feed) keepAlive(ctx context.Context, conn *websocket.Conn, stop chan struct{}) {
	for {
		select {
		case <-f.clock.After(f.cfg.PingInterval):
			if err := conn.WriteJSON(map[string]string{"method": "ping"}); err != nil {
				f.log.Debugw("ws_ping_failed", "err", err)
				return
			}
		case <-ctx.Done():
			conn.Close()
			return
		case <-stop:
			return
		}
	}
}

func (f *Feed) dispatch(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		f.log.Debugw("ws_frame_unparseable", "err", err)
		return
	}
	switch msg.Channel {
	case "l2Book":
		f.handleBook(msg.Data)
	case "trades":
		f.handleTrades(msg.Data)
	case "subscriptionResponse", "pong":
	default:
		f.log.Debugw("ws_channel_ignored", "channel", msg.Channel)
	}
}

func (f *Feed) handleBook(data json.RawMessage) {
	var snap l2BookData
	if err := json.Unmarshal(data, &snap); err != nil {
		f.log.Warnw("l2book_unparseable", "err", err)
		return
	}
	if snap.Coin != "" && snap.Coin != f.cfg.Coin {
		return
	}
	if len(snap.Levels) < 2 {
		f.log.Warnw("l2book_truncated", "sides", len(snap.Levels))
		return
	}
	bids, err := toLevels(snap.Levels[0])
	if err != nil {
		f.log.Warnw("l2book_bad_bid", "err", err)
		return
	}
	asks, err := toLevels(snap.Levels[1])
	if err != nil {
		f.log.Warnw("l2book_bad_ask", "err", err)
		return
	}
	at := time.UnixMilli(snap.Time)
	if snap.Time == 0 {
		at = time.Now()
	}
	f.book.Update(bids, asks, at)
	if len(bids) > 0 {
		metrics.BestBid.WithLabelValues(f.cfg.Coin).Set(bids[0].Px)
	}
	if len(asks) > 0 {
		metrics.BestAsk.WithLabelValues(f.cfg.Coin).Set(asks[0].Px)
	}
}

func (f *Feed) handleTrades(data json.RawMessage) {
	if f.cfg.OnTrade == nil {
		return
	}
	var trades []wsTrade
	if err := json.Unmarshal(data, &trades); err != nil {
		f.log.Warnw("trades_unparseable", "err", err)
		return
	}
	for _, t := range trades {
		if t.Coin != "" && t.Coin != f.cfg.Coin {
			continue
		}
		px, err := wire.WireToFloat(t.Px)
		if err != nil {
			f.log.Warnw("trade_bad_px", "px", t.Px, "err", err)
			continue
		}
		sz, err := wire.WireToFloat(t.Sz)
		if err != nil {
			f.log.Warnw("trade_bad_sz", "sz", t.Sz, "err", err)
			continue
		}
		f.cfg.OnTrade(Trade{
			Coin: t.Coin,
			Side: t.Side,
			Px:   px,
			Sz:   sz,
			Time: time.UnixMilli(t.Time),
		})
	}
}

type subscription struct {
	Method       string         `json:"method"`
	Subscription map[string]any `json:"subscription"`
}

type inbound struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type l2BookData struct {
	Coin   string      `json:"coin"`
	Levels [][]wsLevel `json:"levels"`
	Time   int64       `json:"time"`
}

type wsTrade struct {
	Coin string `json:"coin"`
	Side string `json:"side"`
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Time int64  `json:"time"`
}

// wsLevel accepts both level encodings the venue emits: the compact
// ["px","sz"] pair and the verbose {"px":..,"sz":..,"n":..} object sent on
// raw feeds.
type wsLevel struct {
	Px string
	Sz string
}

func (l *wsLevel) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var pair []string
		if err := json.Unmarshal(trimmed, &pair); err != nil {
			return err
		}
		if len(pair) < 2 {
			return fmt.Errorf("book level needs px and sz, got %d fields", len(pair))
		}
		l.Px, l.Sz = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Px string `json:"px"`
		Sz string `json:"sz"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	l.Px, l.Sz = obj.Px, obj.Sz
	return nil
}

func toLevels(raw []wsLevel) ([]Level, error) {
	out := make([]Level, 0, len(raw))
	for _, lv := range raw {
		px, err := wire.WireToFloat(lv.Px)
		if err != nil {
			return nil, fmt.Errorf("level px %q: %w", lv.Px, err)
		}
		sz, err := wire.WireToFloat(lv.Sz)
		if err != nil {
			return nil, fmt.Errorf("level sz %q: %w", lv.Sz, err)
		}
		out = append(out, Level{Px: px, Sz: sz})
	}
	return out, nil
}
