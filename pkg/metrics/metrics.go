// Package metrics exposes the bot's Prometheus collectors. Everything is
// registered in init() and served by the monitor server at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_submitted_total",
			Help: "Actions submitted to the exchange, by kind and outcome",
		},
		[]string{"kind", "result"}, // kind: entry|close|cancel|flip_entry
	)

	Fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_fills_total",
			Help: "Order fills reported by the exchange",
		},
		[]string{"side"}, // long|short
	)

	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Completed round trips by result (win|loss|flat)",
		},
		[]string{"result"},
	)

	RemoteRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_remote_rejections_total",
			Help: "Actions the exchange rejected outright",
		},
	)

	Flips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_flips_total",
			Help: "Completed close-then-reverse sequences",
		},
	)

	// bot_position_state publishes the lifecycle state as a small integer so
	// dashboards can plot transitions: 0 flat, 1 entering, 2 open, 3 closing,
	// 4 flipping.
	PositionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_position_state",
			Help: "Position lifecycle state (0=flat 1=entering 2=open 3=closing 4=flipping)",
		},
		[]string{"coin"},
	)

	SettleWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_settle_wait_seconds",
			Help:    "Observed wait between a flip's close fill and its reverse entry",
			Buckets: prometheus.LinearBuckets(0, 2.5, 8),
		},
	)

	WsReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_ws_reconnects_total",
			Help: "Market data websocket reconnects",
		},
	)

	BestBid = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_best_bid",
			Help: "Best bid from the live order book",
		},
		[]string{"coin"},
	)

	BestAsk = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_best_ask",
			Help: "Best ask from the live order book",
		},
		[]string{"coin"},
	)
)

func init() {
	prometheus.MustRegister(OrdersSubmitted, Fills, Trades)
	prometheus.MustRegister(RemoteRejections, Flips)
	prometheus.MustRegister(PositionState, SettleWait)
	prometheus.MustRegister(WsReconnects, BestBid, BestAsk)
}

// ObserveOrder records one submitted action outcome.
func ObserveOrder(kind, result string) { OrdersSubmitted.WithLabelValues(kind, result).Inc() }

// ObserveFill records one fill on the given side (long|short).
func ObserveFill(side string) { Fills.WithLabelValues(side).Inc() }

// ObserveTrade classifies a closed round trip by realized PnL sign.
func ObserveTrade(pnl float64) {
	switch {
	case pnl > 0:
		Trades.WithLabelValues("win").Inc()
	case pnl < 0:
		Trades.WithLabelValues("loss").Inc()
	default:
		Trades.WithLabelValues("flat").Inc()
	}
}

// SetPositionState publishes the numeric lifecycle state for a coin.
func SetPositionState(coin string, state int) {
	PositionState.WithLabelValues(coin).Set(float64(state))
}
