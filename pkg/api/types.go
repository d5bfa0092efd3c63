package api

// Response types for the monitor REST endpoints and WebSocket pushes.

// StatusResponse is the bot's current state as served by /api/v1/status and
// pushed on the "status" channel.
type StatusResponse struct {
	Coin           string        `json:"coin"`
	State          string        `json:"state"` // "flat" | "entering" | "open" | "closing" | "flipping"
	NeedsReconcile bool          `json:"needsReconcile"`
	Position       *PositionInfo `json:"position,omitempty"`
	Book           *BookInfo     `json:"book,omitempty"`
	UptimeSecs     float64       `json:"uptimeSecs"`
}

// PositionInfo describes the open position, sizes and prices verbatim from
// the fill that opened it.
type PositionInfo struct {
	Direction string  `json:"direction"` // "long" | "short"
	Size      string  `json:"size"`
	EntryPx   string  `json:"entryPx"`
	Oid       int64   `json:"oid,omitempty"`
	OpenedAt  int64   `json:"openedAt"` // Unix milliseconds
	AgeSecs   float64 `json:"ageSecs"`
}

// BookInfo is a summary of the live order book.
type BookInfo struct {
	BestBid   float64 `json:"bestBid"`
	BestAsk   float64 `json:"bestAsk"`
	Mid       float64 `json:"mid"`
	Imbalance float64 `json:"imbalance"` // top-5 bid/ask size ratio, capped at 999
	UpdatedMs int64   `json:"updatedMs"`
}

// WSMessage wraps every WebSocket push with a type discriminator.
type WSMessage struct {
	Type string      `json:"type"` // "status" | "trade" | "order"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by clients to manage channel subscriptions.
// Every client starts subscribed to "status".
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // "status", "trades", "orders"
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
