package wire

import "fmt"

// Time-in-force values accepted by the exchange.
type Tif string

const (
	TifGtc Tif = "Gtc" // good till cancelled
	TifIoc Tif = "Ioc" // immediate or cancel
	TifAlo Tif = "Alo" // add liquidity only (post-only)
)

// Tpsl tags a trigger order as take-profit or stop-loss.
type Tpsl string

const (
	TpslTakeProfit Tpsl = "tp"
	TpslStopLoss   Tpsl = "sl"
)

// Grouping controls how the exchange links the orders of one action.
type Grouping string

const (
	GroupingNa         Grouping = "na"
	GroupingNormalTpsl Grouping = "normalTpsl"
)

// EncodingError reports an action that violates the wire schema. It is a
// programmer error and is always caught before anything reaches the network.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "wire: " + e.Reason
}

func encodingErrorf(format string, args ...any) *EncodingError {
	return &EncodingError{Reason: fmt.Sprintf(format, args...)}
}

// Struct field declaration order below is the canonical serialization
// order. The exchange hashes the msgpack encoding of these maps, so key
// order is part of the signed preimage and must never change.

// LimitType is the resting/crossing limit variant of an order type.
type LimitType struct {
	Tif Tif `json:"tif" msgpack:"tif"`
}

// TriggerType is the conditional variant: the order activates at
// TriggerPx and then executes as market or limit.
type TriggerType struct {
	IsMarket  bool   `json:"isMarket" msgpack:"isMarket"`
	TriggerPx string `json:"triggerPx" msgpack:"triggerPx"`
	Tpsl      Tpsl   `json:"tpsl" msgpack:"tpsl"`
}

// OrderType holds exactly one of the two variants.
type OrderType struct {
	Limit   *LimitType   `json:"limit,omitempty" msgpack:"limit,omitempty"`
	Trigger *TriggerType `json:"trigger,omitempty" msgpack:"trigger,omitempty"`
}

// Order is the exchange wire form of a single order. Prices and sizes are
// exchange-exact decimal strings produced by FloatToWire.
type Order struct {
	Asset      int       `json:"a" msgpack:"a"`
	IsBuy      bool      `json:"b" msgpack:"b"`
	LimitPx    string    `json:"p" msgpack:"p"`
	Sz         string    `json:"s" msgpack:"s"`
	ReduceOnly bool      `json:"r" msgpack:"r"`
	Type       OrderType `json:"t" msgpack:"t"`
	Cloid      *string   `json:"c,omitempty" msgpack:"c,omitempty"`
}

// Cancel identifies one resting order to cancel.
type Cancel struct {
	Asset int   `json:"a" msgpack:"a"`
	Oid   int64 `json:"o" msgpack:"o"`
}

// Action is a signable exchange instruction. The set of implementations
// is closed; unknown action kinds cannot be constructed.
type Action interface {
	ActionType() string
	validate() error
}

// OrderAction places one or more orders under a grouping.
type OrderAction struct {
	Type     string   `json:"type" msgpack:"type"`
	Orders   []Order  `json:"orders" msgpack:"orders"`
	Grouping Grouping `json:"grouping" msgpack:"grouping"`
}

func (OrderAction) ActionType() string { return "order" }

// CancelAction cancels one or more resting orders.
type CancelAction struct {
	Type    string   `json:"type" msgpack:"type"`
	Cancels []Cancel `json:"cancels" msgpack:"cancels"`
}

func (CancelAction) ActionType() string { return "cancel" }

// NewOrderAction validates orders and wraps them in an action.
func NewOrderAction(orders []Order, grouping Grouping) (*OrderAction, error) {
	a := &OrderAction{Type: "order", Orders: orders, Grouping: grouping}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewCancelAction validates cancels and wraps them in an action.
func NewCancelAction(cancels []Cancel) (*CancelAction, error) {
	a := &CancelAction{Type: "cancel", Cancels: cancels}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *OrderAction) validate() error {
	if a.Type != "order" {
		return encodingErrorf("order action has type %q", a.Type)
	}
	if len(a.Orders) == 0 {
		return encodingErrorf("order action has no orders")
	}
	switch a.Grouping {
	case GroupingNa, GroupingNormalTpsl:
	default:
		return encodingErrorf("unknown grouping %q", a.Grouping)
	}
	for i := range a.Orders {
		if err := a.Orders[i].validate(); err != nil {
			return encodingErrorf("order %d: %v", i, err)
		}
	}
	return nil
}

func (a *CancelAction) validate() error {
	if a.Type != "cancel" {
		return encodingErrorf("cancel action has type %q", a.Type)
	}
	if len(a.Cancels) == 0 {
		return encodingErrorf("cancel action has no cancels")
	}
	for i, c := range a.Cancels {
		if c.Asset < 0 {
			return encodingErrorf("cancel %d: negative asset index %d", i, c.Asset)
		}
		if c.Oid <= 0 {
			return encodingErrorf("cancel %d: invalid oid %d", i, c.Oid)
		}
	}
	return nil
}

func (o *Order) validate() error {
	if o.Asset < 0 {
		return fmt.Errorf("negative asset index %d", o.Asset)
	}
	if o.LimitPx == "" {
		return fmt.Errorf("empty limit price")
	}
	if o.Sz == "" {
		return fmt.Errorf("empty size")
	}
	limit, trigger := o.Type.Limit, o.Type.Trigger
	switch {
	case limit == nil && trigger == nil:
		return fmt.Errorf("order type has neither limit nor trigger variant")
	case limit != nil && trigger != nil:
		return fmt.Errorf("order type has both limit and trigger variants")
	case limit != nil:
		switch limit.Tif {
		case TifGtc, TifIoc, TifAlo:
		default:
			return fmt.Errorf("unknown tif %q", limit.Tif)
		}
	default:
		if trigger.TriggerPx == "" {
			return fmt.Errorf("empty trigger price")
		}
		switch trigger.Tpsl {
		case TpslTakeProfit, TpslStopLoss:
		default:
			return fmt.Errorf("unknown tpsl %q", trigger.Tpsl)
		}
	}
	return nil
}
