package order

import (
	"fmt"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

// Limit builds a plain limit order. Prices and sizes cross the codec here,
// so anything the exchange could not represent exactly is rejected before it
// is ever part of an action.
func Limit(asset int, isBuy bool, px, size float64, reduceOnly bool, tif wire.Tif) (wire.Order, error) {
	pxWire, err := wire.FloatToWire(px)
	if err != nil {
		return wire.Order{}, fmt.Errorf("limit px: %w", err)
	}
	szWire, err := wire.FloatToWire(size)
	if err != nil {
		return wire.Order{}, fmt.Errorf("size: %w", err)
	}
	return wire.Order{
		Asset:      asset,
		IsBuy:      isBuy,
		LimitPx:    pxWire,
		Sz:         szWire,
		ReduceOnly: reduceOnly,
		Type:       wire.OrderType{Limit: &wire.LimitType{Tif: tif}},
	}, nil
}

// triggerMarket builds a reduce-only conditional order that fires at
// triggerPx and then executes as a market order with execPx as the slippage
// bound.
func triggerMarket(asset int, isBuy bool, triggerPx, execPx, size float64, tpsl wire.Tpsl) (wire.Order, error) {
	trigWire, err := wire.FloatToWire(triggerPx)
	if err != nil {
		return wire.Order{}, fmt.Errorf("trigger px: %w", err)
	}
	execWire, err := wire.FloatToWire(execPx)
	if err != nil {
		return wire.Order{}, fmt.Errorf("exec px: %w", err)
	}
	szWire, err := wire.FloatToWire(size)
	if err != nil {
		return wire.Order{}, fmt.Errorf("size: %w", err)
	}
	return wire.Order{
		Asset:      asset,
		IsBuy:      isBuy,
		LimitPx:    execWire,
		Sz:         szWire,
		ReduceOnly: true,
		Type: wire.OrderType{Trigger: &wire.TriggerType{
			IsMarket:  true,
			TriggerPx: trigWire,
			Tpsl:      tpsl,
		}},
	}, nil
}

// GroupedEntry builds an atomically grouped entry with protective stop-loss
// and take-profit, entry resting Gtc. See GroupedEntryTif.
func GroupedEntry(asset int, isBuy bool, entryPx, size, tpPx, slPx float64) (*wire.OrderAction, error) {
	return GroupedEntryTif(asset, isBuy, entryPx, size, tpPx, slPx, wire.TifGtc)
}

// GroupedEntryTif builds the three-order normalTpsl bundle: the entry on the
// given side, then an opposite-side reduce-only stop-loss and take-profit
// sized to the full entry. The exchange links the protective pair to the
// entry fill and cancels the survivor when either fires.
//
// The stop-loss executes as a market order with its limit set 1 past the
// trigger in the crossing direction of the stop order's own side: a sell
// stop at slPx-1, a buy stop at slPx+1. The trigger price carries the
// protection level; the shifted limit only guarantees the market leg crosses.
func GroupedEntryTif(asset int, isBuy bool, entryPx, size, tpPx, slPx float64, entryTif wire.Tif) (*wire.OrderAction, error) {
	if !(size > 0) {
		return nil, fmt.Errorf("grouped entry: size %v not positive", size)
	}
	if !(entryPx > 0) || !(tpPx > 0) || !(slPx > 0) {
		return nil, fmt.Errorf("grouped entry: prices entry=%v tp=%v sl=%v must be positive", entryPx, tpPx, slPx)
	}
	if isBuy {
		if !(tpPx > entryPx) || !(entryPx > slPx) {
			return nil, fmt.Errorf("grouped entry: long needs tp %v > entry %v > sl %v", tpPx, entryPx, slPx)
		}
	} else {
		if !(tpPx < entryPx) || !(entryPx < slPx) {
			return nil, fmt.Errorf("grouped entry: short needs tp %v < entry %v < sl %v", tpPx, entryPx, slPx)
		}
	}

	entry, err := Limit(asset, isBuy, entryPx, size, false, entryTif)
	if err != nil {
		return nil, fmt.Errorf("grouped entry: %w", err)
	}

	// Protective orders close the position, so they take the opposite side.
	protSide := !isBuy

	slExec := slPx - 1
	if protSide { // buy stop crosses upward
		slExec = slPx + 1
	}
	if !(slExec > 0) {
		return nil, fmt.Errorf("grouped entry: stop exec px %v not positive", slExec)
	}
	sl, err := triggerMarket(asset, protSide, slPx, slExec, size, wire.TpslStopLoss)
	if err != nil {
		return nil, fmt.Errorf("grouped entry stop-loss: %w", err)
	}

	tp, err := triggerMarket(asset, protSide, tpPx, tpPx, size, wire.TpslTakeProfit)
	if err != nil {
		return nil, fmt.Errorf("grouped entry take-profit: %w", err)
	}

	return wire.NewOrderAction([]wire.Order{entry, sl, tp}, wire.GroupingNormalTpsl)
}

// Single wraps one order in an ungrouped action.
func Single(o wire.Order) (*wire.OrderAction, error) {
	return wire.NewOrderAction([]wire.Order{o}, wire.GroupingNa)
}

// Close builds the reduce-only IOC limit order that offsets an open
// position. Size is the verbatim fill string from the entry execution,
// echoed back unchanged so the close quantity matches the position exactly
// without a float round trip.
func Close(asset int, isBuy bool, px float64, size string) (*wire.OrderAction, error) {
	pxWire, err := wire.FloatToWire(px)
	if err != nil {
		return nil, fmt.Errorf("close px: %w", err)
	}
	if size == "" {
		return nil, fmt.Errorf("close: empty size")
	}
	o := wire.Order{
		Asset:      asset,
		IsBuy:      isBuy,
		LimitPx:    pxWire,
		Sz:         size,
		ReduceOnly: true,
		Type:       wire.OrderType{Limit: &wire.LimitType{Tif: wire.TifIoc}},
	}
	return Single(o)
}

// CancelOrders builds a cancel action for resting order ids on one asset.
func CancelOrders(asset int, oids []int64) (*wire.CancelAction, error) {
	cancels := make([]wire.Cancel, len(oids))
	for i, oid := range oids {
		cancels[i] = wire.Cancel{Asset: asset, Oid: oid}
	}
	return wire.NewCancelAction(cancels)
}
