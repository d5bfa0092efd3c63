package order

import (
	"errors"
	"strings"
	"testing"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

func TestGroupedEntryLong(t *testing.T) {
	action, err := GroupedEntry(5, true, 168.50, 1.5, 169, 167)
	if err != nil {
		t.Fatalf("GroupedEntry: %v", err)
	}

	if action.Grouping != wire.GroupingNormalTpsl {
		t.Errorf("grouping = %q, want %q", action.Grouping, wire.GroupingNormalTpsl)
	}
	if len(action.Orders) != 3 {
		t.Fatalf("order count = %d, want 3", len(action.Orders))
	}

	entry := action.Orders[0]
	if entry.Asset != 5 || !entry.IsBuy || entry.ReduceOnly {
		t.Errorf("entry = %+v, want asset 5, buy, not reduce-only", entry)
	}
	if entry.LimitPx != "168.5" {
		t.Errorf("entry px = %q, want %q", entry.LimitPx, "168.5")
	}
	if entry.Sz != "1.5" {
		t.Errorf("entry size = %q, want %q", entry.Sz, "1.5")
	}
	if entry.Type.Limit == nil || entry.Type.Limit.Tif != wire.TifGtc {
		t.Errorf("entry type = %+v, want limit Gtc", entry.Type)
	}

	sl := action.Orders[1]
	if sl.IsBuy || !sl.ReduceOnly {
		t.Errorf("stop = %+v, want sell reduce-only", sl)
	}
	if sl.Type.Trigger == nil {
		t.Fatalf("stop type = %+v, want trigger", sl.Type)
	}
	if sl.Type.Trigger.Tpsl != wire.TpslStopLoss || !sl.Type.Trigger.IsMarket {
		t.Errorf("stop trigger = %+v, want market sl", sl.Type.Trigger)
	}
	if sl.Type.Trigger.TriggerPx != "167" {
		t.Errorf("stop trigger px = %q, want %q", sl.Type.Trigger.TriggerPx, "167")
	}
	// Sell stop crosses downward, so the execution limit sits 1 below.
	if sl.LimitPx != "166" {
		t.Errorf("stop exec px = %q, want %q", sl.LimitPx, "166")
	}

	tp := action.Orders[2]
	if tp.IsBuy || !tp.ReduceOnly {
		t.Errorf("profit = %+v, want sell reduce-only", tp)
	}
	if tp.Type.Trigger == nil || tp.Type.Trigger.Tpsl != wire.TpslTakeProfit {
		t.Errorf("profit type = %+v, want trigger tp", tp.Type)
	}
	if tp.Type.Trigger.TriggerPx != "169" || tp.LimitPx != "169" {
		t.Errorf("profit px trigger=%q exec=%q, want both %q",
			tp.Type.Trigger.TriggerPx, tp.LimitPx, "169")
	}
}

func TestGroupedEntryShort(t *testing.T) {
	action, err := GroupedEntry(0, false, 100, 2, 95, 105)
	if err != nil {
		t.Fatalf("GroupedEntry: %v", err)
	}

	entry, sl, tp := action.Orders[0], action.Orders[1], action.Orders[2]
	if entry.IsBuy {
		t.Error("entry side = buy, want sell")
	}
	if !sl.IsBuy || !tp.IsBuy {
		t.Error("protective orders must take the buy side for a short entry")
	}
	// Buy stop crosses upward, so the execution limit sits 1 above.
	if sl.Type.Trigger.TriggerPx != "105" || sl.LimitPx != "106" {
		t.Errorf("stop trigger=%q exec=%q, want 105/106",
			sl.Type.Trigger.TriggerPx, sl.LimitPx)
	}
}

func TestGroupedEntryProtectiveInvariants(t *testing.T) {
	for _, isBuy := range []bool{true, false} {
		tpPx, slPx := 110.0, 90.0
		if !isBuy {
			tpPx, slPx = 90.0, 110.0
		}
		action, err := GroupedEntry(1, isBuy, 100, 1, tpPx, slPx)
		if err != nil {
			t.Fatalf("GroupedEntry(isBuy=%v): %v", isBuy, err)
		}
		for i, o := range action.Orders[1:] {
			if o.IsBuy == isBuy {
				t.Errorf("isBuy=%v: protective order %d on entry side", isBuy, i)
			}
			if !o.ReduceOnly {
				t.Errorf("isBuy=%v: protective order %d not reduce-only", isBuy, i)
			}
			if o.Sz != action.Orders[0].Sz {
				t.Errorf("isBuy=%v: protective order %d size %q != entry size %q",
					isBuy, i, o.Sz, action.Orders[0].Sz)
			}
		}
	}
}

func TestGroupedEntryRejects(t *testing.T) {
	tests := []struct {
		name    string
		isBuy   bool
		entryPx float64
		size    float64
		tpPx    float64
		slPx    float64
	}{
		{"zero size", true, 100, 0, 110, 90},
		{"negative size", true, 100, -1, 110, 90},
		{"zero entry px", true, 0, 1, 110, 90},
		{"long tp below entry", true, 100, 1, 99, 90},
		{"long sl above entry", true, 100, 1, 110, 101},
		{"long tp equals entry", true, 100, 1, 100, 90},
		{"short tp above entry", false, 100, 1, 101, 110},
		{"short sl below entry", false, 100, 1, 90, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GroupedEntry(1, tt.isBuy, tt.entryPx, tt.size, tt.tpPx, tt.slPx)
			if err == nil {
				t.Fatal("construction succeeded, want rejection")
			}
		})
	}
}

func TestGroupedEntryTifOverride(t *testing.T) {
	action, err := GroupedEntryTif(5, true, 100, 1, 110, 90, wire.TifIoc)
	if err != nil {
		t.Fatalf("GroupedEntryTif: %v", err)
	}
	if tif := action.Orders[0].Type.Limit.Tif; tif != wire.TifIoc {
		t.Errorf("entry tif = %q, want %q", tif, wire.TifIoc)
	}
}

func TestGroupedEntrySurfacesPrecisionError(t *testing.T) {
	// 9 fractional digits cannot survive the 8-digit wire format.
	_, err := GroupedEntry(1, true, 100.000000001, 1, 110, 90)
	if err == nil {
		t.Fatal("unrepresentable entry price accepted")
	}
	var pe *wire.PrecisionError
	if !errors.As(err, &pe) {
		t.Errorf("error type = %T, want *wire.PrecisionError in chain", err)
	}
}

func TestLimit(t *testing.T) {
	o, err := Limit(3, false, 25.10, 0.5, true, wire.TifIoc)
	if err != nil {
		t.Fatalf("Limit: %v", err)
	}
	if o.LimitPx != "25.1" || o.Sz != "0.5" {
		t.Errorf("px=%q sz=%q, want 25.1/0.5", o.LimitPx, o.Sz)
	}
	if !o.ReduceOnly || o.IsBuy {
		t.Errorf("order = %+v, want sell reduce-only", o)
	}
}

func TestSingle(t *testing.T) {
	o, err := Limit(1, true, 10, 1, false, wire.TifGtc)
	if err != nil {
		t.Fatalf("Limit: %v", err)
	}
	action, err := Single(o)
	if err != nil {
		t.Fatalf("Single: %v", err)
	}
	if action.Grouping != wire.GroupingNa || len(action.Orders) != 1 {
		t.Errorf("action = %+v, want one order under na", action)
	}
}

func TestCancelOrders(t *testing.T) {
	action, err := CancelOrders(7, []int64{11, 22})
	if err != nil {
		t.Fatalf("CancelOrders: %v", err)
	}
	if len(action.Cancels) != 2 {
		t.Fatalf("cancel count = %d, want 2", len(action.Cancels))
	}
	for i, want := range []int64{11, 22} {
		if c := action.Cancels[i]; c.Asset != 7 || c.Oid != want {
			t.Errorf("cancel %d = %+v, want asset 7 oid %d", i, c, want)
		}
	}

	if _, err := CancelOrders(7, nil); err == nil {
		t.Error("empty cancel list accepted")
	}
}

func TestClose(t *testing.T) {
	action, err := Close(5, false, 168.1, "1.5")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if action.Grouping != wire.GroupingNa {
		t.Errorf("grouping = %q, want na", action.Grouping)
	}
	o := action.Orders[0]
	if o.IsBuy || !o.ReduceOnly {
		t.Errorf("close order = %+v, want sell reduce-only", o)
	}
	if o.Sz != "1.5" {
		t.Errorf("size = %q, want the verbatim fill string", o.Sz)
	}
	if o.LimitPx != "168.1" {
		t.Errorf("px = %q, want 168.1", o.LimitPx)
	}
	if o.Type.Limit == nil || o.Type.Limit.Tif != wire.TifIoc {
		t.Errorf("type = %+v, want Ioc limit", o.Type)
	}

	if _, err := Close(5, false, 168.1, ""); err == nil {
		t.Error("empty size accepted")
	}
}

func TestNewCloid(t *testing.T) {
	c1, c2 := NewCloid(), NewCloid()
	if !strings.HasPrefix(c1, "0x") || len(c1) != 34 {
		t.Errorf("cloid %q, want 0x + 32 hex chars", c1)
	}
	if c1 == c2 {
		t.Error("consecutive cloids are equal")
	}
}
