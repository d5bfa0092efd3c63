package wire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func sampleOrderAction(t *testing.T) *OrderAction {
	t.Helper()
	a, err := NewOrderAction([]Order{{
		Asset:   5,
		IsBuy:   true,
		LimitPx: "168.5",
		Sz:      "1.5",
		Type:    OrderType{Limit: &LimitType{Tif: TifGtc}},
	}}, GroupingNa)
	if err != nil {
		t.Fatalf("NewOrderAction: %v", err)
	}
	return a
}

// The canonical encoding is the exchange's signed preimage, so the exact
// bytes matter. These vectors are msgpack computed by hand: fixmap/fixstr
// headers, compact ints, declaration-order keys.
func TestCanonicalizeGoldenCancel(t *testing.T) {
	action, err := NewCancelAction([]Cancel{{Asset: 5, Oid: 123}})
	if err != nil {
		t.Fatalf("NewCancelAction: %v", err)
	}

	got, err := Canonicalize(action, 1234567890, nil)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	want := "" +
		"82" + // map {type, cancels}
		"a474797065" + "a663616e63656c" + // "type": "cancel"
		"a763616e63656c73" + "91" + // "cancels": [
		"82" + "a161" + "05" + "a16f" + "7b" + // {"a":5,"o":123}
		"00000000499602d2" + // nonce big-endian
		"00" // no vault
	if hex.EncodeToString(got) != want {
		t.Errorf("canonical bytes\n got %s\nwant %s", hex.EncodeToString(got), want)
	}
}

func TestCanonicalizeGoldenOrder(t *testing.T) {
	got, err := Canonicalize(sampleOrderAction(t), 1, nil)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	want := "" +
		"83" + // map {type, orders, grouping}
		"a474797065" + "a56f72646572" + // "type": "order"
		"a66f7264657273" + "91" + // "orders": [
		"86" + // order map, cloid omitted
		"a161" + "05" + // "a": 5
		"a162" + "c3" + // "b": true
		"a170" + "a53136382e35" + // "p": "168.5"
		"a173" + "a3312e35" + // "s": "1.5"
		"a172" + "c2" + // "r": false
		"a174" + "81" + "a56c696d6974" + "81" + "a3746966" + "a3477463" + // "t": {"limit":{"tif":"Gtc"}}
		"a867726f7570696e67" + "a26e61" + // "grouping": "na"
		"0000000000000001" + // nonce
		"00"
	if hex.EncodeToString(got) != want {
		t.Errorf("canonical bytes\n got %s\nwant %s", hex.EncodeToString(got), want)
	}
}

// Identical logical input must canonicalize identically no matter how the
// caller assembled it.
func TestCanonicalizeDeterministic(t *testing.T) {
	first := sampleOrderAction(t)

	// Assemble the same action in a different construction order.
	var o Order
	o.Type = OrderType{Limit: &LimitType{Tif: TifGtc}}
	o.Sz = "1.5"
	o.LimitPx = "168.5"
	o.IsBuy = true
	o.Asset = 5
	second, err := NewOrderAction([]Order{o}, GroupingNa)
	if err != nil {
		t.Fatalf("NewOrderAction: %v", err)
	}

	b1, err := Canonicalize(first, 42, nil)
	if err != nil {
		t.Fatalf("Canonicalize first: %v", err)
	}
	b2, err := Canonicalize(second, 42, nil)
	if err != nil {
		t.Fatalf("Canonicalize second: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Errorf("canonical bytes differ for identical logical input\n%x\n%x", b1, b2)
	}
}

func TestCanonicalizeVaultMarker(t *testing.T) {
	action := sampleOrderAction(t)

	withoutVault, err := Canonicalize(action, 7, nil)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if withoutVault[len(withoutVault)-1] != 0x00 {
		t.Errorf("missing-vault marker = %#x, want 0x00", withoutVault[len(withoutVault)-1])
	}

	vault := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	withVault, err := Canonicalize(action, 7, &vault)
	if err != nil {
		t.Fatalf("Canonicalize with vault: %v", err)
	}
	if len(withVault) != len(withoutVault)+20 {
		t.Fatalf("vault encoding added %d bytes, want 20", len(withVault)-len(withoutVault))
	}
	tail := withVault[len(withVault)-21:]
	if tail[0] != 0x01 {
		t.Errorf("vault marker = %#x, want 0x01", tail[0])
	}
	if !bytes.Equal(tail[1:], vault.Bytes()) {
		t.Errorf("vault bytes = %x, want %x", tail[1:], vault.Bytes())
	}
}

func TestCanonicalizeNonceBigEndian(t *testing.T) {
	action := sampleOrderAction(t)
	got, err := Canonicalize(action, 0x0102030405060708, nil)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	nonceBytes := got[len(got)-9 : len(got)-1]
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(nonceBytes, want) {
		t.Errorf("nonce bytes = %x, want %x", nonceBytes, want)
	}
}

func TestActionValidation(t *testing.T) {
	tests := []struct {
		name  string
		build func() error
	}{
		{"no orders", func() error {
			_, err := NewOrderAction(nil, GroupingNa)
			return err
		}},
		{"unknown grouping", func() error {
			_, err := NewOrderAction([]Order{{Asset: 1, LimitPx: "1", Sz: "1",
				Type: OrderType{Limit: &LimitType{Tif: TifGtc}}}}, Grouping("positionTpsl"))
			return err
		}},
		{"neither variant", func() error {
			_, err := NewOrderAction([]Order{{Asset: 1, LimitPx: "1", Sz: "1"}}, GroupingNa)
			return err
		}},
		{"both variants", func() error {
			_, err := NewOrderAction([]Order{{Asset: 1, LimitPx: "1", Sz: "1",
				Type: OrderType{
					Limit:   &LimitType{Tif: TifGtc},
					Trigger: &TriggerType{IsMarket: true, TriggerPx: "1", Tpsl: TpslStopLoss},
				}}}, GroupingNa)
			return err
		}},
		{"bad tif", func() error {
			_, err := NewOrderAction([]Order{{Asset: 1, LimitPx: "1", Sz: "1",
				Type: OrderType{Limit: &LimitType{Tif: Tif("GTC")}}}}, GroupingNa)
			return err
		}},
		{"bad tpsl", func() error {
			_, err := NewOrderAction([]Order{{Asset: 1, LimitPx: "1", Sz: "1",
				Type: OrderType{Trigger: &TriggerType{IsMarket: true, TriggerPx: "1", Tpsl: Tpsl("stop")}}}}, GroupingNa)
			return err
		}},
		{"empty price", func() error {
			_, err := NewOrderAction([]Order{{Asset: 1, Sz: "1",
				Type: OrderType{Limit: &LimitType{Tif: TifGtc}}}}, GroupingNa)
			return err
		}},
		{"no cancels", func() error {
			_, err := NewCancelAction(nil)
			return err
		}},
		{"zero oid", func() error {
			_, err := NewCancelAction([]Cancel{{Asset: 1, Oid: 0}})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if err == nil {
				t.Fatal("construction succeeded, want EncodingError")
			}
			var ee *EncodingError
			if !errors.As(err, &ee) {
				t.Errorf("error type = %T, want *EncodingError", err)
			}
		})
	}
}
