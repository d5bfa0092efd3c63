// Command sign-order builds and signs an exchange order offline, then prints
// the exact POST /exchange payload. It never talks to the network: use it to
// inspect canonical bytes, connection ids, and signatures, or to prepare a
// payload for manual submission.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/crypto"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/order"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

func main() {
	var (
		keyHex  = flag.String("key", "", "private key hex (empty generates a throwaway key)")
		coin    = flag.String("coin", "SOL", "coin label, printed only")
		asset   = flag.Int("asset", 5, "asset index on the exchange")
		buy     = flag.Bool("buy", true, "true for a buy, false for a sell")
		px      = flag.Float64("px", 168.43, "entry limit price")
		sz      = flag.Float64("sz", 1.5, "order size in coin units")
		tp      = flag.Float64("tp", 0, "take-profit trigger price (0 skips the protective pair)")
		sl      = flag.Float64("sl", 0, "stop-loss trigger price (0 skips the protective pair)")
		nonce   = flag.Uint64("nonce", 0, "nonce in ms (0 uses the current time)")
		mainnet = flag.Bool("mainnet", true, "sign for mainnet (agent source \"a\") instead of testnet")
		vault   = flag.String("vault", "", "vault address to trade for (empty trades the wallet itself)")
	)
	flag.Parse()

	// Step 1: load or generate the key. Only the address is ever printed.
	var signer *crypto.Signer
	var err error
	if *keyHex == "" {
		fmt.Println("No -key given, generating a throwaway keypair...")
		signer, err = crypto.GenerateKey()
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	}
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Signing address: %s\n\n", signer.Address().Hex())

	var vaultAddr *common.Address
	if *vault != "" {
		if !crypto.ValidChecksum(*vault) {
			fatal(fmt.Errorf("vault address %q fails checksum", *vault))
		}
		a := common.HexToAddress(*vault)
		vaultAddr = &a
	}

	// Step 2: build the action.
	var act *wire.OrderAction
	if *tp > 0 || *sl > 0 {
		if *tp <= 0 || *sl <= 0 {
			fatal(fmt.Errorf("protective orders come as a pair: give both -tp and -sl or neither"))
		}
		act, err = order.GroupedEntry(*asset, *buy, *px, *sz, *tp, *sl)
	} else {
		var o wire.Order
		o, err = order.Limit(*asset, *buy, *px, *sz, false, wire.TifGtc)
		if err == nil {
			act, err = order.Single(o)
		}
	}
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Action: %s, %d order(s) on %s (asset %d), grouping %q\n", act.ActionType(), len(act.Orders), *coin, *asset, act.Grouping)
	for i, o := range act.Orders {
		fmt.Printf("  [%d] %s\n", i, describe(o))
	}
	fmt.Println()

	// Step 3: canonical bytes. msgpack(action) || nonce || vault marker.
	n := *nonce
	if n == 0 {
		n = uint64(time.Now().UnixMilli())
	}
	canonical, err := wire.Canonicalize(act, n, vaultAddr)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Nonce: %d\n", n)
	fmt.Printf("Canonical bytes: %d\n", len(canonical))
	fmt.Printf("Connection id: %s\n\n", crypto.ConnectionID(canonical).Hex())

	// Step 4: sign under the pinned agent domain.
	sig, err := crypto.SignL1Action(signer, canonical, *mainnet)
	if err != nil {
		fatal(err)
	}
	fmt.Println("Signature:")
	fmt.Printf("  r: %s\n", sig.R)
	fmt.Printf("  s: %s\n", sig.S)
	fmt.Printf("  v: %d\n\n", sig.V)

	// Step 5: recover the signer the way the exchange will.
	recovered, err := crypto.RecoverActionSigner(canonical, *mainnet, sig)
	if err != nil {
		fatal(err)
	}
	if recovered != signer.Address() {
		fmt.Printf("✗ Recovery mismatch: got %s, want %s\n", recovered.Hex(), signer.Address().Hex())
		os.Exit(1)
	}
	fmt.Printf("✓ Signature recovers to %s\n\n", recovered.Hex())

	// Step 6: the wire payload, byte for byte what the client would POST.
	payload := struct {
		Action       wire.Action     `json:"action"`
		Nonce        uint64          `json:"nonce"`
		Signature    crypto.RSV      `json:"signature"`
		VaultAddress *common.Address `json:"vaultAddress"`
	}{act, n, sig, vaultAddr}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println("POST /exchange payload:")
	fmt.Println(string(body))
	fmt.Println()
	fmt.Println("This tool never submits. Send the payload yourself, or run cmd/trader.")
}

func describe(o wire.Order) string {
	side := "SELL"
	if o.IsBuy {
		side = "BUY"
	}
	switch {
	case o.Type.Trigger != nil:
		t := o.Type.Trigger
		return fmt.Sprintf("%s %s, %s trigger @ %s, market exec limit %s, reduceOnly=%v",
			side, o.Sz, t.Tpsl, t.TriggerPx, o.LimitPx, o.ReduceOnly)
	case o.Type.Limit != nil:
		return fmt.Sprintf("%s %s @ %s, %s limit, reduceOnly=%v",
			side, o.Sz, o.LimitPx, o.Type.Limit.Tif, o.ReduceOnly)
	}
	return side
}

func fatal(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}
