package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/params"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/api"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/crypto"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/exchange"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/feed"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/journal"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/position"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	var err error
	if cfg.Monitor.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Monitor.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Signing session ----
	// Dry runs get a throwaway key so the canonicalize/sign path still runs
	// end to end without touching a real account.
	var signer *crypto.Signer
	if cfg.Exchange.PrivateKey != "" {
		signer, err = crypto.FromPrivateKeyHex(cfg.Exchange.PrivateKey)
	} else {
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		sugar.Fatalw("signer_init_failed", "err", err)
	}

	wallet := signer.Address()
	if cfg.Exchange.WalletAddress != "" {
		wallet = common.HexToAddress(cfg.Exchange.WalletAddress)
	}
	var vault *common.Address
	if cfg.Exchange.VaultAddress != "" {
		v := common.HexToAddress(cfg.Exchange.VaultAddress)
		vault = &v
	}

	sugar.Infow("trader_starting",
		"coin", cfg.Trading.Coin,
		"wallet", wallet.Hex(),
		"mainnet", cfg.Exchange.Mainnet,
		"live", cfg.Trading.LiveTrading,
		"position_usd", cfg.Trading.PositionUSD,
		"leverage", cfg.Trading.Leverage,
		"capital_required", cfg.Trading.PositionUSD/float64(cfg.Trading.Leverage))

	// ---- Journal ----
	jrnl, err := journal.Open(cfg.Monitor.JournalPath)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "path", cfg.Monitor.JournalPath, "err", err)
	}
	defer jrnl.Close()

	// ---- Exchange clients ----
	// One nonce source for everything signed with this key.
	nonces := &exchange.NonceSource{}
	client := exchange.NewClient(exchange.Config{
		BaseURL: cfg.Exchange.APIURL,
		Mainnet: cfg.Exchange.Mainnet,
		Vault:   vault,
	}, signer, nonces, sugar)
	info := exchange.NewInfoClient(cfg.Exchange.APIURL, sugar)

	// ---- Position manager ----
	mgr := position.NewManager(position.Config{
		Coin:           cfg.Trading.Coin,
		Asset:          cfg.Trading.AssetIndex,
		SzDecimals:     cfg.Trading.SzDecimals,
		EntryOffsetPct: cfg.Trading.EntryOffsetPct,
		TpPct:          cfg.Trading.TpPct,
		SlPct:          cfg.Trading.SlPct,
		SettleDelay:    cfg.Trading.SettleDelay,
		Wallet:         wallet,
	}, client, info, info, jrnl, util.RealClock{}, sugar)

	// ---- Market data ----
	volume := newVolumeTracker()
	mktFeed := feed.NewFeed(feed.Config{
		URL:     cfg.Exchange.WSURL,
		Coin:    cfg.Trading.Coin,
		OnTrade: volume.Record,
	}, util.RealClock{}, sugar)
	go func() {
		if err := mktFeed.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Errorw("feed_stopped", "err", err)
		}
	}()

	// ---- Monitor server ----
	monitor := api.NewServer(cfg.Trading.Coin, mgr, jrnl, mktFeed.Book())
	go func() {
		sugar.Infow("monitor_starting", "addr", cfg.Monitor.Addr)
		if err := monitor.Start(cfg.Monitor.Addr); err != nil {
			sugar.Fatalw("monitor_failed", "err", err)
		}
	}()

	// Adopt whatever position the account already holds before trading.
	if snap, err := mgr.Reconcile(ctx); err != nil {
		sugar.Warnw("startup_reconcile_failed", "err", err)
	} else if snap.Open != nil {
		sugar.Infow("adopted_position",
			"direction", snap.Open.Direction.String(),
			"size", snap.Open.Fill.TotalSz,
			"entry_px", snap.Open.Fill.AvgPx)
	}

	// ---- Driver loop ----
	d := &driver{
		cfg:    cfg.Trading,
		mgr:    mgr,
		book:   mktFeed.Book(),
		volume: volume,
		log:    sugar,
	}

	sugar.Infow("trader_running",
		"imbalance_threshold", cfg.Trading.ImbalanceThreshold,
		"book_depth", cfg.Trading.BookDepth,
		"entry_offset_pct", cfg.Trading.EntryOffsetPct,
		"tp_pct", cfg.Trading.TpPct,
		"sl_pct", cfg.Trading.SlPct,
		"max_hold", cfg.Trading.MaxHold,
		"settle_delay", cfg.Trading.SettleDelay)

	ticker := time.NewTicker(cfg.Trading.PollInterval)
	defer ticker.Stop()
	statusTicker := time.NewTicker(1 * time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Infow("trader_stopping", "state", mgr.Status().State.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := monitor.Shutdown(shutdownCtx); err != nil {
				sugar.Warnw("monitor_shutdown_failed", "err", err)
			}
			cancel()
			return
		case <-statusTicker.C:
			monitor.BroadcastStatus()
		case <-ticker.C:
			d.step(ctx)
		}
	}
}
