package params

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/crypto"
)

// Exchange holds venue endpoints and credentials. PrivateKey comes only
// from the environment and must never be logged or written anywhere.
type Exchange struct {
	PrivateKey    string
	WalletAddress string
	VaultAddress  string // optional subaccount; empty means the wallet itself
	APIURL        string
	WSURL         string
	Mainnet       bool
}

// Trading holds the per-coin strategy parameters.
type Trading struct {
	Coin       string
	AssetIndex int
	SzDecimals int

	// PositionUSD is the leveraged notional per entry; actual capital
	// committed is PositionUSD / Leverage.
	PositionUSD float64
	Leverage    int

	EntryOffsetPct float64 // IOC limit offset from mid, in percent
	TpPct          float64 // take profit distance, 0 disables the bracket
	SlPct          float64 // stop loss distance, 0 disables the bracket

	SettleDelay time.Duration // margin release wait between flip legs
	MaxHold     time.Duration // time stop; 0 disables

	ImbalanceThreshold float64 // book ratio that triggers an entry
	BookDepth          int     // levels per side in the imbalance sum
	PollInterval       time.Duration

	// LiveTrading gates real order submission. Off by default: the driver
	// logs the entries it would have made instead of signing them.
	LiveTrading bool
}

// Monitor holds the local observability endpoints.
type Monitor struct {
	Addr        string
	JournalPath string
	LogFile     string
}

type Config struct {
	Exchange Exchange
	Trading  Trading
	Monitor  Monitor
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			APIURL:  "https://api.hyperliquid.xyz",
			WSURL:   "wss://api.hyperliquid.xyz/ws",
			Mainnet: true,
		},
		Trading: Trading{
			Coin:               "SOL",
			AssetIndex:         5,
			SzDecimals:         2,
			PositionUSD:        300.0,
			Leverage:           20,
			EntryOffsetPct:     1.0,
			TpPct:              0.25,
			SlPct:              0.10,
			SettleDelay:        10 * time.Second,
			MaxHold:            30 * time.Second,
			ImbalanceThreshold: 3.0,
			BookDepth:          5,
			PollInterval:       500 * time.Millisecond,
			LiveTrading:        false,
		},
		Monitor: Monitor{
			Addr:        ":8080",
			JournalPath: "data/journal",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Exchange.PrivateKey = getEnv("HL_PRIVATE_KEY", cfg.Exchange.PrivateKey)
	cfg.Exchange.WalletAddress = getEnv("HL_WALLET_ADDRESS", cfg.Exchange.WalletAddress)
	cfg.Exchange.VaultAddress = getEnv("HL_VAULT_ADDRESS", cfg.Exchange.VaultAddress)
	cfg.Exchange.APIURL = getEnv("HL_API_URL", cfg.Exchange.APIURL)
	cfg.Exchange.WSURL = getEnv("HL_WS_URL", cfg.Exchange.WSURL)
	if mainnet := os.Getenv("HL_MAINNET"); mainnet != "" {
		cfg.Exchange.Mainnet = mainnet == "true"
	}

	cfg.Trading.Coin = getEnv("BOT_COIN", cfg.Trading.Coin)
	if v := os.Getenv("BOT_ASSET_INDEX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.AssetIndex = n
		}
	}
	if v := os.Getenv("BOT_SZ_DECIMALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.SzDecimals = n
		}
	}
	if v := os.Getenv("BOT_POSITION_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.PositionUSD = f
		}
	}
	if v := os.Getenv("BOT_LEVERAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.Leverage = n
		}
	}
	if v := os.Getenv("BOT_ENTRY_OFFSET_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.EntryOffsetPct = f
		}
	}
	if v := os.Getenv("BOT_TP_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.TpPct = f
		}
	}
	if v := os.Getenv("BOT_SL_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.SlPct = f
		}
	}
	if v := os.Getenv("BOT_SETTLE_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Trading.SettleDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("BOT_MAX_HOLD_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Trading.MaxHold = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("BOT_IMBALANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.ImbalanceThreshold = f
		}
	}
	if v := os.Getenv("BOT_BOOK_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.BookDepth = n
		}
	}
	if v := os.Getenv("BOT_POLL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Trading.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("LIVE_TRADING"); v != "" {
		cfg.Trading.LiveTrading = v == "true"
	}

	cfg.Monitor.Addr = getEnv("MONITOR_ADDR", cfg.Monitor.Addr)
	cfg.Monitor.JournalPath = getEnv("JOURNAL_PATH", cfg.Monitor.JournalPath)
	cfg.Monitor.LogFile = getEnv("LOG_FILE", cfg.Monitor.LogFile)

	return cfg
}

// Validate rejects configurations that would sign or size orders wrong.
// Error messages never echo the private key.
func (c Config) Validate() error {
	t := c.Trading
	if t.Coin == "" {
		return fmt.Errorf("config: coin is required")
	}
	if t.AssetIndex < 0 {
		return fmt.Errorf("config: asset index %d out of range", t.AssetIndex)
	}
	if t.SzDecimals < 0 || t.SzDecimals > 6 {
		return fmt.Errorf("config: szDecimals %d out of range [0,6]", t.SzDecimals)
	}
	if t.PositionUSD <= 0 {
		return fmt.Errorf("config: positionUSD must be positive, got %v", t.PositionUSD)
	}
	if t.Leverage < 1 {
		return fmt.Errorf("config: leverage must be at least 1, got %d", t.Leverage)
	}
	if t.EntryOffsetPct <= 0 || t.EntryOffsetPct >= 50 {
		return fmt.Errorf("config: entry offset %v%% out of range (0,50)", t.EntryOffsetPct)
	}
	if t.TpPct < 0 || t.SlPct < 0 {
		return fmt.Errorf("config: tp/sl percentages must be non-negative")
	}
	if (t.TpPct > 0) != (t.SlPct > 0) {
		return fmt.Errorf("config: tp and sl must be set together or both zero")
	}
	if t.SettleDelay < 0 || t.MaxHold < 0 {
		return fmt.Errorf("config: delays must be non-negative")
	}
	if t.ImbalanceThreshold <= 1 {
		return fmt.Errorf("config: imbalance threshold must exceed 1, got %v", t.ImbalanceThreshold)
	}
	if t.BookDepth < 1 {
		return fmt.Errorf("config: book depth must be at least 1, got %d", t.BookDepth)
	}
	if t.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive")
	}

	e := c.Exchange
	if e.APIURL == "" || e.WSURL == "" {
		return fmt.Errorf("config: api and ws URLs are required")
	}
	if e.WalletAddress != "" && !crypto.ValidChecksum(e.WalletAddress) {
		return fmt.Errorf("config: wallet address %q is not a valid address", e.WalletAddress)
	}
	if e.VaultAddress != "" && !crypto.ValidChecksum(e.VaultAddress) {
		return fmt.Errorf("config: vault address %q is not a valid address", e.VaultAddress)
	}
	if t.LiveTrading {
		if e.PrivateKey == "" {
			return fmt.Errorf("config: live trading requires HL_PRIVATE_KEY")
		}
		if _, err := crypto.FromPrivateKeyHex(e.PrivateKey); err != nil {
			return fmt.Errorf("config: private key rejected: %w", err)
		}
		if e.WalletAddress == "" {
			return fmt.Errorf("config: live trading requires HL_WALLET_ADDRESS")
		}
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
