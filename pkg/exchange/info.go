package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

// InfoClient queries the exchange's read-only /info endpoint. It carries no
// key and signs nothing.
type InfoClient struct {
	http    *http.Client
	baseURL string
	log     *zap.SugaredLogger
}

// NewInfoClient wires an info session against one exchange endpoint.
func NewInfoClient(baseURL string, log *zap.SugaredLogger) *InfoClient {
	return &InfoClient{
		http:    &http.Client{Timeout: DefaultTimeout},
		baseURL: baseURL,
		log:     log,
	}
}

func (c *InfoClient) post(ctx context.Context, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal info request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("info query: %w", ctxErr)
		}
		return fmt.Errorf("info query: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read info response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("info query: http %d: %s", resp.StatusCode, snippet(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode info response: %w", err)
	}
	return nil
}

// AllMids returns the current mid price per coin as wire strings.
func (c *InfoClient) AllMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string
	if err := c.post(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return nil, err
	}
	return mids, nil
}

// MidPrice returns the mid for one coin.
func (c *InfoClient) MidPrice(ctx context.Context, coin string) (float64, error) {
	mids, err := c.AllMids(ctx)
	if err != nil {
		return 0, err
	}
	mid, ok := mids[coin]
	if !ok {
		return 0, fmt.Errorf("no mid price for %s", coin)
	}
	return wire.WireToFloat(mid)
}

// Position is one open position from the clearinghouse state. Szi is the
// signed size wire string: positive long, negative short.
type Position struct {
	Coin    string `json:"coin"`
	Szi     string `json:"szi"`
	EntryPx string `json:"entryPx"`
}

type clearinghouseState struct {
	AssetPositions []struct {
		Position Position `json:"position"`
		Type     string   `json:"type"`
	} `json:"assetPositions"`
}

// UserPosition returns the open position for coin, ok=false when the account
// is flat in that coin. This is the ground truth the lifecycle manager
// reconciles against after an indeterminate close.
func (c *InfoClient) UserPosition(ctx context.Context, user common.Address, coin string) (Position, bool, error) {
	var st clearinghouseState
	req := map[string]string{"type": "clearinghouseState", "user": user.Hex()}
	if err := c.post(ctx, req, &st); err != nil {
		return Position{}, false, err
	}
	for _, ap := range st.AssetPositions {
		if ap.Position.Coin != coin {
			continue
		}
		sz, err := wire.WireToFloat(ap.Position.Szi)
		if err != nil {
			return Position{}, false, fmt.Errorf("position size %q for %s: %w", ap.Position.Szi, coin, err)
		}
		if sz == 0 {
			continue
		}
		return ap.Position, true, nil
	}
	return Position{}, false, nil
}
