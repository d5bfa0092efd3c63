package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/crypto"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

// RemoteRejectedError is a definitive no from the exchange: an error status,
// an unexpected HTTP code, or a body this client cannot parse. Payload keeps
// the raw counterparty bytes for the operator. Nothing in this layer retries
// a rejected action.
type RemoteRejectedError struct {
	HTTPStatus int
	Payload    []byte
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("exchange rejected action (http %d): %s", e.HTTPStatus, snippet(e.Payload))
}

func snippet(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Fill records one execution as reported by the exchange. Size and price are
// the verbatim wire strings from the response, so a later close can echo the
// exact filled quantity back without re-deriving it through floats.
type Fill struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     int64  `json:"oid"`
}

// Resting identifies an order that was accepted onto the book.
type Resting struct {
	Oid int64 `json:"oid"`
}

// Status is the per-order outcome inside an accepted action. Exactly one
// field is set. Order outcomes arrive as objects; cancel confirmations and
// trigger placements arrive as bare strings ("success", "waitingForTrigger")
// and land in Ack.
type Status struct {
	Filled  *Fill    `json:"filled,omitempty"`
	Resting *Resting `json:"resting,omitempty"`
	Error   string   `json:"error,omitempty"`
	Ack     string   `json:"ack,omitempty"`
}

func (s *Status) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var lit string
		if err := json.Unmarshal(trimmed, &lit); err != nil {
			return err
		}
		*s = Status{Ack: lit}
		return nil
	}
	type plain Status
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = Status(p)
	return nil
}

// Result is a parsed accepted response. Statuses align 1:1 with the orders
// (or cancels) of the submitted action. Nonce is the value the client signed
// with, so callers can key journal records to the request that produced them.
type Result struct {
	Nonce    uint64
	Statuses []Status
	Raw      json.RawMessage
}

// FirstFill returns the fill of the first status, if it is a fill. For a
// grouped entry this is the entry order's execution.
func (r *Result) FirstFill() (*Fill, bool) {
	if len(r.Statuses) == 0 || r.Statuses[0].Filled == nil {
		return nil, false
	}
	return r.Statuses[0].Filled, true
}

// RestingOids collects the order ids left resting on the book, in status
// order. For a grouped entry these are the protective orders.
func (r *Result) RestingOids() []int64 {
	var oids []int64
	for _, st := range r.Statuses {
		if st.Resting != nil {
			oids = append(oids, st.Resting.Oid)
		}
	}
	return oids
}

// Errors collects per-order error messages, if any.
func (r *Result) Errors() []string {
	var errs []string
	for _, st := range r.Statuses {
		if st.Error != "" {
			errs = append(errs, st.Error)
		}
	}
	return errs
}

// Config is the immutable identity of one signing session.
type Config struct {
	// BaseURL is the exchange API root, e.g. https://api.hyperliquid.xyz.
	BaseURL string
	// Mainnet selects the agent source the exchange verifies against. It
	// does not change the typed-data domain.
	Mainnet bool
	// Vault, when set, directs actions at a vault/subaccount instead of the
	// signing wallet.
	Vault *common.Address
	// Timeout bounds a single HTTP exchange when the caller's context does
	// not. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a Submit round-trip when the context carries no
// deadline of its own.
const DefaultTimeout = 10 * time.Second

// Client submits signed actions to the exchange's /exchange endpoint.
// Safe for concurrent use; the nonce source sequences concurrent submits.
type Client struct {
	http    *http.Client
	baseURL string
	mainnet bool
	vault   *common.Address
	signer  *crypto.Signer
	nonces  *NonceSource
	log     *zap.SugaredLogger
}

// NewClient wires a signing session against one exchange endpoint. The
// NonceSource must be the one shared by every client signing with this key.
func NewClient(cfg Config, signer *crypto.Signer, nonces *NonceSource, log *zap.SugaredLogger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		mainnet: cfg.Mainnet,
		vault:   cfg.Vault,
		signer:  signer,
		nonces:  nonces,
		log:     log,
	}
}

// Address returns the signing wallet address.
func (c *Client) Address() common.Address {
	return c.signer.Address()
}

type submitRequest struct {
	Action       wire.Action     `json:"action"`
	Nonce        uint64          `json:"nonce"`
	Signature    crypto.RSV      `json:"signature"`
	VaultAddress *common.Address `json:"vaultAddress"`
}

type submitEnvelope struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type okResponse struct {
	Type string `json:"type"`
	Data *struct {
		Statuses []Status `json:"statuses"`
	} `json:"data"`
}

// Submit signs and posts one action: canonical bytes from the shared nonce
// and vault, phantom-agent signature, then POST /exchange. A parse failure
// or error status surfaces as *RemoteRejectedError; a context deadline
// surfaces wrapping context.DeadlineExceeded. Submit never retries.
func (c *Client) Submit(ctx context.Context, action wire.Action) (*Result, error) {
	nonce := c.nonces.Next()

	canonical, err := wire.Canonicalize(action, nonce, c.vault)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.SignL1Action(c.signer, canonical, c.mainnet)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(submitRequest{
		Action:       action,
		Nonce:        nonce,
		Signature:    sig,
		VaultAddress: c.vault,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exchange", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("submit %s action (nonce %d): %w", action.ActionType(), nonce, ctxErr)
		}
		return nil, fmt.Errorf("submit %s action (nonce %d): %w", action.ActionType(), nonce, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read exchange response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warnw("exchange_rejected",
			"type", action.ActionType(), "nonce", nonce, "http_status", resp.StatusCode)
		return nil, &RemoteRejectedError{HTTPStatus: resp.StatusCode, Payload: raw}
	}

	var envelope submitEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &RemoteRejectedError{HTTPStatus: resp.StatusCode, Payload: raw}
	}
	if envelope.Status != "ok" {
		c.log.Warnw("exchange_rejected",
			"type", action.ActionType(), "nonce", nonce, "status", envelope.Status)
		return nil, &RemoteRejectedError{HTTPStatus: resp.StatusCode, Payload: raw}
	}

	var ok okResponse
	if err := json.Unmarshal(envelope.Response, &ok); err != nil || ok.Data == nil {
		return nil, &RemoteRejectedError{HTTPStatus: resp.StatusCode, Payload: raw}
	}

	c.log.Infow("exchange_accepted",
		"type", action.ActionType(), "nonce", nonce, "statuses", len(ok.Data.Statuses))

	return &Result{Nonce: nonce, Statuses: ok.Data.Statuses, Raw: raw}, nil
}
