package tests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/crypto"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/exchange"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

// Scripted reply bodies in the venue's wire format.
const (
	replyEntryFilled = `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"1.5","avgPx":"170.08","oid":111}},{"resting":{"oid":777}},{"resting":{"oid":778}}]}}}`
	replyCancelAck   = `{"status":"ok","response":{"type":"cancel","data":{"statuses":["success","success"]}}}`
	replyCloseFilled = `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"1.5","avgPx":"168.2","oid":222}}]}}}`
	replyFlipFilled  = `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"2","avgPx":"168.1","oid":333}},{"resting":{"oid":888}},{"resting":{"oid":889}}]}}}`
)

type venueReply struct {
	status int
	body   string
	delay  time.Duration
}

// submitCapture is one verified /exchange request. Exactly one of Order and
// Cancel is set. Recovered is the address the venue-side signature check
// produced.
type submitCapture struct {
	Order     *wire.OrderAction
	Cancel    *wire.CancelAction
	Nonce     uint64
	Vault     *common.Address
	Sig       crypto.RSV
	Recovered common.Address
}

// fakeVenue emulates the exchange over real HTTP. /exchange runs the venue's
// own verification on every submission (decode, re-canonicalize, recover the
// signer) before answering from a scripted reply queue; /info serves mids and
// clearinghouse state.
type fakeVenue struct {
	t *testing.T

	mu       sync.Mutex
	replies  []venueReply
	captures []submitCapture
	mids     map[string]string
	position *exchange.Position

	mainnet bool
	srv     *httptest.Server
}

func newFakeVenue(t *testing.T, mainnet bool) *fakeVenue {
	v := &fakeVenue{
		t:       t,
		mainnet: mainnet,
		mids:    map[string]string{"SOL": "168.4"},
	}
	v.srv = httptest.NewServer(http.HandlerFunc(v.handle))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVenue) URL() string { return v.srv.URL }

func (v *fakeVenue) push(body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replies = append(v.replies, venueReply{status: http.StatusOK, body: body})
}

func (v *fakeVenue) pushStatus(status int, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replies = append(v.replies, venueReply{status: status, body: body})
}

// pushDelayed schedules a reply held back long enough for the caller's
// deadline to fire first.
func (v *fakeVenue) pushDelayed(d time.Duration, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replies = append(v.replies, venueReply{status: http.StatusOK, body: body, delay: d})
}

func (v *fakeVenue) setPosition(p *exchange.Position) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = p
}

func (v *fakeVenue) captureCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.captures)
}

func (v *fakeVenue) capture(i int) submitCapture {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i >= len(v.captures) {
		v.t.Fatalf("capture %d requested, only %d submissions seen", i, len(v.captures))
	}
	return v.captures[i]
}

func (v *fakeVenue) handle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/exchange":
		v.handleExchange(w, r)
	case "/info":
		v.handleInfo(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (v *fakeVenue) handleExchange(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		v.t.Errorf("read submission: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Action       json.RawMessage `json:"action"`
		Nonce        uint64          `json:"nonce"`
		Signature    crypto.RSV      `json:"signature"`
		VaultAddress *common.Address `json:"vaultAddress"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		v.t.Errorf("decode submission: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(req.Action, &kind); err != nil {
		v.t.Errorf("decode action type: %v", err)
	}

	rec := submitCapture{Nonce: req.Nonce, Vault: req.VaultAddress, Sig: req.Signature}
	var act wire.Action
	switch kind.Type {
	case "order":
		var oa wire.OrderAction
		if err := json.Unmarshal(req.Action, &oa); err != nil {
			v.t.Errorf("decode order action: %v", err)
		}
		rec.Order, act = &oa, &oa
	case "cancel":
		var ca wire.CancelAction
		if err := json.Unmarshal(req.Action, &ca); err != nil {
			v.t.Errorf("decode cancel action: %v", err)
		}
		rec.Cancel, act = &ca, &ca
	default:
		v.t.Errorf("submission with unknown action type %q", kind.Type)
	}

	// Verify exactly the way the venue does: rebuild the canonical bytes
	// from the submitted fields and recover the signer from the signature.
	if act != nil {
		canonical, err := wire.Canonicalize(act, req.Nonce, req.VaultAddress)
		if err != nil {
			v.t.Errorf("re-canonicalize submission: %v", err)
		} else if rec.Recovered, err = crypto.RecoverActionSigner(canonical, v.mainnet, req.Signature); err != nil {
			v.t.Errorf("recover signer: %v", err)
		}
	}

	v.mu.Lock()
	v.captures = append(v.captures, rec)
	reply := venueReply{status: http.StatusOK, body: `{"status":"ok","response":{"type":"default","data":{"statuses":[]}}}`}
	if len(v.replies) > 0 {
		reply = v.replies[0]
		v.replies = v.replies[1:]
	}
	v.mu.Unlock()

	if reply.delay > 0 {
		time.Sleep(reply.delay)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status)
	io.WriteString(w, reply.body)
}

func (v *fakeVenue) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch req.Type {
	case "allMids":
		v.mu.Lock()
		mids := make(map[string]string, len(v.mids))
		for k, val := range v.mids {
			mids[k] = val
		}
		v.mu.Unlock()
		json.NewEncoder(w).Encode(mids)
	case "clearinghouseState":
		v.mu.Lock()
		pos := v.position
		v.mu.Unlock()
		state := struct {
			AssetPositions []map[string]any `json:"assetPositions"`
		}{AssetPositions: []map[string]any{}}
		if pos != nil {
			state.AssetPositions = append(state.AssetPositions, map[string]any{
				"type":     "oneWay",
				"position": pos,
			})
		}
		json.NewEncoder(w).Encode(state)
	default:
		http.Error(w, "unknown info type "+req.Type, http.StatusBadRequest)
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
