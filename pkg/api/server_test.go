package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/exchange"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/feed"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/journal"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/position"
)

type stubStatus struct {
	snap position.Snapshot
}

func (s *stubStatus) Status() position.Snapshot { return s.snap }

func newTestServer(t *testing.T, snap position.Snapshot) (*Server, *journal.Journal, *feed.Book) {
	t.Helper()
	j, err := journal.Open(t.TempDir() + "/journal")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	book := feed.NewBook("SOL")
	s := NewServer("SOL", &stubStatus{snap: snap}, j, book)
	return s, j, book
}

func getJSON(t *testing.T, url string, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("GET %s: content-type %q", url, ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	snap := position.Snapshot{
		State: position.StateOpen,
		Open: &position.OpenPosition{
			Direction: position.Long,
			Fill:      exchange.Fill{TotalSz: "1.5", AvgPx: "168.43", Oid: 42},
			OpenedAt:  time.Now().Add(-30 * time.Second),
		},
	}
	s, _, book := newTestServer(t, snap)
	book.Update(
		[]feed.Level{{Px: 168.4, Sz: 2}},
		[]feed.Level{{Px: 168.5, Sz: 1}},
		time.Now(),
	)

	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	var status StatusResponse
	getJSON(t, ts.URL+"/api/v1/status", &status)

	if status.Coin != "SOL" || status.State != "open" {
		t.Fatalf("status = %+v", status)
	}
	if status.Position == nil {
		t.Fatal("expected position in status")
	}
	if status.Position.Direction != "long" || status.Position.Size != "1.5" ||
		status.Position.EntryPx != "168.43" || status.Position.Oid != 42 {
		t.Fatalf("position = %+v", status.Position)
	}
	if status.Position.AgeSecs < 29 {
		t.Fatalf("ageSecs = %v, want >= 29", status.Position.AgeSecs)
	}
	if status.Book == nil {
		t.Fatal("expected book in status")
	}
	if status.Book.BestBid != 168.4 || status.Book.BestAsk != 168.5 {
		t.Fatalf("book = %+v", status.Book)
	}
	if status.Book.Imbalance != 2 {
		t.Fatalf("imbalance = %v, want 2", status.Book.Imbalance)
	}
}

func TestStatusClampsOneSidedImbalance(t *testing.T) {
	s, _, book := newTestServer(t, position.Snapshot{State: position.StateFlat})
	book.Update([]feed.Level{{Px: 100, Sz: 3}}, nil, time.Now())

	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	var status StatusResponse
	getJSON(t, ts.URL+"/api/v1/status", &status)

	if status.Position != nil {
		t.Fatalf("flat status should have no position, got %+v", status.Position)
	}
	if status.Book == nil || status.Book.Imbalance != 999 {
		t.Fatalf("book = %+v, want imbalance clamped to 999", status.Book)
	}
}

func TestListEndpoints(t *testing.T) {
	s, j, _ := newTestServer(t, position.Snapshot{State: position.StateFlat})

	base := time.Now().Add(-time.Minute)
	for i, nonce := range []uint64{1001, 1002, 1003} {
		rec := journal.OrderRecord{
			Time: base.Add(time.Duration(i) * time.Second), Coin: "SOL",
			Nonce: nonce, Kind: "entry", Side: "long", Px: "168.85", Sz: "1.5",
			Result: "filled",
		}
		if err := j.PutOrder(rec); err != nil {
			t.Fatalf("put order: %v", err)
		}
	}
	if err := j.PutFill(journal.FillRecord{
		Time: base, Coin: "SOL", Nonce: 1001, Side: "long",
		TotalSz: "1.5", AvgPx: "168.43", Oid: 42,
	}); err != nil {
		t.Fatalf("put fill: %v", err)
	}
	if err := j.PutTrade(journal.TradeRecord{
		Time: base, Coin: "SOL", Side: "long", Size: "1.5",
		EntryPx: "168.43", ExitPx: "169.1", Pnl: 1.0, Oid: 43,
	}); err != nil {
		t.Fatalf("put trade: %v", err)
	}

	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	var orders []journal.OrderRecord
	getJSON(t, ts.URL+"/api/v1/orders?limit=2", &orders)
	if len(orders) != 2 || orders[0].Nonce != 1002 || orders[1].Nonce != 1003 {
		t.Fatalf("orders = %+v, want newest two in order", orders)
	}

	var fills []journal.FillRecord
	getJSON(t, ts.URL+"/api/v1/fills", &fills)
	if len(fills) != 1 || fills[0].TotalSz != "1.5" {
		t.Fatalf("fills = %+v", fills)
	}

	var trades []journal.TradeRecord
	getJSON(t, ts.URL+"/api/v1/trades", &trades)
	if len(trades) != 1 || trades[0].ExitPx != "169.1" {
		t.Fatalf("trades = %+v", trades)
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	s, _, _ := newTestServer(t, position.Snapshot{State: position.StateFlat})
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/v1/trades")
	if err != nil {
		t.Fatalf("GET trades: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if got := strings.TrimSpace(string(body)); got != "[]" {
		t.Fatalf("empty trades body = %q, want []", got)
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, position.Snapshot{State: position.StateFlat})
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	var health map[string]string
	getJSON(t, ts.URL+"/health", &health)
	if health["status"] != "ok" {
		t.Fatalf("health = %v", health)
	}
}

func TestMetricsServed(t *testing.T) {
	s, _, _ := newTestServer(t, position.Snapshot{State: position.StateFlat})
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "bot_flips_total") {
		t.Fatal("metrics output missing bot collectors")
	}
}

func TestQueryLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", defaultListLimit},
		{"?limit=10", 10},
		{"?limit=0", defaultListLimit},
		{"?limit=-5", defaultListLimit},
		{"?limit=junk", defaultListLimit},
		{"?limit=10000", maxListLimit},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/api/v1/orders"+tc.query, nil)
		if got := queryLimit(r); got != tc.want {
			t.Errorf("queryLimit(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}

func TestWebSocketStatusPush(t *testing.T) {
	s, _, _ := newTestServer(t, position.Snapshot{State: position.StateFlat})
	go s.hub.Run()

	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	s.BroadcastStatus()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read push: %v", err)
	}
	var msg struct {
		Type string         `json:"type"`
		Data StatusResponse `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal push: %v", err)
	}
	if msg.Type != "status" || msg.Data.State != "flat" {
		t.Fatalf("push = %+v", msg)
	}
}
