package api

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/feed"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/journal"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/position"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	imbalanceDepth   = 5
)

// StatusSource reports the bot's current lifecycle snapshot.
type StatusSource interface {
	Status() position.Snapshot
}

// Server is the local monitor: read-only REST over the journal and the live
// book, prometheus metrics, and a WebSocket push feed. It exposes no order
// entry; all trading goes through the signed exchange client.
type Server struct {
	coin    string
	status  StatusSource
	journal *journal.Journal
	book    *feed.Book
	router  *mux.Router
	hub     *Hub
	started time.Time

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewServer creates a monitor server. book may be nil when the feed is
// disabled; status and j must be set.
func NewServer(coin string, status StatusSource, j *journal.Journal, book *feed.Book) *Server {
	s := &Server{
		coin:    coin,
		status:  status,
		journal: j,
		book:    book,
		router:  mux.NewRouter(),
		hub:     NewHub(),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/orders", s.handleOrders).Methods("GET")
	api.HandleFunc("/fills", s.handleFills).Methods("GET")
	api.HandleFunc("/trades", s.handleTrades).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves until Shutdown is called. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv := &http.Server{Addr: addr, Handler: c.Handler(s.router)}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	log.Printf("[api] monitor listening on %s", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.statusResponse())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	recs, err := s.journal.ListOrders(s.coin, queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if recs == nil {
		recs = []journal.OrderRecord{}
	}
	respondJSON(w, recs)
}

func (s *Server) handleFills(w http.ResponseWriter, r *http.Request) {
	recs, err := s.journal.ListFills(s.coin, queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if recs == nil {
		recs = []journal.FillRecord{}
	}
	respondJSON(w, recs)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	recs, err := s.journal.ListTrades(s.coin, queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if recs == nil {
		recs = []journal.TradeRecord{}
	}
	respondJSON(w, recs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the trading loop)
// ==============================

// BroadcastStatus pushes the current snapshot to "status" subscribers.
func (s *Server) BroadcastStatus() {
	s.hub.BroadcastToChannel("status", WSMessage{Type: "status", Data: s.statusResponse()})
}

// BroadcastTrade pushes a closed round trip to "trades" subscribers.
func (s *Server) BroadcastTrade(rec journal.TradeRecord) {
	s.hub.BroadcastToChannel("trades", WSMessage{Type: "trade", Data: rec})
}

// BroadcastOrder pushes a submitted action to "orders" subscribers.
func (s *Server) BroadcastOrder(rec journal.OrderRecord) {
	s.hub.BroadcastToChannel("orders", WSMessage{Type: "order", Data: rec})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) statusResponse() StatusResponse {
	snap := s.status.Status()
	resp := StatusResponse{
		Coin:           s.coin,
		State:          snap.State.String(),
		NeedsReconcile: snap.NeedsReconcile,
		UptimeSecs:     time.Since(s.started).Seconds(),
	}
	if snap.Open != nil {
		resp.Position = &PositionInfo{
			Direction: snap.Open.Direction.String(),
			Size:      snap.Open.Fill.TotalSz,
			EntryPx:   snap.Open.Fill.AvgPx,
			Oid:       snap.Open.Fill.Oid,
			OpenedAt:  snap.Open.OpenedAt.UnixMilli(),
			AgeSecs:   time.Since(snap.Open.OpenedAt).Seconds(),
		}
	}
	if s.book != nil {
		if info, ok := bookInfo(s.book); ok {
			resp.Book = &info
		}
	}
	return resp
}

func bookInfo(b *feed.Book) (BookInfo, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid && !okAsk {
		return BookInfo{}, false
	}
	imb := b.Imbalance(imbalanceDepth)
	if math.IsInf(imb, 1) || imb > 999 {
		imb = 999 // JSON has no Inf
	}
	info := BookInfo{Imbalance: imb, UpdatedMs: b.Updated().UnixMilli()}
	if okBid {
		info.BestBid = bid.Px
	}
	if okAsk {
		info.BestAsk = ask.Px
	}
	if okBid && okAsk {
		info.Mid = (bid.Px + ask.Px) / 2
	}
	return info, true
}

func queryLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
