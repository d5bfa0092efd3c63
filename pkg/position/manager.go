// Package position owns the lifecycle of one perp position: enter with an
// aggressive immediate-or-cancel order, hold it behind exchange-side
// protective triggers, and close or flip it without ever racing the
// exchange's margin release.
package position

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/exchange"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/journal"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/metrics"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/order"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/util"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/wire"
)

// Submitter posts one signed action and interprets the response.
type Submitter interface {
	Submit(ctx context.Context, action wire.Action) (*exchange.Result, error)
}

// PriceSource supplies the mid price offset entries and closes are priced
// from.
type PriceSource interface {
	MidPrice(ctx context.Context, coin string) (float64, error)
}

// AccountSource supplies account ground truth for reconciliation.
type AccountSource interface {
	UserPosition(ctx context.Context, user common.Address, coin string) (exchange.Position, bool, error)
}

// Recorder persists order, fill and trade records. A nil Recorder disables
// journaling.
type Recorder interface {
	PutOrder(journal.OrderRecord) error
	PutFill(journal.FillRecord) error
	PutTrade(journal.TradeRecord) error
}

// Config fixes one position's market and pricing parameters.
type Config struct {
	// Coin is the exchange symbol, e.g. "SOL".
	Coin string
	// Asset is the exchange's integer index for Coin.
	Asset int
	// SzDecimals is the asset's lot precision; prices round to
	// 6-SzDecimals fractional digits.
	SzDecimals int
	// EntryOffsetPct shifts immediate-or-cancel prices past the mid in the
	// crossing direction, in percent.
	EntryOffsetPct float64
	// TpPct and SlPct place the protective bracket around the entry price,
	// in percent. Zero disables the bracket and entries go out bare.
	TpPct float64
	SlPct float64
	// SettleDelay is the wait between a flip's close fill and its reverse
	// entry, covering the exchange's margin release.
	SettleDelay time.Duration
	// SubmitTimeout bounds each submitted action.
	SubmitTimeout time.Duration
	// Wallet is the account queried during reconciliation.
	Wallet common.Address
}

const (
	// DefaultSettleDelay is the observed safe margin-release wait.
	DefaultSettleDelay = 10 * time.Second

	defaultSubmitTimeout = 10 * time.Second
)

// Manager is the state machine for one position. Enter, Close, Flip and
// Reconcile are serialized against each other; Status never blocks behind
// them, so the position stays observable through a settle wait. Run one
// Manager per coin; independent managers do not contend.
type Manager struct {
	cfg      Config
	client   Submitter
	prices   PriceSource
	accounts AccountSource
	journal  Recorder
	clock    util.Clock
	log      *zap.SugaredLogger

	opMu sync.Mutex // serializes lifecycle operations

	mu             sync.Mutex // guards the fields below
	state          State
	needsReconcile bool
	open           *OpenPosition
}

// NewManager wires a lifecycle manager. accounts may be nil if Reconcile is
// never used; journal may be nil to disable journaling.
func NewManager(cfg Config, client Submitter, prices PriceSource, accounts AccountSource, jrnl Recorder, clock util.Clock, log *zap.SugaredLogger) *Manager {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	m := &Manager{
		cfg:      cfg,
		client:   client,
		prices:   prices,
		accounts: accounts,
		journal:  jrnl,
		clock:    clock,
		log:      log,
	}
	metrics.SetPositionState(cfg.Coin, int(StateFlat))
	return m
}

// Status reports the current state without waiting on in-flight operations.
func (m *Manager) Status() Snapshot { return m.snapshot() }

// Enter opens a position from flat: an immediate-or-cancel limit priced
// EntryOffsetPct past the mid toward crossing, bracketed by protective
// triggers when TpPct/SlPct are set. An unfilled or timed-out entry leaves
// the manager flat.
func (m *Manager) Enter(ctx context.Context, dir Direction, size float64) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.reconcileRequired() {
		return m.snapshot(), ErrReconcileRequired
	}
	if st := m.currentState(); st != StateFlat {
		return m.snapshot(), fmt.Errorf("enter %s (state %s): %w", m.cfg.Coin, st, ErrNotFlat)
	}
	if dir != Long && dir != Short {
		return m.snapshot(), fmt.Errorf("enter %s: invalid direction %d", m.cfg.Coin, dir)
	}

	m.setState(StateEntering)
	if _, err := m.doEnter(ctx, dir, size, "entry"); err != nil {
		return m.snapshot(), fmt.Errorf("enter %s: %w", m.cfg.Coin, err)
	}
	return m.snapshot(), nil
}

// Close flattens the open position: protective triggers are cancelled first,
// then a reduce-only immediate-or-cancel sized to the stored entry fill is
// submitted. With nothing open it fails before any network call. An
// interrupted close latches the reconcile requirement instead of guessing.
func (m *Manager) Close(ctx context.Context) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.reconcileRequired() {
		return m.snapshot(), ErrReconcileRequired
	}
	open := m.openPosition()
	if open == nil {
		return m.snapshot(), fmt.Errorf("close %s: %w", m.cfg.Coin, ErrNoPosition)
	}

	m.setState(StateClosing)
	fill, nonce, err := m.doClose(ctx, open)
	if err != nil {
		m.setState(StateOpen)
		return m.snapshot(), fmt.Errorf("close %s: %w", m.cfg.Coin, err)
	}
	m.finishClose(open, fill, nonce)
	m.transition(StateFlat, nil)
	m.log.Infow("position_flat", "coin", m.cfg.Coin)
	return m.snapshot(), nil
}

// Flip reverses the open position: close, wait out the margin-release
// delay, then enter the opposite way. The entry leg is never constructed
// before the close leg's result is observed; a cancellation during the wait
// leaves the position flat, not doubled.
func (m *Manager) Flip(ctx context.Context, dir Direction, size float64) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.reconcileRequired() {
		return m.snapshot(), ErrReconcileRequired
	}
	open := m.openPosition()
	if open == nil {
		return m.snapshot(), fmt.Errorf("flip %s: %w", m.cfg.Coin, ErrNoPosition)
	}
	if dir == open.Direction {
		return m.snapshot(), fmt.Errorf("flip %s: position already %s", m.cfg.Coin, dir)
	}

	m.setState(StateFlipping)
	fill, nonce, err := m.doClose(ctx, open)
	if err != nil {
		// The flip aborts and the last known position survives.
		m.setState(StateOpen)
		return m.snapshot(), fmt.Errorf("flip %s: close leg: %w", m.cfg.Coin, err)
	}
	m.finishClose(open, fill, nonce)
	m.transition(StateFlipping, nil)

	closedAt := m.clock.Now()
	m.log.Infow("flip_settling", "coin", m.cfg.Coin, "delay", m.cfg.SettleDelay)
	select {
	case <-m.clock.After(m.cfg.SettleDelay):
	case <-ctx.Done():
	}
	// Both select arms can be ready at once; the context wins so a
	// cancelled flip never enters.
	if err := ctx.Err(); err != nil {
		m.transition(StateFlat, nil)
		return m.snapshot(), fmt.Errorf("flip %s cancelled after close: %w", m.cfg.Coin, err)
	}
	metrics.SettleWait.Observe(m.clock.Now().Sub(closedAt).Seconds())

	if _, err := m.doEnter(ctx, dir, size, "flip_entry"); err != nil {
		return m.snapshot(), fmt.Errorf("flip %s: entry leg: %w", m.cfg.Coin, err)
	}
	metrics.Flips.Inc()
	m.log.Infow("flip_complete", "coin", m.cfg.Coin, "side", dir.String())
	return m.snapshot(), nil
}

// Reconcile re-queries the account and adopts whatever the exchange reports,
// clearing the reconcile latch. It also serves startup adoption of a
// position left behind by an earlier run.
func (m *Manager) Reconcile(ctx context.Context) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.accounts == nil {
		return m.snapshot(), fmt.Errorf("reconcile %s: no account source", m.cfg.Coin)
	}
	pos, found, err := m.accounts.UserPosition(ctx, m.cfg.Wallet, m.cfg.Coin)
	if err != nil {
		return m.snapshot(), fmt.Errorf("reconcile %s: %w", m.cfg.Coin, err)
	}

	if !found {
		m.clearReconcile()
		m.transition(StateFlat, nil)
		m.log.Infow("reconciled", "coin", m.cfg.Coin, "state", "flat")
		return m.snapshot(), nil
	}

	szi, err := wire.WireToFloat(pos.Szi)
	if err != nil {
		return m.snapshot(), fmt.Errorf("reconcile %s: %w", m.cfg.Coin, err)
	}
	dir := Long
	if szi < 0 {
		dir = Short
	}
	op := &OpenPosition{
		Direction: dir,
		Fill: exchange.Fill{
			TotalSz: strings.TrimPrefix(pos.Szi, "-"),
			AvgPx:   pos.EntryPx,
		},
		OpenedAt: m.clock.Now(),
	}
	m.clearReconcile()
	m.transition(StateOpen, op)
	m.log.Infow("reconciled", "coin", m.cfg.Coin,
		"state", "open", "side", dir.String(), "sz", op.Fill.TotalSz, "entry_px", op.Fill.AvgPx)
	return m.snapshot(), nil
}

// doEnter prices, builds and submits the entry and adopts the fill. The
// caller has already set the visible state; every failure path lands flat.
func (m *Manager) doEnter(ctx context.Context, dir Direction, size float64, kind string) (*OpenPosition, error) {
	mid, err := m.prices.MidPrice(ctx, m.cfg.Coin)
	if err != nil {
		m.transition(StateFlat, nil)
		return nil, fmt.Errorf("mid price: %w", err)
	}

	px := order.RoundPrice(mid*(1+float64(dir)*m.cfg.EntryOffsetPct/100), m.cfg.SzDecimals)
	sz := order.RoundSize(size, m.cfg.SzDecimals)
	if !(px > 0) || !(sz > 0) {
		m.transition(StateFlat, nil)
		return nil, fmt.Errorf("degenerate entry px %v sz %v", px, sz)
	}

	action, err := m.entryAction(dir, px, sz)
	if err != nil {
		m.transition(StateFlat, nil)
		return nil, err
	}

	res, err := m.submit(ctx, kind, dir.String(), action)
	if err != nil {
		// An interrupted entry is treated as no position created.
		m.transition(StateFlat, nil)
		return nil, err
	}

	fill, ok := res.FirstFill()
	if !ok {
		// The entry leg missed. Protective legs that still rested are
		// orphans with nothing to protect.
		if oids := res.RestingOids(); len(oids) > 0 {
			if err := m.cancelOids(ctx, oids); err != nil {
				m.log.Warnw("orphan_cancel_failed", "coin", m.cfg.Coin, "oids", oids, "err", err)
			}
		}
		m.transition(StateFlat, nil)
		if errs := res.Errors(); len(errs) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFilled, errs[0])
		}
		return nil, ErrNotFilled
	}

	op := &OpenPosition{
		Direction:      dir,
		Fill:           *fill,
		ProtectiveOids: res.RestingOids(),
		OpenedAt:       m.clock.Now(),
	}
	m.transition(StateOpen, op)
	metrics.ObserveFill(dir.String())
	m.recordFill(journal.FillRecord{
		Time: m.clock.Now(), Coin: m.cfg.Coin, Nonce: res.Nonce,
		Side: dir.String(), TotalSz: fill.TotalSz, AvgPx: fill.AvgPx, Oid: fill.Oid,
	})
	m.log.Infow("position_opened", "coin", m.cfg.Coin, "side", dir.String(),
		"px", fill.AvgPx, "sz", fill.TotalSz, "oid", fill.Oid, "protective_oids", op.ProtectiveOids)
	return op, nil
}

// doClose cancels the protective pair and submits the offsetting order. It
// touches no lifecycle state; an interrupted cancel or close latches the
// reconcile requirement because the account may or may not have changed.
func (m *Manager) doClose(ctx context.Context, open *OpenPosition) (*exchange.Fill, uint64, error) {
	if len(open.ProtectiveOids) > 0 {
		if err := m.cancelOids(ctx, open.ProtectiveOids); err != nil {
			if interrupted(err) {
				m.latchReconcile()
				return nil, 0, fmt.Errorf("cancel protective: %w", err)
			}
			// A rejected cancel usually means the trigger already fired
			// or the order is gone; the reduce-only close stays safe.
			m.log.Warnw("protective_cancel_rejected", "coin", m.cfg.Coin,
				"oids", open.ProtectiveOids, "err", err)
		}
		m.clearProtective()
	}

	mid, err := m.prices.MidPrice(ctx, m.cfg.Coin)
	if err != nil {
		return nil, 0, fmt.Errorf("mid price: %w", err)
	}
	closeDir := open.Direction.Opposite()
	px := order.RoundPrice(mid*(1+float64(closeDir)*m.cfg.EntryOffsetPct/100), m.cfg.SzDecimals)

	action, err := order.Close(m.cfg.Asset, closeDir.IsBuy(), px, open.Fill.TotalSz)
	if err != nil {
		return nil, 0, err
	}

	res, err := m.submit(ctx, "close", closeDir.String(), action)
	if err != nil {
		if interrupted(err) {
			m.latchReconcile()
		}
		return nil, 0, err
	}

	fill, ok := res.FirstFill()
	if !ok {
		if errs := res.Errors(); len(errs) > 0 {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFilled, errs[0])
		}
		return nil, 0, ErrNotFilled
	}
	return fill, res.Nonce, nil
}

// finishClose books the round trip: realized PnL, fill and trade records,
// metrics. State transitions stay with the caller.
func (m *Manager) finishClose(open *OpenPosition, fill *exchange.Fill, nonce uint64) {
	pnl := 0.0
	entryPx, err1 := wire.WireToFloat(open.Fill.AvgPx)
	exitPx, err2 := wire.WireToFloat(fill.AvgPx)
	sz, err3 := wire.WireToFloat(fill.TotalSz)
	if err1 == nil && err2 == nil && err3 == nil {
		pnl = (exitPx - entryPx) * sz * float64(open.Direction)
	} else {
		m.log.Warnw("pnl_unavailable", "coin", m.cfg.Coin,
			"entry_px", open.Fill.AvgPx, "exit_px", fill.AvgPx, "sz", fill.TotalSz)
	}
	held := m.clock.Now().Sub(open.OpenedAt).Seconds()

	metrics.ObserveFill(open.Direction.String())
	metrics.ObserveTrade(pnl)
	m.recordFill(journal.FillRecord{
		Time: m.clock.Now(), Coin: m.cfg.Coin, Nonce: nonce,
		Side: open.Direction.Opposite().String(), TotalSz: fill.TotalSz, AvgPx: fill.AvgPx, Oid: fill.Oid,
	})
	m.recordTrade(journal.TradeRecord{
		Time: m.clock.Now(), Coin: m.cfg.Coin, Side: open.Direction.String(),
		Size: fill.TotalSz, EntryPx: open.Fill.AvgPx, ExitPx: fill.AvgPx,
		Pnl: pnl, HoldSecs: held, Oid: fill.Oid,
	})
	m.log.Infow("position_closed", "coin", m.cfg.Coin, "side", open.Direction.String(),
		"entry_px", open.Fill.AvgPx, "exit_px", fill.AvgPx, "sz", fill.TotalSz,
		"pnl", pnl, "held_secs", held)
}

func (m *Manager) entryAction(dir Direction, px, sz float64) (wire.Action, error) {
	if m.cfg.TpPct > 0 && m.cfg.SlPct > 0 {
		tp := order.RoundPrice(px*(1+float64(dir)*m.cfg.TpPct/100), m.cfg.SzDecimals)
		sl := order.RoundPrice(px*(1-float64(dir)*m.cfg.SlPct/100), m.cfg.SzDecimals)
		a, err := order.GroupedEntryTif(m.cfg.Asset, dir.IsBuy(), px, sz, tp, sl, wire.TifIoc)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	o, err := order.Limit(m.cfg.Asset, dir.IsBuy(), px, sz, false, wire.TifIoc)
	if err != nil {
		return nil, err
	}
	a, err := order.Single(o)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (m *Manager) cancelOids(ctx context.Context, oids []int64) error {
	action, err := order.CancelOrders(m.cfg.Asset, oids)
	if err != nil {
		return err
	}
	res, err := m.submit(ctx, "cancel", "", action)
	if err != nil {
		return err
	}
	if errs := res.Errors(); len(errs) > 0 {
		return fmt.Errorf("cancel %v: %s", oids, errs[0])
	}
	return nil
}

// submit runs one action through the client under the configured deadline
// and books the outcome into metrics and the journal.
func (m *Manager) submit(ctx context.Context, kind, side string, action wire.Action) (*exchange.Result, error) {
	sctx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
	defer cancel()

	res, err := m.client.Submit(sctx, action)

	rec := journal.OrderRecord{
		Time: m.clock.Now(), Coin: m.cfg.Coin, Kind: kind, Side: side,
	}
	if oa, ok := action.(*wire.OrderAction); ok && len(oa.Orders) > 0 {
		rec.Px, rec.Sz = oa.Orders[0].LimitPx, oa.Orders[0].Sz
	}

	var outcome string
	switch {
	case err == nil:
		rec.Nonce = res.Nonce
		if fill, ok := res.FirstFill(); ok {
			outcome = "filled"
			rec.Oid = fill.Oid
		} else if errs := res.Errors(); len(errs) > 0 {
			outcome = "error"
			rec.Result = "error: " + errs[0]
		} else if action.ActionType() == "cancel" {
			outcome = "ok"
		} else {
			outcome = "resting"
		}
	case interrupted(err):
		outcome = "timeout"
	default:
		var rejected *exchange.RemoteRejectedError
		if errors.As(err, &rejected) {
			outcome = "rejected"
			metrics.RemoteRejections.Inc()
		} else {
			outcome = "error"
			rec.Result = "error: " + err.Error()
		}
	}
	if rec.Result == "" {
		rec.Result = outcome
	}
	metrics.ObserveOrder(kind, outcome)
	m.recordOrder(rec)
	return res, err
}

func interrupted(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (m *Manager) recordOrder(rec journal.OrderRecord) {
	if m.journal == nil {
		return
	}
	if err := m.journal.PutOrder(rec); err != nil {
		m.log.Warnw("journal_write_failed", "record", "order", "err", err)
	}
}

func (m *Manager) recordFill(rec journal.FillRecord) {
	if m.journal == nil {
		return
	}
	if err := m.journal.PutFill(rec); err != nil {
		m.log.Warnw("journal_write_failed", "record", "fill", "err", err)
	}
}

func (m *Manager) recordTrade(rec journal.TradeRecord) {
	if m.journal == nil {
		return
	}
	if err := m.journal.PutTrade(rec); err != nil {
		m.log.Warnw("journal_write_failed", "record", "trade", "err", err)
	}
}

func (m *Manager) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{State: m.state, NeedsReconcile: m.needsReconcile}
	if m.open != nil {
		cp := *m.open
		cp.ProtectiveOids = append([]int64(nil), m.open.ProtectiveOids...)
		s.Open = &cp
	}
	return s
}

func (m *Manager) currentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// openPosition returns a copy of the open position, or nil unless the state
// is exactly Open.
func (m *Manager) openPosition() *OpenPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.open == nil {
		return nil
	}
	cp := *m.open
	cp.ProtectiveOids = append([]int64(nil), m.open.ProtectiveOids...)
	return &cp
}

// setState changes the lifecycle state and keeps the stored position.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	metrics.SetPositionState(m.cfg.Coin, int(s))
}

// transition changes the state and replaces the stored position.
func (m *Manager) transition(s State, open *OpenPosition) {
	m.mu.Lock()
	m.state = s
	m.open = open
	m.mu.Unlock()
	metrics.SetPositionState(m.cfg.Coin, int(s))
}

func (m *Manager) reconcileRequired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsReconcile
}

func (m *Manager) latchReconcile() {
	m.mu.Lock()
	m.needsReconcile = true
	m.mu.Unlock()
	m.log.Warnw("reconcile_required", "coin", m.cfg.Coin)
}

func (m *Manager) clearReconcile() {
	m.mu.Lock()
	m.needsReconcile = false
	m.mu.Unlock()
}

func (m *Manager) clearProtective() {
	m.mu.Lock()
	if m.open != nil {
		m.open.ProtectiveOids = nil
	}
	m.mu.Unlock()
}
