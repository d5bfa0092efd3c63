package main

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/params"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/feed"
	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/position"
)

const (
	bookStaleAfter      = 5 * time.Second
	reconcileRetryEvery = 5 * time.Second
	volumeSpikeMin      = 1.5
	minOrderSize        = 0.01
	dryRunNoteEvery     = 5 * time.Second
)

// driver turns book imbalance into lifecycle calls. Strategy thresholds all
// live here; the library packages only execute what they are told.
type driver struct {
	cfg    params.Trading
	mgr    *position.Manager
	book   *feed.Book
	volume *volumeTracker
	log    *zap.SugaredLogger

	lastReconcile time.Time
	lastDryNote   time.Time
	staleWarned   bool
}

func (d *driver) step(ctx context.Context) {
	snap := d.mgr.Status()

	if snap.NeedsReconcile {
		if time.Since(d.lastReconcile) < reconcileRetryEvery {
			return
		}
		d.lastReconcile = time.Now()
		if _, err := d.mgr.Reconcile(ctx); err != nil {
			d.log.Warnw("reconcile_failed", "err", err)
		}
		return
	}

	if time.Since(d.book.Updated()) > bookStaleAfter {
		if !d.staleWarned {
			d.log.Warnw("book_stale", "updated", d.book.Updated())
			d.staleWarned = true
		}
		return
	}
	d.staleWarned = false

	mid, ok := d.book.Mid()
	if !ok || mid <= 0 {
		return
	}
	imbalance := d.book.Imbalance(d.cfg.BookDepth)
	spike := d.volume.Spike(time.Now())

	switch snap.State {
	case position.StateFlat:
		d.maybeEnter(ctx, mid, imbalance, spike)
	case position.StateOpen:
		d.managePosition(ctx, snap, mid, imbalance, spike)
	default:
	}
}

func (d *driver) maybeEnter(ctx context.Context, mid, imbalance, spike float64) {
	dir, ok := d.signal(imbalance, spike)
	if !ok {
		return
	}
	size := d.orderSize(mid)
	if !d.cfg.LiveTrading {
		d.dryRunNote("dry_run_entry_skipped",
			"direction", dir.String(), "size", size, "mid", mid,
			"imbalance", imbalance, "volume_spike", spike)
		return
	}
	d.log.Infow("entry_signal",
		"direction", dir.String(), "size", size, "mid", mid,
		"imbalance", imbalance, "volume_spike", spike)
	if _, err := d.mgr.Enter(ctx, dir, size); err != nil {
		if errors.Is(err, position.ErrNotFilled) {
			d.log.Infow("entry_missed", "err", err)
			return
		}
		d.log.Errorw("entry_failed", "err", err)
	}
}

func (d *driver) managePosition(ctx context.Context, snap position.Snapshot, mid, imbalance, spike float64) {
	open := snap.Open
	if open == nil {
		return
	}

	// Time stop: the book thesis has a shelf life
	if d.cfg.MaxHold > 0 && time.Since(open.OpenedAt) >= d.cfg.MaxHold {
		if !d.cfg.LiveTrading {
			d.dryRunNote("dry_run_close_skipped", "held_secs", time.Since(open.OpenedAt).Seconds())
			return
		}
		d.log.Infow("time_stop", "held_secs", time.Since(open.OpenedAt).Seconds())
		if _, err := d.mgr.Close(ctx); err != nil {
			d.log.Errorw("close_failed", "err", err)
		}
		return
	}

	// Flip when the book has swung hard the other way
	if dir, ok := d.signal(imbalance, spike); ok && dir != open.Direction {
		if !d.cfg.LiveTrading {
			d.dryRunNote("dry_run_flip_skipped", "direction", dir.String(), "imbalance", imbalance)
			return
		}
		d.log.Infow("flip_signal", "direction", dir.String(), "imbalance", imbalance, "volume_spike", spike)
		if _, err := d.mgr.Flip(ctx, dir, d.orderSize(mid)); err != nil {
			d.log.Errorw("flip_failed", "err", err)
		}
	}
}

// signal maps the imbalance ratio to a direction: above the threshold long,
// below its inverse short, and only when volume confirms the move.
func (d *driver) signal(imbalance, spike float64) (position.Direction, bool) {
	if spike < volumeSpikeMin {
		return 0, false
	}
	if imbalance > d.cfg.ImbalanceThreshold {
		return position.Long, true
	}
	if imbalance < 1/d.cfg.ImbalanceThreshold {
		return position.Short, true
	}
	return 0, false
}

// orderSize converts the configured notional to coin units at the current
// mid. The manager rounds to lot precision before submitting.
func (d *driver) orderSize(mid float64) float64 {
	return math.Max(minOrderSize, d.cfg.PositionUSD/mid)
}

// dryRunNote rate-limits the skipped-action logs a persistent signal would
// otherwise emit every poll.
func (d *driver) dryRunNote(msg string, kv ...interface{}) {
	if time.Since(d.lastDryNote) < dryRunNoteEvery {
		return
	}
	d.lastDryNote = time.Now()
	d.log.Infow(msg, kv...)
}
