package main

import (
	"sync"
	"time"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/feed"
)

const (
	volumeRecentWindow = 10 * time.Second
	volumeTotalWindow  = 60 * time.Second
	volumeMinHistory   = 30 * time.Second
)

type volumeSample struct {
	at  time.Time
	usd float64
}

// volumeTracker keeps a rolling window of traded notional from the public
// trades feed. Record is called from the feed goroutine, Spike from the
// driver loop.
type volumeTracker struct {
	mu      sync.Mutex
	samples []volumeSample
}

func newVolumeTracker() *volumeTracker {
	return &volumeTracker{}
}

// Record folds one public trade into the window.
func (v *volumeTracker) Record(t feed.Trade) {
	v.mu.Lock()
	v.samples = append(v.samples, volumeSample{at: t.Time, usd: t.Px * t.Sz})
	v.prune(time.Now())
	v.mu.Unlock()
}

// Spike compares the last ten seconds of traded volume against the average
// ten-second slice of the window. Returns 1 until enough history has
// accumulated, so a cold start never reads as a spike.
func (v *volumeTracker) Spike(now time.Time) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prune(now)

	if len(v.samples) == 0 {
		return 1.0
	}
	oldest := v.samples[0].at
	span := now.Sub(oldest)
	if span < volumeMinHistory {
		return 1.0
	}

	var recent, total float64
	for _, s := range v.samples {
		total += s.usd
		if now.Sub(s.at) <= volumeRecentWindow {
			recent += s.usd
		}
	}
	if total == 0 {
		return 1.0
	}
	avg := total / (span.Seconds() / volumeRecentWindow.Seconds())
	if avg <= 0 {
		return 1.0
	}
	return recent / avg
}

func (v *volumeTracker) prune(now time.Time) {
	cutoff := now.Add(-volumeTotalWindow)
	i := 0
	for ; i < len(v.samples); i++ {
		if v.samples[i].at.After(cutoff) {
			break
		}
	}
	v.samples = v.samples[i:]
}
