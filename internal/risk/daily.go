package risk

import (
	"sync"
	"time"
)

// DailyTracker gates new entries once the cumulative loss for the calendar
// day exceeds a percentage of the day's starting equity. Exits are never
// gated. State resets at each new calendar day (UTC).
type DailyTracker struct {
	mu             sync.Mutex
	dayStartEquity float64
	thresholdPct   float64
	cooldown       time.Duration
	cumulativePnL  float64
	lastReset      time.Time
	pausedUntil    time.Time
}

func NewDailyTracker(dayStartEquity, thresholdPct float64, cooldown time.Duration) *DailyTracker {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &DailyTracker{
		dayStartEquity: dayStartEquity,
		thresholdPct:   thresholdPct,
		cooldown:       cooldown,
	}
}

// RecordPnL adds a realized trade result to the day's running total.
func (t *DailyTracker) RecordPnL(now time.Time, amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(now)
	t.cumulativePnL += amount
	if t.tripped() && t.pausedUntil.Before(now) {
		t.pausedUntil = now.Add(t.cooldown)
	}
}

// AllowEntries reports whether new entries are permitted. Once the breaker
// trips, entries stay paused for the cooldown window even if later wins pull
// the total back above the threshold.
func (t *DailyTracker) AllowEntries(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(now)
	if now.Before(t.pausedUntil) {
		return false
	}
	if t.tripped() {
		t.pausedUntil = now.Add(t.cooldown)
		return false
	}
	return true
}

// Stats returns the current day's cumulative PnL and whether the breaker is
// tripped, for status reporting.
func (t *DailyTracker) Stats(now time.Time) (cumulative float64, paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(now)
	return t.cumulativePnL, now.Before(t.pausedUntil) || t.tripped()
}

// tripped is the exact breaker condition: cumulative PnL at or below the
// negative threshold fraction of day-start equity. Callers hold the lock.
func (t *DailyTracker) tripped() bool {
	if t.thresholdPct <= 0 || t.dayStartEquity <= 0 {
		return false
	}
	return t.cumulativePnL <= -t.thresholdPct/100*t.dayStartEquity
}

func (t *DailyTracker) rollover(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if t.lastReset.IsZero() {
		t.lastReset = day
		return
	}
	if day.After(t.lastReset) {
		// Carry realized results into the new day's base equity.
		t.dayStartEquity += t.cumulativePnL
		t.cumulativePnL = 0
		t.pausedUntil = time.Time{}
		t.lastReset = day
	}
}
