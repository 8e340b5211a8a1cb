// Package dedupe implements cooldown-based alert deduplication: once a key
// fires, it stays quiet for a configurable window before it can fire again.
package dedupe

import (
	"sync"
	"time"
)

// Deduper suppresses repeat alerts for the same key within a cooldown
// window. Safe for concurrent use.
type Deduper struct {
	mu             sync.Mutex
	lastFired      map[string]time.Time
	cooldown       time.Duration
	nowFunc        func() time.Time
}

// New returns a Deduper with the given cooldown.
func New(cooldown time.Duration) *Deduper {
	return &Deduper{
		lastFired: make(map[string]time.Time),
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// SetCooldown updates the cooldown window used by future ShouldAlert calls.
func (d *Deduper) SetCooldown(cooldown time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cooldown = cooldown
}

// ShouldAlert reports whether key may fire now, recording the firing time
// if so. A key that has never fired, or whose cooldown has elapsed, may
// fire; otherwise it is suppressed.
func (d *Deduper) ShouldAlert(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.nowFunc()
	if last, ok := d.lastFired[key]; ok {
		if now.Sub(last) < d.cooldown {
			return false
		}
	}
	d.lastFired[key] = now
	return true
}
