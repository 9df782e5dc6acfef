package nwm

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic
// timestamps.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source behind Now. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the active time source. Everything that
// stamps ingest times (the loader, the audit log) reads it from here so a
// single fake clock freezes the whole pipeline in tests.
func Now() time.Time { return clock.Now() }
