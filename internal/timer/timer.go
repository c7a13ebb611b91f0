// Package timer provides a one-shot, cancelable delayed callback, the
// building block the server uses for idle-room reaping.
package timer

import "time"

// Timer fires callback once after duration, unless canceled first.
// The callback is expected to be idempotent: if Cancel loses the race
// against the underlying fire, the callback still runs exactly once
// and must re-check whatever precondition it cares about.
type Timer struct {
	t *time.Timer
}

// New starts the countdown immediately.
func New(d time.Duration, callback func()) *Timer {
	return &Timer{t: time.AfterFunc(d, callback)}
}

// Cancel attempts to prevent the callback from firing. It reports
// whether the cancellation beat the firing — false means the callback
// has already fired or is about to run.
func (tm *Timer) Cancel() bool {
	return tm.t.Stop()
}
