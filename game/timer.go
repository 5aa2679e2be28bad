// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package game

import "time"

// Timer is a single cancellable countdown. Every Arm bumps a sequence
// number that is handed to the callback; the callback must call Fire with
// it while holding the owner's lock, and proceed only if Fire returns true.
// A callback from a timer that was re-armed or disarmed is thereby ignored
// even if it was already running.
//
// Timer is not safe for concurrent use.
type Timer struct {
	t     *time.Timer
	seq   uint64
	armed bool
}

// Arm cancels any pending countdown and starts a new one
func (t *Timer) Arm(d time.Duration, fire func(seq uint64)) uint64 {
	t.Disarm()
	seq := t.seq
	t.armed = true
	t.t = time.AfterFunc(d, func() { fire(seq) })
	return seq
}

// Disarm cancels the pending countdown. Disarming an idle timer is a no-op.
func (t *Timer) Disarm() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.armed = false
	t.seq++
}

// Fire reports whether seq belongs to the pending countdown and, if so,
// marks it consumed
func (t *Timer) Fire(seq uint64) bool {
	if !t.armed || seq != t.seq {
		return false
	}
	t.armed = false
	t.t = nil
	t.seq++
	return true
}

// Armed reports whether a countdown is pending
func (t *Timer) Armed() bool {
	return t.armed
}
