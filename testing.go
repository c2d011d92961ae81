package silk

import "sync/atomic"

// CountingIdle is an IdleCallback that counts its own invocations, for tests
// that need to assert the engine actually went idle (and how often) without
// depending on timing.
type CountingIdle struct {
	calls atomic.Int64
}

// Callback returns the IdleCallback to install in Params.IdleCallback.
func (c *CountingIdle) Callback() IdleCallback {
	return func(any) { c.calls.Add(1) }
}

// Calls returns the number of times the callback has run so far.
func (c *CountingIdle) Calls() int64 {
	return c.calls.Load()
}

// WaitForFreeCount polls e.FreeCount until it reaches want, or returns false
// once attempts polls have passed without reaching it. Intended for tests
// driving an Engine across goroutine-scheduled silk switches, where there is
// no other signal for "has settled back to idle".
func WaitForFreeCount(e *Engine, want int, attempts int, sleep func()) bool {
	for i := 0; i < attempts; i++ {
		if e.FreeCount() == want {
			return true
		}
		sleep()
	}
	return e.FreeCount() == want
}
