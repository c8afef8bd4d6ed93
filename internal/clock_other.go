//go:build !linux

package fcsched_internal

import "time"

// MonotonicClock falls back to time.Now() on platforms without direct
// CLOCK_MONOTONIC access; time.Now() is itself monotonic on all Go-supported
// platforms. The counter starts at 0 when NewClock is called (rather than at
// boot, as in clock_linux.go) and wraps at 2^32 microseconds (~71 minutes)
// after that.
type MonotonicClock struct {
	epoch time.Time
}

func NewClock() Clock {
	return MonotonicClock{epoch: time.Now()}
}

func (c MonotonicClock) NowMicros() uint32 {
	return uint32(time.Since(c.epoch).Microseconds())
}
