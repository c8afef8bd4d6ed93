//go:build linux

package fcsched_internal

import (
	"golang.org/x/sys/unix"
)

// MonotonicClock reads CLOCK_MONOTONIC directly via golang.org/x/sys/unix,
// truncated to microseconds and wrapped into a uint32, the same 32-bit
// free-running counter semantics as the reference hardware timer.
type MonotonicClock struct{}

func NewClock() Clock {
	return MonotonicClock{}
}

func (MonotonicClock) NowMicros() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is not expected to fail on a supported kernel; a
		// zero reading is safer than a panic in a flight-control loop.
		return 0
	}
	return uint32(ts.Sec*1_000_000 + ts.Nsec/1_000)
}
