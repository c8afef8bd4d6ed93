package fcsched_internal

// Clock is the scheduler's time source: a free-running microsecond counter,
// allowed to wrap at 2^32 (§5). Production code uses the monotonic clock
// (clock_linux.go); tests use a simulated clock that only advances when told
// to, so that Execute() passes are deterministic.
type Clock interface {
	NowMicros() uint32
}
