// Debug trace sink: a reference implementation of the original's
// SCHEDULER_DEBUG trace slots, kept as a ring buffer of uint32 values rather
// than the fixed-size static array the C source used, since a Go host has no
// equivalent of a compile-time DEBUG32_VALUE_COUNT.

package fcsched_internal

import (
	"sync"

	units "github.com/docker/go-units"
)

const (
	DEBUG_CONFIG_RING_BUFFER_SIZE_DEFAULT = "4KiB"
	debugSlotSize                         = 4 // bytes per uint32 slot
)

type DebugConfig struct {
	// Whether the debug sink is active; when false, Scheduler is given a
	// NoopDebugSink and SetSlot calls are free.
	Enabled bool `yaml:"enabled"`
	// Human-readable ring buffer size (e.g. "8KiB"), parsed with
	// docker/go-units; rounded down to a whole number of uint32 slots.
	RingBufferSize string `yaml:"ring_buffer_size"`
}

func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:        false,
		RingBufferSize: DEBUG_CONFIG_RING_BUFFER_SIZE_DEFAULT,
	}
}

// DebugSink receives named scheduling trace values. Slot assignment mirrors
// the original's debug[] indices: 2 is the realtime guard interval, 3 is the
// scheduler overhead of the last Execute() pass that dispatched a task (the
// pass's elapsed time minus the task's own run time).
type DebugSink interface {
	SetSlot(i int, v uint32)
}

// NoopDebugSink discards every sample; it is the default when debug tracing
// is disabled.
type NoopDebugSink struct{}

func (NoopDebugSink) SetSlot(i int, v uint32) {}

// RingTraceSink keeps the last value written to each slot, wrapping the slot
// index into a fixed-size ring rather than growing without bound.
type RingTraceSink struct {
	mu    sync.Mutex
	slots []uint32
}

// NewRingTraceSink sizes the ring from a human byte size (e.g. "8KiB"),
// translated to a uint32 slot count; a size too small for at least one slot
// is clamped up to one.
func NewRingTraceSink(humanSize string) (*RingTraceSink, error) {
	nBytes, err := units.RAMInBytes(humanSize)
	if err != nil {
		return nil, err
	}
	nSlots := int(nBytes / debugSlotSize)
	if nSlots < 1 {
		nSlots = 1
	}
	return &RingTraceSink{slots: make([]uint32, nSlots)}, nil
}

func (r *RingTraceSink) SetSlot(i int, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[i%len(r.slots)] = v
}

// Snapshot returns a copy of the current slot values, safe to retain.
func (r *RingTraceSink) Snapshot() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, len(r.slots))
	copy(out, r.slots)
	return out
}

// NewDebugSink builds the sink described by cfg, or a NoopDebugSink when
// tracing is disabled.
func NewDebugSink(cfg *DebugConfig) (DebugSink, error) {
	if cfg == nil {
		cfg = DefaultDebugConfig()
	}
	if !cfg.Enabled {
		return NoopDebugSink{}, nil
	}
	return NewRingTraceSink(cfg.RingBufferSize)
}
