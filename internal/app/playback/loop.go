package playback

import (
	"sync/atomic"

	zlog "github.com/rs/zerolog/log"
)

// Canceler cancels delayed work registered under a key.
type Canceler interface {
	Cancel(key string) bool
}

// LoopManager keeps the ambient continuous loop running and tracks whether
// it is engaged. The flag is written from the continuous slot's hooks, which
// run under that slot's lock, and by Disengage.
type LoopManager struct {
	slot    *Slot
	sched   Canceler
	engaged atomic.Bool
}

// NewLoopManager wires a loop manager to the continuous slot. sched may be
// nil when nothing schedules fades on the slot.
func NewLoopManager(slot *Slot, sched Canceler) *LoopManager {
	m := &LoopManager{
		slot:  slot,
		sched: sched,
	}
	slot.setIdleHook(func() { m.engaged.Store(false) })
	return m
}

// EnsureEngaged starts the loop if it is idle, or cancels its fade-out if
// one is running or scheduled, and marks the loop engaged.
func (m *LoopManager) EnsureEngaged() {
	if m.sched != nil && m.sched.Cancel(m.slot.Name()) {
		zlog.Debug().Msgf("playback: scheduled loop fade cancelled: slot=%s", m.slot.Name())
	}
	if m.slot.Sustain(func() { m.engaged.Store(true) }) {
		zlog.Info().Msgf("playback: continuous loop engaged: slot=%s", m.slot.Name())
	}
}

// Engaged reports whether the loop is flagged as running.
func (m *LoopManager) Engaged() bool {
	return m.engaged.Load()
}

// Disengage clears the loop flag without touching playback.
func (m *LoopManager) Disengage() {
	m.engaged.Store(false)
}

// Slot returns the continuous slot.
func (m *LoopManager) Slot() *Slot {
	return m.slot
}
