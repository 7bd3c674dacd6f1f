package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/app/executor"
	"github.com/osa030/goalhorn/internal/infra/audio"
	"github.com/osa030/goalhorn/internal/infra/clipstore"
)

// Runner runs fade ramps off the caller's goroutine.
type Runner interface {
	Go(task executor.Task) error
}

// SlotConfig configures a slot.
type SlotConfig struct {
	Name string
	Clip *clipstore.Clip // nil leaves the slot unusable
	Loop bool
	Ramp RampConfig
}

// SlotStatus is a point-in-time view of a slot.
type SlotStatus struct {
	Name    string
	Clip    string
	State   State
	Usable  bool
	Audible bool
	Fading  bool
	GainDB  float64
}

// Slot is a named playback channel holding at most one clip.
//
// mu serializes every state change on the slot, including the swap of the
// registered fade task. A ramp never takes mu while stepping, so holding mu
// while waiting for a cancelled ramp to acknowledge cannot deadlock.
type Slot struct {
	name   string
	clip   *clipstore.Clip
	ramp   RampConfig
	runner Runner
	events chan<- Event

	mu     sync.Mutex
	line   audio.Line // nil when unusable or closed
	state  State
	fade   *fadeTask
	onIdle func()
}

// NewSlot creates a slot and opens its output line. A slot without a clip,
// or whose line fails to open, stays permanently unusable.
func NewSlot(cfg SlotConfig, opener audio.Opener, runner Runner, events chan<- Event) *Slot {
	s := &Slot{
		name:   cfg.Name,
		clip:   cfg.Clip,
		ramp:   cfg.Ramp,
		runner: runner,
		events: events,
		state:  StateIdle,
	}

	if cfg.Clip == nil {
		zlog.Warn().Msgf("playback: slot has no clip, commands will be ignored: slot=%s", cfg.Name)
		return s
	}
	line, err := opener.OpenLine(cfg.Clip, cfg.Loop)
	if err != nil {
		zlog.Error().Msgf("playback: failed to open line, slot unusable: slot=%s err=%v", cfg.Name, err)
		return s
	}
	s.line = line
	return s
}

// Name returns the slot name.
func (s *Slot) Name() string {
	return s.name
}

// State returns the current slot state.
func (s *Slot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Usable reports whether the slot has a line to play on.
func (s *Slot) Usable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line != nil
}

// Audible reports whether the slot's clip is currently producing output.
func (s *Slot) Audible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line != nil && s.line.Active()
}

// FadeActive reports whether a fade task is registered.
func (s *Slot) FadeActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fade != nil
}

// Status returns a snapshot of the slot.
func (s *Slot) Status() SlotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SlotStatus{
		Name:   s.name,
		State:  s.state,
		Usable: s.line != nil,
		Fading: s.fade != nil,
	}
	if s.clip != nil {
		st.Clip = s.clip.ID
	}
	if s.line != nil {
		st.Audible = s.line.Active()
		if g, ok := s.line.Gain(); ok {
			st.GainDB = g.Value()
		}
	}
	return st
}

// Play cancels any fade, restores full volume and restarts the clip from
// the beginning.
func (s *Slot) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.line == nil {
		zlog.Debug().Msgf("playback: play ignored, slot unusable: slot=%s", s.name)
		return nil
	}
	return s.startLocked()
}

// RequestFadeOut starts a fade-out ramp, replacing any ramp already running.
// It does nothing when the slot is idle or its clip is no longer audible.
// Without a gain control the clip is stopped immediately.
func (s *Slot) RequestFadeOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.line == nil {
		return
	}
	s.settleLocked()
	if s.state == StateIdle {
		return
	}
	s.cancelFadeLocked()

	gain, ok := s.line.Gain()
	if !ok {
		zlog.Warn().Msgf("playback: no gain control, stopping instead of fading: slot=%s", s.name)
		s.stopLocked(EventStopped)
		return
	}

	t := newFadeTask()
	s.fade = t
	s.state = StateFadingOut
	s.emitLocked(EventFadeStarted)

	if err := s.runner.Go(func(ctx context.Context) { s.runFade(ctx, t, gain) }); err != nil {
		zlog.Warn().Msgf("playback: fade not scheduled, stopping: slot=%s err=%v", s.name, err)
		s.fade = nil
		t.stop()
		s.stopLocked(EventStopped)
	}
}

// ForceStop stops the clip immediately regardless of state.
func (s *Slot) ForceStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.line == nil {
		return
	}
	if s.state == StateIdle && s.fade == nil {
		s.line.Stop()
		return
	}
	s.stopLocked(EventStopped)
}

// Sustain keeps the slot playing: an idle slot is started, a fading slot has
// its fade cancelled. onEngaged runs under the slot lock whenever the slot is
// left playing. Returns true if the clip was (re)started.
func (s *Slot) Sustain(onEngaged func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.line == nil {
		return false
	}
	s.settleLocked()

	started := false
	switch s.state {
	case StateIdle:
		if err := s.startLocked(); err != nil {
			zlog.Error().Msgf("playback: %v", err)
			return false
		}
		started = true
	case StateFadingOut:
		s.cancelFadeLocked()
	}
	if onEngaged != nil {
		onEngaged()
	}
	return started
}

// setIdleHook installs fn to run under the slot lock whenever the slot goes idle.
func (s *Slot) setIdleHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = fn
}

// close stops the slot and releases its line; the slot is unusable afterwards.
func (s *Slot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.line == nil {
		return
	}
	if s.state != StateIdle || s.fade != nil {
		s.stopLocked(EventStopped)
	}
	if err := s.line.Close(); err != nil {
		zlog.Warn().Msgf("playback: failed to close line: slot=%s err=%v", s.name, err)
	}
	s.line = nil
}

func (s *Slot) startLocked() error {
	s.cancelFadeLocked()
	s.restoreGainLocked()

	if err := s.line.Start(); err != nil {
		s.toIdleLocked(EventStopped)
		return errors.Wrapf(err, "slot %s: failed to start", s.name)
	}
	s.state = StatePlaying
	s.emitLocked(EventStarted)
	return nil
}

// cancelFadeLocked cancels the registered fade, waits for it to acknowledge
// and leaves the slot playing at full volume. Returns false if no fade was
// registered.
func (s *Slot) cancelFadeLocked() bool {
	t := s.fade
	if t == nil {
		return false
	}
	s.fade = nil
	t.stop()

	s.restoreGainLocked()
	if s.state == StateFadingOut {
		s.state = StatePlaying
	}
	s.emitLocked(EventFadeCancelled)
	return true
}

func (s *Slot) runFade(ctx context.Context, t *fadeTask, gain audio.GainControl) {
	if !t.begin() {
		return
	}
	// executor shutdown interrupts the ramp like a cancellation
	stop := context.AfterFunc(ctx, t.cancel)
	defer stop()

	completed := func() bool {
		defer close(t.done)
		return Ramp(t.ctx, gain, s.ramp)
	}()
	s.finishFade(t, completed)
}

// finishFade applies the outcome of a ramp that is still registered. A ramp
// that was superseded has already been cleaned up by whoever cancelled it.
func (s *Slot) finishFade(t *fadeTask, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fade != t {
		return
	}
	s.fade = nil

	if !completed {
		s.restoreGainLocked()
		s.state = StatePlaying
		s.emitLocked(EventFadeCancelled)
		return
	}

	s.line.Stop()
	s.restoreGainLocked()
	s.toIdleLocked(EventFadeCompleted)
}

func (s *Slot) stopLocked(ev EventType) {
	s.cancelFadeLocked()
	s.line.Stop()
	s.restoreGainLocked()
	s.toIdleLocked(ev)
}

// settleLocked moves a playing slot whose clip has run out to idle.
func (s *Slot) settleLocked() {
	if s.state == StatePlaying && s.fade == nil && !s.line.Active() {
		s.line.Stop()
		s.toIdleLocked(EventEnded)
	}
}

func (s *Slot) toIdleLocked(ev EventType) {
	s.state = StateIdle
	if s.onIdle != nil {
		s.onIdle()
	}
	s.emitLocked(ev)
}

func (s *Slot) restoreGainLocked() {
	if g, ok := s.line.Gain(); ok {
		g.Set(s.ramp.FullVolume(g))
	}
}

// emitLocked sends an event without blocking.
func (s *Slot) emitLocked(t EventType) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- Event{Type: t, Slot: s.name, State: s.state}:
	default:
		// Channel full, drop event
	}
}
