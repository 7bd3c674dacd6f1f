package playback

import (
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/infra/audio"
	"github.com/osa030/goalhorn/internal/infra/clipstore"
)

// ErrSlotNotFound is returned when a slot name is not configured.
var ErrSlotNotFound = errors.New("slot not found")

const eventBufferSize = 100

// SlotSpec describes one slot of a board.
type SlotSpec struct {
	Clip *clipstore.Clip
	Loop bool
}

// BoardConfig configures a board.
type BoardConfig struct {
	Slots          map[string]SlotSpec
	ContinuousSlot string
	Ramp           RampConfig
}

// Board is the fixed set of slots built at startup plus the continuous
// loop manager.
type Board struct {
	slots  map[string]*Slot
	names  []string
	loop   *LoopManager
	events chan Event
}

// NewBoard builds every configured slot. Slots whose clip is missing or
// whose line fails to open are kept but unusable.
func NewBoard(cfg BoardConfig, opener audio.Opener, runner Runner, sched Canceler) (*Board, error) {
	if _, ok := cfg.Slots[cfg.ContinuousSlot]; !ok {
		return nil, errors.Wrapf(ErrSlotNotFound, "continuous slot %q", cfg.ContinuousSlot)
	}

	b := &Board{
		slots:  make(map[string]*Slot, len(cfg.Slots)),
		events: make(chan Event, eventBufferSize),
	}
	for name, spec := range cfg.Slots {
		b.slots[name] = NewSlot(SlotConfig{
			Name: name,
			Clip: spec.Clip,
			Loop: spec.Loop,
			Ramp: cfg.Ramp,
		}, opener, runner, b.events)
		b.names = append(b.names, name)
	}
	sort.Strings(b.names)

	b.loop = NewLoopManager(b.slots[cfg.ContinuousSlot], sched)

	zlog.Info().Msgf("playback: board ready: slots=%d continuous=%s", len(b.slots), cfg.ContinuousSlot)
	return b, nil
}

// Slot returns the named slot.
func (b *Board) Slot(name string) (*Slot, error) {
	s, ok := b.slots[name]
	if !ok {
		return nil, errors.Wrapf(ErrSlotNotFound, "slot %q", name)
	}
	return s, nil
}

// Slots returns every slot ordered by name.
func (b *Board) Slots() []*Slot {
	out := make([]*Slot, 0, len(b.names))
	for _, name := range b.names {
		out = append(out, b.slots[name])
	}
	return out
}

// Loop returns the continuous loop manager.
func (b *Board) Loop() *LoopManager {
	return b.loop
}

// Events returns the channel of slot events. Events are dropped when the
// channel is full.
func (b *Board) Events() <-chan Event {
	return b.events
}

// Snapshot returns the status of every slot ordered by name.
func (b *Board) Snapshot() []SlotStatus {
	out := make([]SlotStatus, 0, len(b.names))
	for _, s := range b.Slots() {
		out = append(out, s.Status())
	}
	return out
}

// ForceStopAll stops every slot immediately and clears the loop flag.
func (b *Board) ForceStopAll() {
	for _, s := range b.Slots() {
		s.ForceStop()
	}
	b.loop.Disengage()
}

// Close stops every slot, releases the lines and closes the event channel.
// The board must not be used afterwards.
func (b *Board) Close() {
	for _, s := range b.Slots() {
		s.close()
	}
	b.loop.Disengage()
	close(b.events)
}
