// Package dispatch maps command tokens to soundboard actions.
package dispatch

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/app/executor"
	"github.com/osa030/goalhorn/internal/app/notification"
	"github.com/osa030/goalhorn/internal/app/playback"
)

// Lanes runs slot operations, serially per slot.
type Lanes interface {
	Submit(key string, task executor.Task) error
}

// Scheduler runs delayed work keyed by slot name.
type Scheduler interface {
	Schedule(key string, delay time.Duration, fn func())
	CancelAll()
}

// Notifier tells observers about fired actions.
type Notifier interface {
	Notify(kind notification.Kind, payload string)
}

// Env is what actions operate on.
type Env struct {
	Board    *playback.Board
	Lanes    Lanes
	Sched    Scheduler
	Notifier Notifier
}

// Action is a configured soundboard action.
type Action interface {
	// Name returns the action name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// Configure decodes and validates settings against the board.
	Configure(board *playback.Board, settings map[string]any) error
	// Execute enqueues the action's slot operations. It never blocks on playback.
	Execute(ctx context.Context, env *Env)
}

// registry holds registered action factories.
var registry = make(map[string]func() Action)

// Register registers an action factory.
func Register(name string, factory func() Action) {
	registry[name] = factory
}

// GetRegistered returns all registered action factories.
func GetRegistered() map[string]func() Action {
	return registry
}

// decodeSettings decodes settings into out, applies defaults and validates.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// resolveSlot looks up a configured slot by name.
func resolveSlot(board *playback.Board, name string) (*playback.Slot, error) {
	s, err := board.Slot(name)
	if err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return s, nil
}

// submit enqueues op on the slot's lane. A full queue drops the operation.
func (e *Env) submit(slot *playback.Slot, op string, fn func()) {
	err := e.Lanes.Submit(slot.Name(), func(ctx context.Context) { fn() })
	if err != nil {
		zlog.Warn().Msgf("dispatch: %s dropped: slot=%s err=%v", op, slot.Name(), err)
	}
}

// play enqueues a restart of the slot's clip.
func (e *Env) play(slot *playback.Slot) {
	e.submit(slot, "play", func() {
		if err := slot.Play(); err != nil {
			zlog.Error().Msgf("dispatch: play failed: slot=%s err=%v", slot.Name(), err)
		}
	})
}

// fadeOut enqueues a fade-out of the slot.
func (e *Env) fadeOut(slot *playback.Slot) {
	e.submit(slot, "fade out", slot.RequestFadeOut)
}

func (e *Env) notify(kind notification.Kind, payload string) {
	if e.Notifier == nil || payload == "" {
		return
	}
	e.Notifier.Notify(kind, payload)
}
