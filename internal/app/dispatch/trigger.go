package dispatch

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/app/notification"
	"github.com/osa030/goalhorn/internal/app/playback"
)

// TriggerConfig represents the configuration for TriggerAction.
type TriggerConfig struct {
	Slot      string `mapstructure:"slot" validate:"required"`
	GuardSlot string `mapstructure:"guard_slot"`
	Notify    string `mapstructure:"notify"`
}

// TriggerAction restarts a foreground clip and keeps the ambient loop
// running unless the guard slot is audible.
type TriggerAction struct {
	config *TriggerConfig
	slot   *playback.Slot
	guard  *playback.Slot
}

func (a *TriggerAction) Name() string {
	return "trigger"
}

func (a *TriggerAction) Description() string {
	return "Restarts a foreground clip and engages the continuous loop unless the guard slot is audible"
}

func (a *TriggerAction) Configure(board *playback.Board, settings map[string]any) error {
	var config TriggerConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	slot, err := resolveSlot(board, config.Slot)
	if err != nil {
		return err
	}
	a.slot = slot

	if config.GuardSlot != "" {
		guard, err := resolveSlot(board, config.GuardSlot)
		if err != nil {
			return err
		}
		a.guard = guard
	}

	a.config = &config
	zlog.Debug().Msgf("trigger action config: %+v", config)
	return nil
}

func (a *TriggerAction) Execute(ctx context.Context, env *Env) {
	loop := env.Board.Loop()
	guard := a.guard
	env.submit(loop.Slot(), "engage loop", func() {
		if guard != nil && guard.Audible() {
			zlog.Debug().Msgf("dispatch: loop not engaged, guard audible: guard=%s", guard.Name())
			return
		}
		loop.EnsureEngaged()
	})

	env.play(a.slot)
	env.notify(notification.KindForegroundTrigger, a.config.Notify)
}

func init() {
	Register("trigger", func() Action {
		return &TriggerAction{}
	})
}
