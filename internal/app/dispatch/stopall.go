package dispatch

import (
	"context"

	"github.com/osa030/goalhorn/internal/app/notification"
	"github.com/osa030/goalhorn/internal/app/playback"
)

// StopAllConfig represents the configuration for StopAllAction.
type StopAllConfig struct {
	Notify string `mapstructure:"notify" default:"all_stop"`
}

// StopAllAction fades out every slot and drops pending scheduled fades.
type StopAllAction struct {
	config *StopAllConfig
}

func (a *StopAllAction) Name() string {
	return "stop_all"
}

func (a *StopAllAction) Description() string {
	return "Fades out every slot, cancels scheduled fades and clears the loop flag"
}

func (a *StopAllAction) Configure(board *playback.Board, settings map[string]any) error {
	var config StopAllConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	a.config = &config
	return nil
}

func (a *StopAllAction) Execute(ctx context.Context, env *Env) {
	env.Sched.CancelAll()
	env.Board.Loop().Disengage()
	for _, s := range env.Board.Slots() {
		env.fadeOut(s)
	}
	env.notify(notification.KindStopAll, a.config.Notify)
}

func init() {
	Register("stop_all", func() Action {
		return &StopAllAction{}
	})
}
