package dispatch

import (
	"context"

	"github.com/osa030/goalhorn/internal/app/playback"
)

// ReleaseConfig represents the configuration for ReleaseAction.
type ReleaseConfig struct {
	Slots []string `mapstructure:"slots" validate:"required,min=1"`
}

// ReleaseAction fades out the listed slots.
type ReleaseAction struct {
	slots []*playback.Slot
}

func (a *ReleaseAction) Name() string {
	return "release"
}

func (a *ReleaseAction) Description() string {
	return "Fades out the listed slots"
}

func (a *ReleaseAction) Configure(board *playback.Board, settings map[string]any) error {
	var config ReleaseConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	a.slots = a.slots[:0]
	for _, name := range config.Slots {
		s, err := resolveSlot(board, name)
		if err != nil {
			return err
		}
		a.slots = append(a.slots, s)
	}
	return nil
}

func (a *ReleaseAction) Execute(ctx context.Context, env *Env) {
	for _, s := range a.slots {
		env.fadeOut(s)
	}
}

func init() {
	Register("release", func() Action {
		return &ReleaseAction{}
	})
}
