package dispatch

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/app/playback"
)

// SongConfig represents the configuration for SongAction.
type SongConfig struct {
	Slot string `mapstructure:"slot" validate:"required"`
	// LoopFadeDelayMs is a pointer so an explicit 0 (fade at once) is kept.
	LoopFadeDelayMs *int `mapstructure:"loop_fade_delay_ms" default:"5000" validate:"required,gte=0"`
}

func (c *SongConfig) loopFadeDelay() time.Duration {
	return time.Duration(*c.LoopFadeDelayMs) * time.Millisecond
}

// SongAction restarts a team song and fades the continuous loop out after
// a delay.
type SongAction struct {
	config *SongConfig
	slot   *playback.Slot
}

func (a *SongAction) Name() string {
	return "song"
}

func (a *SongAction) Description() string {
	return "Restarts a song clip and schedules a fade-out of the continuous loop"
}

func (a *SongAction) Configure(board *playback.Board, settings map[string]any) error {
	var config SongConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	slot, err := resolveSlot(board, config.Slot)
	if err != nil {
		return err
	}
	a.slot = slot
	a.config = &config
	zlog.Debug().Msgf("song action config: slot=%s loop_fade_delay=%v", config.Slot, config.loopFadeDelay())
	return nil
}

func (a *SongAction) Execute(ctx context.Context, env *Env) {
	env.play(a.slot)

	loop := env.Board.Loop().Slot()
	delay := a.config.loopFadeDelay()
	env.Sched.Schedule(loop.Name(), delay, func() {
		env.fadeOut(loop)
	})
}

func init() {
	Register("song", func() Action {
		return &SongAction{}
	})
}
