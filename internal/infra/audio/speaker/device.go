// Package speaker opens output lines on the sound card through the beep
// speaker mixer.
package speaker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	beepspeaker "github.com/faiface/beep/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/infra/audio"
	"github.com/osa030/goalhorn/internal/infra/clipstore"
)

var _ audio.Opener = (*Device)(nil)

// DeviceConfig configures the output device.
type DeviceConfig struct {
	SampleRate beep.SampleRate
	Buffer     time.Duration
	MinGainDB  float64
	MaxGainDB  float64
	Disabled   bool // hand out muted lines instead of touching the sound card
}

// Device is the process-wide output device.
type Device struct {
	cfg DeviceConfig
}

// OpenDevice initializes the speaker unless the device is disabled.
func OpenDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.MaxGainDB <= cfg.MinGainDB {
		return nil, errors.Newf("invalid gain range [%.1f, %.1f]", cfg.MinGainDB, cfg.MaxGainDB)
	}
	if !cfg.Disabled {
		if err := beepspeaker.Init(cfg.SampleRate, cfg.SampleRate.N(cfg.Buffer)); err != nil {
			return nil, errors.Wrap(err, "failed to initialize speaker")
		}
		zlog.Info().Msgf("audio: speaker initialized: sample_rate=%d buffer=%v", cfg.SampleRate, cfg.Buffer)
	} else {
		zlog.Warn().Msg("audio: device disabled, lines are muted")
	}
	return &Device{cfg: cfg}, nil
}

// OpenLine opens an output line for clip.
func (d *Device) OpenLine(clip *clipstore.Clip, loop bool) (audio.Line, error) {
	if clip == nil {
		return nil, audio.ErrNoClip
	}
	if d.cfg.Disabled {
		return audio.NewMutedLine(clip.Duration(), loop, d.cfg.MinGainDB, d.cfg.MaxGainDB), nil
	}
	return &line{
		clip:   clip,
		loop:   loop,
		minDB:  d.cfg.MinGainDB,
		maxDB:  d.cfg.MaxGainDB,
		gainDB: d.cfg.MaxGainDB,
	}, nil
}

// Close silences everything still playing.
func (d *Device) Close() {
	if !d.cfg.Disabled {
		beepspeaker.Clear()
	}
}

// line plays a clip through the beep speaker mixer.
type line struct {
	clip         *clipstore.Clip
	loop         bool
	minDB, maxDB float64

	mu     sync.Mutex
	gainDB float64
	ctrl   *beep.Ctrl
	vol    *effects.Volume
	closed bool

	// current is cleared from the speaker goroutine when the clip drains,
	// so it is the only field the mixer callback touches.
	current atomic.Pointer[beep.Ctrl]
}

func (l *line) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return audio.ErrLineClosed
	}
	l.haltLocked()

	var s beep.Streamer = l.clip.Streamer()
	if l.loop {
		s = beep.Loop(-1, l.clip.Streamer())
	}
	vol := &effects.Volume{Streamer: s, Base: 10}
	setVolume(vol, l.gainDB, l.minDB)
	ctrl := &beep.Ctrl{Streamer: vol}

	l.ctrl, l.vol = ctrl, vol
	l.current.Store(ctrl)
	beepspeaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		l.current.CompareAndSwap(ctrl, nil)
	})))
	return nil
}

func (l *line) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.haltLocked()
}

// haltLocked detaches the current streamer; the mixer drops it on its next pass.
func (l *line) haltLocked() {
	if l.ctrl == nil {
		return
	}
	beepspeaker.Lock()
	l.ctrl.Streamer = nil
	beepspeaker.Unlock()
	l.current.CompareAndSwap(l.ctrl, nil)
	l.ctrl, l.vol = nil, nil
}

func (l *line) Active() bool {
	return l.current.Load() != nil
}

func (l *line) Gain() (audio.GainControl, bool) {
	return gain{l: l}, true
}

func (l *line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.haltLocked()
	l.closed = true
	return nil
}

type gain struct {
	l *line
}

func (g gain) Range() (float64, float64) {
	return g.l.minDB, g.l.maxDB
}

func (g gain) Set(db float64) {
	l := g.l
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gainDB = audio.ClampDB(db, l.minDB, l.maxDB)
	if l.vol == nil {
		return
	}
	beepspeaker.Lock()
	setVolume(l.vol, l.gainDB, l.minDB)
	beepspeaker.Unlock()
}

func (g gain) Value() float64 {
	g.l.mu.Lock()
	defer g.l.mu.Unlock()
	return g.l.gainDB
}

// setVolume must run before the streamer is handed to the speaker or with
// the speaker locked.
func setVolume(vol *effects.Volume, db, minDB float64) {
	vol.Volume = dbToExponent(db)
	vol.Silent = db <= minDB
}

// dbToExponent converts decibels to the base-10 exponent used by
// effects.Volume (amplitude gain = 10^(db/20)).
func dbToExponent(db float64) float64 {
	return db / 20
}
