package audio

import (
	"sync"
	"time"
)

// MutedLine tracks playback timing and gain without producing sound.
// It backs slots when the device is disabled and stands in for the speaker
// in tests.
type MutedLine struct {
	duration     time.Duration
	loop         bool
	minDB, maxDB float64

	mu     sync.Mutex
	active bool
	gainDB float64
	starts int
	timer  *time.Timer
	closed bool
}

// NewMutedLine creates a muted line for a clip of the given duration.
func NewMutedLine(duration time.Duration, loop bool, minDB, maxDB float64) *MutedLine {
	return &MutedLine{
		duration: duration,
		loop:     loop,
		minDB:    minDB,
		maxDB:    maxDB,
		gainDB:   maxDB,
	}
}

func (l *MutedLine) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLineClosed
	}
	l.stopTimerLocked()
	l.active = true
	l.starts++
	if !l.loop && l.duration > 0 {
		gen := l.starts
		l.timer = time.AfterFunc(l.duration, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.starts == gen {
				l.active = false
			}
		})
	}
	return nil
}

func (l *MutedLine) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked()
	l.active = false
}

func (l *MutedLine) stopTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *MutedLine) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Starts returns how many times the line was started.
func (l *MutedLine) Starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts
}

func (l *MutedLine) Gain() (GainControl, bool) {
	return l, true
}

func (l *MutedLine) Range() (float64, float64) {
	return l.minDB, l.maxDB
}

func (l *MutedLine) Set(db float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gainDB = ClampDB(db, l.minDB, l.maxDB)
}

func (l *MutedLine) Value() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gainDB
}

func (l *MutedLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked()
	l.active = false
	l.closed = true
	return nil
}
