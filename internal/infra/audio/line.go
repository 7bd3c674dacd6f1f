// Package audio defines the per-slot output lines playback drives, plus a
// muted line that needs no sound card. The speaker sub-package plays
// through the sound card.
package audio

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/osa030/goalhorn/internal/infra/clipstore"
)

// Errors
var (
	ErrLineClosed = errors.New("line closed")
	ErrNoClip     = errors.New("no clip")
)

// Line is the output handle a playback slot owns for its clip.
// A line is used by one slot at a time; gain changes may arrive from a
// fade goroutine, so implementations synchronise internally.
type Line interface {
	// Start rewinds to the beginning of the clip and starts output.
	Start() error
	// Stop halts output and rewinds.
	Stop()
	// Active reports whether the clip is currently audible.
	Active() bool
	// Gain returns the gain control, or false if the line has none.
	Gain() (GainControl, bool)
	// Close releases the line. It must not be used afterwards.
	Close() error
}

// GainControl adjusts output gain in decibels.
type GainControl interface {
	Range() (minDB, maxDB float64)
	Set(db float64)
	Value() float64
}

// Opener opens lines for clips.
type Opener interface {
	OpenLine(clip *clipstore.Clip, loop bool) (Line, error)
}

// ClampDB limits db to [minDB, maxDB].
func ClampDB(db, minDB, maxDB float64) float64 {
	return math.Max(minDB, math.Min(db, maxDB))
}
