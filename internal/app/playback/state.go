// Package playback provides the per-slot playback state machine, the
// cancellable fade-out ramp and the continuous loop tracking.
package playback

// State represents the lifecycle state of a slot.
type State int

const (
	StateIdle      State = iota // Nothing audible
	StatePlaying                // Clip playing at full volume
	StateFadingOut              // Fade-out ramp in progress
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateFadingOut:
		return "fading_out"
	default:
		return "unknown"
	}
}
