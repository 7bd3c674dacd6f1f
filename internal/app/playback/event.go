package playback

// EventType represents a slot event type.
type EventType int

const (
	EventStarted       EventType = iota // Clip (re)started from position zero
	EventFadeStarted                    // Fade-out ramp registered
	EventFadeCancelled                  // Ramp superseded or interrupted
	EventFadeCompleted                  // Ramp reached the minimum and the slot went idle
	EventStopped                        // Forced stop
	EventEnded                          // Clip ran out on its own
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventFadeStarted:
		return "fade_started"
	case EventFadeCancelled:
		return "fade_cancelled"
	case EventFadeCompleted:
		return "fade_completed"
	case EventStopped:
		return "stopped"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event represents a slot event.
type Event struct {
	Type  EventType
	Slot  string
	State State // State after the event
}
