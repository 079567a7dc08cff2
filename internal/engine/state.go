package engine

// State is the transport state.
type State int

const (
	// StateIdle is the initial state; nothing has played yet.
	StateIdle State = iota
	// StatePlaying indicates the device is pulling samples.
	StatePlaying
	// StatePaused indicates the device is suspended mid-buffer.
	StatePaused
	// StateStopped indicates playback was stopped or ran to the end.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event drives a transition.
type Event int

const (
	EventStart Event = iota
	EventPause
	EventResume
	EventStop
	// EventEnd is raised by the renderer when the buffer is exhausted or
	// the device fails.
	EventEnd
)

// String returns the string representation of the event.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStop:
		return "stop"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// transitions lists every legal (state, event) pair. Anything missing is
// ignored.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StatePlaying,
	},
	StatePlaying: {
		EventPause: StatePaused,
		EventStop:  StateStopped,
		EventEnd:   StateStopped,
	},
	StatePaused: {
		EventResume: StatePlaying,
		EventStop:   StateStopped,
		EventEnd:    StateStopped,
	},
	StateStopped: {
		EventStart: StatePlaying,
		EventStop:  StateStopped,
	},
}

// next returns the state reached from s on e, and whether the pair is legal.
func next(s State, e Event) (State, bool) {
	to, ok := transitions[s][e]
	return to, ok
}
