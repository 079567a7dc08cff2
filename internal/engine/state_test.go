package engine

import "testing"

// TestStateString tests the String() method for State.
func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestEventString tests the String() method for Event.
func TestEventString(t *testing.T) {
	tests := []struct {
		event    Event
		expected string
	}{
		{EventStart, "start"},
		{EventPause, "pause"},
		{EventResume, "resume"},
		{EventStop, "stop"},
		{EventEnd, "end"},
		{Event(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.event.String(); got != tt.expected {
				t.Errorf("Event.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestTransitions tests every (state, event) pair against the table.
func TestTransitions(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		to    State
		ok    bool
	}{
		{StateIdle, EventStart, StatePlaying, true},
		{StateIdle, EventPause, 0, false},
		{StateIdle, EventResume, 0, false},
		{StateIdle, EventStop, 0, false},
		{StateIdle, EventEnd, 0, false},

		{StatePlaying, EventStart, 0, false},
		{StatePlaying, EventPause, StatePaused, true},
		{StatePlaying, EventResume, 0, false},
		{StatePlaying, EventStop, StateStopped, true},
		{StatePlaying, EventEnd, StateStopped, true},

		{StatePaused, EventStart, 0, false},
		{StatePaused, EventPause, 0, false},
		{StatePaused, EventResume, StatePlaying, true},
		{StatePaused, EventStop, StateStopped, true},
		{StatePaused, EventEnd, StateStopped, true},

		{StateStopped, EventStart, StatePlaying, true},
		{StateStopped, EventPause, 0, false},
		{StateStopped, EventResume, 0, false},
		{StateStopped, EventStop, StateStopped, true},
		{StateStopped, EventEnd, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			to, ok := next(tt.from, tt.event)
			if ok != tt.ok {
				t.Fatalf("next() ok = %v, want %v", ok, tt.ok)
			}
			if ok && to != tt.to {
				t.Errorf("next() = %v, want %v", to, tt.to)
			}
		})
	}
}
