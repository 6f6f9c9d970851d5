// Package fsm defines the pure state machine behind one voice exchange.
package fsm

import "fmt"

type (
	State string
	Event string
)

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateGenerating   State = "generating"
	StateSynthesizing State = "synthesizing"
	StateSpeaking     State = "speaking"
	StateError        State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventCancel      Event = "cancel"
	EventTranscribed Event = "transcribed"
	EventReplied     Event = "replied"
	EventSynthesized Event = "synthesized"
	EventPlayed      Event = "played"
	EventFail        Event = "fail"
	EventReset       Event = "reset"
)

// edges lists every legal move except EventFail, which is accepted anywhere.
var edges = map[State]map[Event]State{
	StateIdle:         {EventStart: StateRecording},
	StateRecording:    {EventStop: StateTranscribing, EventCancel: StateIdle},
	StateTranscribing: {EventTranscribed: StateGenerating},
	StateGenerating:   {EventReplied: StateSynthesizing},
	StateSynthesizing: {EventSynthesized: StateSpeaking},
	StateSpeaking:     {EventPlayed: StateIdle, EventStop: StateIdle},
	StateError:        {EventReset: StateIdle},
}

// Transition returns the next state for event. An illegal move returns
// current unchanged with an error.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}
	from, ok := edges[current]
	if !ok {
		return current, fmt.Errorf("unknown state %q", current)
	}
	next, ok := from[event]
	if !ok {
		return current, fmt.Errorf("invalid transition: %s --(%s)--> ?", current, event)
	}
	return next, nil
}
