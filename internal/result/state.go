package result

import (
	"fmt"
	"strings"
)

// State is a position in the result lifecycle.
type State uint8

const (
	StateNew State = iota
	// StateRegistered is the baseline: the image is known locally but has not
	// been handed to detection yet.
	StateRegistered
	StateDetectingAI
	StatePendingManually
	StateDetectingManually
	StatePendingUpload
	StateUploaded
)

type stateInfo struct {
	name      string
	detecting bool
	terminal  bool
}

// Persisted names match the result files written by earlier versions.
var states = [...]stateInfo{
	StateNew:               {name: "NEW"},
	StateRegistered:        {name: "FTP_UPLOADED"},
	StateDetectingAI:       {name: "DETECTING_AI", detecting: true},
	StatePendingManually:   {name: "PENDING_MANUALLY"},
	StateDetectingManually: {name: "DETECTING_MANUALLY", detecting: true},
	StatePendingUpload:     {name: "PENDING_UPLOAD"},
	StateUploaded:          {name: "UPLOADED", terminal: true},
}

// edge describes where a state advances to. Only DETECTING_AI branches on
// whether numbers were collected.
type edge struct {
	withNumbers State
	empty       State
}

var transitions = map[State]edge{
	StateNew:               {withNumbers: StateRegistered, empty: StateRegistered},
	StateRegistered:        {withNumbers: StateDetectingAI, empty: StateDetectingAI},
	StateDetectingAI:       {withNumbers: StatePendingUpload, empty: StatePendingManually},
	StatePendingManually:   {withNumbers: StateDetectingManually, empty: StateDetectingManually},
	StateDetectingManually: {withNumbers: StatePendingUpload, empty: StatePendingUpload},
	StatePendingUpload:     {withNumbers: StateUploaded, empty: StateUploaded},
}

// AllStates lists every state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(states))
	for i := range states {
		out[i] = State(i)
	}
	return out
}

func (s State) valid() bool { return int(s) < len(states) }

// String returns the persisted name of the state.
func (s State) String() string {
	if !s.valid() {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return states[s].name
}

// Detecting reports whether numbers may currently be added.
func (s State) Detecting() bool { return s.valid() && states[s].detecting }

// Terminal reports whether the state has no successor.
func (s State) Terminal() bool { return s.valid() && states[s].terminal }

// Successors returns the states directly reachable from s.
func Successors(s State) []State {
	e, ok := transitions[s]
	if !ok {
		return nil
	}
	if e.withNumbers == e.empty {
		return []State{e.withNumbers}
	}
	return []State{e.withNumbers, e.empty}
}

func advance(s State, hasNumbers bool) (State, bool) {
	e, ok := transitions[s]
	if !ok {
		return s, false
	}
	if hasNumbers {
		return e.withNumbers, true
	}
	return e.empty, true
}

// ParseState resolves a persisted state name.
func ParseState(name string) (State, error) {
	name = strings.TrimSpace(name)
	for i, info := range states {
		if info.name == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// Category classifies which timing point produced an image.
type Category uint8

const (
	CategoryCar    Category = 1
	CategoryFinish Category = 2
)

// Name returns the lowercase name used in upload rows.
func (c Category) Name() string {
	switch c {
	case CategoryCar:
		return "car"
	case CategoryFinish:
		return "finish"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

func (c Category) String() string { return c.Name() }

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool { return c == CategoryCar || c == CategoryFinish }

// ParseCategory accepts either the lowercase name or the numeric value.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car", "1":
		return CategoryCar, nil
	case "finish", "2":
		return CategoryFinish, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}
