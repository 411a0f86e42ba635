// Package result models one discovered image and its lifecycle.
package result

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidState is returned when an operation is not allowed in the
// result's current state.
var ErrInvalidState = errors.New("invalid state")

// InvalidStateError records which operation was rejected and why.
type InvalidStateError struct {
	Identity string
	State    State
	Op       string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s: %v (state %s)", e.Op, e.Identity, ErrInvalidState, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// Result is the lifecycle record for one image. It is not safe for
// concurrent use; the collector serialises access.
type Result struct {
	identity    string
	captureTime time.Time
	category    Category
	state       State
	numbers     map[int]struct{}
}

// New creates a result that has been registered and awaits detection.
func New(identity string, captureTime time.Time, category Category) *Result {
	r := &Result{
		identity:    identity,
		captureTime: captureTime.UTC().Truncate(time.Second),
		category:    category,
		state:       StateNew,
		numbers:     make(map[int]struct{}),
	}
	// NEW -> FTP_UPLOADED always succeeds.
	_ = r.NextState()
	return r
}

// Restore rebuilds a result from a persisted snapshot.
func Restore(s Snapshot) *Result {
	r := &Result{
		identity:    s.Identity,
		captureTime: s.CaptureTime.UTC().Truncate(time.Second),
		category:    s.Category,
		state:       s.State,
		numbers:     make(map[int]struct{}, len(s.Numbers)),
	}
	for _, n := range s.Numbers {
		r.numbers[n] = struct{}{}
	}
	return r
}

func (r *Result) Identity() string       { return r.identity }
func (r *Result) CaptureTime() time.Time { return r.captureTime }
func (r *Result) Category() Category     { return r.category }
func (r *Result) State() State           { return r.state }
func (r *Result) HasNumbers() bool       { return len(r.numbers) > 0 }

// Numbers returns the collected numbers in ascending order.
func (r *Result) Numbers() []int {
	out := make([]int, 0, len(r.numbers))
	for n := range r.numbers {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// AddNumbers merges nums into the result. It does not advance the state.
func (r *Result) AddNumbers(nums ...int) error {
	if !r.state.Detecting() {
		return &InvalidStateError{Identity: r.identity, State: r.state, Op: "add numbers"}
	}
	for _, n := range nums {
		r.numbers[n] = struct{}{}
	}
	return nil
}

// NextState advances exactly one edge of the lifecycle graph.
func (r *Result) NextState() error {
	next, ok := advance(r.state, r.HasNumbers())
	if !ok {
		return &InvalidStateError{Identity: r.identity, State: r.state, Op: "advance"}
	}
	r.state = next
	return nil
}

// DetectionStarted claims a baseline result for automatic detection.
func (r *Result) DetectionStarted() error {
	if r.state != StateRegistered {
		return &InvalidStateError{Identity: r.identity, State: r.state, Op: "start detection"}
	}
	return r.NextState()
}

// Snapshot is an immutable copy of a result.
type Snapshot struct {
	Identity    string
	CaptureTime time.Time
	Category    Category
	State       State
	Numbers     []int
}

// Snapshot copies the current values of r.
func (r *Result) Snapshot() Snapshot {
	return Snapshot{
		Identity:    r.identity,
		CaptureTime: r.captureTime,
		Category:    r.category,
		State:       r.state,
		Numbers:     r.Numbers(),
	}
}
