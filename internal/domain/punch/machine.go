package punch

import (
	"fmt"
	"time"
)

// transitions is the explicit state table. OUT is terminal and has no
// outgoing edges.
var transitions = map[State][]Type{
	StateNone:    {TypeIn},
	StateIn:      {TypeOut, TypeOutside},
	StateOutside: {TypeReturn},
	StateReturn:  {TypeOut, TypeOutside},
	StateOut:     {},
}

// DeriveState folds the day's accepted sequence into the current state.
// The sequence is assumed ordered by punch time; the caller owns ordering.
func DeriveState(day []Record) State {
	state := StateNone
	for _, rec := range day {
		switch rec.Type {
		case TypeIn:
			state = StateIn
		case TypeOut:
			state = StateOut
		case TypeOutside:
			state = StateOutside
		case TypeReturn:
			state = StateReturn
		}
	}
	return state
}

// OutsideCycles counts completed-or-started OUTSIDE excursions in the day.
func OutsideCycles(day []Record) int {
	cycles := 0
	for _, rec := range day {
		if rec.Type == TypeOutside {
			cycles++
		}
	}
	return cycles
}

// Replayable reports whether the sequence could have been produced by the
// machine from the initial state, punch by punch.
func Replayable(day []Record, maxOutsideCycles int) error {
	for i, rec := range day {
		if err := Validate(day[:i], rec.Type, rec.Time, maxOutsideCycles); err != nil {
			return err
		}
	}
	return nil
}

// InferNext picks the punch type for a tap from a reader without a type
// selector. With two legal successors (after IN or RETURN) it picks OUT:
// leaving for the day is the common case, and a wrongly closed day is
// repairable by correction while a phantom OUTSIDE excursion burns a cycle.
func InferNext(day []Record) (Type, error) {
	state := DeriveState(day)
	next := transitions[state]
	if len(next) == 0 {
		return "", ErrAlreadyTerminal
	}
	for _, t := range next {
		if t == TypeOut {
			return TypeOut, nil
		}
	}
	return next[0], nil
}

// Validate checks a requested punch against the day's sequence so far. It is
// pure: reconciliation can re-run it against any historical sequence without
// side effects.
func Validate(day []Record, req Type, at time.Time, maxOutsideCycles int) error {
	state := DeriveState(day)

	if state == StateOut {
		return ErrAlreadyTerminal
	}

	allowed := false
	for _, t := range transitions[state] {
		if t == req {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s from state %s", ErrInvalidTransition, req, state)
	}

	if req == TypeOutside && OutsideCycles(day) >= maxOutsideCycles {
		return fmt.Errorf("%w: %d outside/return cycles used", ErrDailyLimitExceeded, maxOutsideCycles)
	}

	if len(day) > 0 {
		last := day[len(day)-1]
		if !at.After(last.Time) {
			return fmt.Errorf("%w: punch at %s does not follow previous punch at %s",
				ErrInvalidTransition, at.Format(time.RFC3339), last.Time.Format(time.RFC3339))
		}
	}

	return nil
}
