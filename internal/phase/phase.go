// Package phase models the fixed planning workflow an event moves through.
//
// The workflow is a total order: proposal -> voting -> scheduling -> info.
// Phase advancement is the only mutation and always moves exactly one step
// forward. The package is authorization-agnostic: callers must check the
// actor's capability (see the role package) before calling Next.
package phase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPhase indicates an unrecognized phase label reached the
	// parse boundary. Unknown values are rejected here so the pure
	// functions below never see malformed input.
	ErrInvalidPhase = errors.New("unknown event phase")

	// ErrTerminalPhase indicates Next was called on the final phase.
	// This is an expected condition, surfaced as a disabled action
	// rather than a failure.
	ErrTerminalPhase = errors.New("event is in its final phase")
)

// Phase is one step of the planning workflow.
type Phase int

const (
	// Proposal is the initial phase: members suggest activities.
	Proposal Phase = iota
	// Voting is when members vote on the suggested activities.
	Voting
	// Scheduling is when date options are collected and answered.
	Scheduling
	// Info is the terminal phase: the event is fully planned.
	Info
)

// All returns the phases in workflow order. Used to render progress
// indicators; the returned slice is a fresh copy each call.
func All() []Phase {
	return []Phase{Proposal, Voting, Scheduling, Info}
}

// Parse converts a phase label to a Phase. Labels are matched
// case-insensitively; anything unrecognized returns ErrInvalidPhase.
func Parse(label string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "proposal":
		return Proposal, nil
	case "voting":
		return Voting, nil
	case "scheduling":
		return Scheduling, nil
	case "info":
		return Info, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPhase, label)
	}
}

// String returns the canonical lowercase label for the phase.
func (p Phase) String() string {
	switch p {
	case Proposal:
		return "proposal"
	case Voting:
		return "voting"
	case Scheduling:
		return "scheduling"
	case Info:
		return "info"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status describes where a phase sits relative to an event's current phase.
type Status int

const (
	// Completed means the phase is strictly before the current one.
	Completed Status = iota
	// Current means the phase is the event's current phase.
	Current
	// Upcoming means the phase is strictly after the current one.
	Upcoming
)

// String returns the lowercase label for the status.
func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Current:
		return "current"
	case Upcoming:
		return "upcoming"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusOf reports the status of p relative to current. Pure and total:
// every phase has a defined order position.
func StatusOf(p, current Phase) Status {
	switch {
	case p < current:
		return Completed
	case p == current:
		return Current
	default:
		return Upcoming
	}
}

// CanAdvance reports whether the phase has a successor.
func CanAdvance(p Phase) bool {
	return p != Info
}

// Next returns the phase one step after p. It fails with ErrTerminalPhase
// when p is the final phase; there is no other way the transition fails.
func Next(p Phase) (Phase, error) {
	if !CanAdvance(p) {
		return p, ErrTerminalPhase
	}
	return p + 1, nil
}
