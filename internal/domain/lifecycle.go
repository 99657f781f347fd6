package domain

import "time"

// State is the lifecycle position of a stored incident.
type State int

const (
	// StateNone means no record exists for the fingerprint.
	StateNone State = iota
	StateOpenNew
	StateOpenSeen
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateOpenNew:
		return "OPEN_NEW"
	case StateOpenSeen:
		return "OPEN_SEEN"
	case StateResolved:
		return "RESOLVED"
	default:
		return "NONE"
	}
}

// Signal is what a cycle learned about a record.
type Signal int

const (
	// SignalObserved: the fingerprint is in the cycle and the latest record is
	// inside the reinsertion window.
	SignalObserved Signal = iota
	// SignalObservedAged: the fingerprint is in the cycle but the latest record
	// is older than the reinsertion window.
	SignalObservedAged
	// SignalAbsent: an open record's fingerprint is missing from the cycle.
	SignalAbsent
	// SignalAged: an open record outlived the reinsertion window.
	SignalAged
)

func (s Signal) String() string {
	switch s {
	case SignalObserved:
		return "observed"
	case SignalObservedAged:
		return "observed_aged"
	case SignalAbsent:
		return "absent"
	case SignalAged:
		return "aged"
	default:
		return "unknown"
	}
}

// Action is the store mutation a transition calls for.
type Action int

const (
	ActionNone Action = iota
	ActionInsert
	ActionUpdate
	ActionResolve
	// ActionSuppress leaves a resolved record untouched while its fingerprint
	// is still being observed inside the window.
	ActionSuppress
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionResolve:
		return "resolve"
	case ActionSuppress:
		return "suppress"
	default:
		return "none"
	}
}

var transitions = map[State]map[Signal]Action{
	StateNone: {
		SignalObserved:     ActionInsert,
		SignalObservedAged: ActionInsert,
	},
	StateOpenNew: {
		SignalObserved:     ActionUpdate,
		SignalObservedAged: ActionInsert,
		SignalAbsent:       ActionResolve,
		SignalAged:         ActionResolve,
	},
	StateOpenSeen: {
		SignalObserved:     ActionUpdate,
		SignalObservedAged: ActionInsert,
		SignalAbsent:       ActionResolve,
		SignalAged:         ActionResolve,
	},
	StateResolved: {
		SignalObserved:     ActionSuppress,
		SignalObservedAged: ActionInsert,
	},
}

// Transition returns the action for a record in state s receiving sig.
// Combinations missing from the table are no-ops.
func Transition(s State, sig Signal) Action {
	return transitions[s][sig]
}

// State derives the lifecycle state from the stored fields.
func (r IncidentRecord) State() State {
	switch {
	case r.Resolved:
		return StateResolved
	case r.FirstSeen.Equal(r.LastSeen):
		return StateOpenNew
	default:
		return StateOpenSeen
	}
}

// ObservationSignal classifies an observation of the record's fingerprint.
// The window is exclusive: a record exactly window old is still current.
func ObservationSignal(r IncidentRecord, now time.Time, window time.Duration) Signal {
	if r.Age(now) > window {
		return SignalObservedAged
	}
	return SignalObserved
}

// SweepSignal classifies an open record at the end of a cycle. visible
// reports whether its fingerprint was in the cycle. ok is false when the
// record needs no attention.
func SweepSignal(r IncidentRecord, visible bool, now time.Time, window time.Duration) (Signal, bool) {
	switch {
	case !visible:
		return SignalAbsent, true
	case r.Age(now) > window:
		return SignalAged, true
	default:
		return 0, false
	}
}
