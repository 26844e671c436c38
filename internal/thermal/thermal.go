// Package thermal models the ordered thermal-throttling signal the OS
// reports. The core only ever reads the latest value; writing is reserved
// for the external sensing layer.
package thermal

import (
	"strings"
	"sync/atomic"
)

// State is an ordered throttling level. Higher values mean less headroom.
type State int

const (
	StateNormal State = iota
	StateLight
	StateModerate
	StateSevere
	StateCritical
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateLight:
		return "light"
	case StateModerate:
		return "moderate"
	case StateSevere:
		return "severe"
	case StateCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AtLeast reports whether s is at or above level.
func (s State) AtLeast(level State) bool { return s >= level }

// ParseState maps a vendor string to a State. Vendor-specific emergency and
// shutdown aliases collapse to critical. Unknown strings map to normal.
func ParseState(v string) State {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "light":
		return StateLight
	case "moderate":
		return StateModerate
	case "severe":
		return StateSevere
	case "critical", "emergency", "shutdown":
		return StateCritical
	default:
		return StateNormal
	}
}

// Monitor exposes the latest thermal state. Implementations are updated
// asynchronously by the sensing layer; readers never mutate.
type Monitor interface {
	State() State
}

// Signal is a writable Monitor backed by an atomic value. The sensing layer
// calls Set; everything else only reads.
type Signal struct {
	v atomic.Int32
}

// NewSignal returns a Signal starting at the given state.
func NewSignal(s State) *Signal {
	sig := &Signal{}
	sig.v.Store(int32(s))
	return sig
}

func (s *Signal) State() State { return State(s.v.Load()) }

// Set records a new thermal state.
func (s *Signal) Set(st State) { s.v.Store(int32(st)) }
