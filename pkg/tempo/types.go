// Package tempo owns the sequencer's playback tempo and swing amount.
//
// A Controller validates and clamps every write, glides large tempo jumps
// toward their target one tick at a time, and derives tempo candidates from
// user taps. Readers get lock-free snapshots; push consumers subscribe to
// change events.
package tempo

import "time"

// Tempo bounds and transition tuning
const (
	MinTempo     = 60.0  // BPM
	MaxTempo     = 200.0 // BPM
	DefaultTempo = 120.0 // BPM

	TransitionThreshold = 5.0 // BPM; larger smooth changes glide
	TransitionRate      = 2.0 // BPM per tick
	TickInterval        = 50 * time.Millisecond
)

// Swing bounds
const (
	MinSwing = 0.0
	MaxSwing = 0.75

	MinSwingPercent = 50 // MPC-style, no swing
	MaxSwingPercent = 75 // MPC-style, maximum swing
)

// Tap window bounds
const (
	MaxTaps   = 8
	MaxTapGap = 3000 * time.Millisecond
)

// State is an immutable snapshot of the controller's observable values
type State struct {
	Tempo         float64 `json:"tempo"`
	Target        float64 `json:"target_tempo"`
	Transitioning bool    `json:"transitioning"`
	Swing         float64 `json:"swing"`
}

// SwingPercentage returns the swing as an MPC-style percentage
func (s State) SwingPercentage() int {
	return SwingToPercent(s.Swing)
}

// EventKind identifies what changed
type EventKind int

const (
	TempoChanged EventKind = iota
	SwingChanged
	TransitionStarted
	TransitionFinished
)

func (k EventKind) String() string {
	switch k {
	case TempoChanged:
		return "tempo"
	case SwingChanged:
		return "swing"
	case TransitionStarted:
		return "transition_started"
	case TransitionFinished:
		return "transition_finished"
	default:
		return "unknown"
	}
}

// Event is published to subscribers after each observable change
type Event struct {
	Kind  EventKind `json:"-"`
	State State     `json:"state"`
	At    time.Time `json:"at"`
}
