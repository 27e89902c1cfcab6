package tempo

import "time"

// TapEstimator turns a stream of tap times into a BPM estimate.
// It keeps at most MaxTaps taps, none older than MaxTapGap relative to the
// newest one. It is not safe for concurrent use; Controller serializes access.
type TapEstimator struct {
	taps []time.Time
}

// NewTapEstimator creates an empty estimator
func NewTapEstimator() *TapEstimator {
	return &TapEstimator{taps: make([]time.Time, 0, MaxTaps+1)}
}

// Tap records a tap at t and returns the estimated BPM once at least two taps
// are inside the window. Taps that arrive out of order restart the window.
func (e *TapEstimator) Tap(t time.Time) (float64, bool) {
	if n := len(e.taps); n > 0 && t.Before(e.taps[n-1]) {
		e.taps = e.taps[:0]
	}

	// Drop stale taps; a long pause starts a fresh measurement
	cutoff := t.Add(-MaxTapGap)
	keep := 0
	for keep < len(e.taps) && e.taps[keep].Before(cutoff) {
		keep++
	}
	e.taps = append(e.taps[:0], e.taps[keep:]...)

	e.taps = append(e.taps, t)
	if len(e.taps) < 2 {
		return 0, false
	}

	if over := len(e.taps) - MaxTaps; over > 0 {
		e.taps = append(e.taps[:0], e.taps[over:]...)
	}

	// Mean of consecutive intervals telescopes to span / count
	span := e.taps[len(e.taps)-1].Sub(e.taps[0])
	intervals := len(e.taps) - 1
	if span <= 0 {
		return MaxTempo, true
	}
	meanMs := float64(span) / float64(time.Millisecond) / float64(intervals)
	return ClampTempo(60000 / meanMs), true
}

// Count returns the number of taps currently in the window
func (e *TapEstimator) Count() int {
	return len(e.taps)
}

// Reset clears the window
func (e *TapEstimator) Reset() {
	e.taps = e.taps[:0]
}
