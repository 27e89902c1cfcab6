package tempo

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is matched by every RangeError
var ErrOutOfRange = errors.New("value out of range")

// RangeError describes a value outside its allowed bounds
type RangeError struct {
	Field string
	Unit  string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	if math.IsNaN(e.Value) {
		return fmt.Sprintf("%s must be a number", e.Field)
	}
	if e.Value < e.Min {
		return fmt.Sprintf("%s %s is below the minimum of %s", e.Field, e.format(e.Value), e.format(e.Min))
	}
	return fmt.Sprintf("%s %s is above the maximum of %s", e.Field, e.format(e.Value), e.format(e.Max))
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

func (e *RangeError) format(v float64) string {
	s := fmt.Sprintf("%g", v)
	if e.Unit != "" {
		s += " " + e.Unit
	}
	return s
}

// IsValidTempo reports whether bpm lies within [MinTempo, MaxTempo]
func IsValidTempo(bpm float64) bool {
	return bpm >= MinTempo && bpm <= MaxTempo
}

// IsValidSwing reports whether amount lies within [MinSwing, MaxSwing]
func IsValidSwing(amount float64) bool {
	return amount >= MinSwing && amount <= MaxSwing
}

// TempoValidationError returns nil for a valid tempo, otherwise a *RangeError
// suitable for display. It never changes any controller state.
func TempoValidationError(bpm float64) error {
	if IsValidTempo(bpm) {
		return nil
	}
	return &RangeError{Field: "tempo", Unit: "BPM", Value: bpm, Min: MinTempo, Max: MaxTempo}
}

// SwingValidationError returns nil for a valid swing amount, otherwise a *RangeError
func SwingValidationError(amount float64) error {
	if IsValidSwing(amount) {
		return nil
	}
	return &RangeError{Field: "swing", Value: amount, Min: MinSwing, Max: MaxSwing}
}

// ClampTempo forces bpm into [MinTempo, MaxTempo]. NaN maps to MinTempo.
func ClampTempo(bpm float64) float64 {
	return clamp(bpm, MinTempo, MaxTempo)
}

// ClampSwing forces amount into [MinSwing, MaxSwing]. NaN maps to MinSwing.
func ClampSwing(amount float64) float64 {
	return clamp(amount, MinSwing, MaxSwing)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
