package tempo

import "math"

// swingPerPercent is the fraction added per MPC percentage point above 50
const swingPerPercent = (MaxSwing - MinSwing) / (MaxSwingPercent - MinSwingPercent)

// PercentToSwing maps an MPC percentage (50-75) onto the swing fraction (0-0.75).
// Out of range percentages are clamped first.
func PercentToSwing(pct int) float64 {
	if pct < MinSwingPercent {
		pct = MinSwingPercent
	}
	if pct > MaxSwingPercent {
		pct = MaxSwingPercent
	}
	steps := pct - MinSwingPercent
	if steps == MaxSwingPercent-MinSwingPercent {
		return MaxSwing
	}
	return MinSwing + float64(steps)*swingPerPercent
}

// SwingToPercent maps a swing fraction onto the nearest MPC percentage
func SwingToPercent(amount float64) int {
	amount = ClampSwing(amount)
	return MinSwingPercent + int(math.Round((amount-MinSwing)/swingPerPercent))
}

// Preset is a named swing amount
type Preset struct {
	Name  string  `json:"name"`
	Swing float64 `json:"swing"`
}

// Preset tables are read-only after package init

var groovePresets = []Preset{
	{Name: "straight", Swing: 0.0},
	{Name: "light", Swing: 0.1},
	{Name: "medium", Swing: 0.25},
	{Name: "heavy", Swing: 0.4},
	{Name: "shuffle", Swing: 0.5},
	{Name: "triplet", Swing: 0.66},
}

var mpcSwingPresets = []Preset{
	{Name: "50%", Swing: PercentToSwing(50)},
	{Name: "54%", Swing: PercentToSwing(54)},
	{Name: "58%", Swing: PercentToSwing(58)},
	{Name: "62%", Swing: PercentToSwing(62)},
	{Name: "66%", Swing: PercentToSwing(66)},
	{Name: "71%", Swing: PercentToSwing(71)},
	{Name: "75%", Swing: PercentToSwing(75)},
}

var (
	grooveByName = indexPresets(groovePresets)
	mpcByName    = indexPresets(mpcSwingPresets)
)

func indexPresets(presets []Preset) map[string]float64 {
	m := make(map[string]float64, len(presets))
	for _, p := range presets {
		m[p.Name] = p.Swing
	}
	return m
}

// GroovePreset looks up a groove preset by name
func GroovePreset(name string) (float64, bool) {
	v, ok := grooveByName[name]
	return v, ok
}

// MPCSwingPreset looks up an MPC swing preset by name, e.g. "58%"
func MPCSwingPreset(name string) (float64, bool) {
	v, ok := mpcByName[name]
	return v, ok
}

// GroovePresets returns the groove presets in display order
func GroovePresets() []Preset {
	return append([]Preset(nil), groovePresets...)
}

// MPCSwingPresets returns the MPC swing presets in display order
func MPCSwingPresets() []Preset {
	return append([]Preset(nil), mpcSwingPresets...)
}
