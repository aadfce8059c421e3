package config

import "sort"

// Presets are ready-made decay topologies, mostly useful for demos and as
// starting points for real configurations. Positions sit close to the true
// vertex, as perigee-like measurements would.
var Presets = map[string]*Config{
	// Two oppositely charged pions from a displaced neutral decay.
	"two-prong": {
		Iterations:    3,
		MagneticField: 1.5,
		Daughters: []Daughter{
			{Charge: 1, Momentum: [3]float64{0.6, 0.25, 0.1}, Position: [3]float64{1.02, 0.51, 0.2}},
			{Charge: -1, Momentum: [3]float64{0.4, -0.2, 0.15}, Position: [3]float64{0.99, 0.49, 0.21}},
		},
	},
	// Three charged tracks from a short-lived decay near the origin.
	"three-prong": {
		Iterations:    3,
		MagneticField: 1.5,
		Daughters: []Daughter{
			{Charge: 1, Momentum: [3]float64{1.1, 0.3, 0.4}, Position: [3]float64{0.31, 0.1, 0.2}},
			{Charge: -1, Momentum: [3]float64{0.7, -0.5, 0.1}, Position: [3]float64{0.29, 0.11, 0.19}},
			{Charge: 1, Momentum: [3]float64{0.3, 0.2, -0.2}, Position: [3]float64{0.3, 0.09, 0.21}},
		},
	},
	// Photon conversion: a nearly parallel electron-positron pair.
	"conversion": {
		Iterations:    5,
		MagneticField: 1.5,
		Daughters: []Daughter{
			{Charge: -1, Momentum: [3]float64{0.9, 0.02, 0.3}, Position: [3]float64{2.51, 0.0, 0.8}},
			{Charge: 1, Momentum: [3]float64{0.85, -0.02, 0.28}, Position: [3]float64{2.49, 0.01, 0.81}},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil if unknown. The copy
// is shallow except for the daughter list, so callers may adjust it freely.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *p
	cp.Daughters = make([]Daughter, len(p.Daughters))
	copy(cp.Daughters, p.Daughters)
	return &cp
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
