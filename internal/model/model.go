// Package model describes LOR controller hardware: channel counts and valid
// unit id ranges per model. Purely descriptive data used for pre-validation;
// it contains no protocol logic.
package model

import "lor-go-bridge/internal/lor"

// Model describes one controller model.
type Model struct {
	Name     string   `json:"name"`
	Channels int      `json:"channels"`
	MinUnit  lor.Unit `json:"min_unit"`
	MaxUnit  lor.Unit `json:"max_unit"`
}

// ValidUnit reports whether u is addressable for this model.
func (m Model) ValidUnit(u lor.Unit) bool {
	return u >= m.MinUnit && u <= m.MaxUnit
}

// ValidChannel reports whether ch (0-based) exists on this model.
func (m Model) ValidChannel(ch int) bool {
	return ch >= 0 && ch < m.Channels
}

// The standard addressable unit range shared by LOR controllers. Ids above
// MaxUnit are reserved (0xFF is the broadcast address).
const (
	minUnit lor.Unit = 0x01
	maxUnit lor.Unit = 0xF0
)

var models = []Model{
	{Name: "CTB08D", Channels: 8, MinUnit: minUnit, MaxUnit: maxUnit},
	{Name: "CTB16PC", Channels: 16, MinUnit: minUnit, MaxUnit: maxUnit},
	{Name: "LOR1602W", Channels: 16, MinUnit: minUnit, MaxUnit: maxUnit},
	{Name: "CMB16D", Channels: 16, MinUnit: minUnit, MaxUnit: maxUnit},
	{Name: "CMB24D", Channels: 24, MinUnit: minUnit, MaxUnit: maxUnit},
	{Name: "DIO32", Channels: 32, MinUnit: minUnit, MaxUnit: maxUnit},
}

// Lookup returns the model with the given name.
func Lookup(name string) (Model, bool) {
	for _, m := range models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// All returns every known model.
func All() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}
