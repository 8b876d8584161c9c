// Package machine wires the cpu, pack-slot, LCD, keyboard and tick
// peripherals into one addressable device, with the memory map split
// across several peripheral windows instead of one flat RAM array.
package machine

import "github.com/halcyon6303/orgtool/peripherals/lcd"

// Model names one of the four supported target devices: fixed
// display geometry and RAM size, selectable at compile and assemble time.
type Model struct {
	Name       string
	Geometry   lcd.Geometry
	FourLine   bool
	RAMSize    int
	ROMSize    int
	TickPeriod uint64
}

// Predefined models. Display geometry and RAM size are fixed per model;
// the names and sizes follow the pocket-computer family this toolchain
// targets.
var (
	ModelCM = Model{
		Name:       "CM",
		Geometry:   lcd.Geometry{Rows: 2, Cols: 16},
		FourLine:   false,
		RAMSize:    8 * 1024,
		ROMSize:    32 * 1024,
		TickPeriod: 20000,
	}
	ModelXP = Model{
		Name:       "XP",
		Geometry:   lcd.Geometry{Rows: 2, Cols: 16},
		FourLine:   false,
		RAMSize:    16 * 1024,
		ROMSize:    32 * 1024,
		TickPeriod: 20000,
	}
	ModelLA = Model{
		Name:       "LA",
		Geometry:   lcd.Geometry{Rows: 2, Cols: 16},
		FourLine:   false,
		RAMSize:    32 * 1024,
		ROMSize:    32 * 1024,
		TickPeriod: 20000,
	}
	ModelLZ64 = Model{
		Name:       "LZ64",
		Geometry:   lcd.Geometry{Rows: 4, Cols: 20},
		FourLine:   true,
		RAMSize:    64 * 1024,
		ROMSize:    32 * 1024,
		TickPeriod: 20000,
	}
)

// Models lists every target model, in the order the front-ends present them.
var Models = []Model{ModelCM, ModelXP, ModelLA, ModelLZ64}

// LookupModel finds a model by name, case-sensitive, matching the
// predefined preprocessor symbol the front-end accepts as target_model.
func LookupModel(name string) (Model, bool) {
	for _, m := range Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// Defines returns the predefined preprocessor symbols this model
// exposes: model name, 2-line vs 4-line flag, row count, column count.
func (m Model) Defines() map[string]string {
	fourLine := "0"
	if m.FourLine {
		fourLine = "1"
	}
	return map[string]string{
		"MODEL":     m.Name,
		"FOUR_LINE": fourLine,
		"ROWS":      itoa(m.Geometry.Rows),
		"COLS":      itoa(m.Geometry.Cols),
	}
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
