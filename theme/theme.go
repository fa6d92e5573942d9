package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	StageGate     rune // ● stage that fires
	StagePlayhead rune // ▶ current stage
	StageIdle     rune // · stage not reached yet
	Muted         rune // M
	Solo          rune // S
	Voice         rune // ▮ meter cell, one per sounding voice
}

// New returns a theme over palette, or over Plasma when palette is nil.
func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Plasma()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StageGate:     '●',
			StagePlayhead: '▶',
			StageIdle:     '·',
			Muted:         'M',
			Solo:          'S',
			Voice:         '▮',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	c := t.Palette.Lookup(norm)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

// Load picks a colour for a processing load: calm below half the buffer
// time, warning above, and the hottest colour once the deadline is missed.
func (t *Theme) Load(load float64) lipgloss.Color {
	switch {
	case load >= 1:
		return t.Success()
	case load >= 0.5:
		return t.Warning()
	}
	return t.FG()
}
