package trigger

import (
	"github.com/hjkoskel/govattu"
)

// GPIO implements Line using a single GPIO output wired to the engine's
// TRIG input.
type GPIO struct {
	hw         govattu.Vattu
	pin        uint8
	activeHigh bool // true = pin high asserts the trigger
}

// NewGPIO creates a new GPIO trigger line. The line starts released.
func NewGPIO(hw govattu.Vattu, pin uint8, activeHigh bool) *GPIO {
	hw.PinMode(pin, govattu.ALToutput)

	g := &GPIO{
		hw:         hw,
		pin:        pin,
		activeHigh: activeHigh,
	}
	g.Deassert()
	return g
}

// Assert implements Line.Assert.
func (g *GPIO) Assert() error {
	g.drive(g.activeHigh)
	return nil
}

// Deassert implements Line.Deassert.
func (g *GPIO) Deassert() error {
	g.drive(!g.activeHigh)
	return nil
}

// Release implements Line.Release.
func (g *GPIO) Release() error {
	g.Deassert()
	return g.hw.Close()
}

func (g *GPIO) drive(high bool) {
	if high {
		g.hw.PinSet(g.pin)
	} else {
		g.hw.PinClear(g.pin)
	}
}
