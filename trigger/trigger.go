package trigger

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// Line is a hardware trigger input of a scan engine.
type Line interface {
	// Assert pulls the trigger (engine starts decoding).
	Assert() error

	// Deassert releases the trigger.
	Deassert() error

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for trigger line implementations.
type Config struct {
	Type string `yaml:"type"` // "gpio_high", "gpio_low", "none"
	Pin  *int   `yaml:"pin"`  // GPIO pin number
}

// New creates a Line based on the provided configuration.
// Returns a Noop line when no pin is configured.
func New(cfg Config) (Line, error) {
	if cfg.Pin == nil {
		return &Noop{}, nil
	}

	switch cfg.Type {
	case "gpio_high", "gpio_low":
	case "", "none":
		return &Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown trigger type %q", cfg.Type)
	}

	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return NewGPIO(hw, uint8(*cfg.Pin), cfg.Type == "gpio_high"), nil
}

// Noop implements Line but does nothing.
// Used when the engine is triggered by command instead of a pin.
type Noop struct{}

// Assert implements Line.Assert.
func (n *Noop) Assert() error {
	return nil
}

// Deassert implements Line.Deassert.
func (n *Noop) Deassert() error {
	return nil
}

// Release implements Line.Release.
func (n *Noop) Release() error {
	return nil
}

// IsNoop reports whether l does not drive any hardware.
func IsNoop(l Line) bool {
	_, ok := l.(*Noop)
	return l == nil || ok
}
