// Package keyinput provides physical key sources: Linux input devices and
// GPIO push buttons.
package keyinput

import (
	"context"
	"errors"
	"fmt"
)

// DefaultButtonCode is reported by a GPIO button without a key_code. It
// matches the default scan key.
const DefaultButtonCode = 1011

// MaxEvdevCode is the highest key code a Linux input device reports
// (KEY_MAX).
const MaxEvdevCode = 0x2ff

// ErrClosed is returned by ReadKey after the source was closed.
var ErrClosed = errors.New("key source closed")

// KeyEvent is a single key transition.
type KeyEvent struct {
	Code   int    // key code (evdev code, or the configured code for a button)
	Down   bool   // true on press, false on release
	Source string // device path or GPIO line name
}

// Source is the interface for all key source implementations.
type Source interface {
	// ReadKey blocks until a key transition or until ctx is cancelled.
	ReadKey(ctx context.Context) (KeyEvent, error)

	// Close releases any resources held by the source.
	Close() error
}

// Config holds configuration for key sources.
type Config struct {
	Type       string `yaml:"type"`        // "evdev", "gpio", "none"
	Device     string `yaml:"device"`      // evdev: e.g. "/dev/input/event1"
	Chip       string `yaml:"chip"`        // gpio: default "gpiochip0"
	Pin        int    `yaml:"pin"`         // gpio: line offset of the button
	KeyCode    int    `yaml:"key_code"`    // gpio: code reported for the button, default 1011
	DebounceMs int    `yaml:"debounce_ms"` // gpio: default 5
}

// New creates a Source based on the provided configuration.
// Returns nil if no key source is configured.
func New(cfg Config) (Source, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "evdev":
		return NewEvdev(cfg.Device)
	case "gpio":
		return NewGPIOButton(cfg)
	default:
		return nil, fmt.Errorf("unknown key source type %q", cfg.Type)
	}
}
