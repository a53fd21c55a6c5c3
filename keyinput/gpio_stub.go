//go:build !linux

package keyinput

import (
	"context"
	"errors"
)

var ErrNotSupported = errors.New("gpio button not supported on this platform")

// GPIOButton is a stub for non-linux platforms.
type GPIOButton struct{}

// NewGPIOButton returns an error on non-linux platforms.
func NewGPIOButton(cfg Config) (*GPIOButton, error) {
	return nil, ErrNotSupported
}

func (b *GPIOButton) ReadKey(ctx context.Context) (KeyEvent, error) { return KeyEvent{}, ErrClosed }
func (b *GPIOButton) Close() error                                  { return nil }
