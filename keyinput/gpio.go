//go:build linux

package keyinput

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOButton implements Source for a push button wired to a GPIO line
// with a pull-up, pressed = low.
type GPIOButton struct {
	line   *gpiocdev.Line
	code   int
	name   string
	events chan KeyEvent

	closeOnce sync.Once
	done      chan struct{}
}

// NewGPIOButton requests the configured line and reports edges as key
// transitions with cfg.KeyCode.
func NewGPIOButton(cfg Config) (*GPIOButton, error) {
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	if cfg.KeyCode == 0 {
		cfg.KeyCode = DefaultButtonCode
	}
	debounce := 5 * time.Millisecond
	if cfg.DebounceMs > 0 {
		debounce = time.Duration(cfg.DebounceMs) * time.Millisecond
	}

	b := &GPIOButton{
		code:   cfg.KeyCode,
		name:   fmt.Sprintf("%s:%d", cfg.Chip, cfg.Pin),
		events: make(chan KeyEvent, 16),
		done:   make(chan struct{}),
	}

	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Pin,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(b.handleEvent))
	if err != nil {
		return nil, fmt.Errorf("request line %s: %w", b.name, err)
	}
	b.line = line

	log.Printf("Key button on %s (code %d)", b.name, b.code)
	return b, nil
}

func (b *GPIOButton) handleEvent(evt gpiocdev.LineEvent) {
	var down bool
	switch evt.Type {
	case gpiocdev.LineEventFallingEdge:
		down = true
	case gpiocdev.LineEventRisingEdge:
		down = false
	default:
		return
	}

	select {
	case b.events <- KeyEvent{Code: b.code, Down: down, Source: b.name}:
	default:
		log.Printf("Key button %s: event dropped", b.name)
	}
}

// ReadKey implements Source.ReadKey.
func (b *GPIOButton) ReadKey(ctx context.Context) (KeyEvent, error) {
	select {
	case <-ctx.Done():
		return KeyEvent{}, ctx.Err()
	case <-b.done:
		return KeyEvent{}, ErrClosed
	case ev := <-b.events:
		return ev, nil
	}
}

// Close implements Source.Close.
func (b *GPIOButton) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		if b.line != nil {
			err = b.line.Close()
		}
	})
	return err
}
