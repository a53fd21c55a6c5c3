package keyinput

import (
	"context"
	"fmt"
	"log"

	"github.com/kenshaw/evdev"
)

// Evdev implements Source for a Linux input device.
type Evdev struct {
	path   string
	device *evdev.Evdev
	cancel context.CancelFunc
	events <-chan *evdev.EventEnvelope
}

// NewEvdev opens the input device at path.
func NewEvdev(path string) (*Evdev, error) {
	dev, err := evdev.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", path, err)
	}

	log.Printf("Opened key device: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	ctx, cancel := context.WithCancel(context.Background())
	return &Evdev{
		path:   path,
		device: dev,
		cancel: cancel,
		events: dev.Poll(ctx),
	}, nil
}

// ReadKey implements Source.ReadKey. Auto-repeat events are skipped.
func (e *Evdev) ReadKey(ctx context.Context) (KeyEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return KeyEvent{}, ctx.Err()
		case event := <-e.events:
			if event == nil {
				return KeyEvent{}, ErrClosed
			}

			switch event.Type.(type) {
			case evdev.KeyType:
				if event.Value != 0 && event.Value != 1 {
					continue
				}
				return KeyEvent{
					Code:   int(event.Code),
					Down:   event.Value == 1,
					Source: e.path,
				}, nil
			}
		}
	}
}

// Close implements Source.Close.
func (e *Evdev) Close() error {
	if e.device == nil {
		return nil
	}
	e.cancel()
	return e.device.Close()
}
