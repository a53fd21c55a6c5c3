package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kenshaw/evdev"
)

// Keyboard implements Engine for keyboard-wedge scanners that type the
// decoded text followed by Enter. The scanner decodes on its own button;
// the trigger calls only open and close the window in which typed text is
// accepted as a result.
type Keyboard struct {
	path   string
	device *evdev.Evdev
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	latest        *DecodeResult
	triggeredAt   time.Time
	triggerOn     bool
	triggerEnable bool
	symIDEnable   int
}

// NewKeyboard creates a keyboard-wedge engine on the given input device.
func NewKeyboard(path string) *Keyboard {
	return &Keyboard{
		path:          path,
		triggerEnable: true,
	}
}

// Open implements Engine.Open.
func (k *Keyboard) Open() error {
	if k.device != nil {
		return nil
	}
	dev, err := evdev.OpenFile(k.path)
	if err != nil {
		return fmt.Errorf("open evdev %s: %w", k.path, err)
	}

	log.Printf("Opened keyboard scanner: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	ctx, cancel := context.WithCancel(context.Background())
	k.device = dev
	k.cancel = cancel
	k.wg.Add(1)
	go k.readLoop(ctx)
	return nil
}

func (k *Keyboard) readLoop(ctx context.Context) {
	defer k.wg.Done()

	ch := k.device.Poll(ctx)
	var strbuf string
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if event == nil {
				log.Printf("Keyboard scanner %s closed", k.path)
				return
			}

			switch event.Type.(type) {
			case evdev.KeyType:
				if event.Value != 1 {
					continue
				}
				if event.Type == evdev.KeyEnter {
					if strbuf != "" {
						k.store(strbuf)
					}
					strbuf = ""
					continue
				}
				s := evdev.KeyType(event.Code).String()
				if len(s) == 1 {
					strbuf += s
				}
			}
		}
	}
}

func (k *Keyboard) store(text string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.triggerOn {
		log.Printf("Keyboard scanner: dropping %q typed outside a scan", text)
		return
	}
	res := parseLine([]byte(text), k.symIDEnable != 0)
	res.DecodeTime = time.Since(k.triggeredAt)
	k.latest = &res
}

// SetTriggerMode implements Engine.SetTriggerMode. Wedge scanners are
// configured by programming barcodes, so the mode is accepted and ignored.
func (k *Keyboard) SetTriggerMode(mode int) error {
	return nil
}

// SetBeepEnable implements Engine.SetBeepEnable.
func (k *Keyboard) SetBeepEnable(enable int) error {
	return nil
}

// SetTriggerOn implements Engine.SetTriggerOn.
func (k *Keyboard) SetTriggerOn(on int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if on != 0 && !k.triggerEnable {
		return ErrTriggerDisabled
	}
	k.triggerOn = on != 0
	if k.triggerOn {
		k.triggeredAt = time.Now()
		k.latest = nil
	}
	return nil
}

// SetResultSymIDEnable implements Engine.SetResultSymIDEnable.
func (k *Keyboard) SetResultSymIDEnable(enable int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.symIDEnable = enable
	return nil
}

// GetResultSymIDEnable implements Engine.GetResultSymIDEnable.
func (k *Keyboard) GetResultSymIDEnable() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.symIDEnable, nil
}

// SymGetSymID implements Engine.SymGetSymID.
func (k *Keyboard) SymGetSymID(symType int) (int, error) {
	sym, ok := LookupType(symType)
	if !ok {
		return 0, fmt.Errorf("unknown symbology type %d", symType)
	}
	return int(sym.SymID), nil
}

// GetResult implements Engine.GetResult.
func (k *Keyboard) GetResult(res *DecodeResult) error {
	if k.device == nil {
		return errors.New("keyboard scanner not open")
	}
	res.Reset()

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.latest != nil {
		*res = *k.latest
		k.latest = nil
	}
	return nil
}

// SetTriggerEnable implements Engine.SetTriggerEnable.
func (k *Keyboard) SetTriggerEnable(enable int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.triggerEnable = enable != 0
	return nil
}

// GetTriggerEnable implements Engine.GetTriggerEnable.
func (k *Keyboard) GetTriggerEnable() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return boolInt(k.triggerEnable), nil
}

// Close implements Engine.Close.
func (k *Keyboard) Close() error {
	if k.device == nil {
		return nil
	}
	k.cancel()
	err := k.device.Close()
	k.wg.Wait()
	k.device = nil
	return err
}
