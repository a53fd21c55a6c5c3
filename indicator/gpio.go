package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/hjkoskel/govattu"
)

// Flash patterns.
const (
	flashPeriod    = 120 * time.Millisecond
	decodedFlashes = 2 // then green stays lit until idle
	failedFlashes  = 4 // then red stays lit until idle
)

// GPIO implements Indicator using discrete GPIO LED pins.
//
// Yellow is lit while the trigger is on. A decode flashes green and a
// failed scan flashes red; both latch after the flashes so the result is
// visible for the hold time. Connection loss blinks yellow and red until
// the next state change.
type GPIO struct {
	hw        govattu.Vattu
	greenPin  *uint8
	yellowPin *uint8
	redPin    *uint8
	period    time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(greenPin, yellowPin, redPin *uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return newGPIO(hw, greenPin, yellowPin, redPin), nil
}

func newGPIO(hw govattu.Vattu, greenPin, yellowPin, redPin *uint8) *GPIO {
	g := &GPIO{
		hw:        hw,
		greenPin:  greenPin,
		yellowPin: yellowPin,
		redPin:    redPin,
		period:    flashPeriod,
	}

	// Initialize all pins as outputs, start off
	for _, pin := range g.pins() {
		hw.PinMode(pin, govattu.ALToutput)
		hw.PinClear(pin)
	}
	return g
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() {
	g.steady()
}

// Scanning implements Indicator.Scanning.
func (g *GPIO) Scanning() {
	g.steady(g.yellowPin)
}

// Decoded implements Indicator.Decoded.
func (g *GPIO) Decoded(text string) {
	g.flash(decodedFlashes, g.greenPin, g.greenPin)
}

// Failed implements Indicator.Failed.
func (g *GPIO) Failed(reason string) {
	g.flash(failedFlashes, g.redPin, g.redPin)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (g *GPIO) ConnectionLost() {
	g.flash(0, nil, g.yellowPin, g.redPin)
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() {
	g.steady()
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.steady()
	return g.hw.Close()
}

// steady stops any flashing and lights exactly the given pins.
func (g *GPIO) steady(pins ...*uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopFlash()
	g.allOff()
	for _, pin := range pins {
		if pin != nil {
			g.hw.PinSet(*pin)
		}
	}
}

// flash toggles pins count times (forever if count is 0) and then lights
// latch, if set. A later state change interrupts it.
func (g *GPIO) flash(count int, latch *uint8, pins ...*uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopFlash()
	g.allOff()

	var lit []uint8
	for _, pin := range pins {
		if pin != nil {
			lit = append(lit, *pin)
		}
	}
	if len(lit) == 0 {
		return
	}

	stop := make(chan struct{})
	g.stop = stop
	g.wg.Add(1)
	go g.runFlash(stop, count, latch, lit)
}

func (g *GPIO) runFlash(stop <-chan struct{}, count int, latch *uint8, pins []uint8) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.period)
	defer ticker.Stop()

	on := false
	for n := 0; count == 0 || n < 2*count; n++ {
		on = !on
		for _, pin := range pins {
			if on {
				g.hw.PinSet(pin)
			} else {
				g.hw.PinClear(pin)
			}
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
	if latch != nil {
		g.hw.PinSet(*latch)
	}
}

// stopFlash ends a running flash and waits for it. Caller must hold g.mu.
func (g *GPIO) stopFlash() {
	if g.stop == nil {
		return
	}
	close(g.stop)
	g.stop = nil
	g.wg.Wait()
}

func (g *GPIO) pins() []uint8 {
	var pins []uint8
	for _, pin := range []*uint8{g.greenPin, g.yellowPin, g.redPin} {
		if pin != nil {
			pins = append(pins, *pin)
		}
	}
	return pins
}

func (g *GPIO) allOff() {
	for _, pin := range g.pins() {
		g.hw.PinClear(pin)
	}
}
