package indicator

import (
	"fmt"
	"os"
	"sync"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoConnectionLost = "@2 !150000 001010"
	neoNormalIdle     = "@3 !150000 400000"
	neoScanning       = "@1 !20000 404000"
	neoDecoded        = "@1 !50000 8000"
	neoFailed         = "@2 !10000 ff"
	neoTerminated     = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
type Neopixel struct {
	mu         sync.Mutex
	pipe       *os.File
	idleString string
}

// NewNeopixel creates a new Neopixel indicator.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}

	n := &Neopixel{
		pipe:       f,
		idleString: neoNormalIdle,
	}
	return n, nil
}

// Idle implements Indicator.Idle. It also marks the connection as up.
func (n *Neopixel) Idle() {
	n.mu.Lock()
	n.idleString = neoNormalIdle
	n.mu.Unlock()
	n.write(neoNormalIdle)
}

// Scanning implements Indicator.Scanning.
func (n *Neopixel) Scanning() {
	n.write(neoScanning)
}

// Decoded implements Indicator.Decoded.
func (n *Neopixel) Decoded(text string) {
	n.write(neoDecoded)
}

// Failed implements Indicator.Failed.
func (n *Neopixel) Failed(reason string) {
	n.write(neoFailed)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Neopixel) ConnectionLost() {
	n.mu.Lock()
	n.idleString = neoConnectionLost
	n.mu.Unlock()
	n.write(neoConnectionLost)
}

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() {
	n.write(neoTerminated)
}

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	return n.pipe.Close()
}

func (n *Neopixel) write(s string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pipe != nil {
		n.pipe.Write([]byte(s))
	}
}
