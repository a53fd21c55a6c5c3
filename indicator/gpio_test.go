package indicator

import (
	"sync"
	"testing"
	"time"

	"github.com/hjkoskel/govattu"
)

// pinBoard records pin writes on top of govattu's do-nothing board.
type pinBoard struct {
	*govattu.DoNothingPi

	mu     sync.Mutex
	level  map[uint8]bool
	sets   map[uint8]int
	closed bool
}

func newPinBoard() *pinBoard {
	return &pinBoard{
		DoNothingPi: &govattu.DoNothingPi{},
		level:       make(map[uint8]bool),
		sets:        make(map[uint8]int),
	}
}

func (b *pinBoard) PinSet(pin uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level[pin] = true
	b.sets[pin]++
}

func (b *pinBoard) PinClear(pin uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level[pin] = false
}

func (b *pinBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *pinBoard) lit(pin uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level[pin]
}

func (b *pinBoard) setCount(pin uint8) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets[pin]
}

const (
	greenPin  uint8 = 23
	yellowPin uint8 = 24
	redPin    uint8 = 25
)

func newTestGPIO() (*GPIO, *pinBoard) {
	board := newPinBoard()
	green, yellow, red := greenPin, yellowPin, redPin
	g := newGPIO(board, &green, &yellow, &red)
	g.period = time.Millisecond
	return g, board
}

// waitFlash waits for a finite flash pattern to finish.
func waitFlash(g *GPIO) {
	g.wg.Wait()
}

func TestGPIO_States(t *testing.T) {
	tests := []struct {
		name      string
		apply     func(g *GPIO)
		wantLit   []uint8
		wantDark  []uint8
		wantFlash map[uint8]int
	}{
		{"idle", (*GPIO).Idle, nil, []uint8{greenPin, yellowPin, redPin}, nil},
		{"scanning", (*GPIO).Scanning, []uint8{yellowPin}, []uint8{greenPin, redPin}, nil},
		{"decoded", func(g *GPIO) { g.Decoded("012345678905") },
			[]uint8{greenPin}, []uint8{yellowPin, redPin}, map[uint8]int{greenPin: decodedFlashes + 1}},
		{"failed", func(g *GPIO) { g.Failed("read_fail") },
			[]uint8{redPin}, []uint8{greenPin, yellowPin}, map[uint8]int{redPin: failedFlashes + 1}},
		{"shutdown", (*GPIO).Shutdown, nil, []uint8{greenPin, yellowPin, redPin}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, board := newTestGPIO()
			g.Scanning()

			tt.apply(g)
			waitFlash(g)

			for _, pin := range tt.wantLit {
				if !board.lit(pin) {
					t.Errorf("pin %d dark, want lit", pin)
				}
			}
			for _, pin := range tt.wantDark {
				if board.lit(pin) {
					t.Errorf("pin %d lit, want dark", pin)
				}
			}
			for pin, n := range tt.wantFlash {
				if got := board.setCount(pin); got != n {
					t.Errorf("pin %d set %d times, want %d", pin, got, n)
				}
			}
		})
	}
}

func TestGPIO_ConnectionLostBlinksUntilChange(t *testing.T) {
	g, board := newTestGPIO()

	g.ConnectionLost()
	deadline := time.Now().Add(2 * time.Second)
	for board.setCount(redPin) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("connection lost pattern did not blink")
		}
		time.Sleep(time.Millisecond)
	}
	if board.setCount(yellowPin) < 3 {
		t.Errorf("yellow set %d times, want it to blink with red", board.setCount(yellowPin))
	}

	g.Idle()
	before := board.setCount(redPin)
	time.Sleep(20 * time.Millisecond)
	if board.setCount(redPin) != before {
		t.Error("blinking continued after idle")
	}
	if board.lit(redPin) || board.lit(yellowPin) {
		t.Error("pins left lit after idle")
	}
}

func TestGPIO_ScanInterruptsFlash(t *testing.T) {
	g, board := newTestGPIO()
	g.period = time.Hour

	g.Failed("no_data")
	g.Scanning()

	if board.lit(redPin) {
		t.Error("red still lit after a new scan started")
	}
	if !board.lit(yellowPin) {
		t.Error("yellow not lit while scanning")
	}
}

func TestGPIO_MissingPins(t *testing.T) {
	board := newPinBoard()
	yellow := yellowPin
	g := newGPIO(board, nil, &yellow, nil)
	g.period = time.Millisecond

	g.Decoded("x")
	g.Failed("read_fail")
	g.ConnectionLost()
	g.Scanning()
	if !board.lit(yellowPin) {
		t.Error("yellow not lit while scanning")
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !board.closed || board.lit(yellowPin) {
		t.Error("Release did not clear pins and close the board")
	}
}
