package engine

import (
	"fmt"
	"time"

	"scanbridge/trigger"
)

// Trigger modes understood by scan engines.
const (
	TriggerModeHardware   = 0 // trigger follows the physical button
	TriggerModeContinuous = 1 // engine decodes continuously
	TriggerModeSoftware   = 2 // trigger driven by SetTriggerOn
)

// ReadFail is the text an engine reports in place of data when a decode failed.
const ReadFail = "READ_FAIL"

// Engine is the capability offered by a scan engine. Integer arguments and
// results follow the vendor convention of 0 = off, 1 = on.
//
// Implementations are not required to be safe for concurrent use; callers
// serialize access.
type Engine interface {
	// Open acquires and initializes the decoder. It may block.
	Open() error

	SetTriggerMode(mode int) error
	SetBeepEnable(enable int) error
	SetTriggerOn(on int) error
	SetResultSymIDEnable(enable int) error
	GetResultSymIDEnable() (int, error)

	// SymGetSymID returns the symbology ID character configured for the
	// symbology with the given type number.
	SymGetSymID(symType int) (int, error)

	// GetResult fills res with the last decode. res.DecodeLength is 0 when
	// nothing has been decoded since the trigger was turned on.
	GetResult(res *DecodeResult) error

	SetTriggerEnable(enable int) error
	GetTriggerEnable() (int, error)

	// Close releases any resources held by the engine.
	Close() error
}

// DecodeResult holds a single decode as reported by the engine.
type DecodeResult struct {
	Data         []byte
	DecodeLength int
	SymID        byte
	SymType      int
	SymName      string
	Letter       byte
	Modifier     byte
	DecodeTime   time.Duration
}

// String returns the decoded data as text. It is empty when nothing was decoded.
func (r *DecodeResult) String() string {
	if r == nil || r.DecodeLength <= 0 {
		return ""
	}
	n := r.DecodeLength
	if n > len(r.Data) {
		n = len(r.Data)
	}
	return string(r.Data[:n])
}

// Reset clears the result so it can be refilled.
func (r *DecodeResult) Reset() {
	*r = DecodeResult{}
}

// Config holds configuration for engine implementations.
type Config struct {
	Type    string         `yaml:"type"`   // "serial", "keyboard", "mock"
	Device  string         `yaml:"device"` // e.g. "/dev/ttyUSB0", "/dev/input/event3"
	Baud    int            `yaml:"baud"`   // serial baud rate
	Trigger trigger.Config `yaml:"trigger"`

	// Results is replayed in order by the mock engine, one per trigger.
	Results []string `yaml:"results"`
}

// New creates an Engine based on the provided configuration.
// The engine is not opened.
func New(cfg Config) (Engine, error) {
	switch cfg.Type {
	case "serial", "":
		line, err := trigger.New(cfg.Trigger)
		if err != nil {
			return nil, fmt.Errorf("init trigger line: %w", err)
		}
		return NewSerial(cfg.Device, cfg.Baud, line), nil
	case "keyboard":
		return NewKeyboard(cfg.Device), nil
	case "mock":
		m := NewMock()
		m.Repeat = true
		m.Queue(cfg.Results...)
		return m, nil
	default:
		return nil, fmt.Errorf("unknown engine type %q", cfg.Type)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
