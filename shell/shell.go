// Package shell is the host-side glue between key events and the scanner.
// It configures the engine once it is ready and turns the scan key into a
// scan action.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"scanbridge/engine"
	"scanbridge/scanner"
)

// ScanButtonKeyCode is the key code of the dedicated scan button.
const ScanButtonKeyCode = 1011

// Scanner is the part of the engine adapter the shell drives.
type Scanner interface {
	Initialize()
	WaitReady(ctx context.Context) error
	SetTriggerMode(mode int) error
	SetBeepEnabled(enabled bool) error
	StartScanAndReturn() (*scanner.Session, error)
}

// Config holds shell settings.
type Config struct {
	ScanKeyCode int `yaml:"scan_key_code"` // 0 = 1011
}

// KeyHandler handles keys that are not the scan key. It returns whether
// the key was consumed.
type KeyHandler func(code int) bool

// Shell maps key events to scanner actions.
type Shell struct {
	Logger *log.Logger

	scanner  Scanner
	scanKey  int
	fallback KeyHandler
}

// New creates a Shell. fallback may be nil, in which case keys other than
// the scan key are reported as not handled.
func New(s Scanner, cfg Config, fallback KeyHandler) *Shell {
	key := cfg.ScanKeyCode
	if key == 0 {
		key = ScanButtonKeyCode
	}
	return &Shell{
		Logger:   log.New(os.Stderr, "[shell] ", log.LstdFlags),
		scanner:  s,
		scanKey:  key,
		fallback: fallback,
	}
}

// ScanKey returns the key code that starts a scan.
func (sh *Shell) ScanKey() int {
	return sh.scanKey
}

// OnEngineReady starts engine initialization and, once the engine is
// ready, switches it to hardware trigger mode with the beep on. Both
// settings are always attempted; their failures are logged and returned
// together. It blocks until that is done; run it on its own goroutine.
func (sh *Shell) OnEngineReady(ctx context.Context) error {
	sh.scanner.Initialize()
	if err := sh.scanner.WaitReady(ctx); err != nil {
		sh.Logger.Printf("Scan engine unavailable: %v", err)
		return fmt.Errorf("wait for engine: %w", err)
	}

	var errs []error
	if err := sh.scanner.SetTriggerMode(engine.TriggerModeHardware); err != nil {
		sh.Logger.Printf("Set trigger mode: %v", err)
		errs = append(errs, fmt.Errorf("set trigger mode: %w", err))
	}
	if err := sh.scanner.SetBeepEnabled(true); err != nil {
		sh.Logger.Printf("Enable beep: %v", err)
		errs = append(errs, fmt.Errorf("enable beep: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	sh.Logger.Println("Scan engine configured")
	return nil
}

// OnKeyDown starts one scan for the scan key and reports it handled.
// Other keys go to the fallback handler.
func (sh *Shell) OnKeyDown(code int) bool {
	if code != sh.scanKey {
		if sh.fallback == nil {
			return false
		}
		return sh.fallback(code)
	}

	sh.Logger.Println("Scan key pressed")
	if _, err := sh.scanner.StartScanAndReturn(); err != nil {
		sh.Logger.Printf("Start scan: %v", err)
	}
	return true
}
