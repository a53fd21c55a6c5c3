// Package scanner adapts a scan engine to the bridge: it owns the engine
// handle, serializes every call into it, runs trigger-then-poll scan
// sessions and delivers decoded text to the host through a Notifier.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"scanbridge/engine"
)

// MethodBarcodeScanned is the host method invoked with the decoded text.
const MethodBarcodeScanned = "onBarcodeScanned"

// DefaultPollDelay is how long after the trigger the result is polled.
const DefaultPollDelay = 500 * time.Millisecond

// Notifier delivers a named method call to host application code.
type Notifier interface {
	InvokeMethod(method string, arguments any) error
}

// Notifiers fans a method call out to several notifiers. The call reaches
// every notifier; the returned error joins the individual failures.
type Notifiers []Notifier

// InvokeMethod implements Notifier.
func (ns Notifiers) InvokeMethod(method string, arguments any) error {
	var errs []error
	for _, n := range ns {
		if err := n.InvokeMethod(method, arguments); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OverlapPolicy decides what a trigger does while an earlier scan is still
// waiting for its poll.
type OverlapPolicy int

const (
	// OverlapSupersede cancels the pending poll in favor of the new scan.
	OverlapSupersede OverlapPolicy = iota
	// OverlapIgnore rejects the new trigger with ErrScanPending.
	OverlapIgnore
	// OverlapConcurrent lets both polls run against the engine.
	OverlapConcurrent
)

// ParseOverlap parses an overlap policy name. Empty means supersede.
func ParseOverlap(s string) (OverlapPolicy, error) {
	switch strings.ToLower(s) {
	case "", "supersede":
		return OverlapSupersede, nil
	case "ignore":
		return OverlapIgnore, nil
	case "concurrent":
		return OverlapConcurrent, nil
	default:
		return 0, fmt.Errorf("unknown overlap policy %q", s)
	}
}

func (p OverlapPolicy) String() string {
	switch p {
	case OverlapSupersede:
		return "supersede"
	case OverlapIgnore:
		return "ignore"
	case OverlapConcurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("overlap(%d)", int(p))
	}
}

// Config holds scan session settings.
type Config struct {
	PollDelayMs int    `yaml:"poll_delay_ms"` // 0 = 500ms
	Overlap     string `yaml:"overlap"`       // "supersede", "ignore", "concurrent"
}

// Handlers holds callback functions for scan events.
type Handlers struct {
	OnStart  func(s *Session)     // trigger turned on, poll scheduled
	OnResult func(res ScanResult) // session finished, any outcome
}

// Manager is the engine adapter. All engine calls go through it and are
// serialized; engine errors and panics come back as errors.
//
// Logger and Clock may be replaced before Initialize is called.
type Manager struct {
	Logger *log.Logger
	Clock  Clock

	eng       engine.Engine
	notifier  Notifier
	handlers  Handlers
	pollDelay time.Duration
	overlap   OverlapPolicy

	initOnce sync.Once
	initDone chan struct{}
	initErr  error
	ready    atomic.Bool

	engMu   sync.Mutex // serializes engine calls
	startMu sync.Mutex // serializes StartScanAndReturn

	sessMu   sync.Mutex
	inflight []*Session
}

// New creates a Manager for eng. notifier may be nil when nothing should
// be told about decoded results.
func New(eng engine.Engine, notifier Notifier, cfg Config, handlers Handlers) (*Manager, error) {
	if eng == nil {
		return nil, errors.New("scan engine is required")
	}
	overlap, err := ParseOverlap(cfg.Overlap)
	if err != nil {
		return nil, err
	}
	delay := DefaultPollDelay
	if cfg.PollDelayMs > 0 {
		delay = time.Duration(cfg.PollDelayMs) * time.Millisecond
	}

	return &Manager{
		Logger:    log.New(os.Stderr, "[scanner] ", log.LstdFlags),
		Clock:     RealClock{},
		eng:       eng,
		notifier:  notifier,
		handlers:  handlers,
		pollDelay: delay,
		overlap:   overlap,
		initDone:  make(chan struct{}),
	}, nil
}

// Initialize opens the engine on its own goroutine and returns at once.
// Only the first call has an effect.
func (m *Manager) Initialize() {
	m.initOnce.Do(func() {
		go func() {
			defer close(m.initDone)

			if err := m.call("Open", m.eng.Open); err != nil {
				m.initErr = err
				m.Logger.Printf("Error initializing scan engine: %v", err)
				return
			}
			m.ready.Store(true)
			m.Logger.Println("Scan engine initialized")
		}()
	})
}

// Ready reports whether the engine was initialized successfully.
func (m *Manager) Ready() bool {
	return m.ready.Load()
}

// WaitReady blocks until initialization finished or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.initDone:
		if m.initErr != nil {
			return fmt.Errorf("%w: %v", ErrNotReady, m.initErr)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitErr returns the initialization failure, if initialization finished
// with one.
func (m *Manager) InitErr() error {
	select {
	case <-m.initDone:
		return m.initErr
	default:
		return nil
	}
}

// SetTriggerMode sets the engine trigger mode (0 hardware, 1 continuous,
// 2 software).
func (m *Manager) SetTriggerMode(mode int) error {
	if mode < engine.TriggerModeHardware || mode > engine.TriggerModeSoftware {
		return fmt.Errorf("%w: %d", ErrInvalidTriggerMode, mode)
	}
	if err := m.checkReady("SetTriggerMode"); err != nil {
		return err
	}
	return m.call("SetTriggerMode", func() error {
		return m.eng.SetTriggerMode(mode)
	})
}

// SetBeepEnabled turns the beep after a successful read on or off.
func (m *Manager) SetBeepEnabled(enabled bool) error {
	if err := m.checkReady("SetBeepEnable"); err != nil {
		return err
	}
	return m.call("SetBeepEnable", func() error {
		return m.eng.SetBeepEnable(boolInt(enabled))
	})
}

// StartScanAndReturn turns the trigger on with symbology-ID reporting and
// schedules a single poll after the poll delay. It does not wait for the
// result; the returned Session finishes when the poll has run.
func (m *Manager) StartScanAndReturn() (*Session, error) {
	if err := m.checkReady("StartScan"); err != nil {
		return nil, err
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	if prev := m.latest(); prev != nil {
		switch m.overlap {
		case OverlapIgnore:
			m.Logger.Printf("Scan %s still pending, ignoring trigger", prev.ID)
			return nil, ErrScanPending
		case OverlapSupersede:
			m.Logger.Printf("Scan %s still pending, superseding it", prev.ID)
			m.cancelInflight(OutcomeSuperseded)
		case OverlapConcurrent:
			m.Logger.Printf("Scan %s still pending, polls will overlap", prev.ID)
		}
	}

	if err := m.call("SetTriggerOn", func() error { return m.eng.SetTriggerOn(1) }); err != nil {
		m.Logger.Printf("Error starting scan: %v", err)
		return nil, err
	}
	if err := m.call("SetResultSymIDEnable", func() error { return m.eng.SetResultSymIDEnable(1) }); err != nil {
		m.Logger.Printf("Error starting scan: %v", err)
		m.stopTrigger()
		return nil, err
	}

	s := newSession(uuid.NewString(), m.Clock.Now())
	m.sessMu.Lock()
	m.inflight = append(m.inflight, s)
	m.sessMu.Unlock()
	s.setTimer(m.Clock.AfterFunc(m.pollDelay, func() { m.poll(s) }))

	if m.handlers.OnStart != nil {
		m.handlers.OnStart(s)
	}
	return s, nil
}

// poll reads the result of session s and classifies it.
func (m *Manager) poll(s *Session) {
	if !s.beginPoll() {
		return
	}

	res := ScanResult{SessionID: s.ID}
	var dr engine.DecodeResult
	err := m.call("GetResult", func() error { return m.eng.GetResult(&dr) })
	text := dr.String()

	switch {
	case err != nil:
		res.Outcome = OutcomeEngineError
		res.EngineErr = err
		m.Logger.Printf("Scan %s: error reading result, stopping trigger: %v", s.ID, err)
		m.stopTrigger()
	case strings.EqualFold(text, engine.ReadFail):
		res.Outcome = OutcomeReadFail
		m.Logger.Printf("Scan %s: read failed, stopping trigger", s.ID)
		m.stopTrigger()
	case dr.DecodeLength <= 0:
		res.Outcome = OutcomeNoData
		m.Logger.Printf("Scan %s: read failed or no data, stopping trigger", s.ID)
		m.stopTrigger()
	default:
		res.Outcome = OutcomeDecoded
		res.Text = text
		res.SymName = dr.SymName
		res.SymID = dr.SymID
		res.DecodeTime = dr.DecodeTime
		m.Logger.Printf("Scan %s: code read: %s", s.ID, text)
		m.logSymID(dr.SymType)

		if m.notifier != nil {
			if nerr := m.notifier.InvokeMethod(MethodBarcodeScanned, text); nerr != nil {
				res.NotifyErr = nerr
				m.Logger.Printf("Scan %s: notify host: %v", s.ID, nerr)
			}
		}
	}

	res.Finished = m.Clock.Now()
	s.complete(res)
	m.removeInflight(s)

	if m.handlers.OnResult != nil {
		m.handlers.OnResult(res)
	}
}

// logSymID logs the symbology-ID settings for diagnostics. Failures are
// logged and otherwise ignored.
func (m *Manager) logSymID(symType int) {
	var enabled, symID int
	if err := m.call("GetResultSymIDEnable", func() (err error) {
		enabled, err = m.eng.GetResultSymIDEnable()
		return err
	}); err == nil {
		m.Logger.Printf("Symbology ID enable: %d", enabled)
	}

	if symType == engine.SymUnknown {
		symType = engine.SymEAN13
	}
	if err := m.call("SymGetSymID", func() (err error) {
		symID, err = m.eng.SymGetSymID(symType)
		return err
	}); err == nil {
		m.Logger.Printf("SymID: %c", rune(symID))
	}
}

// StopScan turns the trigger off and cancels any scan waiting for its poll.
func (m *Manager) StopScan() error {
	if err := m.checkReady("StopScan"); err != nil {
		return err
	}
	m.cancelInflight(OutcomeCancelled)
	return m.call("SetTriggerOn", func() error { return m.eng.SetTriggerOn(0) })
}

// GetResult reads the engine result buffer once. The result is returned
// even when nothing was decoded; its String() is then empty.
func (m *Manager) GetResult() (engine.DecodeResult, error) {
	if err := m.checkReady("GetResult"); err != nil {
		return engine.DecodeResult{}, err
	}

	var dr engine.DecodeResult
	if err := m.call("GetResult", func() error { return m.eng.GetResult(&dr) }); err != nil {
		return engine.DecodeResult{}, err
	}

	if dr.DecodeLength > 0 {
		m.Logger.Printf("Code read: %s", dr.String())
		m.Logger.Printf("Symbology: %s", dr.SymName)
		m.Logger.Printf("SymID: %c", rune(dr.SymID))
		m.Logger.Printf("SymType: %d", dr.SymType)
		m.Logger.Printf("Letter: %c", rune(dr.Letter))
		m.Logger.Printf("Modifier: %d", dr.Modifier)
		m.Logger.Printf("Decode time: %d ms", dr.DecodeTime.Milliseconds())
	} else {
		m.Logger.Println("Read without data")
	}
	return dr, nil
}

// SetTriggerEnabled enables or disables the engine trigger.
func (m *Manager) SetTriggerEnabled(enabled bool) error {
	if err := m.checkReady("SetTriggerEnable"); err != nil {
		return err
	}
	if err := m.call("SetTriggerEnable", func() error {
		return m.eng.SetTriggerEnable(boolInt(enabled))
	}); err != nil {
		return err
	}
	m.Logger.Printf("Trigger set to: %s", onOff(enabled))
	return nil
}

// IsTriggerEnabled reports whether the engine trigger is enabled. It
// returns false together with the error when the engine cannot be asked.
func (m *Manager) IsTriggerEnabled() (bool, error) {
	if err := m.checkReady("GetTriggerEnable"); err != nil {
		return false, err
	}
	var status int
	if err := m.call("GetTriggerEnable", func() (err error) {
		status, err = m.eng.GetTriggerEnable()
		return err
	}); err != nil {
		return false, err
	}
	m.Logger.Printf("Trigger status: %d", status)
	return status == 1, nil
}

// Pending returns the most recent scan still waiting for its result, or nil.
func (m *Manager) Pending() *Session {
	return m.latest()
}

// PollDelay returns the delay between trigger and poll.
func (m *Manager) PollDelay() time.Duration {
	return m.pollDelay
}

// Close cancels pending scans and closes the engine.
func (m *Manager) Close() error {
	m.cancelInflight(OutcomeCancelled)
	if !m.ready.Swap(false) {
		return nil
	}
	return m.call("Close", m.eng.Close)
}

func (m *Manager) checkReady(op string) error {
	if m.ready.Load() {
		return nil
	}
	m.Logger.Printf("%s: %v", op, ErrNotReady)
	return ErrNotReady
}

// call runs fn with exclusive access to the engine, converting failures
// and panics into *EngineError.
func (m *Manager) call(op string, fn func() error) (err error) {
	m.engMu.Lock()
	defer m.engMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = &EngineError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			m.Logger.Printf("Engine %s failed: %v", op, err)
		}
	}()

	if ferr := fn(); ferr != nil {
		return &EngineError{Op: op, Err: ferr}
	}
	return nil
}

func (m *Manager) stopTrigger() {
	_ = m.call("SetTriggerOn", func() error { return m.eng.SetTriggerOn(0) })
}

func (m *Manager) latest() *Session {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	if len(m.inflight) == 0 {
		return nil
	}
	return m.inflight[len(m.inflight)-1]
}

func (m *Manager) removeInflight(s *Session) {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	for i, other := range m.inflight {
		if other == s {
			m.inflight = append(m.inflight[:i], m.inflight[i+1:]...)
			return
		}
	}
}

// cancelInflight stops every session whose poll has not started.
func (m *Manager) cancelInflight(outcome Outcome) {
	m.sessMu.Lock()
	sessions := m.inflight
	m.inflight = nil
	m.sessMu.Unlock()

	now := m.Clock.Now()
	for _, s := range sessions {
		res, ok := s.cancel(outcome, now)
		if !ok {
			continue
		}
		m.Logger.Printf("Scan %s %s", s.ID, outcome)
		if m.handlers.OnResult != nil {
			m.handlers.OnResult(res)
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
