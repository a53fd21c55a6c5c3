package engine

import (
	"fmt"
	"sync"
	"time"
)

// Mock is an in-memory Engine used for tests and simulation.
//
// Each SetTriggerOn(1) takes the next queued result; GetResult returns it
// once. An empty queue means the trigger produces no data.
//
// Example:
//
//	m := NewMock()
//	m.Queue("012345678905", ReadFail)
//	m.Errors["SetBeepEnable"] = errors.New("boom")
type Mock struct {
	// OpenErr, if set, will be returned by Open().
	OpenErr error

	// OpenDelay simulates a slow decoder start.
	OpenDelay time.Duration

	// Errors maps method names to errors returned by that method.
	Errors map[string]error

	// Panics lists method names that panic when called.
	Panics map[string]bool

	// ResultFunc, if set, replaces the queued results in GetResult().
	ResultFunc func(res *DecodeResult) error

	// Repeat requeues each result after it is taken.
	Repeat bool

	IsOpen        bool
	TriggerMode   int
	Beep          int
	TriggerOn     int
	TriggerEnable int
	SymIDEnable   int

	// CallLog tracks all method calls for verification in tests.
	CallLog []string

	queue   []string
	current *string
	mu      sync.Mutex
}

// NewMock creates a Mock with the trigger enabled.
func NewMock() *Mock {
	return &Mock{
		Errors:        make(map[string]error),
		Panics:        make(map[string]bool),
		TriggerEnable: 1,
	}
}

// Queue appends results handed out by later triggers.
func (m *Mock) Queue(results ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, results...)
}

// Calls returns how many times call (e.g. "SetTriggerOn(0)") was logged.
func (m *Mock) Calls(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.CallLog {
		if c == call {
			n++
		}
	}
	return n
}

// enter logs the call and applies configured panics and errors.
// Caller must hold m.mu.
func (m *Mock) enter(method string, args ...any) error {
	call := method
	if len(args) > 0 {
		call = fmt.Sprintf("%s(%v)", method, args[0])
	}
	m.CallLog = append(m.CallLog, call)

	if m.Panics[method] {
		panic(fmt.Sprintf("mock engine: %s panicked", method))
	}
	return m.Errors[method]
}

// Open implements Engine.Open.
func (m *Mock) Open() error {
	if m.OpenDelay > 0 {
		time.Sleep(m.OpenDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("Open"); err != nil {
		return err
	}
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.IsOpen = true
	return nil
}

// SetTriggerMode implements Engine.SetTriggerMode.
func (m *Mock) SetTriggerMode(mode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("SetTriggerMode", mode); err != nil {
		return err
	}
	m.TriggerMode = mode
	return nil
}

// SetBeepEnable implements Engine.SetBeepEnable.
func (m *Mock) SetBeepEnable(enable int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("SetBeepEnable", enable); err != nil {
		return err
	}
	m.Beep = enable
	return nil
}

// SetTriggerOn implements Engine.SetTriggerOn.
func (m *Mock) SetTriggerOn(on int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("SetTriggerOn", on); err != nil {
		return err
	}
	if on != 0 && m.TriggerEnable == 0 {
		return ErrTriggerDisabled
	}
	m.TriggerOn = on
	if on != 0 {
		m.current = nil
		if len(m.queue) > 0 {
			next := m.queue[0]
			m.queue = m.queue[1:]
			if m.Repeat {
				m.queue = append(m.queue, next)
			}
			m.current = &next
		}
	}
	return nil
}

// SetResultSymIDEnable implements Engine.SetResultSymIDEnable.
func (m *Mock) SetResultSymIDEnable(enable int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("SetResultSymIDEnable", enable); err != nil {
		return err
	}
	m.SymIDEnable = enable
	return nil
}

// GetResultSymIDEnable implements Engine.GetResultSymIDEnable.
func (m *Mock) GetResultSymIDEnable() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("GetResultSymIDEnable"); err != nil {
		return 0, err
	}
	return m.SymIDEnable, nil
}

// SymGetSymID implements Engine.SymGetSymID.
func (m *Mock) SymGetSymID(symType int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("SymGetSymID", symType); err != nil {
		return 0, err
	}
	sym, ok := LookupType(symType)
	if !ok {
		return 0, fmt.Errorf("unknown symbology type %d", symType)
	}
	return int(sym.SymID), nil
}

// GetResult implements Engine.GetResult.
func (m *Mock) GetResult(res *DecodeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("GetResult"); err != nil {
		return err
	}
	res.Reset()
	if m.ResultFunc != nil {
		return m.ResultFunc(res)
	}
	if m.current == nil {
		return nil
	}
	*res = parseLine([]byte(*m.current), m.SymIDEnable != 0)
	res.DecodeTime = 42 * time.Millisecond
	m.current = nil
	return nil
}

// SetTriggerEnable implements Engine.SetTriggerEnable.
func (m *Mock) SetTriggerEnable(enable int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("SetTriggerEnable", enable); err != nil {
		return err
	}
	m.TriggerEnable = enable
	return nil
}

// GetTriggerEnable implements Engine.GetTriggerEnable.
func (m *Mock) GetTriggerEnable() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("GetTriggerEnable"); err != nil {
		return 0, err
	}
	return m.TriggerEnable, nil
}

// Close implements Engine.Close.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("Close"); err != nil {
		return err
	}
	m.IsOpen = false
	return nil
}
