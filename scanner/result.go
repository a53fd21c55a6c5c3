package scanner

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotReady is returned while the engine is not initialized, or
	// after initialization failed.
	ErrNotReady = errors.New("scan engine not ready")

	// ErrReadFail means the engine reported a failed read.
	ErrReadFail = errors.New("engine reported read failure")

	// ErrNoData means the poll found nothing decoded.
	ErrNoData = errors.New("no data decoded")

	// ErrScanPending is returned when a scan is already waiting for its
	// poll and the overlap policy rejects new triggers.
	ErrScanPending = errors.New("scan already pending")

	// ErrInvalidTriggerMode is returned for modes outside 0..2.
	ErrInvalidTriggerMode = errors.New("invalid trigger mode")

	// ErrCancelled means the session was stopped before its poll ran.
	ErrCancelled = errors.New("scan cancelled")

	// ErrSuperseded means a newer trigger replaced the session.
	ErrSuperseded = errors.New("scan superseded by a newer trigger")
)

// EngineError wraps a failure reported by the engine, including recovered
// panics.
type EngineError struct {
	Op  string // engine call that failed (e.g. "SetTriggerOn")
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Outcome classifies how a scan session ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeDecoded
	OutcomeReadFail
	OutcomeNoData
	OutcomeEngineError
	OutcomeCancelled
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeDecoded:
		return "decoded"
	case OutcomeReadFail:
		return "read_fail"
	case OutcomeNoData:
		return "no_data"
	case OutcomeEngineError:
		return "engine_error"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ScanResult is the final state of one scan session.
type ScanResult struct {
	SessionID  string
	Outcome    Outcome
	Text       string
	SymName    string
	SymID      byte
	DecodeTime time.Duration
	Finished   time.Time

	// EngineErr is set for OutcomeEngineError.
	EngineErr error

	// NotifyErr is set when a decoded result could not be delivered to
	// every notifier.
	NotifyErr error
}

// Err returns nil for a decoded result and the matching error otherwise.
func (r ScanResult) Err() error {
	switch r.Outcome {
	case OutcomeDecoded:
		return nil
	case OutcomeReadFail:
		return ErrReadFail
	case OutcomeNoData:
		return ErrNoData
	case OutcomeEngineError:
		return r.EngineErr
	case OutcomeCancelled:
		return ErrCancelled
	case OutcomeSuperseded:
		return ErrSuperseded
	default:
		return ErrScanPending
	}
}
