package hostchannel

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Message types on the channel.
const (
	TypeCall           = "call"           // host -> agent method call
	TypeResult         = "result"         // agent -> host successful reply
	TypeError          = "error"          // agent -> host failed reply
	TypeNotImplemented = "notImplemented" // agent -> host unknown method
	TypeInvoke         = "invoke"         // agent -> host method call
)

// Error codes sent in error replies.
const (
	CodeNotReady        = "NOT_READY"
	CodeEngineError     = "ENGINE_ERROR"
	CodeScanPending     = "SCAN_PENDING"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeError           = "ERROR"
)

// Call is an incoming method call from a host.
type Call struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is the envelope for everything the agent sends to hosts.
type Message struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	Method    string `json:"method,omitempty"`
	Arguments any    `json:"arguments,omitempty"`
	Result    any    `json:"result,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// codedError attaches a channel error code to an error returned by a method.
type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

// WithCode wraps err so its reply carries code.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// ErrorCode returns the channel code for err, CodeError if none was attached.
func ErrorCode(err error) string {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return CodeError
}

// httpStatus maps a reply to the status of the REST method bridge.
func httpStatus(msg Message) int {
	switch msg.Type {
	case TypeResult:
		return http.StatusOK
	case TypeNotImplemented:
		return http.StatusNotFound
	}
	switch msg.Code {
	case CodeNotReady:
		return http.StatusServiceUnavailable
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeScanPending:
		return http.StatusConflict
	case CodeEngineError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
