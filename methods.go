package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scanbridge/hostchannel"
	"scanbridge/scanner"
)

// Methods hosts can call on the agent.
const (
	MethodStartScan         = "startScan"
	MethodStopScan          = "stopScan"
	MethodGetResult         = "getResult"
	MethodSetTriggerEnabled = "setTriggerEnabled"
	MethodIsTriggerEnabled  = "isTriggerEnabled"
	MethodStatus            = "status"
)

// waitSlack is added to the poll delay when a host waits for a scan.
const waitSlack = 5 * time.Second

type startScanArgs struct {
	Wait bool `json:"wait"`
}

type setTriggerArgs struct {
	Enabled *bool `json:"enabled"`
}

// resultView is the JSON form of a finished scan.
type resultView struct {
	Session      string `json:"session"`
	Outcome      string `json:"outcome"`
	Text         string `json:"text,omitempty"`
	Symbology    string `json:"symbology,omitempty"`
	DecodeTimeMs int64  `json:"decodeTimeMs,omitempty"`
	Error        string `json:"error,omitempty"`
}

func newResultView(res scanner.ScanResult) resultView {
	v := resultView{
		Session:      res.SessionID,
		Outcome:      res.Outcome.String(),
		Text:         res.Text,
		Symbology:    res.SymName,
		DecodeTimeMs: res.DecodeTime.Milliseconds(),
	}
	if err := res.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

// statusView is the result of the status method.
type statusView struct {
	Ready          bool   `json:"ready"`
	InitError      string `json:"initError,omitempty"`
	TriggerEnabled bool   `json:"triggerEnabled"`
	PendingScan    string `json:"pendingScan,omitempty"`
	PollDelayMs    int64  `json:"pollDelayMs"`
	Hosts          int    `json:"hosts"`
}

// registerMethods binds the agent methods to m. hosts reports the number
// of connected hosts for the status method.
func registerMethods(r *hostchannel.Registry, m *scanner.Manager, hosts func() int) error {
	methods := map[string]hostchannel.MethodFunc{
		MethodStartScan: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args startScanArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			s, err := m.StartScanAndReturn()
			if err != nil {
				return nil, hostError(err)
			}
			if !args.Wait {
				return map[string]string{"session": s.ID}, nil
			}

			ctx, cancel := context.WithTimeout(ctx, m.PollDelay()+waitSlack)
			defer cancel()
			res, err := s.Wait(ctx)
			if err != nil {
				return nil, fmt.Errorf("wait for scan %s: %w", s.ID, err)
			}
			return newResultView(res), nil
		},

		MethodStopScan: func(ctx context.Context, raw json.RawMessage) (any, error) {
			if err := m.StopScan(); err != nil {
				return nil, hostError(err)
			}
			return true, nil
		},

		MethodGetResult: func(ctx context.Context, raw json.RawMessage) (any, error) {
			dr, err := m.GetResult()
			if err != nil {
				return nil, hostError(err)
			}
			v := map[string]any{"text": dr.String()}
			if dr.DecodeLength > 0 {
				v["symbology"] = dr.SymName
				v["symId"] = string(rune(dr.SymID))
				v["decodeTimeMs"] = dr.DecodeTime.Milliseconds()
			}
			return v, nil
		},

		MethodSetTriggerEnabled: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args setTriggerArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Enabled == nil {
				return nil, hostchannel.WithCode(hostchannel.CodeInvalidArgument, errors.New("enabled is required"))
			}
			if err := m.SetTriggerEnabled(*args.Enabled); err != nil {
				return nil, hostError(err)
			}
			return *args.Enabled, nil
		},

		MethodIsTriggerEnabled: func(ctx context.Context, raw json.RawMessage) (any, error) {
			on, err := m.IsTriggerEnabled()
			if err != nil {
				return nil, hostError(err)
			}
			return on, nil
		},

		MethodStatus: func(ctx context.Context, raw json.RawMessage) (any, error) {
			st := statusView{
				Ready:       m.Ready(),
				PollDelayMs: m.PollDelay().Milliseconds(),
			}
			if err := m.InitErr(); err != nil {
				st.InitError = err.Error()
			}
			if st.Ready {
				st.TriggerEnabled, _ = m.IsTriggerEnabled()
			}
			if s := m.Pending(); s != nil {
				st.PendingScan = s.ID
			}
			if hosts != nil {
				st.Hosts = hosts()
			}
			return st, nil
		},
	}

	for name, fn := range methods {
		if err := r.Handle(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return hostchannel.WithCode(hostchannel.CodeInvalidArgument, fmt.Errorf("decode arguments: %w", err))
	}
	return nil
}

// hostError attaches the channel error code matching a scanner error.
func hostError(err error) error {
	var engErr *scanner.EngineError
	switch {
	case errors.Is(err, scanner.ErrNotReady):
		return hostchannel.WithCode(hostchannel.CodeNotReady, err)
	case errors.Is(err, scanner.ErrScanPending):
		return hostchannel.WithCode(hostchannel.CodeScanPending, err)
	case errors.Is(err, scanner.ErrInvalidTriggerMode):
		return hostchannel.WithCode(hostchannel.CodeInvalidArgument, err)
	case errors.As(err, &engErr):
		return hostchannel.WithCode(hostchannel.CodeEngineError, err)
	default:
		return err
	}
}
