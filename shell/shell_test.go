package shell

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"scanbridge/engine"
	"scanbridge/scanner"
)

type fakeScanner struct {
	calls    []string
	readyErr error
	modeErr  error
	beepErr  error
	scanErr  error
	mode     int
	beep     bool
}

func (f *fakeScanner) Initialize() { f.calls = append(f.calls, "Initialize") }

func (f *fakeScanner) WaitReady(ctx context.Context) error {
	f.calls = append(f.calls, "WaitReady")
	return f.readyErr
}

func (f *fakeScanner) SetTriggerMode(mode int) error {
	f.calls = append(f.calls, "SetTriggerMode")
	f.mode = mode
	return f.modeErr
}

func (f *fakeScanner) SetBeepEnabled(enabled bool) error {
	f.calls = append(f.calls, "SetBeepEnabled")
	f.beep = enabled
	return f.beepErr
}

func (f *fakeScanner) StartScanAndReturn() (*scanner.Session, error) {
	f.calls = append(f.calls, "StartScanAndReturn")
	return nil, f.scanErr
}

func (f *fakeScanner) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func quiet(sh *Shell) *Shell {
	sh.Logger = log.New(io.Discard, "", 0)
	return sh
}

func TestOnKeyDown(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		fallback   KeyHandler
		wantResult bool
		wantScans  int
	}{
		{"scan key", ScanButtonKeyCode, nil, true, 1},
		{"other key without fallback", 42, nil, false, 0},
		{"other key consumed by fallback", 42, func(int) bool { return true }, true, 0},
		{"other key rejected by fallback", 42, func(int) bool { return false }, false, 0},
		{"scan key bypasses fallback", ScanButtonKeyCode, func(int) bool { return false }, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeScanner{}
			sh := quiet(New(fs, Config{}, tt.fallback))

			if got := sh.OnKeyDown(tt.code); got != tt.wantResult {
				t.Errorf("OnKeyDown(%d) = %v, want %v", tt.code, got, tt.wantResult)
			}
			if got := fs.count("StartScanAndReturn"); got != tt.wantScans {
				t.Errorf("scans = %d, want %d", got, tt.wantScans)
			}
		})
	}
}

func TestOnKeyDown_FallbackSeesCode(t *testing.T) {
	var seen []int
	sh := quiet(New(&fakeScanner{}, Config{}, func(code int) bool {
		seen = append(seen, code)
		return false
	}))
	sh.OnKeyDown(7)
	sh.OnKeyDown(ScanButtonKeyCode)
	sh.OnKeyDown(8)

	if len(seen) != 2 || seen[0] != 7 || seen[1] != 8 {
		t.Errorf("fallback saw %v", seen)
	}
}

func TestOnKeyDown_ScanErrorStillHandled(t *testing.T) {
	fs := &fakeScanner{scanErr: scanner.ErrNotReady}
	sh := quiet(New(fs, Config{}, nil))
	if !sh.OnKeyDown(ScanButtonKeyCode) {
		t.Error("scan key should be reported handled even when the scan fails")
	}
}

func TestCustomScanKey(t *testing.T) {
	fs := &fakeScanner{}
	sh := quiet(New(fs, Config{ScanKeyCode: 183}, nil))

	if sh.ScanKey() != 183 {
		t.Fatalf("ScanKey = %d", sh.ScanKey())
	}
	if sh.OnKeyDown(ScanButtonKeyCode) {
		t.Error("default scan key should not be handled when overridden")
	}
	if !sh.OnKeyDown(183) {
		t.Error("configured scan key not handled")
	}
	if fs.count("StartScanAndReturn") != 1 {
		t.Errorf("scans = %d", fs.count("StartScanAndReturn"))
	}
}

func TestOnEngineReady(t *testing.T) {
	t.Run("configures after ready", func(t *testing.T) {
		fs := &fakeScanner{mode: -1}
		sh := quiet(New(fs, Config{}, nil))
		if err := sh.OnEngineReady(context.Background()); err != nil {
			t.Fatalf("OnEngineReady: %v", err)
		}

		want := []string{"Initialize", "WaitReady", "SetTriggerMode", "SetBeepEnabled"}
		if len(fs.calls) != len(want) {
			t.Fatalf("calls = %v, want %v", fs.calls, want)
		}
		for i := range want {
			if fs.calls[i] != want[i] {
				t.Fatalf("calls = %v, want %v", fs.calls, want)
			}
		}
		if fs.mode != engine.TriggerModeHardware || !fs.beep {
			t.Errorf("mode = %d, beep = %v", fs.mode, fs.beep)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		fs := &fakeScanner{readyErr: scanner.ErrNotReady}
		sh := quiet(New(fs, Config{}, nil))
		err := sh.OnEngineReady(context.Background())
		if !errors.Is(err, scanner.ErrNotReady) {
			t.Fatalf("err = %v", err)
		}
		if fs.count("SetTriggerMode") != 0 {
			t.Error("configuration applied to an engine that is not ready")
		}
	})

	t.Run("mode failure", func(t *testing.T) {
		modeErr := errors.New("rejected")
		fs := &fakeScanner{modeErr: modeErr}
		sh := quiet(New(fs, Config{}, nil))
		err := sh.OnEngineReady(context.Background())
		if !errors.Is(err, modeErr) {
			t.Fatalf("err = %v, want trigger mode failure", err)
		}
		if fs.count("SetBeepEnabled") != 1 || !fs.beep {
			t.Errorf("beep not configured after trigger mode failure: calls = %v", fs.calls)
		}
	})

	t.Run("beep failure", func(t *testing.T) {
		beepErr := errors.New("no buzzer")
		fs := &fakeScanner{beepErr: beepErr}
		sh := quiet(New(fs, Config{}, nil))
		err := sh.OnEngineReady(context.Background())
		if !errors.Is(err, beepErr) {
			t.Fatalf("err = %v, want beep failure", err)
		}
		if fs.mode != engine.TriggerModeHardware {
			t.Errorf("mode = %d", fs.mode)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		modeErr, beepErr := errors.New("rejected"), errors.New("no buzzer")
		fs := &fakeScanner{modeErr: modeErr, beepErr: beepErr}
		sh := quiet(New(fs, Config{}, nil))
		err := sh.OnEngineReady(context.Background())
		if !errors.Is(err, modeErr) || !errors.Is(err, beepErr) {
			t.Fatalf("err = %v, want both failures", err)
		}
		want := []string{"Initialize", "WaitReady", "SetTriggerMode", "SetBeepEnabled"}
		if len(fs.calls) != len(want) {
			t.Fatalf("calls = %v, want %v", fs.calls, want)
		}
		for i := range want {
			if fs.calls[i] != want[i] {
				t.Errorf("calls[%d] = %s, want %s", i, fs.calls[i], want[i])
			}
		}
	})
}

// The shell and adapter together: one key press yields one notification.
func TestScanKeyEndToEnd(t *testing.T) {
	eng := engine.NewMock()
	eng.Queue("012345678905")

	var got []string
	notifier := notifyFunc(func(method string, args any) error {
		if method == scanner.MethodBarcodeScanned {
			got = append(got, args.(string))
		}
		return nil
	})

	m, err := scanner.New(eng, notifier, scanner.Config{}, scanner.Handlers{})
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	m.Logger = log.New(io.Discard, "", 0)
	clock := scanner.NewFakeClock(time.Unix(0, 0))
	m.Clock = clock

	sh := quiet(New(m, Config{}, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sh.OnEngineReady(ctx); err != nil {
		t.Fatalf("OnEngineReady: %v", err)
	}
	if eng.TriggerMode != engine.TriggerModeHardware || eng.Beep != 1 {
		t.Errorf("engine mode = %d, beep = %d", eng.TriggerMode, eng.Beep)
	}

	if !sh.OnKeyDown(ScanButtonKeyCode) {
		t.Fatal("scan key not handled")
	}
	clock.Advance(scanner.DefaultPollDelay)

	if len(got) != 1 || got[0] != "012345678905" {
		t.Errorf("notifications = %v", got)
	}
}

// A rejected trigger mode leaves the beep setting to go through.
func TestOnEngineReady_EngineRejectsMode(t *testing.T) {
	eng := engine.NewMock()
	eng.Panics["SetTriggerMode"] = true

	m, err := scanner.New(eng, nil, scanner.Config{}, scanner.Handlers{})
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	m.Logger = log.New(io.Discard, "", 0)

	sh := quiet(New(m, Config{}, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = sh.OnEngineReady(ctx)
	var engErr *scanner.EngineError
	if !errors.As(err, &engErr) || engErr.Op != "SetTriggerMode" {
		t.Fatalf("err = %v, want SetTriggerMode engine error", err)
	}
	if eng.Beep != 1 {
		t.Errorf("beep = %d, want 1", eng.Beep)
	}
	if eng.Calls("SetBeepEnable(1)") != 1 {
		t.Errorf("calls = %v", eng.CallLog)
	}
}

type notifyFunc func(method string, args any) error

func (f notifyFunc) InvokeMethod(method string, args any) error { return f(method, args) }
