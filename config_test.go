package main

import (
	"os"
	"path/filepath"
	"testing"

	"scanbridge/keyinput"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanbridge.cfg")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"minimal", "client_id: scanner-01\n", false},
		{"full", `
client_id: scanner-01
hold_secs: 5
engine:
  type: mock
  results: ["]E04006381333931", "NR"]
scanner:
  overlap: ignore
shell:
  scan_key_code: 28
channel:
  listen: "127.0.0.1:0"
`, false},
		{"missing client id", "hold_secs: 3\n", true},
		{"bad overlap", "client_id: a\nscanner:\n  overlap: sometimes\n", true},
		{"not yaml", "client_id: [\n", true},
		{"evdev with scan key", "client_id: a\nkeys:\n  type: evdev\nshell:\n  scan_key_code: 194\n", false},
		{"evdev without scan key", "client_id: a\nkeys:\n  type: evdev\n", true},
		{"evdev with default scan key", "client_id: a\nkeys:\n  type: evdev\nshell:\n  scan_key_code: 1011\n", true},
		{"gpio with default scan key", "client_id: a\nkeys:\n  type: gpio\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("loadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Values(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `
client_id: scanner-01
engine:
  type: mock
  results: ["A", "B"]
shell:
  scan_key_code: 28
event_pipe:
  path: /tmp/x
`))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HoldSecs != 2 {
		t.Errorf("HoldSecs = %d, want default 2", cfg.HoldSecs)
	}
	if cfg.Engine.Type != "mock" || len(cfg.Engine.Results) != 2 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Shell.ScanKeyCode != 28 {
		t.Errorf("ScanKeyCode = %d", cfg.Shell.ScanKeyCode)
	}
	if cfg.EventPipe.Path != "/tmp/x" {
		t.Errorf("EventPipe.Path = %q", cfg.EventPipe.Path)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.cfg")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExampleConfig(t *testing.T) {
	cfg, err := loadConfig("scanbridge.example.cfg")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Channel.Channel != "scanner_channel" {
		t.Errorf("Channel = %q", cfg.Channel.Channel)
	}
	if cfg.Keys.Type == "evdev" && cfg.Shell.ScanKeyCode > keyinput.MaxEvdevCode {
		t.Errorf("scan key %d cannot come from an input device", cfg.Shell.ScanKeyCode)
	}
}
