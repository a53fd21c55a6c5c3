package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"scanbridge/engine"
	"scanbridge/eventpipe"
	"scanbridge/hostchannel"
	"scanbridge/indicator"
	"scanbridge/keyinput"
	"scanbridge/mqtt"
	"scanbridge/scanner"
	"scanbridge/shell"
)

// Config is the main configuration structure for scanbridge.
type Config struct {
	// Scan engine and how scans run
	Engine  engine.Config  `yaml:"engine"`
	Scanner scanner.Config `yaml:"scanner"`
	Shell   shell.Config   `yaml:"shell"`

	// Key sources
	Keys      keyinput.Config  `yaml:"keys"`
	EventPipe eventpipe.Config `yaml:"event_pipe"`

	// Host method channel
	Channel hostchannel.Config `yaml:"channel"`

	// MQTT connection settings
	MQTT mqtt.Config `yaml:"mqtt"`

	// Indicator configuration
	Indicator indicator.Config `yaml:"indicator"`

	// General settings
	ClientID     string `yaml:"client_id"`
	Metrics      bool   `yaml:"metrics"`       // serve /metrics on the channel listener
	HoldSecs     int    `yaml:"hold_secs"`     // how long a scan result is shown, default 2
	RemoteSecret string `yaml:"remote_secret"` // base64 HMAC key for remote scan requests
}

// loadConfig reads and validates the YAML config file at path.
func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client_id missing in config file")
	}
	if _, err := scanner.ParseOverlap(cfg.Scanner.Overlap); err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	if cfg.Keys.Type == "evdev" {
		if cfg.Shell.ScanKeyCode <= 0 || cfg.Shell.ScanKeyCode > keyinput.MaxEvdevCode {
			return nil, fmt.Errorf("shell: scan_key_code must be an input key code (1-%d) with evdev keys", keyinput.MaxEvdevCode)
		}
	}
	if cfg.HoldSecs <= 0 {
		cfg.HoldSecs = 2
	}
	return &cfg, nil
}
