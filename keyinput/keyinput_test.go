package keyinput

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{"empty type disables input", Config{}, true, false},
		{"none", Config{Type: "none"}, true, false},
		{"unknown type", Config{Type: "joystick"}, true, true},
		{"missing evdev device", Config{Type: "evdev", Device: "/nonexistent/event99"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantNil && src != nil {
				t.Errorf("New() = %v, want nil", src)
			}
		})
	}
}
