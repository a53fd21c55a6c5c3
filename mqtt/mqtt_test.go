package mqtt

import "testing"

func TestDisabledClient(t *testing.T) {
	connected := false
	c, err := New(Config{}, "scanner-01", Handlers{
		OnConnect: func() { connected = true },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.IsEnabled() {
		t.Fatal("client without host should be disabled")
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !connected {
		t.Error("disabled client should report a connection")
	}
	if err := c.InvokeMethod("onBarcodeScanned", "012345678905"); err != nil {
		t.Errorf("InvokeMethod on disabled client: %v", err)
	}
	if err := c.Subscribe(c.ControlTopic("scan")); err != nil {
		t.Errorf("Subscribe on disabled client: %v", err)
	}
	c.Publish(c.StatusTopic("ping"), `{"status":"ok"}`)
	c.Disconnect()
}

func TestTopics(t *testing.T) {
	tests := []struct {
		prefix      string
		wantStatus  string
		wantControl string
	}{
		{"", "scanbridge/status/node/scanner-01/onBarcodeScanned", "scanbridge/control/node/scanner-01/scan"},
		{"site/a", "site/a/status/node/scanner-01/onBarcodeScanned", "site/a/control/node/scanner-01/scan"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			c, err := New(Config{TopicPrefix: tt.prefix}, "scanner-01", Handlers{})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := c.StatusTopic("onBarcodeScanned"); got != tt.wantStatus {
				t.Errorf("StatusTopic = %q, want %q", got, tt.wantStatus)
			}
			if got := c.ControlTopic("scan"); got != tt.wantControl {
				t.Errorf("ControlTopic = %q, want %q", got, tt.wantControl)
			}
		})
	}
}
