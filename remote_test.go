package main

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestVerifyScanRequest(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	now := time.Unix(1700000000, 0)
	ts := uint64(now.Unix())

	sigHex, sigB64, err := signScanRequest(secret, "pos-terminal", "scanner-01", ts)
	if err != nil {
		t.Fatalf("signScanRequest: %v", err)
	}

	tests := []struct {
		name    string
		secret  string
		req     ScanRequest
		now     time.Time
		wantErr bool
	}{
		{"hex signature", secret, ScanRequest{"pos-terminal", "scanner-01", ts, sigHex}, now, false},
		{"base64 signature", secret, ScanRequest{"pos-terminal", "scanner-01", ts, sigB64}, now, false},
		{"within window", secret, ScanRequest{"pos-terminal", "scanner-01", ts, sigHex}, now.Add(4 * time.Minute), false},
		{"too old", secret, ScanRequest{"pos-terminal", "scanner-01", ts, sigHex}, now.Add(6 * time.Minute), true},
		{"from the future", secret, ScanRequest{"pos-terminal", "scanner-01", ts, sigHex}, now.Add(-6 * time.Minute), true},
		{"tampered requester", secret, ScanRequest{"intruder", "scanner-01", ts, sigHex}, now, true},
		{"other node", secret, ScanRequest{"pos-terminal", "scanner-02", ts, sigHex}, now, true},
		{"garbage signature", secret, ScanRequest{"pos-terminal", "scanner-01", ts, "zz"}, now, true},
		{"disabled", "", ScanRequest{"pos-terminal", "scanner-01", ts, sigHex}, now, true},
		{"bad secret", "%%%", ScanRequest{"pos-terminal", "scanner-01", ts, sigHex}, now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyScanRequest(tt.secret, "scanner-01", tt.req, tt.now)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifyScanRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignScanRequest_EmptySecret(t *testing.T) {
	if _, _, err := signScanRequest("", "a", "b", 1); err == nil {
		t.Error("expected error for empty secret")
	}
}
