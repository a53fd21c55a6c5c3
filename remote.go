package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// remoteWindow is how far a request timestamp may be from local time.
const remoteWindow = 5 * time.Minute

// ScanRequest represents a remote scan request received over MQTT.
type ScanRequest struct {
	Requester string `json:"requester"`
	Node      string `json:"node"`
	Timestamp uint64 `json:"timestamp"`
	Signature string `json:"signature"`
}

// verifyScanRequest checks that req is signed with secret, addressed to
// node and recent.
func verifyScanRequest(secret, node string, req ScanRequest, now time.Time) error {
	if secret == "" {
		return errors.New("remote scan disabled (no secret configured)")
	}
	if err := verifySignature(secret, req.Requester, req.Node, req.Timestamp, req.Signature); err != nil {
		return err
	}
	if req.Node != node {
		return fmt.Errorf("wrong node %q, expected %q", req.Node, node)
	}

	ts := time.Unix(int64(req.Timestamp), 0)
	if now.Before(ts.Add(-remoteWindow)) || now.After(ts.Add(remoteWindow)) {
		return errors.New("scan request timestamp out of range")
	}
	return nil
}

// Signature helpers

// signScanRequest returns the HMAC-SHA256 of requester || node || ts
// (big-endian uint64) in hex and base64.
func signScanRequest(base64Secret, requester, node string, ts uint64) (string, string, error) {
	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return "", "", fmt.Errorf("invalid base64 secret: %w", err)
	}
	if len(secret) == 0 {
		return "", "", fmt.Errorf("secret cannot be empty")
	}

	msg := make([]byte, 0, len(requester)+len(node)+8)
	msg = append(msg, []byte(requester)...)
	msg = append(msg, []byte(node)...)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], ts)
	msg = append(msg, tsBuf[:]...)

	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	sum := mac.Sum(nil)

	return hex.EncodeToString(sum), base64.StdEncoding.EncodeToString(sum), nil
}

func verifySignature(base64Secret, requester, node string, ts uint64, providedSig string) error {
	sigHex, sigBase64, err := signScanRequest(base64Secret, requester, node, ts)
	if err != nil {
		return err
	}

	// Try hex
	if decoded, err := hex.DecodeString(providedSig); err == nil {
		expected, _ := hex.DecodeString(sigHex)
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}

	// Try base64
	if decoded, err := base64.StdEncoding.DecodeString(providedSig); err == nil {
		expected, _ := base64.StdEncoding.DecodeString(sigBase64)
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}

	return fmt.Errorf("signature verification failed")
}
