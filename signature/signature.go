// Package signature signs outbound payloads with HMAC-SHA256 so a downstream
// consumer can check that a relayed message came from this relay.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Header names carried by a signed request.
const (
	HeaderSignature = "X-Courier-Signature"
	HeaderTimestamp = "X-Courier-Timestamp"
)

var (
	// ErrMissingHeaders is returned when a request carries no signature headers.
	ErrMissingHeaders = errors.New("signature: missing signature headers")

	// ErrMismatch is returned when the signature does not match the payload.
	ErrMismatch = errors.New("signature: mismatch")

	// ErrExpired is returned when the timestamp is outside the allowed skew.
	ErrExpired = errors.New("signature: timestamp outside tolerance")
)

// Sign returns "v1=<hex>" where hex is HMAC-SHA256 over "{timestamp}.{payload}".
func Sign(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the signature of payload at timestamp.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	return hmac.Equal([]byte(Sign(payload, secret, timestamp)), []byte(sig))
}

// SignRequest stamps the signature headers for payload onto h.
func SignRequest(h http.Header, payload []byte, secret string, now time.Time) {
	ts := now.Unix()
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderSignature, Sign(payload, secret, ts))
}

// VerifyRequest checks the signature headers in h against payload. A zero
// tolerance disables the timestamp window.
func VerifyRequest(h http.Header, payload []byte, secret string, tolerance time.Duration, now time.Time) error {
	sig := h.Get(HeaderSignature)
	raw := h.Get(HeaderTimestamp)
	if sig == "" || raw == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("signature: parse timestamp %q: %w", raw, err)
	}

	if tolerance > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew > tolerance || skew < -tolerance {
			return ErrExpired
		}
	}

	if !Verify(payload, secret, ts, sig) {
		return ErrMismatch
	}
	return nil
}
