package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the payload HMAC on every delivery.
const SignatureHeader = "X-Webhook-Signature"

// EventHeader carries the event type on every delivery.
const EventHeader = "X-Webhook-Event"

// Sign computes the delivery signature over the exact payload bytes.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC and compares in constant time, so a
// receiver can authenticate payloads without leaking timing information.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(strings.TrimSpace(signature)), []byte(expected))
}
