// file: internals/features/payments/service/signature.go
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"time"
)

/* =========================================================
   Webhook signature verification

   Runs against the RAW request body, before any structured parsing.
   Comparison is constant-time; a missing secret fails closed.
========================================================= */

// ReplayWindow bounds how stale a webhook timestamp may be.
const ReplayWindow = 5 * time.Minute

// VerifyHMAC checks an HMAC-SHA256 hex signature over the raw body.
func VerifyHMAC(rawBody []byte, signatureHeader, secret string) error {
	if secret == "" {
		// Operational error, never an authorization bypass.
		return ErrMissingSecret
	}
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	want := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant-time and free of equal-length short circuits.
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(sig))) {
		return ErrSignatureInvalid
	}
	return nil
}

// CheckReplayWindow rejects timestamps more than ReplayWindow away from now,
// in either direction.
func CheckReplayWindow(ts, now time.Time) error {
	if ts.IsZero() {
		return nil
	}
	d := now.Sub(ts)
	if d < 0 {
		d = -d
	}
	if d > ReplayWindow {
		return ErrReplayDetected
	}
	return nil
}

// VerifyMidtransSignature checks the vendor-computed signature:
// sha512(order_id + status_code + gross_amount + server_key).
func VerifyMidtransSignature(orderID, statusCode, grossAmount, serverKey, got string) error {
	if serverKey == "" {
		return ErrMissingSecret
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	want := hex.EncodeToString(sum[:])
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(got)))) {
		return ErrSignatureInvalid
	}
	return nil
}
