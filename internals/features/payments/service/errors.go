// file: internals/features/payments/service/errors.go
package service

import "errors"

var (
	// Security rejections. Always fail closed, always logged.
	ErrMissingSecret    = errors.New("settlement: webhook secret not configured")
	ErrSignatureInvalid = errors.New("settlement: signature invalid")
	ErrReplayDetected   = errors.New("settlement: timestamp outside replay window")

	// No matching settlement record for an inbound event. Gateways deliver
	// events for unrelated or already-finalized transactions; these are
	// logged and discarded, never raised to the payer.
	ErrRecordNotFound = errors.New("settlement: no matching record")

	// A settlement event arrived after the validity window elapsed. The
	// record stays terminal; the event is logged and discarded.
	ErrExpiredFingerprint = errors.New("settlement: fingerprint expired")

	// Soft "payment not yet received". Manual polls surface it, background
	// polls suppress it.
	ErrNotYetPaid = errors.New("settlement: not yet paid")

	// A settled event whose amount or currency disagrees with what the
	// record was issued for. The record stays pending for manual review;
	// the event is logged and discarded.
	ErrAmountMismatch = errors.New("settlement: settled amount mismatch")

	// Fulfillment failed after payment settled. Non-fatal: the payment
	// facts stand, the order stays retry-eligible.
	ErrProvisioningFailed = errors.New("settlement: provisioning failed")

	ErrInvoiceAlreadyPaid = errors.New("settlement: invoice already paid")
)
