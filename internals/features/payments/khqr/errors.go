package khqr

import "errors"

var (
	// ErrInvalidMerchantConfig means the merchant settings themselves are
	// broken (bad account id, unknown settlement currency). Fatal for the
	// request, never retried.
	ErrInvalidMerchantConfig = errors.New("khqr: invalid merchant config")

	// ErrInvalidPayloadField means a caller-supplied field failed a length
	// or type constraint.
	ErrInvalidPayloadField = errors.New("khqr: invalid payload field")

	// ErrValueTooLong is returned by the TLV encoder when a value does not
	// fit the 2-digit length prefix (> 99 bytes).
	ErrValueTooLong = errors.New("khqr: tlv value exceeds 99 bytes")
)
