// file: internals/features/payments/khqr/tlv.go
package khqr

import (
	"fmt"
	"strconv"
	"strings"
)

/* =========================================================
   TLV layer (EMVCo-style tag / 2-digit length / value)
========================================================= */

// Field is one decoded tag-value pair. The payload is plain ASCII, so
// values are kept as strings.
type Field struct {
	Tag   string
	Value string
}

// Encode prepends the zero-padded decimal byte length of value to tag+value.
// Values longer than 99 bytes cannot be represented and must be truncated by
// the caller BEFORE encoding; truncating afterwards would corrupt the length
// prefix.
func Encode(tag, value string) (string, error) {
	if len(tag) != 2 {
		return "", fmt.Errorf("%w: tag %q must be 2 chars", ErrInvalidPayloadField, tag)
	}
	if len(value) > maxValueLen {
		return "", fmt.Errorf("%w: tag %s value is %d bytes", ErrValueTooLong, tag, len(value))
	}
	return tag + fmt.Sprintf("%02d", len(value)) + value, nil
}

// EncodeNested wraps already-encoded sub-fields under an outer tag. Composite
// fields (merchant account info, additional data) are recursive, not flat.
func EncodeNested(tag string, subs ...string) (string, error) {
	return Encode(tag, strings.Join(subs, ""))
}

// Decode splits a payload into its top-level fields. Nested values stay raw;
// call Decode again on a composite value to descend.
func Decode(payload string) ([]Field, error) {
	var out []Field
	for i := 0; i < len(payload); {
		if len(payload)-i < 4 {
			return nil, fmt.Errorf("%w: dangling bytes at offset %d", ErrInvalidPayloadField, i)
		}
		tag := payload[i : i+2]
		n, err := strconv.Atoi(payload[i+2 : i+4])
		if err != nil {
			return nil, fmt.Errorf("%w: bad length for tag %s", ErrInvalidPayloadField, tag)
		}
		i += 4
		if i+n > len(payload) {
			return nil, fmt.Errorf("%w: tag %s length %d overruns payload", ErrInvalidPayloadField, tag, n)
		}
		out = append(out, Field{Tag: tag, Value: payload[i : i+n]})
		i += n
	}
	return out, nil
}

const maxValueLen = 99
