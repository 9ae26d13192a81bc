package khqr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fields := []Field{
		{Tag: "00", Value: "01"},
		{Tag: "01", Value: "12"},
		{Tag: "59", Value: "PlayHost Cambodia"},
		{Tag: "60", Value: "Phnom Penh"},
		{Tag: "62", Value: "0110INV-000042"},
	}

	var b strings.Builder
	for _, f := range fields {
		enc, err := Encode(f.Tag, f.Value)
		require.NoError(t, err)
		b.WriteString(enc)
	}

	decoded, err := Decode(b.String())
	require.NoError(t, err)
	assert.Equal(t, fields, decoded)
}

func TestEncodeLengthPrefix(t *testing.T) {
	enc, err := Encode("54", "20500")
	require.NoError(t, err)
	assert.Equal(t, "540520500", enc)

	enc, err = Encode("59", "")
	require.NoError(t, err)
	assert.Equal(t, "5900", enc)
}

func TestEncodeRejectsOversizedValue(t *testing.T) {
	_, err := Encode("62", strings.Repeat("x", 100))
	assert.ErrorIs(t, err, ErrValueTooLong)

	// 99 bytes is the last representable length.
	enc, err := Encode("62", strings.Repeat("x", 99))
	require.NoError(t, err)
	assert.Equal(t, "6299", enc[:4])
}

func TestEncodeNestedIsRecursive(t *testing.T) {
	inner, err := Encode("00", "merchant@bank")
	require.NoError(t, err)
	outer, err := EncodeNested("29", inner)
	require.NoError(t, err)

	top, err := Decode(outer)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "29", top[0].Tag)

	subs, err := Decode(top[0].Value)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, Field{Tag: "00", Value: "merchant@bank"}, subs[0])
}

func TestDecodeRejectsCorruptPayload(t *testing.T) {
	_, err := Decode("5405205")
	assert.ErrorIs(t, err, ErrInvalidPayloadField)

	_, err = Decode("54xx20500")
	assert.ErrorIs(t, err, ErrInvalidPayloadField)

	_, err = Decode("541")
	assert.ErrorIs(t, err, ErrInvalidPayloadField)
}
