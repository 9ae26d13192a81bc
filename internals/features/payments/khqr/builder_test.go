package khqr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMerchant() MerchantInfo {
	return MerchantInfo{
		AccountID:          "playhost@bakong",
		Name:               "PlayHost Cambodia",
		City:               "Phnom Penh",
		SettlementCurrency: "KHR",
		KHRPerUSD:          4100,
	}
}

func decodeMap(t *testing.T, payload string) map[string]string {
	t.Helper()
	fields, err := Decode(payload)
	require.NoError(t, err)
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Tag] = f.Value
	}
	return out
}

func TestBuildConvertsUSDToKHR(t *testing.T) {
	qr, err := Build(testMerchant(), Request{Amount: 5.00, Currency: "USD", BillReference: "INV-000042"})
	require.NoError(t, err)

	fields := decodeMap(t, qr.Payload)
	assert.Equal(t, "20500", fields[tagAmount])
	assert.Equal(t, "116", fields[tagCurrency])
	assert.Equal(t, initiationDynamic, fields[tagInitiation])

	// Both sides exposed for display.
	assert.Equal(t, 5.00, qr.OriginalAmount)
	assert.Equal(t, "USD", qr.OriginalCurrency)
	assert.Equal(t, 20500.0, qr.Amount)
	assert.Equal(t, "KHR", qr.Currency)
}

func TestBuildChecksumVerifies(t *testing.T) {
	qr, err := Build(testMerchant(), Request{Amount: 12000, Currency: "KHR"})
	require.NoError(t, err)

	// Checksum field is last, 4 hex digits, computed over everything
	// before it including its own tag+length header.
	require.True(t, len(qr.Payload) > 8)
	body := qr.Payload[:len(qr.Payload)-4]
	require.True(t, strings.HasSuffix(body, tagCRC+"04"))
	assert.Equal(t, Checksum(body), qr.Payload[len(qr.Payload)-4:])
}

func TestBuildFingerprintStability(t *testing.T) {
	m := testMerchant()
	r := Request{Amount: 5.00, Currency: "USD", BillReference: "INV-000042"}

	a, err := Build(m, r)
	require.NoError(t, err)
	b, err := Build(m, r)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint, "identical field sets must fingerprint identically")

	r2 := r
	r2.Amount = 5.01
	c, err := Build(m, r2)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)

	r3 := r
	r3.BillReference = "INV-000043"
	d, err := Build(m, r3)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, d.Fingerprint)

	m2 := m
	m2.AccountID = "other@bakong"
	e, err := Build(m2, r)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, e.Fingerprint)
}

func TestBuildOpenAmountOmitsAmountField(t *testing.T) {
	qr, err := Build(testMerchant(), Request{Amount: 0, Currency: "KHR"})
	require.NoError(t, err)
	assert.True(t, qr.OpenAmount)

	fields := decodeMap(t, qr.Payload)
	_, hasAmount := fields[tagAmount]
	assert.False(t, hasAmount, "amount <= 0 signals an open-amount QR")
	assert.Equal(t, initiationStatic, fields[tagInitiation])
}

func TestBuildRejectsBadAccountID(t *testing.T) {
	m := testMerchant()
	m.AccountID = "no-separator"
	_, err := Build(m, Request{Amount: 1, Currency: "KHR"})
	assert.ErrorIs(t, err, ErrInvalidMerchantConfig)

	m.AccountID = "two@at@signs"
	_, err = Build(m, Request{Amount: 1, Currency: "KHR"})
	assert.ErrorIs(t, err, ErrInvalidMerchantConfig)
}

func TestBuildTruncatesNameCityAndReference(t *testing.T) {
	m := testMerchant()
	m.Name = strings.Repeat("N", 40)
	m.City = strings.Repeat("C", 40)
	qr, err := Build(m, Request{Amount: 1000, Currency: "KHR", BillReference: strings.Repeat("R", 40)})
	require.NoError(t, err)

	fields := decodeMap(t, qr.Payload)
	assert.Len(t, fields[tagMerchantName], maxMerchantNameLen)
	assert.Len(t, fields[tagMerchantCity], maxMerchantCityLen)

	subs, err := Decode(fields[tagAdditionalData])
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Len(t, subs[0].Value, maxBillRefLen)
}

func TestBuildRejectsUnknownCurrency(t *testing.T) {
	_, err := Build(testMerchant(), Request{Amount: 1, Currency: "EUR"})
	assert.ErrorIs(t, err, ErrInvalidPayloadField)
}

func TestFormatAmountUSDDropsTrailingZeros(t *testing.T) {
	s, err := formatAmount(5.00, "USD")
	require.NoError(t, err)
	assert.Equal(t, "5", s)

	s, err = formatAmount(5.50, "USD")
	require.NoError(t, err)
	assert.Equal(t, "5.5", s)

	s, err = formatAmount(20500.4, "KHR")
	require.NoError(t, err)
	assert.Equal(t, "20500", s)
}
