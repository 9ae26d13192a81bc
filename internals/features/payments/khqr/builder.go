// file: internals/features/payments/khqr/builder.go
package khqr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

/* =========================================================
   QR payload builder (merchant-presented, KHQR field order)
========================================================= */

// EMVCo tags in required order. The checksum tag is always last and is
// computed over everything preceding it.
const (
	tagPayloadFormat   = "00"
	tagInitiation      = "01"
	tagMerchantAccount = "29"
	tagCategoryCode    = "52"
	tagCurrency        = "53"
	tagAmount          = "54"
	tagCountry         = "58"
	tagMerchantName    = "59"
	tagMerchantCity    = "60"
	tagAdditionalData  = "62"
	tagCRC             = "63"

	subTagAccountID     = "00"
	subTagBillReference = "01"

	initiationStatic  = "11" // open-amount QR, payer types the amount
	initiationDynamic = "12"

	categoryCodeDefault = "5999"
	countryCode         = "KH"

	maxMerchantNameLen = 25
	maxMerchantCityLen = 15
	maxBillRefLen      = 25
	maxAmountLen       = 13
)

// ISO 4217 numeric codes for the two supported settlement currencies.
var currencyNumeric = map[string]string{
	"USD": "840",
	"KHR": "116",
}

// MerchantInfo is the injected merchant configuration (never read from
// process globals, so the builder stays testable in isolation).
type MerchantInfo struct {
	AccountID          string // bakong-style id, exactly one "@"
	Name               string
	City               string
	SettlementCurrency string  // "USD" or "KHR"
	KHRPerUSD          float64 // fixed exchange-rate constant
}

// Request describes one payment request.
type Request struct {
	Amount        float64 // in Currency; <= 0 issues an open-amount QR
	Currency      string  // requested display currency
	BillReference string  // optional, truncated to 25 bytes
}

// QR is the assembled payload plus everything the caller needs to persist
// and display. Building is a pure function; persisting the settlement record
// is the caller's responsibility.
type QR struct {
	Payload          string
	Fingerprint      string
	OriginalAmount   float64
	OriginalCurrency string
	Amount           float64 // converted into the settlement currency
	Currency         string
	OpenAmount       bool
}

// Build assembles the ordered TLV payload, appends the CRC and derives the
// fingerprint.
func Build(m MerchantInfo, r Request) (*QR, error) {
	if strings.Count(m.AccountID, "@") != 1 {
		return nil, fmt.Errorf("%w: account id %q must contain exactly one '@'", ErrInvalidMerchantConfig, m.AccountID)
	}
	if _, ok := currencyNumeric[m.SettlementCurrency]; !ok {
		return nil, fmt.Errorf("%w: unsupported settlement currency %q", ErrInvalidMerchantConfig, m.SettlementCurrency)
	}
	name := strings.TrimSpace(m.Name)
	city := strings.TrimSpace(m.City)
	if name == "" || city == "" {
		return nil, fmt.Errorf("%w: merchant name/city must not be empty", ErrInvalidMerchantConfig)
	}

	reqCurrency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if reqCurrency == "" {
		reqCurrency = m.SettlementCurrency
	}
	if _, ok := currencyNumeric[reqCurrency]; !ok {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidPayloadField, reqCurrency)
	}

	amount, err := convertAmount(r.Amount, reqCurrency, m.SettlementCurrency, m.KHRPerUSD)
	if err != nil {
		return nil, err
	}
	open := amount <= 0

	// Truncate BEFORE encoding; the 2-digit length prefix cannot carry more.
	name = truncateBytes(name, maxMerchantNameLen)
	city = truncateBytes(city, maxMerchantCityLen)
	billRef := truncateBytes(strings.TrimSpace(r.BillReference), maxBillRefLen)

	initiation := initiationDynamic
	if open {
		initiation = initiationStatic
	}

	var b strings.Builder
	appendField := func(tag, value string) error {
		enc, err := Encode(tag, value)
		if err != nil {
			return err
		}
		b.WriteString(enc)
		return nil
	}

	if err := appendField(tagPayloadFormat, "01"); err != nil {
		return nil, err
	}
	if err := appendField(tagInitiation, initiation); err != nil {
		return nil, err
	}

	accountSub, err := Encode(subTagAccountID, m.AccountID)
	if err != nil {
		return nil, err
	}
	merchantAccount, err := EncodeNested(tagMerchantAccount, accountSub)
	if err != nil {
		return nil, err
	}
	b.WriteString(merchantAccount)

	if err := appendField(tagCategoryCode, categoryCodeDefault); err != nil {
		return nil, err
	}
	if err := appendField(tagCurrency, currencyNumeric[m.SettlementCurrency]); err != nil {
		return nil, err
	}

	if !open {
		amt, err := formatAmount(amount, m.SettlementCurrency)
		if err != nil {
			return nil, err
		}
		if err := appendField(tagAmount, amt); err != nil {
			return nil, err
		}
	}

	if err := appendField(tagCountry, countryCode); err != nil {
		return nil, err
	}
	if err := appendField(tagMerchantName, name); err != nil {
		return nil, err
	}
	if err := appendField(tagMerchantCity, city); err != nil {
		return nil, err
	}

	if billRef != "" {
		refSub, err := Encode(subTagBillReference, billRef)
		if err != nil {
			return nil, err
		}
		additional, err := EncodeNested(tagAdditionalData, refSub)
		if err != nil {
			return nil, err
		}
		b.WriteString(additional)
	}

	// Placeholder-then-compute: the CRC covers the payload INCLUDING "6304".
	body := b.String() + tagCRC + "04"
	payload := body + Checksum(body)

	return &QR{
		Payload:          payload,
		Fingerprint:      Fingerprint(payload),
		OriginalAmount:   r.Amount,
		OriginalCurrency: reqCurrency,
		Amount:           amount,
		Currency:         m.SettlementCurrency,
		OpenAmount:       open,
	}, nil
}

// convertAmount applies the fixed exchange rate when the requested currency
// differs from the merchant's settlement currency.
func convertAmount(amount float64, from, to string, khrPerUSD float64) (float64, error) {
	if amount <= 0 || from == to {
		return amount, nil
	}
	if khrPerUSD <= 0 {
		return 0, fmt.Errorf("%w: exchange rate not configured", ErrInvalidMerchantConfig)
	}
	switch {
	case from == "USD" && to == "KHR":
		return amount * khrPerUSD, nil
	case from == "KHR" && to == "USD":
		return amount / khrPerUSD, nil
	}
	return 0, fmt.Errorf("%w: no conversion from %s to %s", ErrInvalidPayloadField, from, to)
}

// formatAmount renders an amount for the 54 field. KHR carries no decimals;
// USD carries at most two, with trailing zeros dropped.
func formatAmount(amount float64, currency string) (string, error) {
	var s string
	if currency == "KHR" {
		s = strconv.FormatInt(int64(math.Round(amount)), 10)
	} else {
		s = strconv.FormatFloat(math.Round(amount*100)/100, 'f', -1, 64)
	}
	if len(s) > maxAmountLen {
		return "", fmt.Errorf("%w: amount %s exceeds %d chars", ErrInvalidPayloadField, s, maxAmountLen)
	}
	return s, nil
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
