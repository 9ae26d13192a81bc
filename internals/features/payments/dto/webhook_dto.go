// file: internals/features/payments/dto/webhook_dto.go
package dto

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	model "playhost_backend/internals/features/payments/model"
)

/* =========================================================
   Canonical settlement event

   Each gateway has its own webhook shape; every shape is normalized into
   this one type before it reaches the state machine. Nothing downstream
   knows which gateway delivered the news.
========================================================= */

type SettlementEvent struct {
	Provider    model.GatewayProvider
	ExternalID  string // gateway transaction id
	ExternalRef string // our reference as the gateway echoes it back
	Fingerprint string // payload hash, when the gateway reports it (bakong)
	Settled     bool
	Failed      bool
	StatusToken string // raw gateway status, kept for evidence/logging
	Amount      float64
	Currency    string
	Timestamp   time.Time
	Evidence    datatypes.JSON // raw body for the audit trail
}

var ErrUnrecognizedEvent = errors.New("dto: unrecognized gateway event")

/* =========================================================
   Bakong webhook payload
========================================================= */

type BakongWebhookPayload struct {
	TransactionID string  `json:"transactionId"`
	Status        string  `json:"status"` // SUCCESS | FAILED
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Reference     string  `json:"reference"`
	MD5           string  `json:"md5"`
	Timestamp     int64   `json:"timestamp"` // unix seconds, replay-checked
}

func (p *BakongWebhookPayload) Normalize(raw []byte) (SettlementEvent, error) {
	if p.TransactionID == "" {
		return SettlementEvent{}, ErrUnrecognizedEvent
	}
	status := strings.ToUpper(strings.TrimSpace(p.Status))
	return SettlementEvent{
		Provider:    model.GatewayProviderBakong,
		ExternalID:  p.TransactionID,
		ExternalRef: p.Reference,
		Fingerprint: strings.ToLower(p.MD5),
		Settled:     status == "SUCCESS",
		Failed:      status == "FAILED",
		StatusToken: status,
		Amount:      p.Amount,
		Currency:    strings.ToUpper(p.Currency),
		Timestamp:   time.Unix(p.Timestamp, 0),
		Evidence:    datatypes.JSON(raw),
	}, nil
}

/* =========================================================
   Midtrans notification payload

   Status mapping mirrors the vendor semantics: capture is only money when
   fraud_status is accept; settlement is money; everything in the deny /
   cancel / expire / failure family is a dead transaction.
========================================================= */

type MidtransNotificationPayload struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	Currency          string `json:"currency"`
	SignatureKey      string `json:"signature_key"`
	TransactionTime   string `json:"transaction_time"`
}

func (p *MidtransNotificationPayload) Normalize(raw []byte) (SettlementEvent, error) {
	if p.TransactionID == "" || p.OrderID == "" {
		return SettlementEvent{}, ErrUnrecognizedEvent
	}

	ts := strings.ToLower(strings.TrimSpace(p.TransactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(p.FraudStatus))

	settled := ts == "settlement" || (ts == "capture" && fraud == "accept")
	failed := false
	switch ts {
	case "deny", "cancel", "expire", "failure":
		failed = true
	case "capture":
		failed = fraud != "accept" && fraud != "challenge"
	}

	amount, _ := strconv.ParseFloat(strings.TrimSpace(p.GrossAmount), 64)

	when := time.Time{}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", p.TransactionTime, time.UTC); err == nil {
		when = t
	}

	return SettlementEvent{
		Provider:    model.GatewayProviderMidtrans,
		ExternalID:  p.TransactionID,
		ExternalRef: p.OrderID,
		Settled:     settled,
		Failed:      failed,
		StatusToken: ts,
		Amount:      amount,
		Currency:    strings.ToUpper(p.Currency),
		Timestamp:   when,
		Evidence:    datatypes.JSON(raw),
	}, nil
}
