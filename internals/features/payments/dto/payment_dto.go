// file: internals/features/payments/dto/payment_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"

	model "playhost_backend/internals/features/payments/model"
)

/* =========================================================
   CREATE (issue a QR for an invoice)
========================================================= */

type CreatePaymentRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id" validate:"required"`

	// bakong | midtrans (default bakong)
	Provider string `json:"provider" validate:"omitempty,oneof=bakong midtrans"`

	// Display currency requested by the payer. Defaults to the invoice
	// currency; converted into the merchant settlement currency on encode.
	Currency string `json:"currency" validate:"omitempty,oneof=USD KHR"`
}

/* =========================================================
   RESPONSE
========================================================= */

type PaymentResponse struct {
	SettlementID uuid.UUID `json:"settlement_id"`
	InvoiceID    uuid.UUID `json:"invoice_id"`
	OrderID      uuid.UUID `json:"order_id"`

	Provider    string `json:"provider"`
	Status      string `json:"status"`
	QRPayload   string `json:"qr_payload,omitempty"`
	Fingerprint string `json:"fingerprint"`
	QRImagePath string `json:"qr_image_path,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`

	// Converted (encoded) amount plus the original request for display.
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	OriginalAmount   float64 `json:"original_amount"`
	OriginalCurrency string  `json:"original_currency"`

	ExpiresAt time.Time  `json:"expires_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

func FromSettlement(s *model.SettlementRecord) *PaymentResponse {
	resp := &PaymentResponse{
		SettlementID:     s.SettlementID,
		InvoiceID:        s.SettlementInvoiceID,
		OrderID:          s.SettlementOrderID,
		Provider:         string(s.SettlementProvider),
		Status:           string(s.SettlementStatus),
		Fingerprint:      s.SettlementFingerprint,
		Amount:           s.SettlementAmount,
		Currency:         s.SettlementCurrency,
		OriginalAmount:   s.SettlementOriginalAmount,
		OriginalCurrency: s.SettlementOriginalCurrency,
		ExpiresAt:        s.SettlementExpiresAt,
		SettledAt:        s.SettlementSettledAt,
	}
	if s.SettlementQRPayload != nil {
		resp.QRPayload = *s.SettlementQRPayload
		resp.QRImagePath = "/api/payments/" + s.SettlementID.String() + "/qr.png"
	}
	if s.SettlementCheckoutURL != nil {
		resp.CheckoutURL = *s.SettlementCheckoutURL
	}
	return resp
}
