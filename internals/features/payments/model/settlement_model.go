// file: internals/features/payments/model/settlement_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/* ================================
   MODEL: settlement_records

   One row per payment attempt. Created when a QR payload is issued,
   mutated only through defined transitions, never deleted; corrections
   are appended as new attempts.
================================ */

type SettlementRecord struct {
	SettlementID uuid.UUID `json:"settlement_id" gorm:"column:settlement_id;type:uuid;primaryKey"`

	SettlementOrderID   uuid.UUID `json:"settlement_order_id"   gorm:"column:settlement_order_id;type:uuid;not null;index"`
	SettlementInvoiceID uuid.UUID `json:"settlement_invoice_id" gorm:"column:settlement_invoice_id;type:uuid;not null;index"`

	// Idempotency key: content hash of the assembled payload. Unique per
	// payment request; identical field sets collide on purpose.
	SettlementFingerprint string `json:"settlement_fingerprint" gorm:"column:settlement_fingerprint;type:varchar(64);not null;uniqueIndex"`

	// Reference echoed to the gateway (bill reference / order id on the
	// gateway side). Webhook matching keys on this.
	SettlementExternalRef string `json:"settlement_external_ref" gorm:"column:settlement_external_ref;type:varchar(64);not null;index"`

	SettlementProvider GatewayProvider `json:"settlement_provider" gorm:"column:settlement_provider;type:varchar(16);not null"`

	// Converted (settlement-currency) amount actually encoded in the QR,
	// plus the original requested amount for display.
	SettlementAmount           float64 `json:"settlement_amount"            gorm:"column:settlement_amount;not null"`
	SettlementCurrency         string  `json:"settlement_currency"          gorm:"column:settlement_currency;type:varchar(8);not null"`
	SettlementOriginalAmount   float64 `json:"settlement_original_amount"   gorm:"column:settlement_original_amount;not null"`
	SettlementOriginalCurrency string  `json:"settlement_original_currency" gorm:"column:settlement_original_currency;type:varchar(8);not null"`

	SettlementQRPayload *string `json:"settlement_qr_payload" gorm:"column:settlement_qr_payload;type:text"`

	// Hosted-checkout URL for rails without a merchant-presented QR.
	SettlementCheckoutURL *string `json:"settlement_checkout_url" gorm:"column:settlement_checkout_url;type:text"`

	SettlementStatus SettlementStatus `json:"settlement_status" gorm:"column:settlement_status;type:varchar(16);not null;default:'pending'"`

	// Raw gateway proof (poll response or webhook body) kept for audits.
	SettlementEvidence datatypes.JSON `json:"settlement_evidence" gorm:"column:settlement_evidence;type:jsonb"`

	SettlementExpiresAt time.Time  `json:"settlement_expires_at" gorm:"column:settlement_expires_at;not null"`
	SettlementSettledAt *time.Time `json:"settlement_settled_at" gorm:"column:settlement_settled_at"`

	SettlementCreatedAt time.Time `json:"settlement_created_at" gorm:"column:settlement_created_at;not null;autoCreateTime"`
	SettlementUpdatedAt time.Time `json:"settlement_updated_at" gorm:"column:settlement_updated_at;not null;autoUpdateTime"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}

// Expired reports whether the validity window had elapsed at `now` without
// the record reaching a terminal state.
func (s *SettlementRecord) Expired(now time.Time) bool {
	return s.SettlementStatus == SettlementStatusPending && now.After(s.SettlementExpiresAt)
}
