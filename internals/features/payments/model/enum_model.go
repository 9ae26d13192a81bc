// file: internals/features/payments/model/enum_model.go
package model

/* ================================
   ENUM mirror (must match DB)
================================ */

type SettlementStatus string
type GatewayProvider string
type GatewayEventStatus string

const (
	SettlementStatusPending SettlementStatus = "pending"
	SettlementStatusSettled SettlementStatus = "settled"
	SettlementStatusExpired SettlementStatus = "expired"
	SettlementStatusFailed  SettlementStatus = "failed"
)

const (
	GatewayProviderBakong   GatewayProvider = "bakong"
	GatewayProviderMidtrans GatewayProvider = "midtrans"
)

const (
	GatewayEventStatusReceived  GatewayEventStatus = "received"
	GatewayEventStatusProcessed GatewayEventStatus = "processed"
	GatewayEventStatusDiscarded GatewayEventStatus = "discarded"
	GatewayEventStatusFailed    GatewayEventStatus = "failed"
)
