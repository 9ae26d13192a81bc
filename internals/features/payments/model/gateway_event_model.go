// file: internals/features/payments/model/gateway_event_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/*
  payment_gateway_events = raw webhook / callback log
  - Many rows per settlement record (every delivery attempt lands here).
  - Stores raw headers, payload and signature for replay & debugging.
  - Unique (provider, external_id, status_token) dedupes gateway redelivery
    at the edge. Gateways reuse one transaction id across status changes
    (midtrans: pending then settlement), so a new status for a known
    transaction is a new row and still drives the state machine.
*/

type PaymentGatewayEvent struct {
	GatewayEventID uuid.UUID `gorm:"column:gateway_event_id;type:uuid;primaryKey" json:"gateway_event_id"`

	GatewayEventSettlementID *uuid.UUID `gorm:"column:gateway_event_settlement_id;type:uuid;index" json:"gateway_event_settlement_id"`

	GatewayEventProvider    GatewayProvider `gorm:"column:gateway_event_provider;type:varchar(16);not null;uniqueIndex:uq_gateway_event_provider_ext" json:"gateway_event_provider"`
	GatewayEventExternalID  *string         `gorm:"column:gateway_event_external_id;uniqueIndex:uq_gateway_event_provider_ext" json:"gateway_event_external_id"`
	GatewayEventExternalRef *string         `gorm:"column:gateway_event_external_ref" json:"gateway_event_external_ref"`
	GatewayEventStatusToken string          `gorm:"column:gateway_event_status_token;type:varchar(32);not null;default:'';uniqueIndex:uq_gateway_event_provider_ext" json:"gateway_event_status_token"`

	GatewayEventHeaders   datatypes.JSON `gorm:"column:gateway_event_headers;type:jsonb" json:"gateway_event_headers"`
	GatewayEventPayload   datatypes.JSON `gorm:"column:gateway_event_payload;type:jsonb" json:"gateway_event_payload"`
	GatewayEventSignature *string        `gorm:"column:gateway_event_signature" json:"gateway_event_signature"`

	GatewayEventStatus GatewayEventStatus `gorm:"column:gateway_event_status;type:varchar(16);not null;default:'received'" json:"gateway_event_status"`
	GatewayEventError  *string            `gorm:"column:gateway_event_error" json:"gateway_event_error"`

	GatewayEventReceivedAt  time.Time  `gorm:"column:gateway_event_received_at;not null;autoCreateTime" json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `gorm:"column:gateway_event_processed_at" json:"gateway_event_processed_at"`
}

func (PaymentGatewayEvent) TableName() string {
	return "payment_gateway_events"
}
