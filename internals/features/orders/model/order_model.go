// file: internals/features/orders/model/order_model.go
package model

import (
	"time"

	"github.com/google/uuid"
)

/* ================================
   ENUM mirror (must match DB)
================================ */

type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusPaid         OrderStatus = "paid"
	OrderStatusProvisioning OrderStatus = "provisioning"
	OrderStatusActive       OrderStatus = "active"
	OrderStatusSuspended    OrderStatus = "suspended"
	OrderStatusFailed       OrderStatus = "failed"
)

/* ================================
   MODEL: orders
================================ */

type Order struct {
	OrderID     uuid.UUID   `json:"order_id"     gorm:"column:order_id;type:uuid;primaryKey"`
	OrderNumber string      `json:"order_number" gorm:"column:order_number;type:varchar(40);not null;uniqueIndex"`
	OrderStatus OrderStatus `json:"order_status" gorm:"column:order_status;type:varchar(16);not null;default:'pending'"`

	// Server details forwarded verbatim to the provisioning panel.
	OrderGame     string `json:"order_game"     gorm:"column:order_game;type:varchar(40);not null"`
	OrderPlan     string `json:"order_plan"     gorm:"column:order_plan;type:varchar(40);not null"`
	OrderLocation string `json:"order_location" gorm:"column:order_location;type:varchar(40);not null"`

	// Panel-side server id, set once provisioning succeeds.
	OrderServerExternalID *string `json:"order_server_external_id" gorm:"column:order_server_external_id;type:varchar(64)"`

	OrderCustomerEmail string `json:"order_customer_email" gorm:"column:order_customer_email;type:varchar(120);not null"`

	// Billing cycle. Each paid invoice extends service by this many days.
	OrderTermDays int     `json:"order_term_days" gorm:"column:order_term_days;not null;default:30"`
	OrderPrice    float64 `json:"order_price"     gorm:"column:order_price;not null"`
	OrderCurrency string  `json:"order_currency"  gorm:"column:order_currency;type:varchar(8);not null;default:'USD'"`

	OrderCreatedAt time.Time `json:"order_created_at" gorm:"column:order_created_at;not null;autoCreateTime"`
	OrderUpdatedAt time.Time `json:"order_updated_at" gorm:"column:order_updated_at;not null;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
