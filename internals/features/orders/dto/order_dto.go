// file: internals/features/orders/dto/order_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"

	model "playhost_backend/internals/features/orders/model"
)

/* =========================================================
   CREATE (checkout glue; the cart itself lives elsewhere)
========================================================= */

type CreateOrderRequest struct {
	Game          string  `json:"game" validate:"required,max=40"`
	Plan          string  `json:"plan" validate:"required,max=40"`
	Location      string  `json:"location" validate:"required,max=40"`
	CustomerEmail string  `json:"customer_email" validate:"required,email"`
	TermDays      int     `json:"term_days" validate:"omitempty,min=1,max=365"`
	Price         float64 `json:"price" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"omitempty,oneof=USD KHR"`
}

/* =========================================================
   RESPONSES
========================================================= */

type OrderResponse struct {
	OrderID          uuid.UUID `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
	Status           string    `json:"status"`
	Game             string    `json:"game"`
	Plan             string    `json:"plan"`
	Location         string    `json:"location"`
	ServerExternalID *string   `json:"server_external_id,omitempty"`
	TermDays         int       `json:"term_days"`
	Price            float64   `json:"price"`
	Currency         string    `json:"currency"`
	CreatedAt        time.Time `json:"created_at"`
}

type InvoiceResponse struct {
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	OrderID       uuid.UUID  `json:"order_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	DueDate       time.Time  `json:"due_date"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
}

func FromOrder(o *model.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:          o.OrderID,
		OrderNumber:      o.OrderNumber,
		Status:           string(o.OrderStatus),
		Game:             o.OrderGame,
		Plan:             o.OrderPlan,
		Location:         o.OrderLocation,
		ServerExternalID: o.OrderServerExternalID,
		TermDays:         o.OrderTermDays,
		Price:            o.OrderPrice,
		Currency:         o.OrderCurrency,
		CreatedAt:        o.OrderCreatedAt,
	}
}

func FromInvoice(i *model.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		InvoiceID:     i.InvoiceID,
		OrderID:       i.InvoiceOrderID,
		InvoiceNumber: i.InvoiceNumber,
		Status:        string(i.InvoiceStatus),
		Amount:        i.InvoiceAmount,
		Currency:      i.InvoiceCurrency,
		DueDate:       i.InvoiceDueDate,
		PaidAt:        i.InvoicePaidAt,
		PaymentMethod: i.InvoicePaymentMethod,
	}
}
