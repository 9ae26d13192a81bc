// file: internals/features/orders/service/order_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	model "playhost_backend/internals/features/orders/model"
)

/* =========================================================
   Order / invoice creation
========================================================= */

// Initial invoices get a week before the renewal sweep flags them overdue.
const initialDueDays = 7

// GenNumber builds a human-readable unique reference. Kept under 25 bytes so
// it survives the KHQR bill-reference field untruncated.
func GenNumber(prefix string) string {
	u := strings.ToUpper(uuid.New().String())
	u = strings.ReplaceAll(u, "-", "")[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("060102150405"), u)
}

type CreateOrderInput struct {
	Game          string
	Plan          string
	Location      string
	CustomerEmail string
	TermDays      int
	Price         float64
	Currency      string
}

// CreateOrder persists a pending order together with its first invoice.
func CreateOrder(ctx context.Context, db *gorm.DB, in CreateOrderInput) (*model.Order, *model.Invoice, error) {
	if in.TermDays <= 0 {
		in.TermDays = 30
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	order := &model.Order{
		OrderID:            uuid.New(),
		OrderNumber:        GenNumber("ORD"),
		OrderStatus:        model.OrderStatusPending,
		OrderGame:          in.Game,
		OrderPlan:          in.Plan,
		OrderLocation:      in.Location,
		OrderCustomerEmail: in.CustomerEmail,
		OrderTermDays:      in.TermDays,
		OrderPrice:         in.Price,
		OrderCurrency:      strings.ToUpper(in.Currency),
	}

	invoice := NewInvoiceForOrder(order, time.Now().AddDate(0, 0, initialDueDays))

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		return tx.Create(invoice).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return order, invoice, nil
}

// NewInvoiceForOrder builds (but does not persist) the next unpaid invoice.
func NewInvoiceForOrder(o *model.Order, due time.Time) *model.Invoice {
	return &model.Invoice{
		InvoiceID:       uuid.New(),
		InvoiceOrderID:  o.OrderID,
		InvoiceNumber:   GenNumber("INV"),
		InvoiceAmount:   o.OrderPrice,
		InvoiceCurrency: o.OrderCurrency,
		InvoiceStatus:   model.InvoiceStatusUnpaid,
		InvoiceDueDate:  due,
	}
}

// ActiveInvoice returns the order's current unpaid/overdue invoice, newest
// first. One order has one active invoice at a time.
func ActiveInvoice(ctx context.Context, db *gorm.DB, orderID uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := db.WithContext(ctx).
		Where("invoice_order_id = ? AND invoice_status <> ?", orderID, model.InvoiceStatusPaid).
		Order("invoice_created_at DESC").
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
