// file: internals/features/orders/model/invoice_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

/* ================================
   MODEL: invoices

   One active invoice per order at a time. An invoice may accumulate many
   settlement attempts; at most one ever settles.
================================ */

type Invoice struct {
	InvoiceID      uuid.UUID `json:"invoice_id"      gorm:"column:invoice_id;type:uuid;primaryKey"`
	InvoiceOrderID uuid.UUID `json:"invoice_order_id" gorm:"column:invoice_order_id;type:uuid;not null;index"`
	InvoiceNumber  string    `json:"invoice_number"  gorm:"column:invoice_number;type:varchar(40);not null;uniqueIndex"`

	InvoiceAmount   float64 `json:"invoice_amount"   gorm:"column:invoice_amount;not null"`
	InvoiceCurrency string  `json:"invoice_currency" gorm:"column:invoice_currency;type:varchar(8);not null"`

	InvoiceStatus  InvoiceStatus `json:"invoice_status"   gorm:"column:invoice_status;type:varchar(16);not null;default:'unpaid'"`
	InvoiceDueDate time.Time     `json:"invoice_due_date" gorm:"column:invoice_due_date;not null"`

	InvoicePaidAt        *time.Time `json:"invoice_paid_at"        gorm:"column:invoice_paid_at"`
	InvoicePaymentMethod *string    `json:"invoice_payment_method" gorm:"column:invoice_payment_method;type:varchar(16)"`

	// Reminder thresholds (days-before-due) already fired, so the daily
	// sweep never sends the same reminder twice across restarts.
	InvoiceRemindersSent pq.Int64Array `json:"invoice_reminders_sent" gorm:"column:invoice_reminders_sent;type:integer[]"`

	InvoiceCreatedAt time.Time `json:"invoice_created_at" gorm:"column:invoice_created_at;not null;autoCreateTime"`
	InvoiceUpdatedAt time.Time `json:"invoice_updated_at" gorm:"column:invoice_updated_at;not null;autoUpdateTime"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// Overdue is derived state: unpaid and past due.
func (i *Invoice) Overdue(now time.Time) bool {
	return i.InvoiceStatus != InvoiceStatusPaid && now.After(i.InvoiceDueDate)
}

// ReminderSent reports whether the given threshold already fired.
func (i *Invoice) ReminderSent(days int) bool {
	for _, d := range i.InvoiceRemindersSent {
		if int(d) == days {
			return true
		}
	}
	return false
}
