// file: internals/features/orders/scheduler/renewal_scheduler.go
package scheduler

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	model "playhost_backend/internals/features/orders/model"
)

/* =========================================================
   Renewal sweep

   Daily classification of unpaid invoices by days-until-due. Emits
   reminder events at fixed thresholds, flags past-due invoices overdue
   and suspends the overdue active orders. This is a separate flow from
   settlement: it drives Order.status -> suspended directly, never the
   settlement transition function.
========================================================= */

// ReminderThresholds are days-before-due at which a reminder fires, once.
var ReminderThresholds = []int{7, 3, 1}

// Notifier receives reminder/overdue events. Mail delivery is an external
// concern; the default implementation just logs.
type Notifier interface {
	RenewalReminder(inv *model.Invoice, daysLeft int)
	InvoiceOverdue(inv *model.Invoice)
}

// Suspender is the slice of the panel contract this sweep needs.
type Suspender interface {
	SuspendServer(ctx context.Context, externalID string) error
}

type RenewalScheduler struct {
	DB       *gorm.DB
	Notifier Notifier
	Panel    Suspender
}

func NewRenewalScheduler(db *gorm.DB, n Notifier, panel Suspender) *RenewalScheduler {
	if n == nil {
		n = LogNotifier{}
	}
	return &RenewalScheduler{DB: db, Notifier: n, Panel: panel}
}

// Start runs the sweep on a fixed interval (normally 24h).
func (r *RenewalScheduler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	go func() {
		for {
			if err := r.RunOnce(context.Background(), time.Now()); err != nil {
				log.Printf("[RENEWAL] sweep failed: %v", err)
			}
			time.Sleep(interval)
		}
	}()
}

// RunOnce executes one sweep at the given instant.
func (r *RenewalScheduler) RunOnce(ctx context.Context, now time.Time) error {
	if err := r.remind(ctx, now); err != nil {
		return err
	}
	return r.flagOverdue(ctx, now)
}

// remind fires each threshold at most once per invoice; fired thresholds
// are recorded on the invoice so restarts don't repeat them.
func (r *RenewalScheduler) remind(ctx context.Context, now time.Time) error {
	var invoices []model.Invoice
	if err := r.DB.WithContext(ctx).
		Where("invoice_status = ? AND invoice_due_date > ?", model.InvoiceStatusUnpaid, now).
		Find(&invoices).Error; err != nil {
		return err
	}

	for i := range invoices {
		inv := &invoices[i]
		daysLeft := DaysUntilDue(inv.InvoiceDueDate, now)
		for _, th := range ReminderThresholds {
			if daysLeft != th || inv.ReminderSent(th) {
				continue
			}
			r.Notifier.RenewalReminder(inv, daysLeft)
			inv.InvoiceRemindersSent = append(inv.InvoiceRemindersSent, int64(th))
			if err := r.DB.WithContext(ctx).Model(&model.Invoice{}).
				Where("invoice_id = ?", inv.InvoiceID).
				Update("invoice_reminders_sent", inv.InvoiceRemindersSent).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// flagOverdue marks past-due unpaid invoices overdue and suspends their
// still-active orders.
func (r *RenewalScheduler) flagOverdue(ctx context.Context, now time.Time) error {
	db := r.DB.WithContext(ctx)

	if err := db.Model(&model.Invoice{}).
		Where("invoice_status = ? AND invoice_due_date < ?", model.InvoiceStatusUnpaid, now).
		Update("invoice_status", model.InvoiceStatusOverdue).Error; err != nil {
		return err
	}

	var overdue []model.Invoice
	if err := db.Where("invoice_status = ?", model.InvoiceStatusOverdue).
		Find(&overdue).Error; err != nil {
		return err
	}

	for i := range overdue {
		inv := &overdue[i]

		var order model.Order
		if err := db.First(&order, "order_id = ?", inv.InvoiceOrderID).Error; err != nil {
			log.Printf("[RENEWAL] overdue invoice %s has no order: %v", inv.InvoiceNumber, err)
			continue
		}
		if order.OrderStatus != model.OrderStatusActive {
			continue
		}

		r.Notifier.InvoiceOverdue(inv)

		if order.OrderServerExternalID != nil && r.Panel != nil {
			if err := r.Panel.SuspendServer(ctx, *order.OrderServerExternalID); err != nil {
				// Leave the order active so the next sweep retries.
				log.Printf("[RENEWAL] suspend %s failed: %v", order.OrderNumber, err)
				continue
			}
		}
		if err := db.Model(&model.Order{}).
			Where("order_id = ? AND order_status = ?", order.OrderID, model.OrderStatusActive).
			Update("order_status", model.OrderStatusSuspended).Error; err != nil {
			return err
		}
	}
	return nil
}

// DaysUntilDue counts whole days remaining, rounding part-days up so a
// reminder threshold fires on the calendar day it names.
func DaysUntilDue(due, now time.Time) int {
	d := due.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

/* ============== log-backed notifier ============== */

type LogNotifier struct{}

func (LogNotifier) RenewalReminder(inv *model.Invoice, daysLeft int) {
	log.Printf("[RENEWAL] reminder: invoice %s due in %d day(s)", inv.InvoiceNumber, daysLeft)
}

func (LogNotifier) InvoiceOverdue(inv *model.Invoice) {
	log.Printf("[RENEWAL] overdue: invoice %s (due %s)", inv.InvoiceNumber, inv.InvoiceDueDate.Format("2006-01-02"))
}
