// file: internals/features/payments/service/settlement_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	ordermodel "playhost_backend/internals/features/orders/model"
	ordersvc "playhost_backend/internals/features/orders/service"
	"playhost_backend/internals/features/payments/dto"
	"playhost_backend/internals/features/payments/khqr"
	model "playhost_backend/internals/features/payments/model"
)

/* =========================================================
   Settlement state machine

   Owns the settlement-record / invoice / order lifecycle. Both reconciliation
   drivers (poll and webhook) funnel into ApplySettlement, which is idempotent:
   the check-then-set on settlement_status is a single conditional UPDATE, so
   a poll and a webhook racing for the same fingerprint cannot both win.
========================================================= */

// Provisioner is the narrow contract with the external game-server panel.
// Commands apply their own timeout; their failure never reverts payment facts.
type Provisioner interface {
	CreateServer(ctx context.Context, o *ordermodel.Order) (externalID string, err error)
	RenewServer(ctx context.Context, externalID string, paidThrough time.Time) error
	UnsuspendServer(ctx context.Context, externalID string) error
}

type SettlementService struct {
	DB       *gorm.DB
	Merchant khqr.MerchantInfo
	Validity time.Duration // QR validity window
	Panel    Provisioner
	Midtrans *MidtransGateway // nil when the rail is not configured
	Checkers map[model.GatewayProvider]GatewayChecker
}

func NewSettlementService(db *gorm.DB, merchant khqr.MerchantInfo, validity time.Duration, panel Provisioner) *SettlementService {
	if validity <= 0 {
		validity = 15 * time.Minute
	}
	return &SettlementService{
		DB:       db,
		Merchant: merchant,
		Validity: validity,
		Panel:    panel,
		Checkers: map[model.GatewayProvider]GatewayChecker{},
	}
}

/* =========================================================
   Issue: invoice -> pending settlement record (+ QR payload)
========================================================= */

func (s *SettlementService) IssuePayment(ctx context.Context, invoiceID uuid.UUID, provider model.GatewayProvider, currency string) (*model.SettlementRecord, error) {
	var inv ordermodel.Invoice
	if err := s.DB.WithContext(ctx).First(&inv, "invoice_id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if inv.InvoiceStatus == ordermodel.InvoiceStatusPaid {
		return nil, ErrInvoiceAlreadyPaid
	}

	var order ordermodel.Order
	if err := s.DB.WithContext(ctx).First(&order, "order_id = ?", inv.InvoiceOrderID).Error; err != nil {
		return nil, err
	}

	if currency == "" {
		currency = inv.InvoiceCurrency
	}

	// The gateway sees the invoice number plus a per-attempt suffix, so
	// retried attempts stay distinguishable on the gateway side.
	externalRef := inv.InvoiceNumber + "-" + shortSuffix()

	now := time.Now()
	rec := &model.SettlementRecord{
		SettlementID:          uuid.New(),
		SettlementOrderID:     order.OrderID,
		SettlementInvoiceID:   inv.InvoiceID,
		SettlementExternalRef: externalRef,
		SettlementProvider:    provider,
		SettlementStatus:      model.SettlementStatusPending,
		SettlementExpiresAt:   now.Add(s.Validity),
	}

	switch provider {
	case model.GatewayProviderBakong:
		qr, err := khqr.Build(s.Merchant, khqr.Request{
			Amount:        inv.InvoiceAmount,
			Currency:      currency,
			BillReference: externalRef,
		})
		if err != nil {
			return nil, err
		}
		rec.SettlementFingerprint = qr.Fingerprint
		rec.SettlementQRPayload = &qr.Payload
		rec.SettlementAmount = qr.Amount
		rec.SettlementCurrency = qr.Currency
		rec.SettlementOriginalAmount = qr.OriginalAmount
		rec.SettlementOriginalCurrency = qr.OriginalCurrency

	case model.GatewayProviderMidtrans:
		if s.Midtrans == nil {
			return nil, fmt.Errorf("settlement: midtrans rail not configured")
		}
		url, err := s.Midtrans.GenerateCheckoutURL(externalRef, &order, inv.InvoiceAmount,
			order.OrderGame+" "+order.OrderPlan)
		if err != nil {
			return nil, err
		}
		// No merchant-presented payload on this rail; the external ref is
		// the dedup key, stored in the fingerprint column to keep the
		// uniqueness invariant.
		rec.SettlementFingerprint = khqr.Fingerprint(externalRef)
		rec.SettlementCheckoutURL = &url
		rec.SettlementAmount = inv.InvoiceAmount
		rec.SettlementCurrency = inv.InvoiceCurrency
		rec.SettlementOriginalAmount = inv.InvoiceAmount
		rec.SettlementOriginalCurrency = inv.InvoiceCurrency

	default:
		return nil, fmt.Errorf("settlement: unsupported provider %q", provider)
	}

	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

/* =========================================================
   Apply: "payment observed" -> exactly one downstream action
========================================================= */

// ApplySettlement is the single transition function both drivers feed. A
// second caller observing an already-settled record gets a no-op success.
func (s *SettlementService) ApplySettlement(ctx context.Context, evt dto.SettlementEvent) (*model.SettlementRecord, error) {
	rec, err := s.match(ctx, evt)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// Already terminal?
	switch rec.SettlementStatus {
	case model.SettlementStatusSettled:
		// Idempotent success path, not an error.
		return rec, nil
	case model.SettlementStatusExpired, model.SettlementStatusFailed:
		log.Printf("[SETTLE] late event for %s record %s discarded (status=%s)",
			rec.SettlementProvider, rec.SettlementID, rec.SettlementStatus)
		return rec, ErrExpiredFingerprint
	}

	// Lazy expiry: a pending record past its window must never be settled
	// by a late event.
	if rec.Expired(now) {
		s.expire(ctx, rec)
		log.Printf("[SETTLE] event for expired fingerprint %s discarded", rec.SettlementFingerprint)
		return rec, ErrExpiredFingerprint
	}

	if evt.Failed {
		res := s.DB.WithContext(ctx).Model(&model.SettlementRecord{}).
			Where("settlement_id = ? AND settlement_status = ?", rec.SettlementID, model.SettlementStatusPending).
			Updates(map[string]interface{}{
				"settlement_status":   model.SettlementStatusFailed,
				"settlement_evidence": evt.Evidence,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		rec.SettlementStatus = model.SettlementStatusFailed
		return rec, nil
	}
	if !evt.Settled {
		return rec, ErrNotYetPaid
	}

	// A settled event must pay what the record was issued for. A partial
	// amount or wrong currency leaves the record pending for manual review.
	// The currency guard covers the KHQR rail only: midtrans reports the
	// processor currency, not the currency the record was issued in.
	if evt.Amount > 0 && math.Abs(evt.Amount-rec.SettlementAmount) > 0.005 {
		log.Printf("[SETTLE] amount mismatch on %s: event %.2f %s, record %.2f %s",
			rec.SettlementExternalRef, evt.Amount, evt.Currency,
			rec.SettlementAmount, rec.SettlementCurrency)
		return rec, ErrAmountMismatch
	}
	if evt.Provider == model.GatewayProviderBakong &&
		evt.Currency != "" && evt.Currency != rec.SettlementCurrency {
		log.Printf("[SETTLE] currency mismatch on %s: event %s, record %s",
			rec.SettlementExternalRef, evt.Currency, rec.SettlementCurrency)
		return rec, ErrAmountMismatch
	}

	// Atomic check-then-set: whoever commits this first wins; the loser
	// sees RowsAffected == 0 and exits cleanly.
	res := s.DB.WithContext(ctx).Model(&model.SettlementRecord{}).
		Where("settlement_id = ? AND settlement_status = ?", rec.SettlementID, model.SettlementStatusPending).
		Updates(map[string]interface{}{
			"settlement_status":     model.SettlementStatusSettled,
			"settlement_settled_at": now,
			"settlement_evidence":   evt.Evidence,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race (or the record expired under us). Re-read to decide.
		var fresh model.SettlementRecord
		if err := s.DB.WithContext(ctx).First(&fresh, "settlement_id = ?", rec.SettlementID).Error; err != nil {
			return nil, err
		}
		if fresh.SettlementStatus == model.SettlementStatusSettled {
			return &fresh, nil
		}
		return &fresh, ErrExpiredFingerprint
	}

	rec.SettlementStatus = model.SettlementStatusSettled
	rec.SettlementSettledAt = &now

	// Payment is now a fact. Fulfillment failures below are surfaced for
	// retry, never treated as "payment didn't happen".
	if err := s.fulfill(ctx, rec, now); err != nil {
		return rec, err
	}
	return rec, nil
}

// fulfill marks the invoice paid, branches on the order status and fires the
// provisioning/renewal command.
func (s *SettlementService) fulfill(ctx context.Context, rec *model.SettlementRecord, now time.Time) error {
	db := s.DB.WithContext(ctx)

	// (1) invoice paid. Conditional, so a replayed event can't double-pay.
	res := db.Model(&ordermodel.Invoice{}).
		Where("invoice_id = ? AND invoice_status <> ?", rec.SettlementInvoiceID, ordermodel.InvoiceStatusPaid).
		Updates(map[string]interface{}{
			"invoice_status":         ordermodel.InvoiceStatusPaid,
			"invoice_paid_at":        now,
			"invoice_payment_method": string(rec.SettlementProvider),
		})
	if res.Error != nil {
		return res.Error
	}

	var order ordermodel.Order
	if err := db.First(&order, "order_id = ?", rec.SettlementOrderID).Error; err != nil {
		return err
	}
	var inv ordermodel.Invoice
	if err := db.First(&inv, "invoice_id = ?", rec.SettlementInvoiceID).Error; err != nil {
		return err
	}

	// (2) branch on order status: provision | renew | extend.
	switch order.OrderStatus {
	case ordermodel.OrderStatusActive:
		// Renewal of a running server: extend from the old due date so
		// early payment doesn't shorten the cycle.
		nextDue := inv.InvoiceDueDate.AddDate(0, 0, order.OrderTermDays)
		if err := db.Create(ordersvc.NewInvoiceForOrder(&order, nextDue)).Error; err != nil {
			return err
		}
		if order.OrderServerExternalID == nil {
			return s.provisioningFailed(ctx, &order, fmt.Errorf("active order %s has no server id", order.OrderID))
		}
		if err := s.Panel.RenewServer(ctx, *order.OrderServerExternalID, nextDue); err != nil {
			return s.provisioningFailed(ctx, &order, err)
		}
		return nil

	case ordermodel.OrderStatusSuspended:
		// Renew branch, not provisioning: the server exists, bring it back.
		nextDue := now.AddDate(0, 0, order.OrderTermDays)
		if err := db.Create(ordersvc.NewInvoiceForOrder(&order, nextDue)).Error; err != nil {
			return err
		}
		if order.OrderServerExternalID == nil {
			return s.provisioningFailed(ctx, &order, fmt.Errorf("suspended order %s has no server id", order.OrderID))
		}
		if err := s.Panel.UnsuspendServer(ctx, *order.OrderServerExternalID); err != nil {
			return s.provisioningFailed(ctx, &order, err)
		}
		return s.setOrderStatus(ctx, order.OrderID, ordermodel.OrderStatusActive, nil)

	default: // pending, paid, provisioning, failed: (re)provision
		if err := s.setOrderStatus(ctx, order.OrderID, ordermodel.OrderStatusProvisioning, nil); err != nil {
			return err
		}
		nextDue := now.AddDate(0, 0, order.OrderTermDays)
		if err := db.Create(ordersvc.NewInvoiceForOrder(&order, nextDue)).Error; err != nil {
			return err
		}
		externalID, err := s.Panel.CreateServer(ctx, &order)
		if err != nil {
			return s.provisioningFailed(ctx, &order, err)
		}
		return s.setOrderStatus(ctx, order.OrderID, ordermodel.OrderStatusActive, &externalID)
	}
}

// provisioningFailed parks the order at `paid` (retry eligible, not fatal)
// and surfaces the failure to the admin side only.
func (s *SettlementService) provisioningFailed(ctx context.Context, order *ordermodel.Order, cause error) error {
	log.Printf("[PROVISION] order %s: %v (payment stands, retry eligible)", order.OrderNumber, cause)
	if err := s.setOrderStatus(ctx, order.OrderID, ordermodel.OrderStatusPaid, nil); err != nil {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProvisioningFailed, cause)
}

func (s *SettlementService) setOrderStatus(ctx context.Context, orderID uuid.UUID, status ordermodel.OrderStatus, externalID *string) error {
	updates := map[string]interface{}{"order_status": status}
	if externalID != nil {
		updates["order_server_external_id"] = *externalID
	}
	return s.DB.WithContext(ctx).Model(&ordermodel.Order{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

/* =========================================================
   Matching an inbound event to a settlement record
========================================================= */

// match resolves an event's fingerprint or external ref to a record. Exact
// lookups come first; the prefix fallback is a narrow compatibility path for
// gateways that truncate references: it fires only for ids of at least
// 8 chars matching exactly one PENDING record, everything else is discarded.
func (s *SettlementService) match(ctx context.Context, evt dto.SettlementEvent) (*model.SettlementRecord, error) {
	db := s.DB.WithContext(ctx)

	if evt.Fingerprint != "" {
		var rec model.SettlementRecord
		err := db.First(&rec, "settlement_fingerprint = ?", evt.Fingerprint).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if evt.ExternalRef != "" {
		var rec model.SettlementRecord
		err := db.First(&rec, "settlement_external_ref = ?", evt.ExternalRef).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if len(evt.ExternalRef) >= minPrefixLen {
			var candidates []model.SettlementRecord
			err := db.Where("settlement_status = ? AND settlement_external_ref LIKE ?",
				model.SettlementStatusPending, evt.ExternalRef+"%").
				Limit(2).Find(&candidates).Error
			if err != nil {
				return nil, err
			}
			if len(candidates) == 1 {
				log.Printf("[SETTLE] matched %s by prefix fallback -> %s",
					evt.ExternalRef, candidates[0].SettlementExternalRef)
				return &candidates[0], nil
			}
		}
	}

	log.Printf("[SETTLE] no record for event provider=%s ext=%s ref=%s, discarded",
		evt.Provider, evt.ExternalID, evt.ExternalRef)
	return nil, ErrRecordNotFound
}

const minPrefixLen = 8

/* =========================================================
   Poll driver
========================================================= */

// Poll asks the gateway whether a record has settled. Manual mode ("I've
// paid" button) surfaces ErrNotYetPaid; background polling suppresses it at
// the call site.
func (s *SettlementService) Poll(ctx context.Context, settlementID uuid.UUID) (*model.SettlementRecord, error) {
	var rec model.SettlementRecord
	if err := s.DB.WithContext(ctx).First(&rec, "settlement_id = ?", settlementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if rec.SettlementStatus == model.SettlementStatusSettled {
		return &rec, nil
	}
	if rec.SettlementStatus != model.SettlementStatusPending {
		return &rec, ErrExpiredFingerprint
	}
	if rec.Expired(time.Now()) {
		s.expire(ctx, &rec)
		return &rec, ErrExpiredFingerprint
	}

	checker, ok := s.Checkers[rec.SettlementProvider]
	if !ok {
		return &rec, fmt.Errorf("settlement: no checker for provider %s", rec.SettlementProvider)
	}

	status, err := checker.CheckSettlement(ctx, &rec)
	if err != nil {
		return &rec, err
	}
	if !status.Settled {
		return &rec, ErrNotYetPaid
	}

	return s.ApplySettlement(ctx, dto.SettlementEvent{
		Provider:    rec.SettlementProvider,
		ExternalID:  status.ExternalID,
		ExternalRef: rec.SettlementExternalRef,
		Fingerprint: rec.SettlementFingerprint,
		Settled:     true,
		StatusToken: "poll",
		Amount:      rec.SettlementAmount,
		Currency:    rec.SettlementCurrency,
		Evidence:    status.Raw,
	})
}

/* =========================================================
   Expiry
========================================================= */

func (s *SettlementService) expire(ctx context.Context, rec *model.SettlementRecord) {
	res := s.DB.WithContext(ctx).Model(&model.SettlementRecord{}).
		Where("settlement_id = ? AND settlement_status = ?", rec.SettlementID, model.SettlementStatusPending).
		Update("settlement_status", model.SettlementStatusExpired)
	if res.Error != nil {
		log.Printf("[SETTLE] expire %s failed: %v", rec.SettlementID, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		rec.SettlementStatus = model.SettlementStatusExpired
	}
}

// ExpireSweep flips every pending record past its validity window to
// expired. Returns the number of records flipped.
func (s *SettlementService) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&model.SettlementRecord{}).
		Where("settlement_status = ? AND settlement_expires_at < ?", model.SettlementStatusPending, now).
		Update("settlement_status", model.SettlementStatusExpired)
	return res.RowsAffected, res.Error
}

// StartExpirySweep runs ExpireSweep on a fixed interval.
func (s *SettlementService) StartExpirySweep(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		for {
			if n, err := s.ExpireSweep(context.Background(), time.Now()); err != nil {
				log.Printf("[SWEEP] expire sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("[SWEEP] expired %d stale settlement records", n)
			}
			time.Sleep(interval)
		}
	}()
}

func shortSuffix() string {
	u := uuid.New().String()
	return u[:4]
}
