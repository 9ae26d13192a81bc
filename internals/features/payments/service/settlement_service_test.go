package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	ordermodel "playhost_backend/internals/features/orders/model"
	ordersvc "playhost_backend/internals/features/orders/service"
	"playhost_backend/internals/features/payments/dto"
	"playhost_backend/internals/features/payments/khqr"
	model "playhost_backend/internals/features/payments/model"
)

/* ============== harness ============== */

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ordermodel.Order{},
		&ordermodel.Invoice{},
		&model.SettlementRecord{},
		&model.PaymentGatewayEvent{},
	))
	return db
}

type fakePanel struct {
	createCalls    int
	renewCalls     int
	unsuspendCalls int
	failCreate     bool
	failUnsuspend  bool
}

func (f *fakePanel) CreateServer(ctx context.Context, o *ordermodel.Order) (string, error) {
	f.createCalls++
	if f.failCreate {
		return "", errors.New("panel down")
	}
	return "srv-1", nil
}

func (f *fakePanel) RenewServer(ctx context.Context, externalID string, paidThrough time.Time) error {
	f.renewCalls++
	return nil
}

func (f *fakePanel) UnsuspendServer(ctx context.Context, externalID string) error {
	f.unsuspendCalls++
	if f.failUnsuspend {
		return errors.New("panel down")
	}
	return nil
}

var testMerchant = khqr.MerchantInfo{
	AccountID:          "playhost@abaa",
	Name:               "PlayHost",
	City:               "Phnom Penh",
	SettlementCurrency: "KHR",
	KHRPerUSD:          4100,
}

func newTestService(t *testing.T) (*SettlementService, *fakePanel, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	panel := &fakePanel{}
	svc := NewSettlementService(db, testMerchant, 15*time.Minute, panel)
	return svc, panel, db
}

func mkOrderInvoice(t *testing.T, db *gorm.DB) (*ordermodel.Order, *ordermodel.Invoice) {
	t.Helper()
	order, inv, err := ordersvc.CreateOrder(context.Background(), db, ordersvc.CreateOrderInput{
		Game:          "minecraft",
		Plan:          "iron",
		Location:      "sg",
		CustomerEmail: "player@example.com",
		TermDays:      30,
		Price:         5,
		Currency:      "USD",
	})
	require.NoError(t, err)
	return order, inv
}

func settledEvent(rec *model.SettlementRecord) dto.SettlementEvent {
	return dto.SettlementEvent{
		Provider:    rec.SettlementProvider,
		ExternalID:  "tx-" + rec.SettlementID.String()[:8],
		ExternalRef: rec.SettlementExternalRef,
		Fingerprint: rec.SettlementFingerprint,
		Settled:     true,
		StatusToken: "SUCCESS",
		Amount:      rec.SettlementAmount,
		Currency:    rec.SettlementCurrency,
		Evidence:    datatypes.JSON(`{"source":"test"}`),
	}
}

/* ============== issuing ============== */

func TestIssuePaymentBakong(t *testing.T) {
	svc, _, db := newTestService(t)
	_, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	assert.Equal(t, model.SettlementStatusPending, rec.SettlementStatus)
	require.NotNil(t, rec.SettlementQRPayload)
	assert.Len(t, rec.SettlementFingerprint, 32)

	// $5.00 at 4100 settles as 20500 KHR; the original pair is preserved.
	assert.Equal(t, float64(20500), rec.SettlementAmount)
	assert.Equal(t, "KHR", rec.SettlementCurrency)
	assert.Equal(t, float64(5), rec.SettlementOriginalAmount)
	assert.Equal(t, "USD", rec.SettlementOriginalCurrency)

	// The gateway-facing ref is the invoice number plus an attempt suffix.
	assert.True(t, strings.HasPrefix(rec.SettlementExternalRef, inv.InvoiceNumber+"-"))

	// Retried issuance gets a fresh fingerprint, not a unique violation.
	rec2, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)
	assert.NotEqual(t, rec.SettlementFingerprint, rec2.SettlementFingerprint)
}

func TestIssuePaymentPaidInvoiceRejected(t *testing.T) {
	svc, _, db := newTestService(t)
	_, inv := mkOrderInvoice(t, db)

	require.NoError(t, db.Model(&ordermodel.Invoice{}).
		Where("invoice_id = ?", inv.InvoiceID).
		Update("invoice_status", ordermodel.InvoiceStatusPaid).Error)

	_, err := svc.IssuePayment(context.Background(), inv.InvoiceID, model.GatewayProviderBakong, "")
	assert.ErrorIs(t, err, ErrInvoiceAlreadyPaid)
}

/* ============== apply: the state machine ============== */

func TestApplySettlementProvisionsOnce(t *testing.T) {
	svc, panel, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	got, err := svc.ApplySettlement(ctx, settledEvent(rec))
	require.NoError(t, err)
	assert.Equal(t, model.SettlementStatusSettled, got.SettlementStatus)
	assert.NotNil(t, got.SettlementSettledAt)

	// Replayed event is an idempotent no-op success.
	got2, err := svc.ApplySettlement(ctx, settledEvent(rec))
	require.NoError(t, err)
	assert.Equal(t, model.SettlementStatusSettled, got2.SettlementStatus)
	assert.Equal(t, 1, panel.createCalls)

	var freshInv ordermodel.Invoice
	require.NoError(t, db.First(&freshInv, "invoice_id = ?", inv.InvoiceID).Error)
	assert.Equal(t, ordermodel.InvoiceStatusPaid, freshInv.InvoiceStatus)
	require.NotNil(t, freshInv.InvoicePaymentMethod)
	assert.Equal(t, "bakong", *freshInv.InvoicePaymentMethod)

	var freshOrder ordermodel.Order
	require.NoError(t, db.First(&freshOrder, "order_id = ?", order.OrderID).Error)
	assert.Equal(t, ordermodel.OrderStatusActive, freshOrder.OrderStatus)
	require.NotNil(t, freshOrder.OrderServerExternalID)
	assert.Equal(t, "srv-1", *freshOrder.OrderServerExternalID)

	// Exactly one next-cycle invoice, even after the replay.
	var count int64
	require.NoError(t, db.Model(&ordermodel.Invoice{}).
		Where("invoice_order_id = ?", order.OrderID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestApplySettlementFailedEventIsTerminal(t *testing.T) {
	svc, panel, db := newTestService(t)
	_, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	evt := settledEvent(rec)
	evt.Settled = false
	evt.Failed = true
	evt.StatusToken = "FAILED"

	got, err := svc.ApplySettlement(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementStatusFailed, got.SettlementStatus)

	// A success arriving after the failure must not resurrect the record.
	_, err = svc.ApplySettlement(ctx, settledEvent(rec))
	assert.ErrorIs(t, err, ErrExpiredFingerprint)
	assert.Zero(t, panel.createCalls)

	var freshInv ordermodel.Invoice
	require.NoError(t, db.First(&freshInv, "invoice_id = ?", inv.InvoiceID).Error)
	assert.Equal(t, ordermodel.InvoiceStatusUnpaid, freshInv.InvoiceStatus)
}

func TestApplySettlementExpiredWindowDiscarded(t *testing.T) {
	svc, panel, db := newTestService(t)
	_, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.SettlementRecord{}).
		Where("settlement_id = ?", rec.SettlementID).
		Update("settlement_expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = svc.ApplySettlement(ctx, settledEvent(rec))
	assert.ErrorIs(t, err, ErrExpiredFingerprint)
	assert.Zero(t, panel.createCalls)

	var fresh model.SettlementRecord
	require.NoError(t, db.First(&fresh, "settlement_id = ?", rec.SettlementID).Error)
	assert.Equal(t, model.SettlementStatusExpired, fresh.SettlementStatus)

	var freshInv ordermodel.Invoice
	require.NoError(t, db.First(&freshInv, "invoice_id = ?", inv.InvoiceID).Error)
	assert.Equal(t, ordermodel.InvoiceStatusUnpaid, freshInv.InvoiceStatus)
}

func TestApplySettlementPendingEvent(t *testing.T) {
	svc, _, db := newTestService(t)
	_, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	evt := settledEvent(rec)
	evt.Settled = false
	evt.StatusToken = "PENDING"

	got, err := svc.ApplySettlement(ctx, evt)
	assert.ErrorIs(t, err, ErrNotYetPaid)
	assert.Equal(t, model.SettlementStatusPending, got.SettlementStatus)
}

func TestApplySettlementAmountMismatchDiscarded(t *testing.T) {
	svc, panel, db := newTestService(t)
	_, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	// Partial payment must not settle the record.
	short := settledEvent(rec)
	short.Amount = rec.SettlementAmount / 2
	_, err = svc.ApplySettlement(ctx, short)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	// Right number, wrong currency.
	wrongCur := settledEvent(rec)
	wrongCur.Currency = "USD"
	_, err = svc.ApplySettlement(ctx, wrongCur)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	assert.Zero(t, panel.createCalls)
	var got model.SettlementRecord
	require.NoError(t, db.First(&got, "settlement_id = ?", rec.SettlementID).Error)
	assert.Equal(t, model.SettlementStatusPending, got.SettlementStatus)

	// The full amount still settles afterwards.
	full, err := svc.ApplySettlement(ctx, settledEvent(rec))
	require.NoError(t, err)
	assert.Equal(t, model.SettlementStatusSettled, full.SettlementStatus)
	assert.Equal(t, 1, panel.createCalls)
}

/* ============== renewal branches ============== */

func TestApplySettlementUnsuspendsSuspendedOrder(t *testing.T) {
	svc, panel, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	srv := "srv-9"
	require.NoError(t, db.Model(&ordermodel.Order{}).
		Where("order_id = ?", order.OrderID).
		Updates(map[string]interface{}{
			"order_status":             ordermodel.OrderStatusSuspended,
			"order_server_external_id": srv,
		}).Error)

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	_, err = svc.ApplySettlement(ctx, settledEvent(rec))
	require.NoError(t, err)

	assert.Equal(t, 1, panel.unsuspendCalls)
	assert.Zero(t, panel.createCalls)

	var freshOrder ordermodel.Order
	require.NoError(t, db.First(&freshOrder, "order_id = ?", order.OrderID).Error)
	assert.Equal(t, ordermodel.OrderStatusActive, freshOrder.OrderStatus)
}

func TestApplySettlementExtendsActiveOrder(t *testing.T) {
	svc, panel, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	srv := "srv-9"
	require.NoError(t, db.Model(&ordermodel.Order{}).
		Where("order_id = ?", order.OrderID).
		Updates(map[string]interface{}{
			"order_status":             ordermodel.OrderStatusActive,
			"order_server_external_id": srv,
		}).Error)

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	_, err = svc.ApplySettlement(ctx, settledEvent(rec))
	require.NoError(t, err)

	assert.Equal(t, 1, panel.renewCalls)
	assert.Zero(t, panel.createCalls)

	// The next cycle is anchored to the old due date, not the payment time.
	var next ordermodel.Invoice
	require.NoError(t, db.Where("invoice_order_id = ? AND invoice_status = ?",
		order.OrderID, ordermodel.InvoiceStatusUnpaid).First(&next).Error)
	wantDue := inv.InvoiceDueDate.AddDate(0, 0, order.OrderTermDays)
	assert.WithinDuration(t, wantDue, next.InvoiceDueDate, time.Second)
}

func TestProvisioningFailureKeepsPayment(t *testing.T) {
	svc, panel, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	panel.failCreate = true
	ctx := context.Background()

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	got, err := svc.ApplySettlement(ctx, settledEvent(rec))
	assert.ErrorIs(t, err, ErrProvisioningFailed)
	assert.Equal(t, model.SettlementStatusSettled, got.SettlementStatus)

	// Money facts stand: the invoice stays paid, the order parks at `paid`.
	var freshInv ordermodel.Invoice
	require.NoError(t, db.First(&freshInv, "invoice_id = ?", inv.InvoiceID).Error)
	assert.Equal(t, ordermodel.InvoiceStatusPaid, freshInv.InvoiceStatus)

	var freshOrder ordermodel.Order
	require.NoError(t, db.First(&freshOrder, "order_id = ?", order.OrderID).Error)
	assert.Equal(t, ordermodel.OrderStatusPaid, freshOrder.OrderStatus)
}

/* ============== matching ============== */

func mkPendingRecord(t *testing.T, db *gorm.DB, orderID, invoiceID uuid.UUID, ref string) *model.SettlementRecord {
	t.Helper()
	rec := &model.SettlementRecord{
		SettlementID:               uuid.New(),
		SettlementOrderID:          orderID,
		SettlementInvoiceID:        invoiceID,
		SettlementFingerprint:      khqr.Fingerprint(ref),
		SettlementExternalRef:      ref,
		SettlementProvider:         model.GatewayProviderBakong,
		SettlementAmount:           20500,
		SettlementCurrency:         "KHR",
		SettlementOriginalAmount:   5,
		SettlementOriginalCurrency: "USD",
		SettlementStatus:           model.SettlementStatusPending,
		SettlementExpiresAt:        time.Now().Add(15 * time.Minute),
	}
	require.NoError(t, db.Create(rec).Error)
	return rec
}

func TestMatchPrefixFallback(t *testing.T) {
	svc, _, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	rec := mkPendingRecord(t, db, order.OrderID, inv.InvoiceID, "INV-260827-AAAA11-X1")

	// Gateway truncated the ref; a unique pending prefix still matches.
	evt := dto.SettlementEvent{
		Provider:    model.GatewayProviderBakong,
		ExternalID:  "tx-prefix-1",
		ExternalRef: "INV-260827-AAAA11",
		Settled:     true,
	}
	got, err := svc.ApplySettlement(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, rec.SettlementID, got.SettlementID)
}

func TestMatchPrefixAmbiguousDiscarded(t *testing.T) {
	svc, _, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	mkPendingRecord(t, db, order.OrderID, inv.InvoiceID, "INV-SHARED-PREFIX-A")
	mkPendingRecord(t, db, order.OrderID, inv.InvoiceID, "INV-SHARED-PREFIX-B")

	evt := dto.SettlementEvent{
		Provider:    model.GatewayProviderBakong,
		ExternalID:  "tx-prefix-2",
		ExternalRef: "INV-SHARED-PREFIX",
		Settled:     true,
	}
	_, err := svc.ApplySettlement(ctx, evt)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMatchShortRefNeverPrefixMatches(t *testing.T) {
	svc, _, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	mkPendingRecord(t, db, order.OrderID, inv.InvoiceID, "INV-260827-BBBB22-Y2")

	evt := dto.SettlementEvent{
		Provider:    model.GatewayProviderBakong,
		ExternalID:  "tx-short",
		ExternalRef: "INV-2",
		Settled:     true,
	}
	_, err := svc.ApplySettlement(ctx, evt)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

/* ============== poll driver ============== */

type fakeChecker struct {
	settled bool
	err     error
}

func (f *fakeChecker) CheckSettlement(ctx context.Context, rec *model.SettlementRecord) (*GatewayStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &GatewayStatus{
		Settled:    f.settled,
		ExternalID: "tx-poll-1",
		Raw:        datatypes.JSON(`{"source":"poll"}`),
	}, nil
}

func TestPollDrivesSettlement(t *testing.T) {
	svc, panel, db := newTestService(t)
	_, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	checker := &fakeChecker{}
	svc.Checkers[model.GatewayProviderBakong] = checker

	rec, err := svc.IssuePayment(ctx, inv.InvoiceID, model.GatewayProviderBakong, "")
	require.NoError(t, err)

	_, err = svc.Poll(ctx, rec.SettlementID)
	assert.ErrorIs(t, err, ErrNotYetPaid)

	checker.settled = true
	got, err := svc.Poll(ctx, rec.SettlementID)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementStatusSettled, got.SettlementStatus)
	assert.Equal(t, 1, panel.createCalls)

	// Settled records answer from the database, not the gateway.
	checker.err = errors.New("gateway unreachable")
	got, err = svc.Poll(ctx, rec.SettlementID)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementStatusSettled, got.SettlementStatus)
}

func TestPollUnknownRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Poll(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

/* ============== expiry sweep ============== */

func TestExpireSweep(t *testing.T) {
	svc, _, db := newTestService(t)
	order, inv := mkOrderInvoice(t, db)
	ctx := context.Background()

	stale := mkPendingRecord(t, db, order.OrderID, inv.InvoiceID, "INV-STALE-00000001")
	require.NoError(t, db.Model(&model.SettlementRecord{}).
		Where("settlement_id = ?", stale.SettlementID).
		Update("settlement_expires_at", time.Now().Add(-time.Minute)).Error)
	fresh := mkPendingRecord(t, db, order.OrderID, inv.InvoiceID, "INV-FRESH-00000001")

	n, err := svc.ExpireSweep(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Fresh destination per lookup: reusing one would carry the first row's
	// primary key into the next query's WHERE clause.
	var gotStale model.SettlementRecord
	require.NoError(t, db.First(&gotStale, "settlement_id = ?", stale.SettlementID).Error)
	assert.Equal(t, model.SettlementStatusExpired, gotStale.SettlementStatus)

	var gotFresh model.SettlementRecord
	require.NoError(t, db.First(&gotFresh, "settlement_id = ?", fresh.SettlementID).Error)
	assert.Equal(t, model.SettlementStatusPending, gotFresh.SettlementStatus)
}
