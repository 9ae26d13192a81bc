// file: internals/features/payments/controller/webhook_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dto "playhost_backend/internals/features/payments/dto"
	model "playhost_backend/internals/features/payments/model"
	"playhost_backend/internals/features/payments/service"
)

/* =========================================================
   Webhook receivers

   Contract: prove you are the gateway, THEN tell me what happened.
   Signature verification runs on the raw body before any structured
   parsing. 200 = accepted-and-processed-or-deduplicated, 401 = signature
   failure, 500 = internal error. Unmatched/late events are logged and
   discarded with a 200 so the gateway stops redelivering.
========================================================= */

type WebhookController struct {
	DB      *gorm.DB
	Service *service.SettlementService

	BakongSecret      string
	MidtransServerKey string
}

func NewWebhookController(db *gorm.DB, svc *service.SettlementService, bakongSecret, midtransServerKey string) *WebhookController {
	return &WebhookController{
		DB:                db,
		Service:           svc,
		BakongSecret:      bakongSecret,
		MidtransServerKey: midtransServerKey,
	}
}

/* =========================================================
   POST /webhooks/bakong
========================================================= */

func (h *WebhookController) BakongWebhook(c *fiber.Ctx) error {
	raw := c.Body()

	// --- 1) Authenticity first: HMAC over the raw body, fail closed.
	if err := service.VerifyHMAC(raw, c.Get("X-Signature"), h.BakongSecret); err != nil {
		log.Printf("[WEBHOOK] bakong signature rejected: %v", err)
		return fiber.NewError(fiber.StatusUnauthorized, "signature verification failed")
	}

	// --- 2) Only now parse the body.
	var payload dto.BakongWebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}

	// --- 3) Replay window on the embedded timestamp.
	if payload.Timestamp != 0 {
		if err := service.CheckReplayWindow(time.Unix(payload.Timestamp, 0), time.Now()); err != nil {
			log.Printf("[WEBHOOK] bakong replay rejected: tx=%s", payload.TransactionID)
			return fiber.NewError(fiber.StatusUnauthorized, "timestamp outside replay window")
		}
	}

	evt, err := payload.Normalize(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return h.process(c, evt, c.Get("X-Signature"))
}

/* =========================================================
   POST /webhooks/midtrans

   The signature is vendor-computed and lives inside the body, so the body
   must be parsed to locate it, but nothing beyond the four signature
   inputs is trusted until the check passes.
========================================================= */

func (h *WebhookController) MidtransWebhook(c *fiber.Ctx) error {
	raw := c.Body()

	var payload dto.MidtransNotificationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}

	if err := service.VerifyMidtransSignature(
		payload.OrderID, payload.StatusCode, payload.GrossAmount,
		h.MidtransServerKey, payload.SignatureKey,
	); err != nil {
		log.Printf("[WEBHOOK] midtrans signature rejected: order=%s", payload.OrderID)
		return fiber.NewError(fiber.StatusUnauthorized, "signature verification failed")
	}

	evt, err := payload.Normalize(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return h.process(c, evt, payload.SignatureKey)
}

/* =========================================================
   Shared pipeline: log raw event -> state machine -> verdict
========================================================= */

func (h *WebhookController) process(c *fiber.Ctx, evt dto.SettlementEvent, signature string) error {
	row, dup := h.logEvent(c, evt, signature)
	if dup {
		// Redelivery of a (transaction, status) pair already logged; the
		// first delivery drove the transition (or was discarded). A new
		// status for the same transaction is not a duplicate.
		return c.JSON(fiber.Map{"message": "duplicate delivery, already handled"})
	}

	rec, err := h.Service.ApplySettlement(c.UserContext(), evt)

	switch {
	case err == nil:
		h.finishEvent(c, row, rec, model.GatewayEventStatusProcessed, nil)
		return c.JSON(fiber.Map{"message": "ok"})

	case errors.Is(err, service.ErrNotYetPaid):
		// Informational event (e.g. midtrans "pending"): recorded, no
		// transition.
		h.finishEvent(c, row, rec, model.GatewayEventStatusProcessed, nil)
		return c.JSON(fiber.Map{"message": "recorded"})

	case errors.Is(err, service.ErrRecordNotFound),
		errors.Is(err, service.ErrExpiredFingerprint):
		h.finishEvent(c, row, rec, model.GatewayEventStatusDiscarded, err)
		return c.JSON(fiber.Map{"message": "no matching pending payment, discarded"})

	case errors.Is(err, service.ErrAmountMismatch):
		// Redelivery cannot change the amount; 200 stops the retries, the
		// logged event carries the evidence for manual review.
		h.finishEvent(c, row, rec, model.GatewayEventStatusDiscarded, err)
		return c.JSON(fiber.Map{"message": "settled amount mismatch, discarded"})

	case errors.Is(err, service.ErrProvisioningFailed):
		// Payment settled; fulfillment is our problem, not the gateway's.
		h.finishEvent(c, row, rec, model.GatewayEventStatusProcessed, err)
		return c.JSON(fiber.Map{"message": "ok"})

	default:
		h.finishEvent(c, row, rec, model.GatewayEventStatusFailed, err)
		return fiber.NewError(fiber.StatusInternalServerError, "settlement failed")
	}
}

// logEvent appends the raw delivery to payment_gateway_events. The unique
// (provider, external_id, status_token) index turns same-status redelivery
// into a no-op while letting status changes through.
func (h *WebhookController) logEvent(c *fiber.Ctx, evt dto.SettlementEvent, signature string) (*model.PaymentGatewayEvent, bool) {
	headers, _ := json.Marshal(c.GetReqHeaders())

	row := &model.PaymentGatewayEvent{
		GatewayEventID:          uuid.New(),
		GatewayEventProvider:    evt.Provider,
		GatewayEventStatusToken: evt.StatusToken,
		GatewayEventHeaders:     datatypes.JSON(headers),
		GatewayEventPayload:     evt.Evidence,
	}
	if evt.ExternalID != "" {
		row.GatewayEventExternalID = &evt.ExternalID
	}
	if evt.ExternalRef != "" {
		row.GatewayEventExternalRef = &evt.ExternalRef
	}
	if signature != "" {
		row.GatewayEventSignature = &signature
	}

	if err := h.DB.WithContext(c.UserContext()).Create(row).Error; err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique") {
			return nil, true
		}
		// Event logging is best-effort; a failed insert must not drop the
		// settlement itself.
		log.Printf("[WEBHOOK] event log insert failed: %v", err)
		return nil, false
	}
	return row, false
}

func (h *WebhookController) finishEvent(c *fiber.Ctx, row *model.PaymentGatewayEvent, rec *model.SettlementRecord, status model.GatewayEventStatus, cause error) {
	if row == nil {
		return
	}
	now := time.Now()
	updates := map[string]interface{}{
		"gateway_event_status":       status,
		"gateway_event_processed_at": now,
	}
	if cause != nil {
		updates["gateway_event_error"] = cause.Error()
	}
	if rec != nil {
		updates["gateway_event_settlement_id"] = rec.SettlementID
	}
	if err := h.DB.WithContext(c.UserContext()).Model(&model.PaymentGatewayEvent{}).
		Where("gateway_event_id = ?", row.GatewayEventID).
		Updates(updates).Error; err != nil {
		log.Printf("[WEBHOOK] event log update failed: %v", err)
	}
}
